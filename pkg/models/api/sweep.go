package api

import "time"

// ResourceOutcome is one row of the sweep report returned by the HTTP API.
type ResourceOutcome struct {
	ResourceID     string `json:"resource_id"`
	Status         string `json:"status"`
	Incomplete     bool   `json:"incomplete,omitempty"`
	DispatchErrors int    `json:"dispatch_errors,omitempty"`
}

type RunSummary struct {
	RunID          string            `json:"run_id"`
	Started        time.Time         `json:"started"`
	Completed      time.Time         `json:"completed"`
	Total          int               `json:"total"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Errored        int               `json:"errored"`
	Incomplete     int               `json:"incomplete"`
	TriggersSent   int               `json:"triggers_sent"`
	DispatchErrors int               `json:"dispatch_errors"`
	Outcomes       []ResourceOutcome `json:"outcomes"`
}
