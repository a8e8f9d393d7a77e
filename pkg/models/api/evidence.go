package api

import "time"

// CheckResult is the wire form of one rule verdict inside an evidence
// payload.
type CheckResult struct {
	Rule     string `json:"rule"`
	Status   string `json:"status"`
	Reason   string `json:"reason,omitempty"`
	Severity string `json:"severity,omitempty"`
}

// EvidenceRecord is the CCE payload posted to the risk-analysis endpoint.
// The control metadata fields identify the baseline this evidence supports.
type EvidenceRecord struct {
	KSIID          string        `json:"ksi_id"`
	ControlID      string        `json:"control_id"`
	ResourceID     string        `json:"resource_id"`
	ValidationType string        `json:"validation_type"`
	Timestamp      time.Time     `json:"timestamp"`
	Status         string        `json:"status"`
	Checks         []CheckResult `json:"checks"`
	CorrelationID  string        `json:"correlation_id"`
}

// RemediationTrigger is the message body sent to the remediation queue for
// each failing resource.
type RemediationTrigger struct {
	Action         string    `json:"action"`
	ResourceID     string    `json:"resource_id"`
	FailingRules   []string  `json:"failing_rules"`
	CorrelationID  string    `json:"correlation_id"`
	RemediationRef string    `json:"remediation_ref"`
	Timestamp      time.Time `json:"timestamp"`
}
