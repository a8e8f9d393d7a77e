package domain

import "time"

// Status is the verdict for a single rule or for a whole resource.
// StatusError marks an indeterminate result: the check could not be
// completed, which is distinct from a confirmed failure.
type Status string

const (
	StatusPass  Status = "PASS"
	StatusFail  Status = "FAIL"
	StatusError Status = "ERROR"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Resource identifies one S3 bucket in the scanned population.
type Resource struct {
	Name string
	ARN  string
	Type string
}

// FacetState distinguishes a facet that exists, one the account never
// configured, and one we could not read before the retry budget ran out.
// "Not configured" is a normal, representable state, not an error.
type FacetState int

const (
	FacetConfigured FacetState = iota
	FacetNotConfigured
	FacetUnavailable
)

// PublicAccessBlock is the public-access-block facet of a bucket.
type PublicAccessBlock struct {
	State                 FacetState
	BlockPublicACLs       bool
	IgnorePublicACLs      bool
	BlockPublicPolicy     bool
	RestrictPublicBuckets bool
	// Reason carries the fetch failure when State is FacetUnavailable.
	Reason string
}

// DefaultEncryption is the default server-side encryption facet of a bucket.
type DefaultEncryption struct {
	State      FacetState
	Algorithms []string
	Reason     string
}

// BucketConfig is the read-only configuration snapshot evaluated by the
// rule set. It is never mutated after discovery.
type BucketConfig struct {
	Resource          Resource
	PublicAccessBlock PublicAccessBlock
	Encryption        DefaultEncryption
}

// EvaluationResult is the verdict of one rule against one resource.
type EvaluationResult struct {
	ResourceID string
	Rule       string
	Status     Status
	Severity   Severity
	Reason     string
}

// EvidenceRecord is the continuous compliance evidence emitted for every
// evaluated resource, pass or fail. Exactly one record exists per resource
// per run, and it always carries the full per-rule breakdown.
type EvidenceRecord struct {
	Resource      Resource
	Timestamp     time.Time
	Status        Status
	Checks        []EvaluationResult
	CorrelationID string
}

// RemediationTrigger asks the downstream playbook to correct a failing
// resource. It exists only when the evidence record's aggregate status
// is StatusFail.
type RemediationTrigger struct {
	Resource       Resource
	FailingRules   []string
	CorrelationID  string
	RemediationRef string
}

// ResourceOutcome is one line of the run report: a resource, its final
// aggregate status, and whether either delivery failed for it.
type ResourceOutcome struct {
	ResourceID     string
	Status         Status
	Incomplete     bool
	TriggerSent    bool
	DispatchErrors int
}

// RunSummary describes one complete sweep.
type RunSummary struct {
	RunID          string
	Started        time.Time
	Completed      time.Time
	Total          int
	Passed         int
	Failed         int
	Errored        int
	Incomplete     int
	TriggersSent   int
	DispatchErrors int
	Outcomes       []ResourceOutcome
}
