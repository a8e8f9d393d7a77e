package dispatch

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/evidence"
)

// EvidenceSink receives every evidence record, pass or fail.
type EvidenceSink interface {
	Send(ctx context.Context, rec domain.EvidenceRecord) error
}

// RemediationSink receives a trigger for every failing resource.
type RemediationSink interface {
	Send(ctx context.Context, trigger domain.RemediationTrigger) error
}

// Result reports both deliveries for one record. The two are tracked
// separately so a failed evidence post never hides a sent trigger and
// vice versa.
type Result struct {
	EvidenceErr error
	TriggerSent bool
	TriggerErr  error
}

// Errors counts the deliveries that exhausted their retries.
func (r Result) Errors() int {
	n := 0
	if r.EvidenceErr != nil {
		n++
	}
	if r.TriggerErr != nil {
		n++
	}
	return n
}

// Dispatcher fans one evidence record out to the two downstream sinks:
// unconditionally to the risk-analysis sink, and to the remediation queue
// only when the aggregate status is FAIL. The deliveries are independent.
type Dispatcher struct {
	evidence       EvidenceSink
	remediation    RemediationSink
	remediationRef string
}

func NewDispatcher(evidenceSink EvidenceSink, remediationSink RemediationSink, remediationRef string) *Dispatcher {
	return &Dispatcher{
		evidence:       evidenceSink,
		remediation:    remediationSink,
		remediationRef: remediationRef,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, rec domain.EvidenceRecord) Result {
	logger := zerolog.Ctx(ctx)
	var result Result

	result.EvidenceErr = d.evidence.Send(ctx, rec)
	if result.EvidenceErr != nil {
		logger.Error().
			Err(result.EvidenceErr).
			Str("resource_id", rec.Resource.ARN).
			Str("correlation_id", rec.CorrelationID).
			Msg("evidence delivery failed")
	}

	trigger := evidence.Trigger(rec, d.remediationRef)
	if trigger == nil {
		return result
	}

	result.TriggerErr = d.remediation.Send(ctx, *trigger)
	result.TriggerSent = result.TriggerErr == nil
	if result.TriggerErr != nil {
		logger.Error().
			Err(result.TriggerErr).
			Str("resource_id", rec.Resource.ARN).
			Str("correlation_id", rec.CorrelationID).
			Msg("remediation trigger delivery failed")
	}

	return result
}
