package evidence

import (
	"time"

	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// Build constructs the evidence record for one resource from its complete
// set of rule results. The aggregate status is FAIL when any rule failed;
// ERROR when nothing failed but at least one rule was indeterminate; PASS
// otherwise. The full breakdown is always kept, aggregate PASS included,
// so the audit trail records every check that ran.
func Build(res domain.Resource, results []domain.EvaluationResult, runID string, at time.Time) domain.EvidenceRecord {
	status := domain.StatusPass
	if len(results) == 0 {
		status = domain.StatusError
	}
	for _, r := range results {
		switch r.Status {
		case domain.StatusFail:
			status = domain.StatusFail
		case domain.StatusError:
			if status != domain.StatusFail {
				status = domain.StatusError
			}
		}
	}

	return domain.EvidenceRecord{
		Resource:      res,
		Timestamp:     at.UTC(),
		Status:        status,
		Checks:        results,
		CorrelationID: runID,
	}
}

// Trigger derives the remediation trigger for a failing record. Returns nil
// unless the aggregate status is FAIL: indeterminate resources are reported
// but never remediated on guesswork.
func Trigger(rec domain.EvidenceRecord, remediationRef string) *domain.RemediationTrigger {
	if rec.Status != domain.StatusFail {
		return nil
	}

	var failing []string
	for _, check := range rec.Checks {
		if check.Status == domain.StatusFail {
			failing = append(failing, check.Rule)
		}
	}

	return &domain.RemediationTrigger{
		Resource:       rec.Resource,
		FailingRules:   failing,
		CorrelationID:  rec.CorrelationID,
		RemediationRef: remediationRef,
	}
}
