package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/de-tools/cloud-sentry/pkg/models/api"
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
	"github.com/de-tools/cloud-sentry/pkg/services/rules"
)

// RiskSinkSettings configures the risk-analysis HTTP endpoint. The endpoint
// URL and API key come from external configuration, never from code.
type RiskSinkSettings struct {
	Endpoint    string
	APIKey      string
	RetryMax    uint64
	CallTimeout time.Duration
}

// RiskSink posts evidence records to the risk-analysis consumer. Transient
// failures (network errors, 5xx, 429) are retried with bounded exponential
// backoff; other client errors are not worth retrying and fail immediately.
type RiskSink struct {
	settings RiskSinkSettings
	client   *http.Client
}

func NewRiskSink(settings RiskSinkSettings) *RiskSink {
	return &RiskSink{
		settings: settings,
		client:   &http.Client{Timeout: settings.CallTimeout},
	}
}

func (s *RiskSink) Send(ctx context.Context, rec domain.EvidenceRecord) error {
	payload := evidenceToAPI(rec)
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode evidence record: %w", err)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.settings.RetryMax),
		ctx,
	)
	err = backoff.Retry(func() error {
		return s.post(ctx, body)
	}, bo)
	if err != nil {
		return fmt.Errorf("failed to deliver evidence for %s: %w", rec.Resource.ARN, err)
	}
	return nil
}

func (s *RiskSink) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.settings.Endpoint, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.settings.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("risk sink returned status %d", resp.StatusCode)
	default:
		return backoff.Permanent(fmt.Errorf("risk sink rejected evidence with status %d", resp.StatusCode))
	}
}

func evidenceToAPI(rec domain.EvidenceRecord) api.EvidenceRecord {
	checks := make([]api.CheckResult, 0, len(rec.Checks))
	for _, check := range rec.Checks {
		result := api.CheckResult{
			Rule:   check.Rule,
			Status: string(check.Status),
			Reason: check.Reason,
		}
		if check.Status != domain.StatusPass {
			result.Severity = string(check.Severity)
		}
		checks = append(checks, result)
	}

	return api.EvidenceRecord{
		KSIID:          rules.KSIID,
		ControlID:      rules.ControlID,
		ResourceID:     rec.Resource.ARN,
		ValidationType: "Automated",
		Timestamp:      rec.Timestamp,
		Status:         string(rec.Status),
		Checks:         checks,
		CorrelationID:  rec.CorrelationID,
	}
}
