package sweep

import (
	"context"
	"fmt"

	"github.com/de-tools/cloud-sentry/pkg/services/config"
	"github.com/de-tools/cloud-sentry/pkg/services/dispatch"
	"github.com/de-tools/cloud-sentry/pkg/services/inventory"
)

// NewDefaultRunner assembles the production pipeline from external
// configuration: S3-backed inventory, HTTP risk sink, and SQS trigger sink.
func NewDefaultRunner(ctx context.Context, cfg *config.Config) (*Runner, error) {
	awsCfg, err := config.LoadAWS(ctx, cfg.Profile, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	explorer := inventory.NewExplorer(awsCfg, inventory.Settings{
		RetryMax:    cfg.Sweep.RetryMax,
		CallTimeout: cfg.Sweep.CallTimeout,
	})

	riskSink := dispatch.NewRiskSink(dispatch.RiskSinkSettings{
		Endpoint:    cfg.RiskSink.URL,
		APIKey:      cfg.RiskSink.APIKey,
		RetryMax:    cfg.Sweep.RetryMax,
		CallTimeout: cfg.Sweep.CallTimeout,
	})
	triggerSink := dispatch.NewTriggerSink(awsCfg, dispatch.TriggerSinkSettings{
		QueueURL:    cfg.Remediation.QueueURL,
		RetryMax:    cfg.Sweep.RetryMax,
		CallTimeout: cfg.Sweep.CallTimeout,
	})
	dispatcher := dispatch.NewDispatcher(riskSink, triggerSink, cfg.Remediation.PlaybookRef)

	return NewRunner(explorer, dispatcher, Settings{Concurrency: cfg.Sweep.Concurrency}), nil
}
