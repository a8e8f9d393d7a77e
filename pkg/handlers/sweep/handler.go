package sweep

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/de-tools/cloud-sentry/pkg/models/api"
	"github.com/de-tools/cloud-sentry/pkg/models/domain"
)

// Service runs one compliance sweep.
type Service interface {
	Run(ctx context.Context) (domain.RunSummary, error)
}

type Handler struct {
	sweeps Service
}

func NewHandler(sweeps Service) *Handler {
	return &Handler{sweeps: sweeps}
}

// TriggerSweep runs a sweep on demand and returns its summary. An
// enumeration failure is the only fatal outcome; everything else is
// reported inside the summary.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	summary, err := h.sweeps.Run(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("sweep failed")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summaryToAPI(summary)); err != nil {
		logger.Error().
			Err(err).
			Str("run_id", summary.RunID).
			Msg("failed to encode run summary")
	}
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func summaryToAPI(summary domain.RunSummary) api.RunSummary {
	outcomes := make([]api.ResourceOutcome, 0, len(summary.Outcomes))
	for _, o := range summary.Outcomes {
		outcomes = append(outcomes, api.ResourceOutcome{
			ResourceID:     o.ResourceID,
			Status:         string(o.Status),
			Incomplete:     o.Incomplete,
			DispatchErrors: o.DispatchErrors,
		})
	}

	return api.RunSummary{
		RunID:          summary.RunID,
		Started:        summary.Started,
		Completed:      summary.Completed,
		Total:          summary.Total,
		Passed:         summary.Passed,
		Failed:         summary.Failed,
		Errored:        summary.Errored,
		Incomplete:     summary.Incomplete,
		TriggersSent:   summary.TriggersSent,
		DispatchErrors: summary.DispatchErrors,
		Outcomes:       outcomes,
	}
}
