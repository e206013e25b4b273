package llmclient

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/RosendoLopez2014/PromptPilot/api/schemas"
)

// Availability is an explicit record of whether the backend is usable and
// with which model. It replaces ambient global flags: the planner holds one,
// and refreshing it is an explicit Recheck call.
type Availability struct {
	Reachable    bool
	Model        string
	ModelPresent bool
	CheckedAt    time.Time
}

// Usable reports whether synthesis calls should be attempted at all.
func (a Availability) Usable() bool { return a.Reachable && a.ModelPresent }

// ModelLister is implemented by clients that can report locally present
// models. OllamaClient satisfies it; fakes in tests may not.
type ModelLister interface {
	HasModel(ctx context.Context) (bool, error)
}

// CheckAvailability probes the backend once and, when the pinned model is
// missing, attempts the one-time pull. All failures degrade to an unusable
// Availability; nothing here returns an error because backend absence is an
// expected mode, not a fault.
func CheckAvailability(ctx context.Context, client schemas.LLMClient, model string, logger *zap.Logger) Availability {
	avail := Availability{Model: model, CheckedAt: time.Now().UTC()}

	if err := client.Ping(ctx); err != nil {
		logger.Warn("Backend liveness probe failed; synthesis disabled", zap.Error(err))
		return avail
	}
	avail.Reachable = true

	lister, ok := client.(ModelLister)
	if !ok {
		// Client cannot enumerate models; assume the pinned one is usable.
		avail.ModelPresent = true
		return avail
	}

	present, err := lister.HasModel(ctx)
	if err != nil {
		logger.Warn("Model presence check failed; synthesis disabled", zap.Error(err))
		avail.Reachable = false
		return avail
	}
	if present {
		avail.ModelPresent = true
		return avail
	}

	logger.Info("Pinned model absent locally, attempting one-time pull", zap.String("model", model))
	if err := client.PullModel(ctx, model); err != nil {
		logger.Warn("Model pull failed; synthesis disabled", zap.String("model", model), zap.Error(err))
		return avail
	}
	avail.ModelPresent = true
	return avail
}
