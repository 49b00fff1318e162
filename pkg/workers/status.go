package workers

import (
	"context"
	"time"

	"github.com/cbodonnell/cardstage/pkg/log"
	"github.com/cbodonnell/cardstage/pkg/registry"
)

type StatusWorker struct {
	registry   registry.Registry
	statusChan <-chan registry.SessionInfo
	timeout    time.Duration
	logger     *log.Logger
}

type NewStatusWorkerOptions struct {
	Registry   registry.Registry
	StatusChan <-chan registry.SessionInfo
	// Timeout bounds every registry call. Defaults to five seconds.
	Timeout time.Duration
	Logger  *log.Logger
}

// NewStatusWorker creates a new StatusWorker.
// The worker publishes the status reported by sessions to the registry so
// the coordinator never waits on it.
func NewStatusWorker(opts NewStatusWorkerOptions) *StatusWorker {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &StatusWorker{
		registry:   opts.Registry,
		statusChan: opts.StatusChan,
		timeout:    timeout,
		logger:     logger,
	}
}

func (w *StatusWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-w.statusChan:
			if !ok {
				return
			}
			w.put(ctx, info)
		}
	}
}

func (w *StatusWorker) put(ctx context.Context, info registry.SessionInfo) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.registry.Put(ctx, info); err != nil {
		w.logger.Error("Failed to update session %s: %v", info.ID, err)
	}
}
