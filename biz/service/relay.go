package service

import (
	"sync/atomic"

	"github.com/polycast/relay/internal/logger"

	"go.uber.org/zap"
)

// IngestRelay duplicates each inbound chunk to every pipeline of its session.
// Delivery to each pipeline is attempted independently: a failed or stopped
// destination never interrupts its siblings, and no delivery progress is
// synchronized across pipelines.
type IngestRelay struct {
	pipelines []*EncoderPipeline
	closed    atomic.Bool
}

func newIngestRelay(pipelines []*EncoderPipeline) *IngestRelay {
	return &IngestRelay{
		pipelines: pipelines,
	}
}

func (r *IngestRelay) Feed(chunk []byte) {
	if r.closed.Load() {
		return
	}
	for _, p := range r.pipelines {
		if err := p.Feed(chunk); err != nil {
			logger.SDebug("IngestRelay.Feed: pipeline rejected chunk",
				zap.String("destination", p.Destination().Name),
				zap.Error(err))
		}
	}
}

func (r *IngestRelay) Close() {
	r.closed.Store(true)
}
