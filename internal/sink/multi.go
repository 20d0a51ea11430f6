package sink

import (
	"context"

	"signal_engine/internal/models"
	"signal_engine/internal/providers"
	"signal_engine/pkg/logger"
)

// MultiSink fans one signal out to several sinks. Each sub-sink failure is
// logged and does not stop the others; publishing is fire-and-forget.
type MultiSink struct {
	sinks []providers.SignalSink
}

func NewMultiSink(sinks ...providers.SignalSink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Publish(ctx context.Context, sig models.Signal) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, sig); err != nil {
			logger.Error("publish %s %s via %T: %v", sig.Direction, sig.Symbol, s, err)
		}
	}
	return nil
}
