package main

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/callwatchio/callwatch/internal/overlay"
)

// logRenderer is the headless overlay renderer: it logs every widget
// transition instead of drawing. The host application substitutes its own
// renderer when it embeds the engine.
type logRenderer struct {
	logger *zap.Logger
	nextID atomic.Int64
}

func newLogRenderer(logger *zap.Logger) *logRenderer {
	return &logRenderer{logger: logger.Named("renderer")}
}

type logHandle struct {
	id   int64
	kind string
}

func (r *logRenderer) RenderIndicator(onTap func()) (overlay.Handle, error) {
	h := &logHandle{id: r.nextID.Add(1), kind: "indicator"}
	r.logger.Info("Overlay rendered", zap.String("kind", h.kind), zap.Int64("handle", h.id))
	return h, nil
}

func (r *logRenderer) RenderPanel(vm overlay.PanelViewModel) (overlay.Handle, error) {
	h := &logHandle{id: r.nextID.Add(1), kind: "panel"}
	r.logger.Info("Overlay rendered",
		zap.String("kind", h.kind),
		zap.String("panel", string(vm.Kind)),
		zap.Int64("handle", h.id),
	)
	return h, nil
}

func (r *logRenderer) Destroy(h overlay.Handle) error {
	lh, ok := h.(*logHandle)
	if !ok {
		return nil
	}
	r.logger.Info("Overlay destroyed", zap.String("kind", lh.kind), zap.Int64("handle", lh.id))
	return nil
}
