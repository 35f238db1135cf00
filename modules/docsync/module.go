package docsync

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/events"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// Module wraps the document sync engine.
type Module struct {
	engine *Engine
	logger types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates the document sync module.
func NewModule(store *roomstate.Store, hub *broadcast.Hub, finder SnapshotFinder, logger types.Logger) *Module {
	return &Module{
		engine: NewEngine(store, hub, finder, logger),
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "docsync"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.engine.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.DocumentSavedV1.ToBase(),
	}
}

// Start initializes the module.
func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("Document sync module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Document sync module stopped")
	return nil
}

// Engine returns the sync engine for the transport layer.
func (m *Module) Engine() *Engine {
	return m.engine
}
