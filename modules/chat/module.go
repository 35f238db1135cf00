package chat

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/events"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/presence"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// Module wraps the chat dispatcher.
type Module struct {
	dispatcher *Dispatcher
	logger     types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates the chat module.
func NewModule(store *roomstate.Store, registry *presence.Registry, hub *broadcast.Hub, logger types.Logger) *Module {
	return &Module{
		dispatcher: NewDispatcher(store, registry, hub, logger),
		logger:     logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.dispatcher.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.MessageSentV1.ToBase(),
	}
}

// Start initializes the chat module.
func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("Chat module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	m.logger.Info("Chat module stopped")
	return nil
}

// Dispatcher returns the dispatcher for the transport layer.
func (m *Module) Dispatcher() *Dispatcher {
	return m.dispatcher
}
