package lifecycle

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/events"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/chat"
	"github.com/example/collab-docs-demo/modules/presence"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// Module wraps the lifecycle manager.
type Module struct {
	manager *Manager
	logger  types.Logger
}

// Compile-time interface checks.
var (
	_ mono.Module              = (*Module)(nil)
	_ mono.EventBusAwareModule = (*Module)(nil)
	_ mono.EventEmitterModule  = (*Module)(nil)
)

// NewModule creates the lifecycle module.
func NewModule(store *roomstate.Store, registry *presence.Registry, hub *broadcast.Hub, dispatcher *chat.Dispatcher, logger types.Logger) *Module {
	return &Module{
		manager: NewManager(store, registry, hub, dispatcher, logger),
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "lifecycle"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.manager.SetEventBus(bus)
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.UserJoinedV1.ToBase(),
		events.UserLeftV1.ToBase(),
	}
}

// Start initializes the module.
func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("Lifecycle module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Manager returns the lifecycle manager for the transport layer.
func (m *Module) Manager() *Manager {
	return m.manager
}
