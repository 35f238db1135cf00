package cursor

import (
	"context"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/modules/broadcast"
)

// Module wraps the cursor broadcaster.
type Module struct {
	broadcaster *Broadcaster
	logger      types.Logger
}

var _ mono.Module = (*Module)(nil)

// NewModule creates the cursor module.
func NewModule(hub *broadcast.Hub, logger types.Logger) *Module {
	return &Module{
		broadcaster: NewBroadcaster(hub, logger),
		logger:      logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "cursor"
}

// Start initializes the module.
func (m *Module) Start(ctx context.Context) error {
	m.logger.Info("Cursor module started")
	return nil
}

// Stop gracefully shuts down the module.
func (m *Module) Stop(ctx context.Context) error {
	return nil
}

// Broadcaster returns the cursor broadcaster for the transport layer.
func (m *Module) Broadcaster() *Broadcaster {
	return m.broadcaster
}
