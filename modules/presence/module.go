package presence

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
)

// Module owns the global name-to-connection registry.
type Module struct {
	registry *Registry
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

func NewModule() *Module {
	return &Module{registry: NewRegistry()}
}

func (m *Module) Name() string { return "presence" }

func (m *Module) Start(ctx context.Context) error {
	log.Println("[presence] user registry ready")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	return nil
}

func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "Presence registry operational",
		Details: map[string]any{
			"registered_users": fmt.Sprintf("%d", m.registry.Len()),
		},
	}
}

// Registry exposes the shared registry for wiring into sibling modules.
func (m *Module) Registry() *Registry {
	return m.registry
}
