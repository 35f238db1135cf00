package roomstate

import (
	"context"
	"fmt"
	"log"

	"github.com/go-monolith/mono"
)

// Module owns the in-memory room state shared by the collaboration modules.
type Module struct {
	store *Store
}

var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the room state module with the default history cap.
func NewModule() *Module {
	return &Module{store: NewStore(DefaultHistoryCap)}
}

func (m *Module) Name() string { return "roomstate" }

func (m *Module) Start(ctx context.Context) error {
	log.Println("[roomstate] room state store ready")
	return nil
}

func (m *Module) Stop(ctx context.Context) error {
	log.Printf("[roomstate] stopping with %d rooms", m.store.Len())
	return nil
}

func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: true,
		Message: "Room state store operational",
		Details: map[string]any{
			"rooms": fmt.Sprintf("%d", m.store.Len()),
		},
	}
}

// Store exposes the shared store for wiring into sibling modules.
func (m *Module) Store() *Store {
	return m.store
}
