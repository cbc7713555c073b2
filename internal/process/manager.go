// Package process serializes top-level operations on the metadata engine.
//
// The engine itself has no locking. Every entry point that starts a cascade
// (a command, a file-system poll cycle, a diagnostics request) runs inside
// Manager.Run, so at most one operation touches the cache, the dependency
// registry and the provider registry at a time.
package process

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation describes the top-level operation in progress.
type Operation struct {
	ID      string
	Name    string
	Started time.Time
}

type operationKey struct{}

// FromContext returns the operation running fn, if any.
func FromContext(ctx context.Context) (Operation, bool) {
	op, ok := ctx.Value(operationKey{}).(Operation)
	return op, ok
}

// Manager admits one operation at a time.
type Manager struct {
	slot   chan struct{}
	logger *zap.Logger
}

// NewManager creates a process manager
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		slot:   make(chan struct{}, 1),
		logger: logger,
	}
}

// Run waits for exclusive access and runs fn. It returns ctx.Err() if the
// context ends while waiting. Nested calls from within fn run immediately on
// the already admitted operation.
func (m *Manager) Run(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	if _, nested := FromContext(ctx); nested {
		return fn(ctx)
	}

	select {
	case m.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("operation %s not started: %w", name, ctx.Err())
	}
	defer func() { <-m.slot }()

	op := Operation{
		ID:      uuid.NewString(),
		Name:    name,
		Started: time.Now(),
	}
	log := m.logger.With(zap.String("operation", name), zap.String("operation_id", op.ID))
	log.Debug("operation started")

	err := fn(context.WithValue(ctx, operationKey{}, op))

	if err != nil {
		log.Warn("operation failed", zap.Duration("elapsed", time.Since(op.Started)), zap.Error(err))
		return err
	}
	log.Debug("operation finished", zap.Duration("elapsed", time.Since(op.Started)))
	return nil
}
