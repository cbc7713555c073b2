package watch

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/conduit-lang/metagraph/internal/filemeta"
	"github.com/conduit-lang/metagraph/internal/metadata"
	"github.com/conduit-lang/metagraph/internal/process"
)

// BatchHook runs inside the operation of every delivered batch, after all
// notifications have settled.
type BatchHook func(ctx context.Context, paths []string) error

// Notifier feeds file changes into the metadata engine. Each batch is one
// top-level operation.
type Notifier struct {
	svc     *metadata.Service
	files   *filemeta.Provider
	manager *process.Manager
	logger  *zap.Logger
	hooks   []BatchHook
}

// NewNotifier creates a notifier over svc. files must be registered with svc.
func NewNotifier(svc *metadata.Service, files *filemeta.Provider, manager *process.Manager, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		svc:     svc,
		files:   files,
		manager: manager,
		logger:  logger,
	}
}

// AfterBatch registers a hook run after each batch
func (n *Notifier) AfterBatch(hook BatchHook) {
	n.hooks = append(n.hooks, hook)
}

// Track starts tracking paths and computes their digests.
func (n *Notifier) Track(ctx context.Context, paths []string) error {
	return n.manager.Run(ctx, "track", func(ctx context.Context) error {
		for _, path := range sorted(paths) {
			if _, err := n.files.Track(path); err != nil {
				return err
			}
			if _, err := n.files.Digest(path); err != nil {
				return err
			}
		}
		return n.runHooks(ctx, paths)
	})
}

// HandleChanges notifies the dependents of every changed path, in sorted order.
// Paths seen for the first time are tracked before notification.
func (n *Notifier) HandleChanges(ctx context.Context, paths []string) error {
	return n.manager.Run(ctx, "file-change", func(ctx context.Context) error {
		deps := n.svc.Dependencies()
		for _, path := range sorted(paths) {
			resource := filemeta.ResourceID(path)
			if len(deps.Downstream(resource)) == 0 {
				if _, err := n.files.Track(path); err != nil {
					return err
				}
			}
			if err := deps.NotifyDownstream(resource); err != nil {
				return err
			}
		}
		n.logger.Info("processed file changes",
			zap.Int("files", len(paths)),
			zap.Stringer("stats", n.svc.Stats()),
		)
		return n.runHooks(ctx, paths)
	})
}

func (n *Notifier) runHooks(ctx context.Context, paths []string) error {
	for _, hook := range n.hooks {
		if err := hook(ctx, paths); err != nil {
			return err
		}
	}
	return nil
}

func sorted(paths []string) []string {
	result := append([]string(nil), paths...)
	sort.Strings(result)
	return result
}
