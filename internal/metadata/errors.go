package metadata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/metagraph/internal/metadata/mid"
)

var (
	// ErrInvalidIdentifier is returned for malformed or wrong-kind identifiers.
	ErrInvalidIdentifier = mid.ErrInvalid
	// ErrNoProvider is returned when no provider is registered for a metadata class.
	ErrNoProvider = errors.New("no metadata provider registered")
	// ErrDuplicateProvider is returned when a metadata class already has a provider.
	ErrDuplicateProvider = errors.New("metadata provider already registered")
	// ErrDependencyCycle is returned when a dependency would close a cycle.
	ErrDependencyCycle = errors.New("dependency would create a cycle")
)

// CycleError reports a rejected dependency together with the existing path
// that would have closed the loop.
type CycleError struct {
	Upstream   string
	Downstream string
	// Path runs from Downstream back to Upstream along registered edges.
	Path []string
}

func (e *CycleError) Error() string {
	if len(e.Path) == 0 {
		return fmt.Sprintf("%v: %s -> %s", ErrDependencyCycle, e.Upstream, e.Downstream)
	}
	return fmt.Sprintf("%v: %s -> %s closes %s", ErrDependencyCycle, e.Upstream, e.Downstream, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error {
	return ErrDependencyCycle
}

func invalidID(kind, id string) error {
	return fmt.Errorf("%w: %s %q", ErrInvalidIdentifier, kind, id)
}
