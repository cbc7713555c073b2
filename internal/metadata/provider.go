package metadata

import (
	"fmt"
	"sort"

	"github.com/conduit-lang/metagraph/internal/metadata/mid"
)

// Provider is the sole producer of one metadata class.
//
// Get computes a fresh item for an instance identifier of the provider's
// class. A nil item with a nil error means the metadata is unavailable. Get may
// read other metadata through the Service and register dependencies, but must
// otherwise be free of side effects.
type Provider interface {
	// ProvidesType returns the class identifier this provider produces.
	ProvidesType() string
	Get(id string) (Item, error)
}

// ProviderRegistry maps metadata class identifiers to their provider.
type ProviderRegistry struct {
	providers map[string]Provider
}

// NewProviderRegistry creates an empty provider registry
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

// Register records p under its declared type. Matching is by exact class
// identifier string.
func (r *ProviderRegistry) Register(p Provider) error {
	if p == nil {
		return fmt.Errorf("%w: nil provider", ErrInvalidIdentifier)
	}
	classID := p.ProvidesType()
	if !mid.IsClassIdentifier(classID) {
		return invalidID("provider type", classID)
	}
	if _, exists := r.providers[classID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProvider, classID)
	}
	r.providers[classID] = p
	return nil
}

// Deregister removes the provider of classID. It reports whether a provider
// was removed.
func (r *ProviderRegistry) Deregister(classID string) bool {
	if _, exists := r.providers[classID]; !exists {
		return false
	}
	delete(r.providers, classID)
	return true
}

// Provider returns the provider registered for classID, or nil.
func (r *ProviderRegistry) Provider(classID string) Provider {
	return r.providers[classID]
}

// Providers returns every registered provider ordered by class identifier.
func (r *ProviderRegistry) Providers() []Provider {
	types := r.Types()
	result := make([]Provider, 0, len(types))
	for _, t := range types {
		result = append(result, r.providers[t])
	}
	return result
}

// Types returns the sorted class identifiers with a registered provider.
func (r *ProviderRegistry) Types() []string {
	result := make([]string, 0, len(r.providers))
	for t := range r.providers {
		result = append(result, t)
	}
	sort.Strings(result)
	return result
}

// Size returns the number of registered providers
func (r *ProviderRegistry) Size() int {
	return len(r.providers)
}
