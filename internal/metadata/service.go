package metadata

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"go.uber.org/zap"

	"github.com/conduit-lang/metagraph/internal/metadata/mid"
)

const (
	// DefaultMaxCacheSize bounds the number of cached items.
	DefaultMaxCacheSize = 100000
	// DefaultMaxNotifyDepth bounds the nesting of a notification cascade.
	DefaultMaxNotifyDepth = 256
)

// ServiceConfig configures a Service
type ServiceConfig struct {
	// MaxCacheSize is the number of items kept before the least recently used
	// entry is evicted.
	MaxCacheSize int
	// MaxNotifyDepth stops cascades nested deeper than this.
	MaxNotifyDepth int
	Logger         *zap.Logger
}

// DefaultServiceConfig returns the default Service configuration
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxCacheSize:   DefaultMaxCacheSize,
		MaxNotifyDepth: DefaultMaxNotifyDepth,
		Logger:         zap.NewNop(),
	}
}

// cacheEntry wraps an item so that nil results can be cached
type cacheEntry struct {
	item Item
}

// Service is the single entry point for reading metadata. It routes requests
// to providers, caches results, and recomputes stale instances when the
// dependency registry reports a change.
//
// A Service is not safe for concurrent use. Calls made by providers during a
// computation re-enter the Service on the same goroutine; top-level callers
// serialize through internal/process.
type Service struct {
	config    ServiceConfig
	logger    *zap.Logger
	providers *ProviderRegistry
	deps      *DependencyRegistry
	cache     *simplelru.LRU

	computing map[string]bool // instances whose provider is running
	cascading map[string]bool // instances being recomputed and propagated by Notify
	depth     int
	rescans   map[string]bool

	stats         Stats
	providerStats map[string]*ProviderStats
}

// NewService creates a Service with the default configuration
func NewService() (*Service, error) {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// NewServiceWithConfig creates a Service with its own provider and dependency
// registries. The Service installs itself as the dependency registry's
// dispatcher.
func NewServiceWithConfig(config ServiceConfig) (*Service, error) {
	if config.MaxCacheSize <= 0 {
		return nil, fmt.Errorf("max cache size must be positive, got %d", config.MaxCacheSize)
	}
	if config.MaxNotifyDepth <= 0 {
		return nil, fmt.Errorf("max notify depth must be positive, got %d", config.MaxNotifyDepth)
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	cache, err := simplelru.NewLRU(config.MaxCacheSize, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata cache: %w", err)
	}

	s := &Service{
		config:        config,
		logger:        config.Logger,
		providers:     NewProviderRegistry(),
		deps:          NewDependencyRegistry(),
		cache:         cache,
		computing:     make(map[string]bool),
		cascading:     make(map[string]bool),
		rescans:       make(map[string]bool),
		providerStats: make(map[string]*ProviderStats),
	}
	s.stats.CacheMaximumSize = config.MaxCacheSize
	s.deps.SetDispatcher(s)
	return s, nil
}

// Dependencies returns the dependency registry owned by the Service.
func (s *Service) Dependencies() *DependencyRegistry {
	return s.deps
}

// RegisterProvider makes p responsible for its declared metadata class.
func (s *Service) RegisterProvider(p Provider) error {
	if err := s.providers.Register(p); err != nil {
		return err
	}
	s.logger.Debug("registered metadata provider", zap.String("type", p.ProvidesType()))
	return nil
}

// DeregisterProvider removes the provider of classID, prunes every edge of its
// class and evicts its cached instances.
func (s *Service) DeregisterProvider(classID string) {
	if !s.providers.Deregister(classID) {
		return
	}
	pruned := s.deps.PruneClass(mid.MetadataClass(classID))
	evicted := s.evictClass(classID)
	delete(s.rescans, classID)
	s.logger.Debug("deregistered metadata provider",
		zap.String("type", classID),
		zap.Int("pruned_edges", pruned),
		zap.Int("evicted", evicted),
	)
}

// Provider returns the provider registered for classID, or nil.
func (s *Service) Provider(classID string) Provider {
	return s.providers.Provider(classID)
}

// Providers returns the registered providers ordered by class identifier.
func (s *Service) Providers() []Provider {
	return s.providers.Providers()
}

// ProviderTypes returns the sorted class identifiers with a provider.
func (s *Service) ProviderTypes() []string {
	return s.providers.Types()
}

// Get returns the metadata for an instance identifier, from cache when
// possible. A nil item with a nil error means the metadata is unavailable.
func (s *Service) Get(id string) (Item, error) {
	return s.get(id, false)
}

// GetFresh discards any cached value for id and recomputes it.
func (s *Service) GetFresh(id string) (Item, error) {
	return s.get(id, true)
}

func (s *Service) get(id string, evict bool) (Item, error) {
	if !mid.IsInstanceIdentifier(id) {
		return nil, invalidID("instance", id)
	}
	s.stats.ValidGets++

	if s.computing[id] {
		// A provider asked for its own output; answer with the last known value.
		s.stats.RecursiveGets++
		s.logger.Debug("recursive metadata request", zap.String("id", id))
		if v, ok := s.cache.Peek(id); ok {
			return v.(cacheEntry).item, nil
		}
		return nil, nil
	}

	if evict {
		// The stale entry stays visible to recursive requests until it is
		// replaced below.
		if s.cache.Contains(id) {
			s.stats.CacheEvictions++
		}
	} else {
		if v, ok := s.cache.Get(id); ok {
			s.stats.CacheHits++
			return v.(cacheEntry).item, nil
		}
		s.stats.CacheMisses++
	}

	classID := mid.ClassIdentifierOf(id)
	provider := s.providers.Provider(classID)
	if provider == nil {
		return nil, fmt.Errorf("%w for %s", ErrNoProvider, id)
	}

	item, elapsed, err := s.compute(provider, id)
	s.recordProvider(classID, elapsed)
	if err != nil {
		if evict {
			s.cache.Remove(id)
		}
		return nil, fmt.Errorf("metadata provider %s failed for %s: %w", classID, id, err)
	}

	if s.cache.Add(id, cacheEntry{item: item}) {
		s.stats.CacheEvictions++
	}
	s.stats.CachePuts++
	s.logger.Debug("computed metadata",
		zap.String("id", id),
		zap.Bool("valid", Valid(item)),
		zap.Duration("elapsed", elapsed),
	)
	return item, nil
}

// compute runs the provider with id marked in progress. The marker is released
// even when the provider panics.
func (s *Service) compute(p Provider, id string) (Item, time.Duration, error) {
	s.computing[id] = true
	start := time.Now()
	defer delete(s.computing, id)

	item, err := p.Get(id)
	return item, time.Since(start), err
}

func (s *Service) recordProvider(classID string, elapsed time.Duration) {
	ps, exists := s.providerStats[classID]
	if !exists {
		ps = &ProviderStats{}
		s.providerStats[classID] = ps
	}
	ps.Invocations++
	ps.Duration += elapsed
}

// Evict removes one cached item without recomputing it.
func (s *Service) Evict(id string) error {
	if !mid.IsInstanceIdentifier(id) {
		return invalidID("instance", id)
	}
	if s.cache.Remove(id) {
		s.stats.CacheEvictions++
	}
	return nil
}

// EvictAll clears the cache.
func (s *Service) EvictAll() {
	s.stats.CacheEvictions += uint64(s.cache.Len())
	s.cache.Purge()
}

func (s *Service) evictClass(classID string) int {
	evicted := 0
	for _, key := range s.cache.Keys() {
		id := key.(string)
		if mid.ClassIdentifierOf(id) == classID && s.cache.Remove(id) {
			evicted++
		}
	}
	s.stats.CacheEvictions += uint64(evicted)
	return evicted
}

// Notify reacts to upstream having changed.
//
// An empty downstream evicts every cached transitive dependent of upstream
// and leaves recomputation to the next Get. A class downstream is handed to
// its provider when the provider is a NotificationListener, and is otherwise
// recorded as a pending rescan with its cached instances evicted. An instance
// downstream is recomputed immediately and its own dependents are notified in
// turn.
func (s *Service) Notify(upstream, downstream string) error {
	if downstream == "" {
		return s.notifyAll(upstream)
	}
	if !validUpstream(upstream) {
		return invalidID("upstream", upstream)
	}
	if mid.IsClassIdentifier(downstream) {
		return s.notifyClass(upstream, downstream)
	}
	if !mid.IsInstanceIdentifier(downstream) {
		return invalidID("downstream", downstream)
	}

	if s.cascading[downstream] || s.computing[downstream] {
		s.logger.Debug("notification cycle stopped",
			zap.String("upstream", upstream),
			zap.String("downstream", downstream),
		)
		return nil
	}
	if s.depth >= s.config.MaxNotifyDepth {
		s.stats.NotifyCutoffs++
		s.logger.Warn("notification cascade cut off",
			zap.String("upstream", upstream),
			zap.String("downstream", downstream),
			zap.Int("depth", s.depth),
		)
		return nil
	}

	s.depth++
	s.cascading[downstream] = true
	defer func() {
		s.depth--
		delete(s.cascading, downstream)
	}()

	s.stats.Notifications++
	s.logger.Debug("recomputing stale metadata",
		zap.String("upstream", upstream),
		zap.String("downstream", downstream),
	)
	if _, err := s.get(downstream, true); err != nil {
		return err
	}
	return s.deps.NotifyDownstream(downstream)
}

func (s *Service) notifyClass(upstream, classID string) error {
	p := s.providers.Provider(classID)
	if p == nil {
		return nil
	}
	if l, ok := p.(NotificationListener); ok {
		return l.Notify(upstream, classID)
	}
	s.stats.Rescans++
	s.rescans[classID] = true
	evicted := s.evictClass(classID)
	s.logger.Debug("rescan needed",
		zap.String("upstream", upstream),
		zap.String("type", classID),
		zap.Int("evicted", evicted),
	)
	return nil
}

func (s *Service) notifyAll(upstream string) error {
	if !validUpstream(upstream) {
		return invalidID("upstream", upstream)
	}
	for _, d := range s.deps.TransitiveDownstream(upstream) {
		if mid.IsClassIdentifier(d) {
			if s.providers.Provider(d) != nil {
				s.stats.Rescans++
				s.rescans[d] = true
				s.evictClass(d)
			}
			continue
		}
		if s.cache.Remove(d) {
			s.stats.CacheEvictions++
		}
	}
	return nil
}

// PendingRescans returns the sorted class identifiers whose instances were
// invalidated by a class-level notification.
func (s *Service) PendingRescans() []string {
	result := make([]string, 0, len(s.rescans))
	for classID := range s.rescans {
		result = append(result, classID)
	}
	sort.Strings(result)
	return result
}

// ClearRescans forgets every pending rescan.
func (s *Service) ClearRescans() {
	s.rescans = make(map[string]bool)
}

// Stats returns a snapshot of the Service counters.
func (s *Service) Stats() Stats {
	snapshot := s.stats
	snapshot.CacheCurrentSize = s.cache.Len()
	snapshot.Providers = make(map[string]ProviderStats, len(s.providerStats))
	for t, ps := range s.providerStats {
		snapshot.Providers[t] = *ps
	}
	return snapshot
}

// String renders the cache counters.
func (s *Service) String() string {
	return s.Stats().String()
}
