package metadata

import (
	"github.com/conduit-lang/metagraph/internal/metadata/mid"
)

// Edge is one registered upstream -> downstream dependency.
type Edge struct {
	Upstream   string `json:"upstream"`
	Downstream string `json:"downstream"`
	// Static is true for class-to-class edges, which are cycle checked.
	Static bool `json:"static"`
}

// dependencyNode holds both directions of adjacency for one identifier
type dependencyNode struct {
	id         string
	upstream   []string // identifiers this node depends on
	downstream []string // identifiers that depend on this node
}

// edgeSet is an insertion-ordered directed graph
type edgeSet struct {
	nodes map[string]*dependencyNode
	order []string // identifiers in first-registration order
}

func newEdgeSet() *edgeSet {
	return &edgeSet{nodes: make(map[string]*dependencyNode)}
}

func (s *edgeSet) node(id string) *dependencyNode {
	n, exists := s.nodes[id]
	if !exists {
		n = &dependencyNode{id: id}
		s.nodes[id] = n
		s.order = append(s.order, id)
	}
	return n
}

func (s *edgeSet) has(upstream, downstream string) bool {
	n, exists := s.nodes[upstream]
	return exists && contains(n.downstream, downstream)
}

func (s *edgeSet) add(upstream, downstream string) {
	up := s.node(upstream)
	if !contains(up.downstream, downstream) {
		up.downstream = append(up.downstream, downstream)
	}
	down := s.node(downstream)
	if !contains(down.upstream, upstream) {
		down.upstream = append(down.upstream, upstream)
	}
}

func (s *edgeSet) remove(upstream, downstream string) bool {
	if !s.has(upstream, downstream) {
		return false
	}
	up := s.nodes[upstream]
	up.downstream = removeString(up.downstream, downstream)
	down := s.nodes[downstream]
	down.upstream = removeString(down.upstream, upstream)
	s.compact(up)
	s.compact(down)
	return true
}

// compact drops nodes that no longer take part in any edge
func (s *edgeSet) compact(n *dependencyNode) {
	if len(n.upstream) > 0 || len(n.downstream) > 0 {
		return
	}
	delete(s.nodes, n.id)
	s.order = removeString(s.order, n.id)
}

func (s *edgeSet) downstreamOf(id string) []string {
	if n, exists := s.nodes[id]; exists {
		return n.downstream
	}
	return nil
}

func (s *edgeSet) upstreamOf(id string) []string {
	if n, exists := s.nodes[id]; exists {
		return n.upstream
	}
	return nil
}

// path returns the identifiers on a downstream walk from start to target, or
// nil when target is unreachable
func (s *edgeSet) path(start, target string) []string {
	visited := make(map[string]bool)
	var walk func(id string, trail []string) []string
	walk = func(id string, trail []string) []string {
		trail = append(trail, id)
		if id == target {
			return trail
		}
		if visited[id] {
			return nil
		}
		visited[id] = true
		for _, next := range s.downstreamOf(id) {
			if found := walk(next, trail); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(start, nil)
}

func (s *edgeSet) edges(static bool) []Edge {
	var result []Edge
	for _, id := range s.order {
		for _, down := range s.nodes[id].downstream {
			result = append(result, Edge{Upstream: id, Downstream: down, Static: static})
		}
	}
	return result
}

// DependencyRegistry owns the upstream -> downstream edges between metadata
// identifiers and broadcasts change notifications along them.
//
// Class-to-class edges are kept apart from every other edge and must stay
// acyclic. All other edges (resource, instance, and mixed class/instance) are
// only checked for self-loops; the Service stops runaway cascades over them.
//
// The registry is not safe for concurrent use. Top-level operations are
// serialized by the caller (see internal/process).
type DependencyRegistry struct {
	static     *edgeSet
	dynamic    *edgeSet
	dispatcher NotificationListener
	listeners  []NotificationListener
}

// NewDependencyRegistry creates an empty dependency registry
func NewDependencyRegistry() *DependencyRegistry {
	return &DependencyRegistry{
		static:  newEdgeSet(),
		dynamic: newEdgeSet(),
	}
}

// SetDispatcher installs the listener that receives edge-driven notifications.
// The Service installs itself here.
func (r *DependencyRegistry) SetDispatcher(l NotificationListener) {
	r.dispatcher = l
}

func validUpstream(id string) bool {
	return mid.IsWellFormed(id) || mid.IsResource(id)
}

func isStatic(upstream, downstream string) bool {
	return mid.IsClassIdentifier(upstream) && mid.IsClassIdentifier(downstream)
}

func (r *DependencyRegistry) check(upstream, downstream string) error {
	if !validUpstream(upstream) {
		return invalidID("upstream", upstream)
	}
	if !mid.IsWellFormed(downstream) {
		return invalidID("downstream", downstream)
	}
	if upstream == downstream {
		return &CycleError{Upstream: upstream, Downstream: downstream}
	}
	if isStatic(upstream, downstream) {
		if p := r.static.path(downstream, upstream); p != nil {
			return &CycleError{Upstream: upstream, Downstream: downstream, Path: p}
		}
	}
	return nil
}

// IsValidDependency reports whether upstream -> downstream could be registered.
func (r *DependencyRegistry) IsValidDependency(upstream, downstream string) bool {
	return r.check(upstream, downstream) == nil
}

// RegisterDependency records that downstream must be notified when upstream
// changes. Registering an existing edge has no effect. Edges that would close a
// class-level cycle, and self-edges, are rejected with a *CycleError.
func (r *DependencyRegistry) RegisterDependency(upstream, downstream string) error {
	if err := r.check(upstream, downstream); err != nil {
		return err
	}
	if isStatic(upstream, downstream) {
		r.static.add(upstream, downstream)
	} else {
		r.dynamic.add(upstream, downstream)
	}
	return nil
}

// DeregisterDependency removes exactly one edge. It is a no-op when absent.
func (r *DependencyRegistry) DeregisterDependency(upstream, downstream string) error {
	if !validUpstream(upstream) {
		return invalidID("upstream", upstream)
	}
	if !mid.IsWellFormed(downstream) {
		return invalidID("downstream", downstream)
	}
	if !r.static.remove(upstream, downstream) {
		r.dynamic.remove(upstream, downstream)
	}
	return nil
}

// DeregisterDependencies removes every edge whose downstream is downstream.
func (r *DependencyRegistry) DeregisterDependencies(downstream string) error {
	if !mid.IsWellFormed(downstream) {
		return invalidID("downstream", downstream)
	}
	for _, set := range []*edgeSet{r.static, r.dynamic} {
		for _, up := range append([]string(nil), set.upstreamOf(downstream)...) {
			set.remove(up, downstream)
		}
	}
	return nil
}

// PruneClass removes every edge with an endpoint in the given metadata class.
// It returns the number of edges removed.
func (r *DependencyRegistry) PruneClass(metadataClass string) int {
	removed := 0
	for _, set := range []*edgeSet{r.static, r.dynamic} {
		for _, e := range set.edges(false) {
			if mid.MetadataClass(e.Upstream) == metadataClass || mid.MetadataClass(e.Downstream) == metadataClass {
				set.remove(e.Upstream, e.Downstream)
				removed++
			}
		}
	}
	return removed
}

// Downstream returns the identifiers registered as depending on upstream, in
// registration order.
func (r *DependencyRegistry) Downstream(upstream string) []string {
	result := make([]string, 0)
	result = append(result, r.static.downstreamOf(upstream)...)
	result = append(result, r.dynamic.downstreamOf(upstream)...)
	return result
}

// Upstream returns the identifiers downstream depends on, in registration order.
func (r *DependencyRegistry) Upstream(downstream string) []string {
	result := make([]string, 0)
	result = append(result, r.static.upstreamOf(downstream)...)
	result = append(result, r.dynamic.upstreamOf(downstream)...)
	return result
}

// notificationTargets returns the downstreams a change to upstream reaches
// directly: its own edges, then the edges of its class when upstream is an
// instance
func (r *DependencyRegistry) notificationTargets(upstream string) []string {
	targets := r.Downstream(upstream)
	if mid.IsInstanceIdentifier(upstream) {
		for _, d := range r.Downstream(mid.ClassIdentifierOf(upstream)) {
			if d != upstream && !contains(targets, d) {
				targets = append(targets, d)
			}
		}
	}
	return targets
}

// TransitiveDownstream returns every identifier reachable from upstream by
// notification, in breadth-first order, excluding upstream itself.
func (r *DependencyRegistry) TransitiveDownstream(upstream string) []string {
	visited := map[string]bool{upstream: true}
	result := make([]string, 0)
	queue := []string{upstream}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, d := range r.notificationTargets(current) {
			if visited[d] {
				continue
			}
			visited[d] = true
			result = append(result, d)
			queue = append(queue, d)
		}
	}
	return result
}

// NotifyDownstream tells the dispatcher about every downstream of upstream,
// then tells each secondary listener with an empty downstream. upstream itself
// is never notified. The first error stops the broadcast.
func (r *DependencyRegistry) NotifyDownstream(upstream string) error {
	if !validUpstream(upstream) {
		return invalidID("upstream", upstream)
	}
	if r.dispatcher != nil {
		for _, d := range r.notificationTargets(upstream) {
			if err := r.dispatcher.Notify(upstream, d); err != nil {
				return err
			}
		}
	}
	for _, l := range append([]NotificationListener(nil), r.listeners...) {
		if err := l.Notify(upstream, ""); err != nil {
			return err
		}
	}
	return nil
}

// AddNotificationListener registers an observer of every notification.
func (r *DependencyRegistry) AddNotificationListener(l NotificationListener) {
	if l == nil {
		return
	}
	r.listeners = append(r.listeners, l)
}

// RemoveNotificationListener removes a previously added observer. Listeners
// are compared by identity, so func adapters cannot be removed.
func (r *DependencyRegistry) RemoveNotificationListener(l NotificationListener) {
	for i, existing := range r.listeners {
		if sameListener(existing, l) {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

func sameListener(a, b NotificationListener) (same bool) {
	defer func() {
		// uncomparable dynamic types (func adapters) never match
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// Edges returns a snapshot of every registered edge, static edges first.
func (r *DependencyRegistry) Edges() []Edge {
	result := make([]Edge, 0)
	result = append(result, r.static.edges(true)...)
	result = append(result, r.dynamic.edges(false)...)
	return result
}

// Size returns the number of registered edges
func (r *DependencyRegistry) Size() int {
	return len(r.Edges())
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func removeString(slice []string, item string) []string {
	result := make([]string, 0, len(slice))
	for _, s := range slice {
		if s != item {
			result = append(result, s)
		}
	}
	return result
}
