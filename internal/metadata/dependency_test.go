package metadata

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingListener records every notification it receives
type recordingListener struct {
	events [][2]string
}

func (l *recordingListener) Notify(upstream, downstream string) error {
	l.events = append(l.events, [2]string{upstream, downstream})
	return nil
}

func TestDependencyRegistry_RegisterIsIdempotent(t *testing.T) {
	r := NewDependencyRegistry()

	require.NoError(t, r.RegisterDependency("file:/a.java", "MID:X#a.Foo"))
	require.NoError(t, r.RegisterDependency("file:/a.java", "MID:X#a.Foo"))

	assert.Equal(t, []string{"MID:X#a.Foo"}, r.Downstream("file:/a.java"))
	assert.Equal(t, []string{"file:/a.java"}, r.Upstream("MID:X#a.Foo"))
	assert.Equal(t, 1, r.Size())
}

func TestDependencyRegistry_FanOutKeepsOrder(t *testing.T) {
	r := NewDependencyRegistry()

	require.NoError(t, r.RegisterDependency("MID:A#a", "MID:C#c"))
	require.NoError(t, r.RegisterDependency("MID:A#a", "MID:B#b"))
	require.NoError(t, r.RegisterDependency("MID:A#a", "MID:D#d"))

	assert.Equal(t, []string{"MID:C#c", "MID:B#b", "MID:D#d"}, r.Downstream("MID:A#a"))
}

func TestDependencyRegistry_ClassCycleRejected(t *testing.T) {
	r := NewDependencyRegistry()

	require.NoError(t, r.RegisterDependency("MID:A", "MID:B"))
	require.NoError(t, r.RegisterDependency("MID:B", "MID:C"))

	err := r.RegisterDependency("MID:C", "MID:A")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDependencyCycle))

	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"MID:A", "MID:B", "MID:C"}, cycleErr.Path)

	// the graph is unchanged
	assert.Empty(t, r.Downstream("MID:C"))
	assert.False(t, r.IsValidDependency("MID:C", "MID:A"))
	assert.True(t, r.IsValidDependency("MID:A", "MID:C"))
}

func TestDependencyRegistry_SelfEdgeRejected(t *testing.T) {
	r := NewDependencyRegistry()

	assert.ErrorIs(t, r.RegisterDependency("MID:A", "MID:A"), ErrDependencyCycle)
	assert.ErrorIs(t, r.RegisterDependency("MID:A#a", "MID:A#a"), ErrDependencyCycle)
	assert.Equal(t, 0, r.Size())
}

func TestDependencyRegistry_InstanceEdgesNotCycleChecked(t *testing.T) {
	r := NewDependencyRegistry()

	require.NoError(t, r.RegisterDependency("MID:A#a", "MID:B#b"))
	require.NoError(t, r.RegisterDependency("MID:B#b", "MID:A#a"))

	edges := r.Edges()
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.False(t, e.Static)
	}
}

func TestDependencyRegistry_InvalidInput(t *testing.T) {
	r := NewDependencyRegistry()

	tests := []struct {
		name       string
		upstream   string
		downstream string
	}{
		{"blank upstream", "", "MID:X#a"},
		{"whitespace upstream", "   ", "MID:X#a"},
		{"prefix only upstream", "MID:", "MID:X#a"},
		{"resource downstream", "MID:X#a", "file:/a.java"},
		{"blank downstream", "MID:X#a", ""},
		{"malformed downstream", "MID:X#a", "MID:Y#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, r.RegisterDependency(tt.upstream, tt.downstream), ErrInvalidIdentifier)
			assert.ErrorIs(t, r.DeregisterDependency(tt.upstream, tt.downstream), ErrInvalidIdentifier)
		})
	}
	assert.ErrorIs(t, r.NotifyDownstream(""), ErrInvalidIdentifier)
	assert.ErrorIs(t, r.DeregisterDependencies("file:/a.java"), ErrInvalidIdentifier)
}

func TestDependencyRegistry_Deregister(t *testing.T) {
	r := NewDependencyRegistry()
	require.NoError(t, r.RegisterDependency("MID:A", "MID:B"))
	require.NoError(t, r.RegisterDependency("file:/a", "MID:B#b"))
	require.NoError(t, r.RegisterDependency("file:/c", "MID:B#b"))

	require.NoError(t, r.DeregisterDependency("MID:A", "MID:B"))
	require.NoError(t, r.DeregisterDependency("MID:A", "MID:B"), "absent edge is a no-op")
	assert.Empty(t, r.Downstream("MID:A"))

	// removing the class edge frees the reverse direction
	require.NoError(t, r.RegisterDependency("MID:B", "MID:A"))

	require.NoError(t, r.DeregisterDependencies("MID:B#b"))
	assert.Empty(t, r.Upstream("MID:B#b"))
	assert.Empty(t, r.Downstream("file:/a"))
	assert.Empty(t, r.Downstream("file:/c"))
	assert.Equal(t, 1, r.Size())
}

func TestDependencyRegistry_PruneClass(t *testing.T) {
	r := NewDependencyRegistry()
	require.NoError(t, r.RegisterDependency("MID:A", "MID:B"))
	require.NoError(t, r.RegisterDependency("MID:B#b", "MID:C#c"))
	require.NoError(t, r.RegisterDependency("file:/b", "MID:B#b"))
	require.NoError(t, r.RegisterDependency("file:/c", "MID:C#c"))

	removed := r.PruneClass("B")

	assert.Equal(t, 3, removed)
	assert.Equal(t, []Edge{{Upstream: "file:/c", Downstream: "MID:C#c"}}, r.Edges())
}

func TestDependencyRegistry_TransitiveDownstream(t *testing.T) {
	r := NewDependencyRegistry()
	require.NoError(t, r.RegisterDependency("MID:A#a", "MID:B#b"))
	require.NoError(t, r.RegisterDependency("MID:B#b", "MID:C#c"))
	require.NoError(t, r.RegisterDependency("MID:C#c", "MID:A#a"))
	require.NoError(t, r.RegisterDependency("MID:B", "MID:D"))

	assert.Equal(t, []string{"MID:C#c", "MID:D"}, r.TransitiveDownstream("MID:B#b")[:2])
	assert.ElementsMatch(t, []string{"MID:C#c", "MID:A#a", "MID:D"}, r.TransitiveDownstream("MID:B#b"))
}

func TestDependencyRegistry_NotifyDownstreamOrder(t *testing.T) {
	r := NewDependencyRegistry()
	dispatcher := &recordingListener{}
	observer := &recordingListener{}
	r.SetDispatcher(dispatcher)
	r.AddNotificationListener(observer)

	require.NoError(t, r.RegisterDependency("MID:A#a", "MID:B#b"))
	require.NoError(t, r.RegisterDependency("MID:A", "MID:C"))
	require.NoError(t, r.RegisterDependency("MID:Z#z", "MID:Y#y"))

	require.NoError(t, r.NotifyDownstream("MID:A#a"))

	assert.Equal(t, [][2]string{
		{"MID:A#a", "MID:B#b"},
		{"MID:A#a", "MID:C"},
	}, dispatcher.events)
	assert.Equal(t, [][2]string{{"MID:A#a", ""}}, observer.events)
}

func TestDependencyRegistry_NotifyDownstreamStopsOnError(t *testing.T) {
	r := NewDependencyRegistry()
	boom := errors.New("boom")
	var seen []string
	r.SetDispatcher(NotificationListenerFunc(func(upstream, downstream string) error {
		seen = append(seen, downstream)
		return boom
	}))
	require.NoError(t, r.RegisterDependency("file:/a", "MID:X#1"))
	require.NoError(t, r.RegisterDependency("file:/a", "MID:X#2"))

	assert.ErrorIs(t, r.NotifyDownstream("file:/a"), boom)
	assert.Equal(t, []string{"MID:X#1"}, seen)
}

func TestDependencyRegistry_RemoveNotificationListener(t *testing.T) {
	r := NewDependencyRegistry()
	first := &recordingListener{}
	second := &recordingListener{}
	r.AddNotificationListener(first)
	r.AddNotificationListener(second)
	r.AddNotificationListener(NotificationListenerFunc(func(string, string) error { return nil }))

	r.RemoveNotificationListener(first)
	require.NoError(t, r.NotifyDownstream("file:/a"))

	assert.Empty(t, first.events)
	assert.Len(t, second.events, 1)
}
