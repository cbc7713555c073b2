package metadata

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// stubItem is a distinguishable item produced by stubProvider
type stubItem struct {
	BaseItem
	Version int
}

// stubProvider counts its invocations and records their order in calls
type stubProvider struct {
	classID string
	calls   *[]string
	count   map[string]int
	compute func(id string) (Item, error)
}

func newStubProvider(class string, calls *[]string) *stubProvider {
	return &stubProvider{
		classID: "MID:" + class,
		calls:   calls,
		count:   make(map[string]int),
	}
}

func (p *stubProvider) ProvidesType() string {
	return p.classID
}

func (p *stubProvider) Get(id string) (Item, error) {
	p.count[id]++
	if p.calls != nil {
		*p.calls = append(*p.calls, id)
	}
	if p.compute != nil {
		return p.compute(id)
	}
	return &stubItem{BaseItem: NewBaseItem(id, true), Version: p.count[id]}, nil
}

func (p *stubProvider) total() int {
	n := 0
	for _, c := range p.count {
		n += c
	}
	return n
}

// listenerProvider also receives class-level notifications
type listenerProvider struct {
	*stubProvider
	notified [][2]string
}

func (p *listenerProvider) Notify(upstream, downstream string) error {
	p.notified = append(p.notified, [2]string{upstream, downstream})
	return nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService()
	require.NoError(t, err)
	return svc
}

func newSizedService(t *testing.T, size int) *Service {
	t.Helper()
	cfg := DefaultServiceConfig()
	cfg.MaxCacheSize = size
	svc, err := NewServiceWithConfig(cfg)
	require.NoError(t, err)
	return svc
}

func instance(class string, key string) string {
	return fmt.Sprintf("MID:%s#%s", class, key)
}
