// Package snapshot publishes metadata engine diagnostics to Redis so that
// other processes can inspect a running engine.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/conduit-lang/metagraph/internal/metadata"
)

// DefaultPrefix is prepended to every key
const DefaultPrefix = "metagraph:"

// ErrNoSnapshot is returned when nothing has been published yet
var ErrNoSnapshot = errors.New("no snapshot published")

// Publisher writes engine statistics and dependency edges to Redis.
//
// Keys:
//
//	<prefix>stats              hash of counters
//	<prefix>upstreams          set of upstream identifiers
//	<prefix>deps:<upstream>    set of downstream identifiers
type Publisher struct {
	client *redis.Client
	prefix string
}

// NewPublisher creates a publisher with an existing client
func NewPublisher(client *redis.Client, prefix string) *Publisher {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Publisher{
		client: client,
		prefix: prefix,
	}
}

// Dial connects to addr and verifies the connection
func Dial(addr, prefix string) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return NewPublisher(client, prefix), nil
}

func (p *Publisher) statsKey() string {
	return p.prefix + "stats"
}

func (p *Publisher) upstreamsKey() string {
	return p.prefix + "upstreams"
}

func (p *Publisher) depsKey(upstream string) string {
	return p.prefix + "deps:" + upstream
}

// Publish replaces the previous snapshot with stats and edges in one
// transaction.
func (p *Publisher) Publish(ctx context.Context, stats metadata.Stats, edges []metadata.Edge) error {
	previous, err := p.client.SMembers(ctx, p.upstreamsKey()).Result()
	if err != nil {
		return fmt.Errorf("failed to read previous snapshot: %w", err)
	}

	grouped := make(map[string][]interface{})
	for _, e := range edges {
		grouped[e.Upstream] = append(grouped[e.Upstream], e.Downstream)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, upstream := range previous {
			pipe.Del(ctx, p.depsKey(upstream))
		}
		pipe.Del(ctx, p.upstreamsKey(), p.statsKey())

		pipe.HSet(ctx, p.statsKey(), statsFields(stats))
		for upstream, downstream := range grouped {
			pipe.SAdd(ctx, p.upstreamsKey(), upstream)
			pipe.SAdd(ctx, p.depsKey(upstream), downstream...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to publish snapshot: %w", err)
	}
	return nil
}

func statsFields(s metadata.Stats) map[string]interface{} {
	return map[string]interface{}{
		"validGets":        s.ValidGets,
		"recursiveGets":    s.RecursiveGets,
		"cachePuts":        s.CachePuts,
		"cacheHits":        s.CacheHits,
		"cacheMisses":      s.CacheMisses,
		"cacheEvictions":   s.CacheEvictions,
		"cacheCurrentSize": s.CacheCurrentSize,
		"cacheMaximumSize": s.CacheMaximumSize,
		"notifications":    s.Notifications,
		"notifyCutoffs":    s.NotifyCutoffs,
		"rescans":          s.Rescans,
	}
}

// LoadStats reads the published counters. Per-provider timings are not
// published.
func (p *Publisher) LoadStats(ctx context.Context) (metadata.Stats, error) {
	fields, err := p.client.HGetAll(ctx, p.statsKey()).Result()
	if err != nil {
		return metadata.Stats{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(fields) == 0 {
		return metadata.Stats{}, ErrNoSnapshot
	}

	var s metadata.Stats
	counters := map[string]*uint64{
		"validGets":      &s.ValidGets,
		"recursiveGets":  &s.RecursiveGets,
		"cachePuts":      &s.CachePuts,
		"cacheHits":      &s.CacheHits,
		"cacheMisses":    &s.CacheMisses,
		"cacheEvictions": &s.CacheEvictions,
		"notifications":  &s.Notifications,
		"notifyCutoffs":  &s.NotifyCutoffs,
		"rescans":        &s.Rescans,
	}
	for name, dst := range counters {
		v, err := strconv.ParseUint(fields[name], 10, 64)
		if err != nil {
			return metadata.Stats{}, fmt.Errorf("malformed snapshot field %s: %w", name, err)
		}
		*dst = v
	}
	sizes := map[string]*int{
		"cacheCurrentSize": &s.CacheCurrentSize,
		"cacheMaximumSize": &s.CacheMaximumSize,
	}
	for name, dst := range sizes {
		v, err := strconv.Atoi(fields[name])
		if err != nil {
			return metadata.Stats{}, fmt.Errorf("malformed snapshot field %s: %w", name, err)
		}
		*dst = v
	}
	return s, nil
}

// LoadDownstream reads the published downstream identifiers of upstream, sorted.
func (p *Publisher) LoadDownstream(ctx context.Context, upstream string) ([]string, error) {
	members, err := p.client.SMembers(ctx, p.depsKey(upstream)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load dependencies of %s: %w", upstream, err)
	}
	sort.Strings(members)
	return members, nil
}

// LoadUpstreams reads every published upstream identifier, sorted.
func (p *Publisher) LoadUpstreams(ctx context.Context) ([]string, error) {
	members, err := p.client.SMembers(ctx, p.upstreamsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load upstreams: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// Close closes the underlying client
func (p *Publisher) Close() error {
	return p.client.Close()
}
