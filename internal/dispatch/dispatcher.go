package dispatch

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/izubarev/openl-tablets-sub004/internal/ir"
	"github.com/izubarev/openl-tablets-sub004/internal/method"
)

// DefaultCacheSize is the default number of cached resolutions.
const DefaultCacheSize = 1024

// Dispatcher resolves calls against dispatch trees.
//
// Successful resolutions are cached by (node, argument type signature, env
// values of every applicability property of the node's candidates). Those
// are exactly the inputs SpecificityMatcher reads, so the cache never
// changes an outcome. A custom Matcher that reads other inputs should run
// with caching disabled.
//
// Thread-safety: Dispatcher is safe for concurrent use.
type Dispatcher struct {
	matcher   Matcher
	cacheSize int
	cache     *lru.Cache[string, *method.Descriptor]
	logger    *slog.Logger

	nodes  sync.Map // Node → *nodeInfo
	nextID atomic.Int64
}

// nodeInfo is the flattened view of one tree, computed on first use.
type nodeInfo struct {
	id         string
	candidates []*method.Descriptor
	envKeys    []string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMatcher replaces the default SpecificityMatcher.
func WithMatcher(m Matcher) Option {
	return func(d *Dispatcher) {
		d.matcher = m
	}
}

// WithCacheSize sets the resolution cache size. 0 disables caching.
func WithCacheSize(n int) Option {
	return func(d *Dispatcher) {
		d.cacheSize = n
	}
}

// WithLogger sets the logger for resolution debug output.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		matcher:   SpecificityMatcher{},
		cacheSize: DefaultCacheSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.cacheSize > 0 {
		cache, err := lru.New[string, *method.Descriptor](d.cacheSize)
		if err != nil {
			return nil, err
		}
		d.cache = cache
	}
	return d, nil
}

// Resolve returns the one descriptor that answers call on node.
func (d *Dispatcher) Resolve(ctx context.Context, node Node, call Call) (*method.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if call.Method == "" {
		call.Method = node.Name()
	}
	info := d.info(node)

	key, cacheable := d.cacheKey(info, call)
	if cacheable {
		if desc, ok := d.cache.Get(key); ok {
			return desc, nil
		}
	}

	desc, err := d.matcher.Select(info.candidates, call)
	if err != nil {
		return nil, err
	}
	d.logger.Debug("method resolved",
		"method", call.Method,
		"candidate", desc.Signature(),
		"signature", strings.Join(call.ArgTypes(), ","),
		"candidates", len(info.candidates),
	)
	if cacheable {
		d.cache.Add(key, desc)
	}
	return desc, nil
}

// Candidates returns the flattened candidate list of node.
func (d *Dispatcher) Candidates(node Node) []*method.Descriptor {
	return ExtractMethods(node)
}

// CacheLen reports the number of cached resolutions.
func (d *Dispatcher) CacheLen() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.Len()
}

func (d *Dispatcher) info(node Node) *nodeInfo {
	if v, ok := d.nodes.Load(node); ok {
		return v.(*nodeInfo)
	}
	candidates := ExtractMethods(node)
	keySet := make(map[string]bool)
	var envKeys []string
	for _, c := range candidates {
		for _, k := range c.ApplicabilityKeys() {
			if !keySet[k] {
				keySet[k] = true
				envKeys = append(envKeys, k)
			}
		}
	}
	info := &nodeInfo{
		id:         strconv.FormatInt(d.nextID.Add(1), 10),
		candidates: candidates,
		envKeys:    envKeys,
	}
	actual, _ := d.nodes.LoadOrStore(node, info)
	return actual.(*nodeInfo)
}

// cacheKey renders the resolution inputs. Env values that cannot be
// rendered canonically make the call uncacheable.
func (d *Dispatcher) cacheKey(info *nodeInfo, call Call) (string, bool) {
	if d.cache == nil {
		return "", false
	}
	env := make(map[string]any, len(info.envKeys))
	for _, k := range info.envKeys {
		if v, ok := call.lookup(k); ok {
			env[k] = v
		}
	}
	envJSON, err := ir.MarshalCanonical(env)
	if err != nil {
		return "", false
	}

	var b strings.Builder
	b.WriteString(info.id)
	b.WriteByte('|')
	b.WriteString(strings.Join(call.ArgTypes(), ","))
	b.WriteByte('|')
	b.Write(envJSON)
	return b.String(), true
}
