package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/web3-frozen/chainwatch/internal/delegate"
)

// Registry tracks every watched source of the process and can draw the
// publish graph that hangs off them. Create one in main and pass it around.
type Registry struct {
	logger  *slog.Logger
	mu      sync.RWMutex
	sources map[string]*WatchedSource
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:  logger,
		sources: make(map[string]*WatchedSource),
	}
}

// Register adds a source. A later source with the same name replaces the
// earlier one.
func (r *Registry) Register(s *WatchedSource) {
	if s == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sources[s.Name()]; dup {
		r.logger.Warn("source registered twice, replacing", "source", s.Name())
	}
	r.sources[s.Name()] = s
	r.logger.Info("registered source", "source", s.Name(), "period", s.SleepPeriod())
}

// Unregister removes the named source.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	delete(r.sources, name)
	r.mu.Unlock()
}

// Source returns the named source or nil.
func (r *Registry) Source(name string) *WatchedSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sources[name]
}

// SourceNames returns names of all registered sources, sorted.
func (r *Registry) SourceNames() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.sources))
	for n := range r.sources {
		names = append(names, n)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

func (r *Registry) snapshot() []*WatchedSource {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*WatchedSource, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Summary returns health stats of every source, sorted by name.
func (r *Registry) Summary() []Stats {
	srcs := r.snapshot()
	out := make([]Stats, len(srcs))
	for i, s := range srcs {
		out[i] = s.Stats()
	}
	return out
}

// Run starts every registered source in its own goroutine and blocks until
// all of them return, which happens once ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, s := range r.snapshot() {
		wg.Add(1)
		go func(s *WatchedSource) {
			defer wg.Done()
			s.Run(ctx)
		}(s)
	}
	wg.Wait()
}

// Edge is one publisher → listener relation, by node name.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph walks listener lists starting from every registered source and
// returns the distinct edges, sorted.
func (r *Registry) Graph() []Edge {
	edges := make(map[Edge]struct{})
	visited := make(map[any]bool)

	var queue []any
	for _, s := range r.snapshot() {
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if reflect.TypeOf(node).Comparable() {
			if visited[node] {
				continue
			}
			visited[node] = true
		}

		em, ok := node.(delegate.Emitter)
		if !ok {
			continue
		}
		from := delegate.TypeName(node)
		for _, l := range em.Listeners() {
			edges[Edge{From: from, To: delegate.TypeName(l)}] = struct{}{}
			queue = append(queue, l)
		}
	}

	out := make([]Edge, 0, len(edges))
	for e := range edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// DOT renders the publish graph in Graphviz format.
func (r *Registry) DOT() string {
	var b strings.Builder
	b.WriteString("digraph G {\n")
	for _, e := range r.Graph() {
		fmt.Fprintf(&b, "    %q -> %q;\n", e.From, e.To)
	}
	b.WriteString("}\n")
	return b.String()
}
