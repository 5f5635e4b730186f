package config

import (
	"fmt"
	"sync/atomic"

	"github.com/qualys/predicate"
)

// Registry holds the currently-active, closed manifest behind an
// atomic.Pointer, giving lock-free reads against whichever manifest was
// most recently loaded successfully while a new one is validated and
// compiled in the background — the same lock-free hot-swap discipline this
// codebase has always used for live rule storage, adapted here from a
// hierarchical rule tree to a flat named-expression manifest.
type Registry struct {
	current atomic.Pointer[snapshot]
	baseCF  *predicate.CallFactory
}

type snapshot struct {
	ctx     *predicate.PerContext
	oracles map[string]*predicate.Oracle
}

// NewRegistry returns an empty Registry. baseCF supplies the standard call
// library (and any other pre-registered calls); each Reload clones it so
// manifests never leak template definitions into each other.
func NewRegistry(baseCF *predicate.CallFactory) *Registry {
	return &Registry{baseCF: baseCF}
}

// Reload builds a brand new context from m, closes it, and — only once
// that succeeds — atomically publishes it as the registry's current
// snapshot. A failing Reload leaves whatever was previously loaded (if
// anything) serving queries.
func (r *Registry) Reload(m *Manifest) error {
	ctx := predicate.NewContext(r.baseCF.Clone())
	oracles, err := m.Apply(ctx)
	if err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := ctx.Close(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	r.current.Store(&snapshot{ctx: ctx, oracles: oracles})
	return nil
}

// Query evaluates the named expression from the currently-published
// manifest against tx.
func (r *Registry) Query(name string, tx *predicate.Transaction) (predicate.Value, bool, error) {
	snap := r.current.Load()
	if snap == nil {
		return predicate.Null, false, fmt.Errorf("registry: no manifest loaded")
	}
	o, ok := snap.oracles[name]
	if !ok {
		return predicate.Null, false, fmt.Errorf("registry: no expression named %q", name)
	}
	return o.Query(tx)
}

// Names returns the expression names in the currently-published manifest,
// or nil if none has loaded yet.
func (r *Registry) Names() []string {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	names := make([]string, 0, len(snap.oracles))
	for name := range snap.oracles {
		names = append(names, name)
	}
	return names
}

// Context returns the currently-published, closed context, for debug and
// validation reports. Returns nil if no manifest has loaded yet.
func (r *Registry) Context() *predicate.PerContext {
	snap := r.current.Load()
	if snap == nil {
		return nil
	}
	return snap.ctx
}
