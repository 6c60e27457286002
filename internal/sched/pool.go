package sched

import (
	"fmt"
	"sort"
)

// PoolConfig defines one category bucket. Lower priority runs earlier.
// Sequential pools preserve submission order; parallel pools fan out.
type PoolConfig struct {
	Name       string
	Priority   int
	Sequential bool
	Categories []string
}

// DefaultPools is the static category->pool layout. Movement is the only
// parallel pool: its actions are conflict-independent by construction (each
// moves its own submitter), and it sits last so blocking path generation
// never delays combat or trade.
func DefaultPools() []PoolConfig {
	return []PoolConfig{
		{Name: "combat", Priority: 0, Sequential: true, Categories: []string{CategoryAttack}},
		{Name: "squad", Priority: 1, Sequential: true, Categories: []string{CategorySquad}},
		{Name: "trade", Priority: 2, Sequential: true, Categories: []string{CategoryTrade}},
		{Name: "construction", Priority: 3, Sequential: true, Categories: []string{CategoryBuild}},
		{Name: "interaction", Priority: 4, Sequential: true, Categories: []string{CategoryInteract}},
		{Name: "movement", Priority: 5, Sequential: false, Categories: []string{CategoryMove}},
	}
}

// pool holds one tick's members for a category bucket.
type pool struct {
	cfg     PoolConfig
	actions []Action
}

// poolSet routes actions into pools and iterates them in priority order.
type poolSet struct {
	pools    []*pool // ascending priority
	byName   map[string]*pool
	routing  map[string]*pool
	fallback *pool
}

func newPoolSet(cfgs []PoolConfig) (*poolSet, error) {
	if len(cfgs) == 0 {
		return nil, fmt.Errorf("no pools configured")
	}
	ps := &poolSet{
		byName:  make(map[string]*pool, len(cfgs)),
		routing: make(map[string]*pool),
	}
	for _, cfg := range cfgs {
		if cfg.Name == "" {
			return nil, fmt.Errorf("pool with empty name")
		}
		if _, ok := ps.byName[cfg.Name]; ok {
			return nil, fmt.Errorf("duplicate pool %q", cfg.Name)
		}
		p := &pool{cfg: cfg}
		ps.byName[cfg.Name] = p
		ps.pools = append(ps.pools, p)
		for _, cat := range cfg.Categories {
			if _, ok := ps.routing[cat]; ok {
				return nil, fmt.Errorf("category %q mapped to two pools", cat)
			}
			ps.routing[cat] = p
		}
	}
	sort.SliceStable(ps.pools, func(i, j int) bool {
		return ps.pools[i].cfg.Priority < ps.pools[j].cfg.Priority
	})
	// Unrecognized categories pool with the lowest-priority bucket.
	ps.fallback = ps.pools[len(ps.pools)-1]
	return ps, nil
}

// route distributes one tick's batch. Each action lands in exactly one pool;
// within a pool, members sit in deterministic total order.
func (ps *poolSet) route(batch []Action) {
	for _, p := range ps.pools {
		p.actions = p.actions[:0]
	}
	for _, act := range batch {
		p := ps.routing[act.Category]
		if p == nil {
			p = ps.fallback
		}
		p.actions = append(p.actions, act)
	}
	for _, p := range ps.pools {
		acts := p.actions
		sort.SliceStable(acts, func(i, j int) bool { return less(acts[i], acts[j]) })
	}
}
