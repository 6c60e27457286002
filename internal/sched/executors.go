package sched

import (
	"context"

	"lockstep/internal/nav"
	"lockstep/internal/protocol"
	"lockstep/internal/world"
)

// DefaultExecutors wires the six category capabilities over the shared
// world state and the path cache.
func DefaultExecutors(st *world.State, paths *nav.Cache) map[string]Executor {
	return map[string]Executor{
		CategoryMove:     &MovementExecutor{World: st, Paths: paths},
		CategoryAttack:   &CombatExecutor{World: st},
		CategoryInteract: &InteractionExecutor{World: st},
		CategoryTrade:    &TradeExecutor{},
		CategoryBuild:    &ConstructionExecutor{},
		CategorySquad:    &SquadExecutor{World: st},
	}
}

// MovementExecutor resolves a submitter's destination through the path
// cache. A cache miss generates synchronously, so movement may block; the
// movement pool runs parallel and last for exactly that reason.
type MovementExecutor struct {
	World *world.State
	Paths *nav.Cache
}

func (e *MovementExecutor) Category() string { return CategoryMove }

func (e *MovementExecutor) Execute(ctx context.Context, act Action) (Mutation, error) {
	to, _ := payloadPoint(act.Payload, "to")
	dest := nav.Point3{X: to[0], Y: to[1], Z: to[2]}

	from, ok := e.World.Position(act.SubmitterID)
	if !ok {
		return nil, execErrorf(protocol.ErrInvalidTarget, "unknown submitter %s", act.SubmitterID)
	}

	path, err := e.Paths.GetPath(from, dest, true)
	if err != nil {
		return nil, execErrorf(protocol.ErrInternal, "path %s: %v", nav.PathKey(from, dest), err)
	}
	end := path.Waypoints[len(path.Waypoints)-1]
	return func(st *world.State) error {
		st.SetPosition(act.SubmitterID, end)
		return nil
	}, nil
}

// CombatExecutor validates the engagement; damage itself belongs to the
// external combat system, so no mutation is produced.
type CombatExecutor struct {
	World *world.State
}

func (e *CombatExecutor) Category() string { return CategoryAttack }

func (e *CombatExecutor) Execute(ctx context.Context, act Action) (Mutation, error) {
	if !e.World.Exists(act.TargetID) {
		return nil, execErrorf(protocol.ErrInvalidTarget, "attack target %s not found", act.TargetID)
	}
	return nil, nil
}

// InteractionExecutor validates the counterpart exists.
type InteractionExecutor struct {
	World *world.State
}

func (e *InteractionExecutor) Category() string { return CategoryInteract }

func (e *InteractionExecutor) Execute(ctx context.Context, act Action) (Mutation, error) {
	if !e.World.Exists(act.TargetID) {
		return nil, execErrorf(protocol.ErrInvalidTarget, "interaction target %s not found", act.TargetID)
	}
	return nil, nil
}

// TradeExecutor transfers an item stack from submitter to target. The
// balance check happens inside the mutation: it sees world state after all
// earlier mutations of this tick, not a stale read.
type TradeExecutor struct{}

func (e *TradeExecutor) Category() string { return CategoryTrade }

func (e *TradeExecutor) Execute(ctx context.Context, act Action) (Mutation, error) {
	item, _ := payloadString(act.Payload, "item")
	qty, _ := payloadFloat(act.Payload, "quantity")
	quantity := int(qty)

	return func(st *world.State) error {
		if err := st.AdjustResource(act.SubmitterID, item, -quantity); err != nil {
			return execErrorf(protocol.ErrNoResource, "trade: %v", err)
		}
		if err := st.AdjustResource(act.TargetID, item, quantity); err != nil {
			// Roll the withdrawal back; the pair either both apply or neither.
			st.GrantResource(act.SubmitterID, item, quantity)
			return execErrorf(protocol.ErrInvalidTarget, "trade: %v", err)
		}
		return nil
	}, nil
}

// ConstructionExecutor deducts the build cost. Structure placement itself is
// owned by the external world; arbitration of the spot already happened in
// conflict resolution.
type ConstructionExecutor struct{}

func (e *ConstructionExecutor) Category() string { return CategoryBuild }

func (e *ConstructionExecutor) Execute(ctx context.Context, act Action) (Mutation, error) {
	cost := 0
	if c, ok := payloadFloat(act.Payload, "cost"); ok {
		cost = int(c)
	}
	if cost <= 0 {
		return nil, nil
	}
	return func(st *world.State) error {
		if err := st.AdjustResource(act.SubmitterID, "MATERIAL", -cost); err != nil {
			return execErrorf(protocol.ErrNoResource, "build: %v", err)
		}
		return nil
	}, nil
}

// SquadExecutor validates squad management requests. Membership rosters are
// external; the scheduler only sequences the operations.
type SquadExecutor struct {
	World *world.State
}

func (e *SquadExecutor) Category() string { return CategorySquad }

var squadOps = map[string]struct{}{
	"FORM": {}, "JOIN": {}, "LEAVE": {}, "DISBAND": {},
}

func (e *SquadExecutor) Execute(ctx context.Context, act Action) (Mutation, error) {
	op, _ := payloadString(act.Payload, "op")
	if _, ok := squadOps[op]; !ok {
		return nil, execErrorf(protocol.ErrBadRequest, "unknown squad op %q", op)
	}
	if op == "JOIN" && act.TargetID != "" && !e.World.Exists(act.TargetID) {
		return nil, execErrorf(protocol.ErrInvalidTarget, "squad leader %s not found", act.TargetID)
	}
	return nil, nil
}
