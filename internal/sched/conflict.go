package sched

import "math"

// ConflictKind classifies why two actions cannot both execute.
type ConflictKind string

const (
	ConflictSameTarget ConflictKind = "SAME_TARGET"
	ConflictProximity  ConflictKind = "PROXIMITY"
	ConflictResource   ConflictKind = "RESOURCE"
)

// Conflict pairs two actions from the same pool. Ephemeral: computed once
// per tick per pool and discarded after resolution.
type Conflict struct {
	First  Action
	Second Action
	Kind   ConflictKind
}

// StateReader is the externally-read submitter state consulted during
// resolution. Implementations must return values as of the current tick;
// resolution is a pure function of (pool actions, this state).
type StateReader interface {
	SubmitterLevel(id string) int
	ResourceCount(id, resource string) int
}

// Detector runs pairwise conflict detection and deterministic arbitration
// within one pool. Per-tick pools are small, so O(n^2) comparison is fine.
type Detector struct {
	// Radius within which two placement actions contest the same spot.
	Radius float64
}

func NewDetector(radius float64) *Detector {
	if radius <= 0 {
		radius = 5
	}
	return &Detector{Radius: radius}
}

// classify reports whether a and b conflict, checking rules in fixed order:
// shared target, placement proximity, contested resource.
func (d *Detector) classify(a, b Action) (ConflictKind, bool) {
	if a.TargetID != "" && a.TargetID == b.TargetID {
		return ConflictSameTarget, true
	}
	if pa, ok := placementPos(a); ok {
		if pb, ok := placementPos(b); ok {
			dx, dz := pa[0]-pb[0], pa[2]-pb[2]
			if math.Hypot(dx, dz) <= d.Radius {
				return ConflictProximity, true
			}
		}
	}
	if ra, ok := contestedResource(a); ok {
		if rb, ok := contestedResource(b); ok && ra == rb {
			return ConflictResource, true
		}
	}
	return "", false
}

// Resolve arbitrates a pool's actions. Survivors come back in the pool's
// order; each loser is paired with the reason it lost. Repeated calls over
// the same actions and state produce identical output.
func (d *Detector) Resolve(actions []Action, state StateReader) (survivors []Action, losers []Loss) {
	if len(actions) < 2 {
		return actions, nil
	}
	eliminated := make([]bool, len(actions))
	for i := 0; i < len(actions); i++ {
		if eliminated[i] {
			continue
		}
		for j := i + 1; j < len(actions); j++ {
			if eliminated[i] || eliminated[j] {
				continue
			}
			kind, ok := d.classify(actions[i], actions[j])
			if !ok {
				continue
			}
			c := Conflict{First: actions[i], Second: actions[j], Kind: kind}
			if d.firstWins(c, state) {
				eliminated[j] = true
				losers = append(losers, Loss{Action: actions[j], Conflict: c})
			} else {
				eliminated[i] = true
				losers = append(losers, Loss{Action: actions[i], Conflict: c})
			}
		}
	}
	for i, act := range actions {
		if !eliminated[i] {
			survivors = append(survivors, act)
		}
	}
	return survivors, losers
}

// Loss records one arbitrated-away action.
type Loss struct {
	Action   Action
	Conflict Conflict
}

// Reason describes the loss for the submitter's conflicted result.
func (l Loss) Reason() string {
	switch l.Conflict.Kind {
	case ConflictSameTarget:
		return "target contested by an earlier action"
	case ConflictProximity:
		return "placement contested by a higher-authority action"
	case ConflictResource:
		return "resource contested by a better-funded action"
	}
	return "conflicted"
}

// firstWins decides every pair with no draws. The fallback on every rule is
// the earlier logical timestamp under the total action order.
func (d *Detector) firstWins(c Conflict, state StateReader) bool {
	a, b := c.First, c.Second
	switch c.Kind {
	case ConflictProximity:
		la := state.SubmitterLevel(a.SubmitterID)
		lb := state.SubmitterLevel(b.SubmitterID)
		if la != lb {
			return la > lb
		}
	case ConflictResource:
		res, _ := contestedResource(a)
		need := func(act Action) int {
			q, _ := payloadFloat(act.Payload, "quantity")
			return int(q)
		}
		aOK := state.ResourceCount(a.SubmitterID, res) >= need(a)
		bOK := state.ResourceCount(b.SubmitterID, res) >= need(b)
		if aOK != bOK {
			return aOK
		}
	}
	return less(a, b)
}

// placementPos extracts the contested position of a spatial-placement
// action. Only construction claims ground.
func placementPos(a Action) ([3]float64, bool) {
	if a.Category != CategoryBuild {
		return [3]float64{}, false
	}
	return payloadPoint(a.Payload, "at")
}

// contestedResource names the resource an action competes for.
func contestedResource(a Action) (string, bool) {
	if a.Category != CategoryTrade {
		return "", false
	}
	return payloadString(a.Payload, "item")
}
