package sched

import (
	"fmt"

	"lockstep/internal/protocol"
)

// Action categories.
const (
	CategoryMove     = "MOVE"
	CategoryAttack   = "ATTACK"
	CategoryInteract = "INTERACT"
	CategoryTrade    = "TRADE"
	CategoryBuild    = "BUILD"
	CategorySquad    = "SQUAD"
)

var supportedCategories = []string{
	CategoryMove,
	CategoryAttack,
	CategoryInteract,
	CategoryTrade,
	CategoryBuild,
	CategorySquad,
}

// Action is one submitted intent. It is consumed exactly once: admitted at
// Submit time, pooled for one tick, then discarded after its result.
type Action struct {
	Ref         string
	SubmitterID string
	Category    string
	TargetID    string
	Payload     map[string]any
	// Timestamp is logical. A zero value gets the next monotonic stamp at
	// admission; resolution tie-breaks compare these, never wall clocks.
	Timestamp int64
	Priority  int
}

// Result is the outcome of one action's trip through a tick.
type Result struct {
	Action     Action
	OK         bool
	Conflicted bool
	Code       string
	Error      string
	Tick       uint64
	Timestamp  int64
}

func failure(act Action, tick uint64, code, msg string) Result {
	return Result{Action: act, Code: code, Error: msg, Tick: tick, Timestamp: act.Timestamp}
}

func conflicted(act Action, tick uint64, reason string) Result {
	return Result{
		Action:     act,
		Conflicted: true,
		Code:       protocol.ErrConflict,
		Error:      reason,
		Tick:       tick,
		Timestamp:  act.Timestamp,
	}
}

// validateAction is the structural half of admission. Rate limiting is the
// scheduler's concern; this only checks shape.
func validateAction(act Action) error {
	if act.SubmitterID == "" {
		return fmt.Errorf("missing submitter id")
	}
	if act.Category == "" {
		return fmt.Errorf("missing category")
	}
	switch act.Category {
	case CategoryMove:
		if _, ok := payloadPoint(act.Payload, "to"); !ok {
			return fmt.Errorf("MOVE requires payload %q as [x,y,z]", "to")
		}
	case CategoryAttack, CategoryInteract:
		if act.TargetID == "" {
			return fmt.Errorf("%s requires a target id", act.Category)
		}
	case CategoryTrade:
		if _, ok := payloadString(act.Payload, "item"); !ok {
			return fmt.Errorf("TRADE requires payload %q", "item")
		}
		if q, ok := payloadFloat(act.Payload, "quantity"); !ok || q <= 0 {
			return fmt.Errorf("TRADE requires positive payload %q", "quantity")
		}
		if act.TargetID == "" {
			return fmt.Errorf("TRADE requires a target id")
		}
	case CategoryBuild:
		if _, ok := payloadPoint(act.Payload, "at"); !ok {
			return fmt.Errorf("BUILD requires payload %q as [x,y,z]", "at")
		}
	case CategorySquad:
		if _, ok := payloadString(act.Payload, "op"); !ok {
			return fmt.Errorf("SQUAD requires payload %q", "op")
		}
	}
	// Unknown categories pass structural validation; they pool with
	// movement and fail at dispatch.
	return nil
}

func payloadString(p map[string]any, key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func payloadFloat(p map[string]any, key string) (float64, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// payloadPoint reads a [x,y,z] array. JSON decoding yields []any of float64.
func payloadPoint(p map[string]any, key string) ([3]float64, bool) {
	v, ok := p[key]
	if !ok {
		return [3]float64{}, false
	}
	switch arr := v.(type) {
	case []any:
		if len(arr) != 3 {
			return [3]float64{}, false
		}
		var out [3]float64
		for i, el := range arr {
			f, ok := el.(float64)
			if !ok {
				return [3]float64{}, false
			}
			out[i] = f
		}
		return out, true
	case [3]float64:
		return arr, true
	case []float64:
		if len(arr) != 3 {
			return [3]float64{}, false
		}
		return [3]float64{arr[0], arr[1], arr[2]}, true
	}
	return [3]float64{}, false
}

// less is the total order used everywhere actions are sequenced: logical
// timestamp first, then submitter id, then ref. Two peers holding the same
// action set always agree on it.
func less(a, b Action) bool {
	if a.Timestamp != b.Timestamp {
		return a.Timestamp < b.Timestamp
	}
	if a.SubmitterID != b.SubmitterID {
		return a.SubmitterID < b.SubmitterID
	}
	return a.Ref < b.Ref
}
