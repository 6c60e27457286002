package sched

import (
	"testing"

	"lockstep/internal/world"
)

func attack(ref, submitter, target string, ts int64) Action {
	return Action{Ref: ref, SubmitterID: submitter, Category: CategoryAttack, TargetID: target, Timestamp: ts}
}

func build(ref, submitter string, x, z float64, ts int64) Action {
	return Action{
		Ref: ref, SubmitterID: submitter, Category: CategoryBuild, Timestamp: ts,
		Payload: map[string]any{"at": [3]float64{x, 0, z}},
	}
}

func trade(ref, submitter, target, item string, qty float64, ts int64) Action {
	return Action{
		Ref: ref, SubmitterID: submitter, Category: CategoryTrade, TargetID: target, Timestamp: ts,
		Payload: map[string]any{"item": item, "quantity": qty},
	}
}

func TestResolve_SameTargetEarlierTimestampWins(t *testing.T) {
	st := world.NewState()
	p1 := st.Join("p1", 1)
	p2 := st.Join("p2", 9)
	target := st.Join("t", 1)

	d := NewDetector(5)
	// Submission order reversed on purpose: only timestamps may decide.
	actions := []Action{
		attack("a2", p2.ID, target.ID, 105),
		attack("a1", p1.ID, target.ID, 100),
	}
	survivors, losers := d.Resolve(actions, st)
	if len(survivors) != 1 || len(losers) != 1 {
		t.Fatalf("survivors=%d losers=%d, want 1/1", len(survivors), len(losers))
	}
	if survivors[0].SubmitterID != p1.ID {
		t.Fatalf("survivor %s, want earlier-stamped %s", survivors[0].SubmitterID, p1.ID)
	}
	if losers[0].Conflict.Kind != ConflictSameTarget {
		t.Fatalf("kind %s, want %s", losers[0].Conflict.Kind, ConflictSameTarget)
	}
	if losers[0].Reason() == "" {
		t.Fatalf("loss must carry a reason for the submitter")
	}
}

func TestResolve_ProximityHigherLevelWins(t *testing.T) {
	st := world.NewState()
	lvl5 := st.Join("high", 5)
	lvl3 := st.Join("low", 3)

	d := NewDetector(5)
	// 3 units apart, within the 5-unit radius. The lower level submitted
	// earlier; level must still decide.
	actions := []Action{
		build("b1", lvl3.ID, 10, 10, 50),
		build("b2", lvl5.ID, 13, 10, 60),
	}
	survivors, losers := d.Resolve(actions, st)
	if len(survivors) != 1 {
		t.Fatalf("survivors=%d, want 1", len(survivors))
	}
	if survivors[0].SubmitterID != lvl5.ID {
		t.Fatalf("survivor %s, want level-5 submitter", survivors[0].SubmitterID)
	}
	if losers[0].Conflict.Kind != ConflictProximity {
		t.Fatalf("kind %s", losers[0].Conflict.Kind)
	}
}

func TestResolve_ProximityEqualLevelFallsBackToTimestamp(t *testing.T) {
	st := world.NewState()
	a := st.Join("a", 4)
	b := st.Join("b", 4)

	d := NewDetector(5)
	actions := []Action{
		build("b1", b.ID, 0, 0, 20),
		build("b2", a.ID, 2, 2, 10),
	}
	survivors, _ := d.Resolve(actions, st)
	if len(survivors) != 1 || survivors[0].SubmitterID != a.ID {
		t.Fatalf("tie must fall to the earlier timestamp")
	}
}

func TestResolve_SeparatedPlacementsDoNotConflict(t *testing.T) {
	st := world.NewState()
	a := st.Join("a", 1)
	b := st.Join("b", 1)

	d := NewDetector(5)
	actions := []Action{
		build("b1", a.ID, 0, 0, 1),
		build("b2", b.ID, 20, 0, 2),
	}
	survivors, losers := d.Resolve(actions, st)
	if len(survivors) != 2 || len(losers) != 0 {
		t.Fatalf("distant placements arbitrated: survivors=%d", len(survivors))
	}
}

func TestResolve_SameTargetOutranksResourceRule(t *testing.T) {
	st := world.NewState()
	rich := st.Join("rich", 1)
	poor := st.Join("poor", 1)
	buyer := st.Join("buyer", 1)
	st.GrantResource(rich.ID, "GRAIN", 10)

	d := NewDetector(5)
	// Shared buyer: the same-target rule fires before the resource rule,
	// so the earlier timestamp decides even against a funded rival.
	actions := []Action{
		trade("t1", poor.ID, buyer.ID, "GRAIN", 5, 10),
		trade("t2", rich.ID, buyer.ID, "GRAIN", 5, 20),
	}
	survivors, losers := d.Resolve(actions, st)
	if len(survivors) != 1 || survivors[0].SubmitterID != poor.ID {
		t.Fatalf("same-target arbitration must precede the resource rule")
	}
	if losers[0].Conflict.Kind != ConflictSameTarget {
		t.Fatalf("kind %s, want %s", losers[0].Conflict.Kind, ConflictSameTarget)
	}
}

func TestResolve_ResourceContestDistinctTargets(t *testing.T) {
	st := world.NewState()
	rich := st.Join("rich", 1)
	poor := st.Join("poor", 1)
	b1 := st.Join("b1", 1)
	b2 := st.Join("b2", 1)
	st.GrantResource(rich.ID, "GRAIN", 10)

	d := NewDetector(5)
	actions := []Action{
		trade("t1", poor.ID, b1.ID, "GRAIN", 5, 10),
		trade("t2", rich.ID, b2.ID, "GRAIN", 5, 20),
	}
	survivors, losers := d.Resolve(actions, st)
	if len(survivors) != 1 || survivors[0].SubmitterID != rich.ID {
		t.Fatalf("resource contest must favor the funded submitter")
	}
	if losers[0].Conflict.Kind != ConflictResource {
		t.Fatalf("kind %s, want %s", losers[0].Conflict.Kind, ConflictResource)
	}

	// Both funded: earlier timestamp.
	st.GrantResource(poor.ID, "GRAIN", 10)
	survivors, _ = d.Resolve(actions, st)
	if survivors[0].SubmitterID != poor.ID {
		t.Fatalf("funded tie must fall to the earlier timestamp")
	}
}

func TestResolve_RepeatedRunsIdentical(t *testing.T) {
	st := world.NewState()
	ids := make([]string, 6)
	for i := range ids {
		s := st.Join("s", 1+i)
		st.GrantResource(s.ID, "GRAIN", i*2)
		ids[i] = s.ID
	}
	target := st.Join("tgt", 1)

	actions := []Action{
		attack("a1", ids[0], target.ID, 30),
		attack("a2", ids[1], target.ID, 10),
		attack("a3", ids[2], target.ID, 20),
		build("b1", ids[3], 0, 0, 5),
		build("b2", ids[4], 3, 0, 6),
		trade("t1", ids[5], ids[0], "GRAIN", 2, 7),
	}

	d := NewDetector(5)
	firstSurv, firstLoss := d.Resolve(actions, st)
	for run := 0; run < 20; run++ {
		surv, loss := d.Resolve(actions, st)
		if len(surv) != len(firstSurv) || len(loss) != len(firstLoss) {
			t.Fatalf("run %d: cardinality changed", run)
		}
		for i := range surv {
			if surv[i].Ref != firstSurv[i].Ref {
				t.Fatalf("run %d: survivor order changed at %d", run, i)
			}
		}
		for i := range loss {
			if loss[i].Action.Ref != firstLoss[i].Action.Ref {
				t.Fatalf("run %d: loser order changed at %d", run, i)
			}
		}
	}
}
