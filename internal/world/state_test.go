package world

import (
	"testing"

	"lockstep/internal/nav"
)

func TestJoin_SequentialIDs(t *testing.T) {
	st := NewState()
	a := st.Join("alice", 5)
	b := st.Join("bob", 3)
	if a.ID != "S000001" || b.ID != "S000002" {
		t.Fatalf("ids %s, %s: join order must fix ids for replay", a.ID, b.ID)
	}
}

func TestAdjustResource_InsufficientFailsWithoutMutating(t *testing.T) {
	st := NewState()
	s := st.Join("alice", 1)
	st.GrantResource(s.ID, "GRAIN", 3)

	if err := st.AdjustResource(s.ID, "GRAIN", -5); err == nil {
		t.Fatalf("overdraft allowed")
	}
	if got := st.ResourceCount(s.ID, "GRAIN"); got != 3 {
		t.Fatalf("failed withdrawal mutated balance: %d", got)
	}
	if err := st.AdjustResource(s.ID, "GRAIN", -3); err != nil {
		t.Fatalf("exact withdrawal rejected: %v", err)
	}
	if got := st.ResourceCount(s.ID, "GRAIN"); got != 0 {
		t.Fatalf("balance %d after draining", got)
	}
}

func TestDigest_SameStateSameDigest(t *testing.T) {
	build := func() *State {
		st := NewState()
		a := st.Join("alice", 5)
		b := st.Join("bob", 3)
		st.GrantResource(a.ID, "GRAIN", 10)
		st.GrantResource(a.ID, "MATERIAL", 4)
		st.GrantResource(b.ID, "GRAIN", 2)
		st.SetPosition(b.ID, nav.Point3{X: 100.5, Y: 0, Z: -3.25})
		return st
	}

	d1 := build().Digest(7)
	d2 := build().Digest(7)
	if d1 != d2 {
		t.Fatalf("identical states digest differently: %s vs %s", d1, d2)
	}

	st := build()
	st.SetLevel("S000002", 4)
	if st.Digest(7) == d1 {
		t.Fatalf("level change invisible to digest")
	}
	if build().Digest(8) == d1 {
		t.Fatalf("tick number invisible to digest")
	}
}
