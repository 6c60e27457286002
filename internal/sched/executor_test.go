package sched

import (
	"testing"

	"lockstep/internal/nav"
	"lockstep/internal/world"
)

func TestValidateExecutors_CoversAllCategories(t *testing.T) {
	st := world.NewState()
	cache := nav.NewCache(nav.CacheConfig{}, nav.NewMemStore(), testLogger())
	executors := DefaultExecutors(st, cache)
	if err := validateExecutors(executors); err != nil {
		t.Fatalf("default executors invalid: %v", err)
	}

	delete(executors, CategoryTrade)
	if err := validateExecutors(executors); err == nil {
		t.Fatalf("missing category accepted")
	}

	executors[CategoryTrade] = &TradeExecutor{}
	executors["DANCE"] = &TradeExecutor{}
	if err := validateExecutors(executors); err == nil {
		t.Fatalf("unsupported category accepted")
	}
}

func TestValidateAction_UnknownCategoryPasses(t *testing.T) {
	err := validateAction(Action{SubmitterID: "s", Category: "DANCE"})
	if err != nil {
		t.Fatalf("unknown category must pass structural validation: %v", err)
	}
}

func TestLess_TotalOrder(t *testing.T) {
	a := Action{Ref: "r1", SubmitterID: "s1", Timestamp: 10}
	b := Action{Ref: "r2", SubmitterID: "s1", Timestamp: 20}
	if !less(a, b) || less(b, a) {
		t.Fatalf("timestamp must order first")
	}
	c := Action{Ref: "r1", SubmitterID: "s2", Timestamp: 10}
	if !less(a, c) || less(c, a) {
		t.Fatalf("submitter id must break timestamp ties")
	}
	d := Action{Ref: "r2", SubmitterID: "s1", Timestamp: 10}
	if !less(a, d) || less(d, a) {
		t.Fatalf("ref must break the final tie")
	}
}
