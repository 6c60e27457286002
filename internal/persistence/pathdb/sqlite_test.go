package pathdb

import (
	"path/filepath"
	"testing"

	"lockstep/internal/nav"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "paths.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePath() nav.CachedPath {
	wp := []nav.Point3{
		{X: 0, Y: 0, Z: 0},
		{X: 1050.523, Y: 2.5, Z: 760.125},
		{X: 20000, Y: 0, Z: 15000},
	}
	return nav.CachedPath{
		Key:         nav.PathKey(wp[0], wp[2]),
		Start:       wp[0],
		End:         wp[2],
		Waypoints:   wp,
		Length:      nav.PathLength(wp),
		Checksum:    nav.PathChecksum(wp),
		GeneratedAt: 1724630400,
	}
}

func TestPutGet_RoundTripsExactWaypoints(t *testing.T) {
	s := openTestStore(t)
	p := samplePath()
	if err := s.Put(p); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, ok, err := s.Get(p.Key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok {
		t.Fatalf("entry missing after put")
	}
	if len(got.Waypoints) != len(p.Waypoints) {
		t.Fatalf("waypoint count %d, want %d", len(got.Waypoints), len(p.Waypoints))
	}
	for i := range got.Waypoints {
		if got.Waypoints[i] != p.Waypoints[i] {
			t.Fatalf("waypoint %d changed: %+v vs %+v", i, got.Waypoints[i], p.Waypoints[i])
		}
	}
	if got.Checksum != p.Checksum {
		t.Fatalf("stored checksum %s, want %s", got.Checksum, p.Checksum)
	}
	// The invariant that matters: recomputing over the restored waypoints
	// still matches.
	if nav.PathChecksum(got.Waypoints) != p.Checksum {
		t.Fatalf("restored waypoints hash differently")
	}
	if got.GeneratedAt != p.GeneratedAt || got.Length != p.Length {
		t.Fatalf("metadata changed: %+v", got)
	}
}

func TestGet_MissingKey(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get("1,2,3>4,5,6")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("phantom entry")
	}
}

func TestPut_UpsertsExistingKey(t *testing.T) {
	s := openTestStore(t)
	p := samplePath()
	if err := s.Put(p); err != nil {
		t.Fatalf("put: %v", err)
	}

	replacement := p
	replacement.Waypoints = []nav.Point3{p.Start, p.End}
	replacement.Length = nav.PathLength(replacement.Waypoints)
	replacement.Checksum = nav.PathChecksum(replacement.Waypoints)
	if err := s.Put(replacement); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, ok, err := s.Get(p.Key)
	if err != nil || !ok {
		t.Fatalf("get after upsert: ok=%v err=%v", ok, err)
	}
	if got.Checksum != replacement.Checksum {
		t.Fatalf("upsert kept the old entry")
	}
	if n, err := s.Count(); err != nil || n != 1 {
		t.Fatalf("count=%d err=%v, want 1", n, err)
	}
}

func TestChecksums(t *testing.T) {
	s := openTestStore(t)
	p := samplePath()
	if err := s.Put(p); err != nil {
		t.Fatalf("put: %v", err)
	}
	sums, err := s.Checksums()
	if err != nil {
		t.Fatalf("checksums: %v", err)
	}
	if sums[p.Key] != p.Checksum {
		t.Fatalf("checksums map %v missing %s", sums, p.Key)
	}
}
