package nav

import (
	"math"
	"testing"
)

func TestGenerate_LongRouteEndsAtDestination(t *testing.T) {
	g := NewGenerator(GeneratorConfig{})
	start := Point3{X: 0, Y: 0, Z: 0}
	end := Point3{X: 20000, Y: 0, Z: 15000}

	p := g.Generate(start, end)
	if len(p.Waypoints) < 2 {
		t.Fatalf("expected several waypoints, got %d", len(p.Waypoints))
	}
	last := p.Waypoints[len(p.Waypoints)-1]
	if last != end {
		t.Fatalf("final waypoint %+v, want exact destination %+v", last, end)
	}
	if p.Waypoints[0] != start {
		t.Fatalf("first waypoint %+v, want start %+v", p.Waypoints[0], start)
	}
	if p.Length <= start.Dist(end)-1 {
		t.Fatalf("length %f shorter than straight line %f", p.Length, start.Dist(end))
	}

	p2 := g.Generate(start, end)
	if p2.Checksum != p.Checksum {
		t.Fatalf("checksum changed between identical calls: %s vs %s", p.Checksum, p2.Checksum)
	}
	if len(p2.Waypoints) != len(p.Waypoints) {
		t.Fatalf("waypoint count changed: %d vs %d", len(p.Waypoints), len(p2.Waypoints))
	}
}

func TestGenerate_ReverseRouteIndependentlyStable(t *testing.T) {
	g := NewGenerator(GeneratorConfig{})
	a := Point3{X: -4000, Y: 10, Z: 7000}
	b := Point3{X: 9000, Y: -5, Z: -2000}

	ab1, ab2 := g.Generate(a, b), g.Generate(a, b)
	ba1, ba2 := g.Generate(b, a), g.Generate(b, a)
	if ab1.Checksum != ab2.Checksum {
		t.Fatalf("a->b not idempotent")
	}
	if ba1.Checksum != ba2.Checksum {
		t.Fatalf("b->a not idempotent")
	}
	if ab1.Key == ba1.Key {
		t.Fatalf("reverse route reused the forward key %s", ab1.Key)
	}
}

func TestPathKey_RoundsWithinUnit(t *testing.T) {
	base := Point3{X: 100, Y: 0, Z: 200}
	end := Point3{X: 500, Y: 0, Z: 500}

	nudged := Point3{X: 100.4, Y: 0.2, Z: 199.8}
	if PathKey(base, end) != PathKey(nudged, end) {
		t.Fatalf("sub-unit nudge changed key: %s vs %s", PathKey(base, end), PathKey(nudged, end))
	}
	far := Point3{X: 101.6, Y: 0, Z: 200}
	if PathKey(base, end) == PathKey(far, end) {
		t.Fatalf("distinct rounded start collapsed into the same key")
	}
}

func TestOptimize_CollapsesCollinearRuns(t *testing.T) {
	points := make([]Point3, 0, 11)
	for i := 0; i <= 10; i++ {
		points = append(points, Point3{X: float64(i) * 10, Y: 0, Z: 0})
	}
	out := optimizeWaypoints(points, 0.1)
	if len(out) != 2 {
		t.Fatalf("collinear run kept %d points, want 2", len(out))
	}
	if out[0] != points[0] || out[1] != points[10] {
		t.Fatalf("endpoints not preserved: %+v", out)
	}

	// A sharp corner must survive.
	corner := []Point3{{0, 0, 0}, {100, 0, 0}, {100, 0, 100}}
	out = optimizeWaypoints(corner, 0.1)
	if len(out) != 3 {
		t.Fatalf("corner collapsed: %d points", len(out))
	}
}

func TestResample_CapsCount(t *testing.T) {
	g := NewGenerator(GeneratorConfig{SectorSize: 100, MaxWaypoints: 16})
	start := Point3{}
	end := Point3{X: 20000, Y: 0, Z: 15000}

	p := g.Generate(start, end)
	if len(p.Waypoints) > 16 {
		t.Fatalf("resample kept %d waypoints, cap 16", len(p.Waypoints))
	}
	if p.Waypoints[len(p.Waypoints)-1] != end {
		t.Fatalf("resampling moved the destination")
	}
}

func TestSectorJitter_Deterministic(t *testing.T) {
	for _, s := range []sector{{0, 0}, {-3, 7}, {120, -45}} {
		x1, z1 := sectorJitter(s)
		x2, z2 := sectorJitter(s)
		if x1 != x2 || z1 != z2 {
			t.Fatalf("jitter for %+v not stable", s)
		}
		if math.Abs(x1) > 1 || math.Abs(z1) > 1 {
			t.Fatalf("jitter for %+v out of range: %f %f", s, x1, z1)
		}
	}
}

func TestRasterizeLine_Endpoints(t *testing.T) {
	cases := []struct{ x0, z0, x1, z1 int64 }{
		{0, 0, 0, 0},
		{0, 0, 5, 3},
		{4, -2, -7, 9},
		{3, 3, 3, -8},
	}
	for _, c := range cases {
		got := rasterizeLine(c.x0, c.z0, c.x1, c.z1)
		if len(got) == 0 {
			t.Fatalf("empty rasterization for %+v", c)
		}
		if got[0] != (sector{c.x0, c.z0}) || got[len(got)-1] != (sector{c.x1, c.z1}) {
			t.Fatalf("rasterization %+v does not span endpoints: %+v", c, got)
		}
	}
}

func TestPathChecksum_PureFunctionOfWaypoints(t *testing.T) {
	wp := []Point3{{0, 0, 0}, {10.5, 1, -3.25}, {20, 0, 0}}
	if PathChecksum(wp) != PathChecksum(append([]Point3(nil), wp...)) {
		t.Fatalf("equal waypoint slices hashed differently")
	}
	other := append([]Point3(nil), wp...)
	other[1].X += 0.01
	if PathChecksum(wp) == PathChecksum(other) {
		t.Fatalf("different waypoints collided")
	}
}
