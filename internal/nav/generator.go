package nav

import (
	"math"
	"time"
)

type GeneratorConfig struct {
	// SectorSize is the edge length of one grid sector in world units.
	SectorSize float64
	// AngleThreshold (radians): waypoints whose direction change is below
	// this are collapsed during optimization.
	AngleThreshold float64
	// MaxWaypoints caps the final waypoint count; longer paths are
	// resampled down by linear interpolation.
	MaxWaypoints int
}

func (c *GeneratorConfig) applyDefaults() {
	if c.SectorSize <= 0 {
		c.SectorSize = 1000
	}
	if c.AngleThreshold <= 0 {
		c.AngleThreshold = 0.1
	}
	if c.MaxWaypoints <= 1 {
		c.MaxWaypoints = 256
	}
}

// Generator builds routes as a pure function of (start, end) and its static
// configuration. No external navigation engine is consulted, so every peer
// running the same build produces byte-identical waypoints.
type Generator struct {
	cfg GeneratorConfig
}

func NewGenerator(cfg GeneratorConfig) *Generator {
	cfg.applyDefaults()
	return &Generator{cfg: cfg}
}

// Generate computes the cached path from start to end.
func (g *Generator) Generate(start, end Point3) CachedPath {
	raw := g.rawWaypoints(start, end)
	opt := optimizeWaypoints(raw, g.cfg.AngleThreshold)
	if len(opt) > g.cfg.MaxWaypoints {
		opt = resampleWaypoints(opt, g.cfg.MaxWaypoints)
	}
	return CachedPath{
		Key:         PathKey(start, end),
		Start:       start,
		End:         end,
		Waypoints:   opt,
		Length:      PathLength(opt),
		Checksum:    PathChecksum(opt),
		GeneratedAt: time.Now().Unix(),
	}
}

// rawWaypoints rasterizes the start->end line across the sector grid and
// emits one waypoint per traversed sector, then the exact destination.
func (g *Generator) rawWaypoints(start, end Point3) []Point3 {
	size := g.cfg.SectorSize
	sx0, sz0 := sectorOf(start.X, size), sectorOf(start.Z, size)
	sx1, sz1 := sectorOf(end.X, size), sectorOf(end.Z, size)

	sectors := rasterizeLine(sx0, sz0, sx1, sz1)

	out := make([]Point3, 0, len(sectors)+1)
	out = append(out, start)
	n := len(sectors)
	for i, s := range sectors {
		// Skip the first and last sectors: start and destination stand in
		// for them.
		if i == 0 || i == n-1 {
			continue
		}
		progress := float64(i) / float64(n-1)
		out = append(out, g.sectorWaypoint(s, start, end, progress))
	}
	out = append(out, end)
	return out
}

type sector struct{ X, Z int64 }

func sectorOf(v, size float64) int64 {
	return int64(math.Floor(v / size))
}

// sectorWaypoint picks a point inside the sector biased toward the
// destination, jittered by an offset derived only from the sector's own
// coordinates. The same sector on the same route always yields the same
// waypoint.
func (g *Generator) sectorWaypoint(s sector, start, end Point3, progress float64) Point3 {
	size := g.cfg.SectorSize
	cx := (float64(s.X) + 0.5) * size
	cz := (float64(s.Z) + 0.5) * size

	// Bias a quarter-sector toward the destination.
	dx := end.X - cx
	dz := end.Z - cz
	norm := math.Hypot(dx, dz)
	if norm > 0 {
		cx += dx / norm * size * 0.25
		cz += dz / norm * size * 0.25
	}

	// Deterministic jitter, at most 5% of the sector size on each axis.
	jx, jz := sectorJitter(s)
	cx += jx * size * 0.05
	cz += jz * size * 0.05

	return Point3{
		X: cx,
		Y: start.Y + (end.Y-start.Y)*progress,
		Z: cz,
	}
}

// sectorJitter hashes sector coordinates into two factors in [-1, 1].
func sectorJitter(s sector) (float64, float64) {
	h := uint64(s.X)*0x9e3779b97f4a7c15 ^ uint64(s.Z)*0xc2b2ae3d27d4eb4f
	h ^= h >> 33
	h *= 0xff51afd7ed558ccd
	h ^= h >> 33
	jx := float64(h%2001)/1000 - 1
	jz := float64((h/2001)%2001)/1000 - 1
	return jx, jz
}

// rasterizeLine is integer Bresenham stepping over sector coordinates,
// inclusive of both endpoints.
func rasterizeLine(x0, z0, x1, z1 int64) []sector {
	dx := absI64(x1 - x0)
	dz := -absI64(z1 - z0)
	sx := int64(1)
	if x0 > x1 {
		sx = -1
	}
	sz := int64(1)
	if z0 > z1 {
		sz = -1
	}
	err := dx + dz

	out := make([]sector, 0, dx-dz+1)
	x, z := x0, z0
	for {
		out = append(out, sector{X: x, Z: z})
		if x == x1 && z == z1 {
			return out
		}
		e2 := 2 * err
		if e2 >= dz {
			err += dz
			x += sx
		}
		if e2 <= dx {
			err += dx
			z += sz
		}
	}
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

// optimizeWaypoints drops interior points whose direction change is below
// the angle threshold. First and last points always survive.
func optimizeWaypoints(points []Point3, threshold float64) []Point3 {
	if len(points) <= 2 {
		return points
	}
	out := make([]Point3, 0, len(points))
	out = append(out, points[0])
	for i := 1; i < len(points)-1; i++ {
		prev := out[len(out)-1]
		cur := points[i]
		next := points[i+1]
		if angleBetween(cur.Sub(prev), next.Sub(cur)) >= threshold {
			out = append(out, cur)
		}
	}
	out = append(out, points[len(points)-1])
	return out
}

func angleBetween(a, b Point3) float64 {
	la := math.Sqrt(a.X*a.X + a.Y*a.Y + a.Z*a.Z)
	lb := math.Sqrt(b.X*b.X + b.Y*b.Y + b.Z*b.Z)
	if la == 0 || lb == 0 {
		return 0
	}
	dot := (a.X*b.X + a.Y*b.Y + a.Z*b.Z) / (la * lb)
	if dot > 1 {
		dot = 1
	} else if dot < -1 {
		dot = -1
	}
	return math.Acos(dot)
}

// resampleWaypoints reduces the polyline to count points by uniform linear
// interpolation over the point index. The final point is kept exact.
func resampleWaypoints(points []Point3, count int) []Point3 {
	n := len(points)
	if count >= n || count < 2 {
		return points
	}
	out := make([]Point3, count)
	step := float64(n-1) / float64(count-1)
	for i := 0; i < count-1; i++ {
		t := float64(i) * step
		lo := int(t)
		frac := t - float64(lo)
		a, b := points[lo], points[lo+1]
		out[i] = Point3{
			X: a.X + (b.X-a.X)*frac,
			Y: a.Y + (b.Y-a.Y)*frac,
			Z: a.Z + (b.Z-a.Z)*frac,
		}
	}
	out[count-1] = points[n-1]
	return out
}
