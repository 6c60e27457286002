package nav

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
)

// Point3 is a world-space position.
type Point3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (p Point3) Sub(o Point3) Point3 { return Point3{p.X - o.X, p.Y - o.Y, p.Z - o.Z} }

func (p Point3) Dist(o Point3) float64 {
	dx, dy, dz := p.X-o.X, p.Y-o.Y, p.Z-o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// CachedPath is one immutable cache entry. Replacement happens only through
// peer synchronization; local generation never overwrites an existing key.
type CachedPath struct {
	Key         string
	Start       Point3
	End         Point3
	Waypoints   []Point3
	Length      float64
	Checksum    string
	GeneratedAt int64
}

// PathKey normalizes both endpoints to integer-rounded coordinates. Any two
// endpoints within the rounding unit collapse to the same key.
func PathKey(start, end Point3) string {
	return fmt.Sprintf("%d,%d,%d>%d,%d,%d",
		roundCoord(start.X), roundCoord(start.Y), roundCoord(start.Z),
		roundCoord(end.X), roundCoord(end.Y), roundCoord(end.Z))
}

func roundCoord(v float64) int64 {
	return int64(math.Round(v))
}

// PathChecksum hashes the waypoint sequence rounded to millimeter precision.
// It is a pure function of the waypoints: equal sequences hash equal, across
// peers and across serialization round-trips.
func PathChecksum(waypoints []Point3) string {
	h := sha256.New()
	var tmp [8]byte
	writeI64 := func(v int64) {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		h.Write(tmp[:])
	}
	writeI64(int64(len(waypoints)))
	for _, w := range waypoints {
		writeI64(roundMilli(w.X))
		writeI64(roundMilli(w.Y))
		writeI64(roundMilli(w.Z))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func roundMilli(v float64) int64 {
	return int64(math.Round(v * 1000))
}

// PathLength is the summed Euclidean length of the waypoint polyline.
func PathLength(waypoints []Point3) float64 {
	var total float64
	for i := 1; i < len(waypoints); i++ {
		total += waypoints[i].Dist(waypoints[i-1])
	}
	return total
}
