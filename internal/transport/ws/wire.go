package ws

import (
	"lockstep/internal/nav"
	"lockstep/internal/protocol"
)

// ToEntry converts a cache entry to its wire form.
func ToEntry(p nav.CachedPath) protocol.PathEntry {
	waypoints := make([][3]float64, len(p.Waypoints))
	for i, w := range p.Waypoints {
		waypoints[i] = [3]float64{w.X, w.Y, w.Z}
	}
	return protocol.PathEntry{
		Key:         p.Key,
		Start:       [3]float64{p.Start.X, p.Start.Y, p.Start.Z},
		End:         [3]float64{p.End.X, p.End.Y, p.End.Z},
		Waypoints:   waypoints,
		Length:      p.Length,
		Checksum:    p.Checksum,
		GeneratedAt: p.GeneratedAt,
	}
}

// FromEntry converts a wire entry back. Waypoints survive the round trip
// bit-identical, so the checksum still matches the waypoint sequence.
func FromEntry(e protocol.PathEntry) nav.CachedPath {
	waypoints := make([]nav.Point3, len(e.Waypoints))
	for i, w := range e.Waypoints {
		waypoints[i] = nav.Point3{X: w[0], Y: w[1], Z: w[2]}
	}
	return nav.CachedPath{
		Key:         e.Key,
		Start:       nav.Point3{X: e.Start[0], Y: e.Start[1], Z: e.Start[2]},
		End:         nav.Point3{X: e.End[0], Y: e.End[1], Z: e.End[2]},
		Waypoints:   waypoints,
		Length:      e.Length,
		Checksum:    e.Checksum,
		GeneratedAt: e.GeneratedAt,
	}
}
