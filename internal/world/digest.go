package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
)

// Digest hashes the full submitter state. Two peers that applied the same
// result stream hold the same digest; replay tests and divergence checks
// compare nothing else.
func (st *State) Digest(nowTick uint64) string {
	st.mu.RLock()
	defer st.mu.RUnlock()

	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(len(st.submitters)))

	ids := make([]string, 0, len(st.submitters))
	for id := range st.submitters {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		s := st.submitters[id]
		h.Write([]byte(s.ID))
		h.Write([]byte(s.Name))
		digestWriteI64(h, &tmp, int64(s.Level))
		digestWriteI64(h, &tmp, milli(s.Pos.X))
		digestWriteI64(h, &tmp, milli(s.Pos.Y))
		digestWriteI64(h, &tmp, milli(s.Pos.Z))

		keys := make([]string, 0, len(s.Resources))
		for k := range s.Resources {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		digestWriteU64(h, &tmp, uint64(len(keys)))
		for _, k := range keys {
			h.Write([]byte(k))
			digestWriteI64(h, &tmp, int64(s.Resources[k]))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func digestWriteU64(h interface{ Write([]byte) (int, error) }, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteI64(h interface{ Write([]byte) (int, error) }, tmp *[8]byte, v int64) {
	digestWriteU64(h, tmp, uint64(v))
}

func milli(v float64) int64 {
	return int64(math.Round(v * 1000))
}
