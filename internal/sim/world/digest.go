package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
)

// StateDigest hashes the replicated state. Everything a command can mutate
// must feed the hash; transient session state must not, or reconnects would
// look like desyncs.
func (w *World) StateDigest() string {
	h := sha256.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	puts := func(s string) {
		put(uint64(len(s)))
		h.Write([]byte(s))
	}

	put(w.tick.Load())
	put(uint64(w.pauseLevel))
	put(w.rng)
	put(uint64(w.nextStation))
	put(uint64(w.nextSign))

	for i := range w.tiles {
		put(uint64(w.tiles[i])<<32 | uint64(w.tileOwner[i])<<16 | uint64(w.tileStn[i]))
	}

	for _, c := range w.companies {
		if c == nil {
			put(0xFFFF)
			continue
		}
		put(uint64(c.ID))
		puts(c.Name)
		put(uint64(c.Colour))
		put(uint64(c.Money))
		put(uint64(c.Loan))
		for _, e := range c.Expenses {
			put(uint64(e))
		}
	}

	stationIDs := make([]int, 0, len(w.stations))
	for id := range w.stations {
		stationIDs = append(stationIDs, int(id))
	}
	sort.Ints(stationIDs)
	for _, id := range stationIDs {
		st := w.stations[uint16(id)]
		put(uint64(st.ID))
		puts(st.Name)
		put(uint64(st.Owner))
		for _, t := range st.Tiles {
			put(uint64(t))
		}
	}

	signIDs := make([]int, 0, len(w.signs))
	for id := range w.signs {
		signIDs = append(signIDs, int(id))
	}
	sort.Ints(signIDs)
	for _, id := range signIDs {
		s := w.signs[uint16(id)]
		put(uint64(s.ID))
		put(uint64(s.Tile))
		puts(s.Text)
		put(uint64(s.Owner))
	}

	return hex.EncodeToString(h.Sum(nil))
}
