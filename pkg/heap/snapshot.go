package heap

import (
	"encoding/gob"
	"fmt"
	"os"
)

// Snapshot holds a serializable image of a heap: the used prefix of
// every band plus the root location and accumulated rewrite count.
type Snapshot struct {
	BandSize uint32
	Used     []uint32   // bump offset per band
	Bands    [][]uint64 // used prefix of each band
	Root     uint32
	Cost     uint64
}

// Snapshot captures the used region of every band. used must hold one
// bump offset per worker, as reported by each Area.
func (h *Heap) Snapshot(used []uint32, root uint32, cost uint64) *Snapshot {
	s := &Snapshot{
		BandSize: h.bandSize,
		Used:     append([]uint32(nil), used...),
		Bands:    make([][]uint64, h.workers),
		Root:     root,
		Cost:     cost,
	}
	for tid := 0; tid < h.workers; tid++ {
		base := uint64(tid) * uint64(h.bandSize)
		s.Bands[tid] = append([]uint64(nil), h.data[base:base+uint64(used[tid])]...)
	}
	return s
}

// Restore rebuilds a heap from the snapshot image.
func (s *Snapshot) Restore() *Heap {
	h := New(uint64(s.BandSize)*uint64(len(s.Bands)), len(s.Bands))
	for tid, band := range s.Bands {
		base := uint64(tid) * uint64(s.BandSize)
		copy(h.data[base:], band)
	}
	return h
}

// SaveSnapshot writes a snapshot to a file.
func SaveSnapshot(path string, s *Snapshot) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gob.NewEncoder(f).Encode(s)
}

// LoadSnapshot loads a snapshot from a file.
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}
