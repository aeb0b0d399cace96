// Package index is the in-memory nearest-neighbour cache over enrolled
// face embeddings.
//
// Readers load the current Snapshot and search it without locks. Writers
// build a new Snapshot from the old one plus their changes and swap it in
// atomically; a published Snapshot is never mutated.
package index

import (
	"sort"
	"sync"
	"sync/atomic"

	"reunite/internal/facematch/models"
	"reunite/pkg/domain"
)

// Entry is one indexed photo.
type Entry struct {
	PhotoID    domain.PhotoID
	PatientID  domain.PatientID
	HospitalID domain.HospitalID
	Vector     models.Vector
}

// Snapshot is an immutable point-in-time view of the index. Entries live in
// one arena slice; byHospital holds arena offsets per hospital.
type Snapshot struct {
	generation uint64
	arena      []Entry
	byHospital map[domain.HospitalID][]int
	byPhoto    map[domain.PhotoID]int
}

// Generation increases by one with every published change.
func (s *Snapshot) Generation() uint64 { return s.generation }

// Len is the number of indexed photos.
func (s *Snapshot) Len() int { return len(s.arena) }

// HospitalCount is the number of distinct hospitals with indexed photos.
func (s *Snapshot) HospitalCount() int { return len(s.byHospital) }

// Contains reports whether a photo is indexed.
func (s *Snapshot) Contains(id domain.PhotoID) bool {
	_, ok := s.byPhoto[id]
	return ok
}

// Candidate is a scored search hit.
type Candidate struct {
	Entry
	Distance float64
}

// Search scores every entry in scope and returns those within threshold,
// nearest first, at most max of them. Ties break on photo id.
func (s *Snapshot) Search(query models.Vector, scope models.Scope, threshold float64, max int) []Candidate {
	var hits []Candidate
	consider := func(e Entry) {
		if len(e.Vector) != len(query) {
			return
		}
		d := models.Distance(query, e.Vector)
		if models.WithinThreshold(d, threshold) {
			hits = append(hits, Candidate{Entry: e, Distance: d})
		}
	}
	if scope.IsAll() {
		for _, e := range s.arena {
			consider(e)
		}
	} else {
		for _, off := range s.byHospital[scope.HospitalID] {
			consider(s.arena[off])
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		ci, cj := models.Confidence(hits[i].Distance), models.Confidence(hits[j].Distance)
		if ci != cj {
			return ci > cj
		}
		return hits[i].PhotoID.String() < hits[j].PhotoID.String()
	})
	if max > 0 && len(hits) > max {
		hits = hits[:max]
	}
	return hits
}

func build(generation uint64, arena []Entry) *Snapshot {
	s := &Snapshot{
		generation: generation,
		arena:      arena,
		byHospital: make(map[domain.HospitalID][]int),
		byPhoto:    make(map[domain.PhotoID]int, len(arena)),
	}
	for i, e := range arena {
		s.byHospital[e.HospitalID] = append(s.byHospital[e.HospitalID], i)
		s.byPhoto[e.PhotoID] = i
	}
	return s
}

// Index owns the current snapshot.
type Index struct {
	current atomic.Pointer[Snapshot]
	writeMu sync.Mutex
}

// New returns an empty index at generation zero.
func New() *Index {
	idx := &Index{}
	idx.current.Store(build(0, nil))
	return idx
}

// Snapshot returns the current snapshot. Callers may hold it as long as
// they like.
func (i *Index) Snapshot() *Snapshot {
	return i.current.Load()
}

// Add publishes a new snapshot containing entries. Photos already indexed
// are skipped, so replaying a replicated photo is harmless. Returns the
// published snapshot.
func (i *Index) Add(entries ...Entry) *Snapshot {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	old := i.current.Load()
	fresh := make([]Entry, 0, len(entries))
	seen := make(map[domain.PhotoID]bool, len(entries))
	for _, e := range entries {
		if old.Contains(e.PhotoID) || seen[e.PhotoID] {
			continue
		}
		seen[e.PhotoID] = true
		e.Vector = e.Vector.Clone()
		fresh = append(fresh, e)
	}
	if len(fresh) == 0 {
		return old
	}
	arena := make([]Entry, 0, len(old.arena)+len(fresh))
	arena = append(arena, old.arena...)
	arena = append(arena, fresh...)
	next := build(old.generation+1, arena)
	i.current.Store(next)
	return next
}

// Replace publishes a snapshot built from entries alone, used when
// warming the cache from the store.
func (i *Index) Replace(entries []Entry) *Snapshot {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	old := i.current.Load()
	arena := make([]Entry, 0, len(entries))
	seen := make(map[domain.PhotoID]bool, len(entries))
	for _, e := range entries {
		if seen[e.PhotoID] {
			continue
		}
		seen[e.PhotoID] = true
		e.Vector = e.Vector.Clone()
		arena = append(arena, e)
	}
	next := build(old.generation+1, arena)
	i.current.Store(next)
	return next
}
