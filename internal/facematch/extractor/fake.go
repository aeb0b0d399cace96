package extractor

import (
	"context"
	"encoding/binary"
	"math"
	"sync"

	"golang.org/x/crypto/blake2b"

	"reunite/internal/facematch/models"
)

// Deterministic derives an embedding from the image bytes, so the same
// image always yields the same vector and different images land far apart.
// Specific images can be pinned to explicit faces. It backs development
// nodes without a model server and the test suites.
type Deterministic struct {
	mu     sync.RWMutex
	pinned map[[32]byte][]Face
}

func NewDeterministic() *Deterministic {
	return &Deterministic{pinned: make(map[[32]byte][]Face)}
}

// Pin makes image extract to faces. An empty faces slice means no face.
func (d *Deterministic) Pin(image []byte, faces ...Face) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pinned[blake2b.Sum256(image)] = faces
}

func (d *Deterministic) Extract(ctx context.Context, image []byte) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}
	sum := blake2b.Sum256(image)
	d.mu.RLock()
	faces, ok := d.pinned[sum]
	d.mu.RUnlock()
	if ok {
		if len(faces) == 0 {
			return Extraction{}, ErrNoFace()
		}
		return Extraction{Faces: faces}, nil
	}
	if len(image) == 0 {
		return Extraction{}, ErrNoFace()
	}
	return Extraction{Faces: []Face{{Vector: VectorFromSeed(sum[:]), Area: 1, Quality: 1}}}, nil
}

// VectorFromSeed expands seed into a vector with components in [-0.1, 0.1].
func VectorFromSeed(seed []byte) models.Vector {
	v := make(models.Vector, models.VectorSize)
	var block [64]byte
	for i := 0; i < models.VectorSize; i++ {
		if i%16 == 0 {
			h, _ := blake2b.New512(nil)
			h.Write(seed)
			var ctr [4]byte
			binary.BigEndian.PutUint32(ctr[:], uint32(i/16))
			h.Write(ctr[:])
			copy(block[:], h.Sum(nil))
		}
		raw := binary.BigEndian.Uint32(block[(i%16)*4:])
		v[i] = (float64(raw)/math.MaxUint32)*0.2 - 0.1
	}
	return v
}
