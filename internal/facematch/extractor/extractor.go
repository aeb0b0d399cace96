// Package extractor adapts the external face-embedding model. The model is
// a black box: image bytes in, one embedding per detected face out.
package extractor

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/semaphore"

	"reunite/internal/facematch/models"
	dErrors "reunite/pkg/domain-errors"
)

// Face is one detected face.
type Face struct {
	Vector models.Vector `json:"vector"`
	// Area is the bounding box area in pixels, used to pick the largest face.
	Area float64 `json:"area"`
	// Quality is the detector's confidence in [0,1].
	Quality float64 `json:"quality"`
}

// Extraction is the model output for one image.
type Extraction struct {
	Faces []Face
}

// FaceCount is the number of detected faces.
func (e Extraction) FaceCount() int { return len(e.Faces) }

// Largest returns the face with the biggest bounding box.
func (e Extraction) Largest() (Face, bool) {
	if len(e.Faces) == 0 {
		return Face{}, false
	}
	faces := append([]Face(nil), e.Faces...)
	sort.SliceStable(faces, func(i, j int) bool { return faces[i].Area > faces[j].Area })
	return faces[0], true
}

// Extractor turns an image into face embeddings. Implementations return a
// CodeNoFaceDetected error when no face is found.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (Extraction, error)
}

// ErrNoFace builds the no-face error.
func ErrNoFace() error {
	return dErrors.New(dErrors.CodeNoFaceDetected, "no face detected in image")
}

// Bounded limits concurrent extractions and applies a per-call timeout.
type Bounded struct {
	next    Extractor
	sem     *semaphore.Weighted
	timeout Timeouts
}

// Timeouts configures Bounded.
type Timeouts struct {
	// Wait bounds how long a caller queues for a slot.
	Wait time.Duration
	// Call bounds one extraction.
	Call time.Duration
}

// NewBounded wraps next with at most concurrency in-flight calls.
func NewBounded(next Extractor, concurrency int64, timeouts Timeouts) *Bounded {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Bounded{next: next, sem: semaphore.NewWeighted(concurrency), timeout: timeouts}
}

func (b *Bounded) Extract(ctx context.Context, image []byte) (Extraction, error) {
	waitCtx := ctx
	if b.timeout.Wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, b.timeout.Wait)
		defer cancel()
	}
	if err := b.sem.Acquire(waitCtx, 1); err != nil {
		return Extraction{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "face extractor busy")
	}
	defer b.sem.Release(1)

	callCtx := ctx
	if b.timeout.Call > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, b.timeout.Call)
		defer cancel()
	}
	out, err := b.next.Extract(callCtx, image)
	if err != nil && callCtx.Err() != nil && !dErrors.HasCode(err, dErrors.CodeNoFaceDetected) {
		return Extraction{}, dErrors.Wrap(err, dErrors.CodeTimeout, "face extraction timed out")
	}
	return out, err
}
