package extractor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/internal/facematch/models"
	dErrors "reunite/pkg/domain-errors"
)

func TestDeterministic(t *testing.T) {
	d := NewDeterministic()
	ctx := context.Background()

	a1, err := d.Extract(ctx, []byte("photo-a"))
	require.NoError(t, err)
	a2, err := d.Extract(ctx, []byte("photo-a"))
	require.NoError(t, err)
	b, err := d.Extract(ctx, []byte("photo-b"))
	require.NoError(t, err)

	require.NoError(t, a1.Faces[0].Vector.Validate())
	assert.Equal(t, a1.Faces[0].Vector, a2.Faces[0].Vector)
	assert.Greater(t, models.Distance(a1.Faces[0].Vector, b.Faces[0].Vector), models.DefaultDistanceThreshold)

	_, err = d.Extract(ctx, nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoFaceDetected))

	d.Pin([]byte("blank wall"))
	_, err = d.Extract(ctx, []byte("blank wall"))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoFaceDetected))
}

func TestExtraction_Largest(t *testing.T) {
	e := Extraction{Faces: []Face{{Area: 10}, {Area: 90}, {Area: 40}}}
	f, ok := e.Largest()
	require.True(t, ok)
	assert.Equal(t, 90.0, f.Area)

	_, ok = Extraction{}.Largest()
	assert.False(t, ok)
}

type slowExtractor struct {
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func (s *slowExtractor) Extract(ctx context.Context, _ []byte) (Extraction, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		m := s.maxSeen.Load()
		if n <= m || s.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	select {
	case <-time.After(s.delay):
		return Extraction{Faces: []Face{{Vector: make(models.Vector, models.VectorSize)}}}, nil
	case <-ctx.Done():
		return Extraction{}, ctx.Err()
	}
}

func TestBounded_LimitsConcurrency(t *testing.T) {
	slow := &slowExtractor{delay: 20 * time.Millisecond}
	b := NewBounded(slow, 2, Timeouts{})

	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_, _ = b.Extract(context.Background(), []byte("x"))
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	assert.LessOrEqual(t, slow.maxSeen.Load(), int32(2))
}

func TestBounded_CallTimeout(t *testing.T) {
	b := NewBounded(&slowExtractor{delay: time.Second}, 1, Timeouts{Call: 10 * time.Millisecond})
	_, err := b.Extract(context.Background(), []byte("x"))
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
}

func TestHTTPClient(t *testing.T) {
	vector := make([]float64, models.VectorSize)
	vector[3] = 0.25

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/extract", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		switch r.Header.Get("X-Case") {
		case "none":
			_, _ = w.Write([]byte(`{"faces":[]}`))
		default:
			body := `{"faces":[{"vector":[`
			for i, x := range vector {
				if i > 0 {
					body += ","
				}
				if x == 0 {
					body += "0"
				} else {
					body += "0.25"
				}
			}
			body += `],"area":400,"quality":0.9}]}`
			_, _ = w.Write([]byte(body))
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL)
	out, err := c.Extract(context.Background(), []byte{0xff, 0xd8})
	require.NoError(t, err)
	require.Equal(t, 1, out.FaceCount())
	assert.Equal(t, 0.25, out.Faces[0].Vector[3])

	c.client.SetHeader("X-Case", "none")
	_, err = c.Extract(context.Background(), []byte{0xff, 0xd8})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNoFaceDetected))

	_, err = c.Extract(context.Background(), nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
