package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reunite/internal/notify/models"
	nstore "reunite/internal/notify/store"
	"reunite/internal/notify/transport"
	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	"reunite/pkg/platform/retry"
	"reunite/pkg/requestcontext"
)

type WorkerSuite struct {
	suite.Suite
	store     *nstore.InMemory
	queue     *MemoryQueue
	transport *transport.Recording
	outbox    *outbox.InMemory
	worker    *Worker
	now       time.Time
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func (s *WorkerSuite) SetupTest() {
	s.store = nstore.NewInMemory()
	s.queue = NewMemoryQueue(16)
	s.transport = transport.NewRecording()
	s.outbox = outbox.NewInMemory()
	s.now = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.MaxRetries = 3
	cfg.Backoff = retry.Backoff{Base: time.Minute, Max: time.Hour}
	cfg.PopTimeout = 10 * time.Millisecond
	cfg.SweepInterval = time.Hour
	s.worker = NewWorker(s.store, s.queue, s.transport, outbox.NewWriter(s.outbox, "H1"), "H1", WithConfig(cfg))
}

func (s *WorkerSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *WorkerSuite) seed(owner domain.HospitalID, contact string) *models.Notification {
	n := models.NewNotification(models.Draft{
		PatientID:  "P-1",
		ContactRef: contact,
		Type:       models.TypePatientIdentified,
		Channel:    models.ChannelSMS,
		Recipient:  "+27821234567",
		Message:    "Patient P-1 has been identified",
		EventID:    domain.DeriveEventID("P-1", "H1"),
		Owner:      owner,
	}, s.now)
	s.Require().NoError(s.store.Create(context.Background(), n))
	return n
}

func (s *WorkerSuite) TestDeliver_Success() {
	n := s.seed("H1", "C-1")

	s.Require().NoError(s.worker.Deliver(s.at(0), n.ID))

	got, err := s.store.FindByID(context.Background(), n.ID)
	s.Require().NoError(err)
	s.True(got.Delivered)
	s.Equal(models.StatusDelivered, got.Status)
	s.Len(s.transport.Sent(), 1)

	entries := s.outbox.All()
	s.Require().Len(entries, 1)
	s.Equal(outbox.EntityFamilyNotification, entries[0].EntityType)

	s.Require().NoError(s.worker.Deliver(s.at(time.Minute), n.ID))
	s.Len(s.transport.Sent(), 1, "delivered rows are not re-sent")
}

func (s *WorkerSuite) TestDeliver_RetriesWithBackoffThenFails() {
	n := s.seed("H1", "C-1")
	s.transport.Fail(10)

	s.Require().NoError(s.worker.Deliver(s.at(0), n.ID))
	got, _ := s.store.FindByID(context.Background(), n.ID)
	s.Equal(models.StatusPending, got.Status)
	s.Equal(1, got.Attempts)
	s.Equal(s.now.Add(time.Minute), got.NextAttemptAt)

	s.Require().NoError(s.worker.Deliver(s.at(30*time.Second), n.ID))
	got, _ = s.store.FindByID(context.Background(), n.ID)
	s.Equal(1, got.Attempts, "not due yet")

	attempted, err := s.worker.Sweep(s.at(time.Minute))
	s.Require().NoError(err)
	s.Equal(1, attempted)
	got, _ = s.store.FindByID(context.Background(), n.ID)
	s.Equal(2, got.Attempts)
	s.Equal(s.now.Add(3*time.Minute), got.NextAttemptAt)

	s.Require().NoError(s.worker.Deliver(s.at(3*time.Minute), n.ID))
	got, _ = s.store.FindByID(context.Background(), n.ID)
	s.Equal(models.StatusFailed, got.Status)
	s.Equal(3, got.Attempts)
	s.False(got.Delivered)
	s.NotEmpty(got.LastError)
	s.Len(s.outbox.All(), 1, "final failure is replicated")

	attempted, err = s.worker.Sweep(s.at(time.Hour))
	s.Require().NoError(err)
	s.Zero(attempted, "failed rows are never retried")
}

func (s *WorkerSuite) TestDeliver_SkipsRowsOwnedElsewhere() {
	n := s.seed("H2", "C-1")
	s.Require().NoError(s.worker.Deliver(s.at(0), n.ID))
	s.Empty(s.transport.Sent())

	attempted, err := s.worker.Sweep(s.at(0))
	s.Require().NoError(err)
	s.Zero(attempted)
}

func (s *WorkerSuite) TestDeliver_ClaimedElsewhere() {
	n := s.seed("H1", "C-1")
	ok, err := s.queue.Claim(context.Background(), n.ID, time.Minute)
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Require().NoError(s.worker.Deliver(s.at(0), n.ID))
	s.Empty(s.transport.Sent())
}

func (s *WorkerSuite) TestRun_ConsumesQueue() {
	n := s.seed("H1", "C-1")
	s.Require().NoError(s.queue.Push(context.Background(), n.ID))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.worker.Run(ctx) }()

	s.Eventually(func() bool { return len(s.transport.Sent()) == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	s.NoError(<-done)
}
