//go:build integration

package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"reunite/pkg/domain"
	"reunite/pkg/platform/tx"
	"reunite/pkg/testutil/containers"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *PostgresStore
	ctx   context.Context
	now   time.Time
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = NewPostgres(s.pg.DB)
}

func (s *PostgresIntegrationSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.Require().NoError(s.pg.Truncate(s.ctx))
}

func (s *PostgresIntegrationSuite) append(entityID string) *Entry {
	e, err := NewEntry("H1", EntityPatientLocation, entityID, map[string]string{"patient_id": entityID}, s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(s.ctx, e))
	return e
}

func (s *PostgresIntegrationSuite) TestSendAckLifecycle() {
	e := s.append("P-1")

	due, err := s.store.ListDue(s.ctx, s.now, 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(e.ID, due[0].ID)
	s.JSONEq(`{"patient_id":"P-1"}`, string(due[0].Payload))

	s.Require().NoError(s.store.MarkSent(s.ctx, []domain.OutboxEntryID{e.ID}, s.now))
	due, err = s.store.ListDue(s.ctx, s.now, 10)
	s.Require().NoError(err)
	s.Empty(due)

	unacked, err := s.store.ListUnackedSentBefore(s.ctx, s.now.Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Len(unacked, 1)

	s.Require().NoError(s.store.MarkAcked(s.ctx, e.ID))
	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, counts[StatusAcked])
}

func (s *PostgresIntegrationSuite) TestRetryDefersEntry() {
	e := s.append("P-2")
	s.Require().NoError(s.store.MarkRetry(s.ctx, e.ID, 1, s.now.Add(time.Minute), "hub unreachable"))

	due, err := s.store.ListDue(s.ctx, s.now, 10)
	s.Require().NoError(err)
	s.Empty(due)

	due, err = s.store.ListDue(s.ctx, s.now.Add(time.Minute), 10)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(1, due[0].RetryCount)
}

func (s *PostgresIntegrationSuite) TestRolledBackWriteLeavesNoEntry() {
	runner := tx.NewSQLRunner(s.pg.DB)
	writer := NewWriter(s.store, "H1")
	boom := errors.New("directory write failed")

	err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		if err := writer.Write(txCtx, EntityPatientLocation, "P-3", map[string]string{"patient_id": "P-3"}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	counts, err := s.store.CountByStatus(s.ctx)
	s.Require().NoError(err)
	s.Zero(counts[StatusPending])
}
