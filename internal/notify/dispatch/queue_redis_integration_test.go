//go:build integration

package dispatch_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"reunite/internal/notify/dispatch"
	"reunite/pkg/domain"
	"reunite/pkg/testutil/containers"
)

type RedisQueueSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	queue *dispatch.RedisQueue
}

func TestRedisQueueSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisQueueSuite))
}

func (s *RedisQueueSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.queue = dispatch.NewRedisQueue(s.redis.Client, "H1")
}

func (s *RedisQueueSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisQueueSuite) TestPushPopIsFIFO() {
	ctx := context.Background()
	first := domain.NotificationID(uuid.New())
	second := domain.NotificationID(uuid.New())
	s.Require().NoError(s.queue.Push(ctx, first))
	s.Require().NoError(s.queue.Push(ctx, second))

	got, ok, err := s.queue.Pop(ctx, time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(first, got)

	got, ok, err = s.queue.Pop(ctx, time.Second)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(second, got)

	_, ok, err = s.queue.Pop(ctx, time.Second)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisQueueSuite) TestClaimIsExclusiveUntilReleased() {
	ctx := context.Background()
	id := domain.NotificationID(uuid.New())
	other := dispatch.NewRedisQueue(s.redis.Client, "H1")

	ok, err := s.queue.Claim(ctx, id, time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = other.Claim(ctx, id, time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	s.Require().NoError(s.queue.Release(ctx, id))
	ok, err = other.Claim(ctx, id, time.Minute)
	s.Require().NoError(err)
	s.True(ok)
}
