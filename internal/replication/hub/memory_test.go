package hub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reunite/internal/replication/outbox"
	"reunite/pkg/domain"
	"reunite/pkg/platform/sentinel"
)

func entry(t *testing.T, origin string, id string) *outbox.Entry {
	t.Helper()
	e, err := outbox.NewEntry(domain.HospitalID("H"+origin), outbox.EntityHospital, id, map[string]string{"id": id}, time.Now())
	require.NoError(t, err)
	return e
}

func TestNetwork_EveryEndpointReadsWholeLog(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	a, b := net.Endpoint("H1"), net.Endpoint("H2")

	require.NoError(t, a.Publish(ctx, []*outbox.Entry{entry(t, "1", "x")}))
	require.NoError(t, b.Publish(ctx, []*outbox.Entry{entry(t, "2", "y")}))

	got, err := a.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].EntityID)
	assert.Equal(t, "y", got[1].EntityID)

	gotB, err := b.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, gotB, 2)
}

func TestNetwork_UncommittedEntriesAreRedelivered(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	a := net.Endpoint("H1")
	require.NoError(t, a.Publish(ctx, []*outbox.Entry{entry(t, "1", "x")}))

	first, err := a.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)

	again, err := a.Poll(ctx)
	require.NoError(t, err)
	assert.Len(t, again, 1, "poll without commit redelivers")

	require.NoError(t, a.Commit(ctx))
	after, err := a.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, after)
}

func TestNetwork_OfflineEndpointIsUnavailable(t *testing.T) {
	ctx := context.Background()
	net := NewNetwork()
	a := net.Endpoint("H1")
	net.SetOffline("H1", true)

	err := a.Publish(ctx, []*outbox.Entry{entry(t, "1", "x")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	_, err = a.Poll(ctx)
	assert.True(t, errors.Is(err, sentinel.ErrUnavailable))
	assert.Equal(t, 0, net.Len())

	net.SetOffline("H1", false)
	require.NoError(t, a.Publish(ctx, []*outbox.Entry{entry(t, "1", "x")}))
	assert.Equal(t, 1, net.Len())
}
