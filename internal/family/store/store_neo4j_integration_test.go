//go:build integration

package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"reunite/internal/family/models"
	"reunite/pkg/domain"
)

type Neo4jStoreSuite struct {
	suite.Suite
	container testcontainers.Container
	store     *Neo4jStore
	closeFn   func()
}

func TestNeo4jStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(Neo4jStoreSuite))
}

func (s *Neo4jStoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "neo4j:5-community",
			ExposedPorts: []string{"7687/tcp"},
			Env:          map[string]string{"NEO4J_AUTH": "neo4j/reunite-test"},
			WaitingFor:   wait.ForLog("Started.").WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.container = container

	host, err := container.Host(ctx)
	s.Require().NoError(err)
	port, err := container.MappedPort(ctx, "7687")
	s.Require().NoError(err)

	driver, err := OpenNeo4j(ctx, fmt.Sprintf("bolt://%s:%s", host, port.Port()), "neo4j", "reunite-test")
	s.Require().NoError(err)
	s.closeFn = func() { _ = driver.Close(ctx) }
	s.store = NewNeo4j(driver, "")
	s.Require().NoError(s.store.EnsureSchema(ctx))
}

func (s *Neo4jStoreSuite) TearDownSuite() {
	if s.closeFn != nil {
		s.closeFn()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *Neo4jStoreSuite) TestLinkAndTraverseBothWays() {
	ctx := context.Background()
	r, err := models.NewRelationship("N-B", "N-A", models.LabelChild, "sw.a", time.Now().UTC().Truncate(time.Microsecond))
	s.Require().NoError(err)

	created, err := s.store.Link(ctx, r)
	s.Require().NoError(err)
	s.True(created)

	created, err = s.store.Link(ctx, r)
	s.Require().NoError(err)
	s.False(created)

	fromB, err := s.store.EdgesOf(ctx, "N-B")
	s.Require().NoError(err)
	s.Require().Len(fromB, 1)
	s.Equal(models.Relative{PatientID: domain.PatientID("N-A"), Label: models.LabelParent}, fromB[0].RelativeOf("N-B"))
	s.True(r.CreatedAt.Equal(fromB[0].CreatedAt))

	fromA, err := s.store.EdgesOf(ctx, "N-A")
	s.Require().NoError(err)
	s.Len(fromA, 1)
}
