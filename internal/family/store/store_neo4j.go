package store

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"reunite/internal/family/models"
	"reunite/pkg/domain"
)

// Neo4jStore keeps the family graph as (:Patient)-[:RELATED_TO]->(:Patient)
// edges, directed from PatientA to PatientB and traversed both ways.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4j(driver neo4j.DriverWithContext, database string) *Neo4jStore {
	return &Neo4jStore{driver: driver, database: database}
}

// OpenNeo4j connects and verifies connectivity.
func OpenNeo4j(ctx context.Context, uri, username, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return driver, nil
}

// EnsureSchema creates the patient id uniqueness constraint.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)
	_, err := session.Run(ctx,
		`CREATE CONSTRAINT patient_id IF NOT EXISTS FOR (p:Patient) REQUIRE p.id IS UNIQUE`, nil)
	if err != nil {
		return fmt.Errorf("create patient constraint: %w", err)
	}
	return nil
}

func (s *Neo4jStore) Link(ctx context.Context, r *models.Relationship) (bool, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MERGE (a:Patient {id: $a})
			MERGE (b:Patient {id: $b})
			MERGE (a)-[r:RELATED_TO]->(b)
			ON CREATE SET r.label = $label, r.asserted_by = $by, r.created_at = $at, r.fresh = true
			ON MATCH SET r.fresh = false
			RETURN r.fresh AS created
		`, map[string]any{
			"a":     r.PatientA.String(),
			"b":     r.PatientB.String(),
			"label": string(r.Label),
			"by":    r.AssertedBy,
			"at":    r.CreatedAt.UnixMicro(),
		})
		if err != nil {
			return false, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return false, err
		}
		v, _ := record.Get("created")
		fresh, _ := v.(bool)
		return fresh, nil
	})
	if err != nil {
		return false, fmt.Errorf("merge relationship: %w", err)
	}
	return created.(bool), nil
}

func (s *Neo4jStore) EdgesOf(ctx context.Context, patientID domain.PatientID) ([]*models.Relationship, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (a:Patient)-[r:RELATED_TO]->(b:Patient)
			WHERE a.id = $id OR b.id = $id
			RETURN a.id AS a, b.id AS b, r.label AS label, r.asserted_by AS by, r.created_at AS at
			ORDER BY a, b
		`, map[string]any{"id": patientID.String()})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		edges := make([]*models.Relationship, 0, len(records))
		for _, rec := range records {
			edges = append(edges, relationshipFromRecord(rec.AsMap()))
		}
		return edges, nil
	})
	if err != nil {
		return nil, fmt.Errorf("match relationships: %w", err)
	}
	return out.([]*models.Relationship), nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

func relationshipFromRecord(m map[string]any) *models.Relationship {
	a, _ := m["a"].(string)
	b, _ := m["b"].(string)
	label, _ := m["label"].(string)
	by, _ := m["by"].(string)
	at, _ := m["at"].(int64)
	return &models.Relationship{
		PatientA:   domain.PatientID(a),
		PatientB:   domain.PatientID(b),
		Label:      models.Label(label),
		AssertedBy: by,
		CreatedAt:  time.UnixMicro(at).UTC(),
	}
}
