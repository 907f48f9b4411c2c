package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jBackend writes the association graph over Bolt. Nodes are merged
// (idempotent across reruns of the same study); edges are always created,
// since the same subject/object pair can legitimately carry more than one
// association.
type Neo4jBackend struct {
	driver   neo4j.DriverWithContext
	database string
}

func NewNeo4jBackend(ctx context.Context, uri, username, password, database string) (*Neo4jBackend, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}
	return &Neo4jBackend{driver: driver, database: database}, nil
}

func (b *Neo4jBackend) MergeNodes(ctx context.Context, nodes []Node) error {
	byLabelSet := make(map[string][]Node)
	for _, n := range nodes {
		key := labelSetKey(nodeLabels(n))
		byLabelSet[key] = append(byLabelSet[key], n)
	}

	for _, batch := range byLabelSet {
		if err := b.mergeNodeBatch(ctx, batch); err != nil {
			return err
		}
	}
	return nil
}

func (b *Neo4jBackend) mergeNodeBatch(ctx context.Context, nodes []Node) error {
	labels := nodeLabels(nodes[0])
	if len(labels) == 0 {
		return fmt.Errorf("node batch has no labels")
	}
	quoted := make([]string, len(labels))
	for i, l := range labels {
		q, err := cypherLabel(l)
		if err != nil {
			return err
		}
		quoted[i] = q
	}

	rows := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		rows[i] = map[string]any{"id": n.ID, "properties": n.Properties}
	}

	setClauses := "SET n += batch.properties"
	for _, l := range quoted[1:] {
		setClauses += fmt.Sprintf(", n:%s", l)
	}

	query := fmt.Sprintf(
		"UNWIND $batch AS batch MERGE (n:%s {id: batch.id}) ON CREATE %s",
		quoted[0], setClauses,
	)

	_, err := neo4j.ExecuteQuery(ctx, b.driver, query, map[string]any{"batch": rows},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(b.database))
	return err
}

func (b *Neo4jBackend) CreateEdges(ctx context.Context, edges []Edge) error {
	byPredicate := make(map[string][]Edge)
	for _, e := range edges {
		byPredicate[e.Predicate] = append(byPredicate[e.Predicate], e)
	}

	for predicate, batch := range byPredicate {
		relType, err := cypherRelType(predicate)
		if err != nil {
			return err
		}
		rows := make([]map[string]any, len(batch))
		for i, e := range batch {
			rows[i] = map[string]any{"from": e.FromID, "to": e.ToID, "properties": e.Properties}
		}
		query := fmt.Sprintf(
			"UNWIND $batch AS batch MATCH (from {id: batch.from}) MATCH (to {id: batch.to}) CREATE (from)-[r:%s]->(to) SET r += batch.properties",
			relType,
		)
		if _, err := neo4j.ExecuteQuery(ctx, b.driver, query, map[string]any{"batch": rows},
			neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(b.database)); err != nil {
			return err
		}
	}
	return nil
}

// DeleteProject removes every relationship tagged with project_id,
// replacing the historical string-interpolated delete query with a
// parameterized one. Nodes are left in place even when the deletion
// orphans them: nodes carry no project_id and are shared across projects.
func (b *Neo4jBackend) DeleteProject(ctx context.Context, projectID int64) error {
	query := `MATCH ()-[r {project_id: $projectID}]-() DELETE r`
	_, err := neo4j.ExecuteQuery(ctx, b.driver, query, map[string]any{"projectID": projectID},
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(b.database))
	return err
}

// CustomReadQuery runs query with params and flattens each result record
// into a plain map keyed by its declared column names.
func (b *Neo4jBackend) CustomReadQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, b.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(b.database))
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		row := make(map[string]any, len(record.Keys))
		for _, key := range record.Keys {
			value, _ := record.Get(key)
			row[key] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// CustomWriteQuery runs query with params inside one write transaction.
func (b *Neo4jBackend) CustomWriteQuery(ctx context.Context, query string, params map[string]any) error {
	_, err := neo4j.ExecuteQuery(ctx, b.driver, query, params,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(b.database))
	return err
}

func (b *Neo4jBackend) Close(ctx context.Context) error {
	return b.driver.Close(ctx)
}

func nodeLabels(n Node) []string {
	labels := make([]string, 0, len(n.ExtraLabels)+1)
	if n.Label != "" {
		labels = append(labels, n.Label)
	}
	labels = append(labels, n.ExtraLabels...)
	return labels
}

func labelSetKey(labels []string) string {
	key := ""
	for _, l := range labels {
		key += l + "\x00"
	}
	return key
}
