package graph

import "context"

// Backend defines the interface for property-graph operations. Neo4jBackend
// is the only implementation, but tests substitute a fake that records
// calls without a live database.
type Backend interface {
	// MergeNodes upserts nodes by id in one UNWIND batch per distinct
	// label set: absent nodes are created with their labels and
	// properties, existing ones are left untouched. Matches the
	// historical MERGE ... ON CREATE SET semantics.
	MergeNodes(ctx context.Context, nodes []Node) error

	// CreateEdges creates edges in one UNWIND batch per predicate. Every
	// edge is created, even if an equivalent one already exists between
	// the same two nodes; duplicate-edge prevention, when wanted, is the
	// caller's responsibility (see graph.Writer).
	CreateEdges(ctx context.Context, edges []Edge) error

	// DeleteProject removes every edge tagged with the given project id.
	// Nodes are not deleted, even when no edges remain on them.
	DeleteProject(ctx context.Context, projectID int64) error

	// CustomReadQuery runs a parameterized, read-only Cypher query and
	// returns each record as a property map. Used by the annotation phase
	// to find variant nodes that still need gene annotations; callers are
	// responsible for query correctness since this bypasses the typed
	// upsert surface.
	CustomReadQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)

	// CustomWriteQuery runs a parameterized write query, for operational
	// tooling that needs more than the typed upsert surface.
	CustomWriteQuery(ctx context.Context, query string, params map[string]any) error

	Close(ctx context.Context) error
}

// Node is a labeled property-graph node. Label is the root entity type
// (the builder always sets models.RootEntity); ExtraLabels holds the
// other biolink types from normalization's all_types ("biolink:Gene",
// "biolink:SequenceVariant", ...).
type Node struct {
	ID         string
	Label      string
	ExtraLabels []string
	Properties map[string]any
}

// Edge is a directed, labeled property-graph relationship.
type Edge struct {
	Predicate  string
	FromID     string
	ToID       string
	Properties map[string]any
}
