package project

import (
	"context"

	"github.com/ObesityHub/robokop-rags/internal/graph"
)

// fakeBackend is a graph.Backend double for this package's tests.
type fakeBackend struct {
	queryResponses map[string][]map[string]any
	mergedNodes    []graph.Node
	createdEdges   []graph.Edge
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{queryResponses: make(map[string][]map[string]any)}
}

func (f *fakeBackend) MergeNodes(ctx context.Context, nodes []graph.Node) error {
	f.mergedNodes = append(f.mergedNodes, nodes...)
	return nil
}
func (f *fakeBackend) CreateEdges(ctx context.Context, edges []graph.Edge) error {
	f.createdEdges = append(f.createdEdges, edges...)
	return nil
}
func (f *fakeBackend) DeleteProject(ctx context.Context, projectID int64) error { return nil }

func (f *fakeBackend) CustomReadQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return f.queryResponses[query], nil
}

func (f *fakeBackend) CustomWriteQuery(ctx context.Context, query string, params map[string]any) error {
	return nil
}

func (f *fakeBackend) Close(ctx context.Context) error { return nil }
