package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mergedBatches [][]Node
	createdBatches [][]Edge
}

func (f *fakeBackend) MergeNodes(ctx context.Context, nodes []Node) error {
	f.mergedBatches = append(f.mergedBatches, nodes)
	return nil
}
func (f *fakeBackend) CreateEdges(ctx context.Context, edges []Edge) error {
	f.createdBatches = append(f.createdBatches, edges)
	return nil
}
func (f *fakeBackend) DeleteProject(ctx context.Context, projectID int64) error { return nil }
func (f *fakeBackend) CustomReadQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}
func (f *fakeBackend) CustomWriteQuery(ctx context.Context, query string, params map[string]any) error {
	return nil
}
func (f *fakeBackend) Close(ctx context.Context) error { return nil }

func TestWriterFlushesAtThreshold(t *testing.T) {
	backend := &fakeBackend{}
	w := NewWriter(backend, 2)
	ctx := context.Background()

	require.NoError(t, w.WriteNode(ctx, Node{ID: "a", Label: "Gene"}))
	require.NoError(t, w.WriteNode(ctx, Node{ID: "b", Label: "Gene"}))

	require.Len(t, backend.mergedBatches, 1)
	assert.Len(t, backend.mergedBatches[0], 2)
}

func TestWriterSkipsAlreadyWrittenNode(t *testing.T) {
	backend := &fakeBackend{}
	w := NewWriter(backend, 10)
	ctx := context.Background()

	require.NoError(t, w.WriteNode(ctx, Node{ID: "a", Label: "Gene"}))
	require.NoError(t, w.WriteNode(ctx, Node{ID: "a", Label: "Gene"}))
	require.NoError(t, w.Flush(ctx))

	require.Len(t, backend.mergedBatches, 1)
	assert.Len(t, backend.mergedBatches[0], 1)
}

func TestWriterDoesNotDedupeEdges(t *testing.T) {
	backend := &fakeBackend{}
	w := NewWriter(backend, 10)
	ctx := context.Background()

	edge := Edge{FromID: "a", ToID: "b", Predicate: "biolink:related_to"}
	require.NoError(t, w.WriteEdge(ctx, edge))
	require.NoError(t, w.WriteEdge(ctx, edge))
	require.NoError(t, w.Flush(ctx))

	require.Len(t, backend.createdBatches, 1)
	assert.Len(t, backend.createdBatches[0], 2)
}

func TestWriterFlushIsIdempotentWhenEmpty(t *testing.T) {
	backend := &fakeBackend{}
	w := NewWriter(backend, 10)
	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, backend.mergedBatches)
	assert.Empty(t, backend.createdBatches)
}
