package graph

import "context"

const (
	// DefaultFlushThreshold is the per-label/per-predicate queue size at
	// which Writer auto-flushes, overriding the historical implementation's
	// buffer size of 100.
	DefaultFlushThreshold = 10000

	// writtenSetClearAbove bounds the memory held by the in-process
	// already-written node set; once it grows past this the set is
	// cleared and a node already MERGEd earlier in the run may be
	// re-sent, which is harmless since node merges are idempotent.
	writtenSetClearAbove = 100000
)

// Writer batches node and edge writes per label/predicate and flushes to
// the backend once a queue crosses FlushThreshold, grounded structurally
// on the historical BufferedWriter. Unlike that implementation, Writer
// does not deduplicate edges - every WriteEdge call reaches the backend,
// since a subject/object pair can legitimately carry more than one
// association.
type Writer struct {
	backend        Backend
	FlushThreshold int

	nodeQueues map[string][]Node
	edgeQueues map[string][]Edge

	writtenNodes map[string]bool
}

func NewWriter(backend Backend, flushThreshold int) *Writer {
	if flushThreshold <= 0 {
		flushThreshold = DefaultFlushThreshold
	}
	return &Writer{
		backend:        backend,
		FlushThreshold: flushThreshold,
		nodeQueues:     make(map[string][]Node),
		edgeQueues:     make(map[string][]Edge),
		writtenNodes:   make(map[string]bool),
	}
}

// WriteNode queues a node for batched merge, skipping nodes already merged
// earlier in this writer's lifetime.
func (w *Writer) WriteNode(ctx context.Context, node Node) error {
	if w.writtenNodes[node.ID] {
		return nil
	}
	w.writtenNodes[node.ID] = true
	if len(w.writtenNodes) > writtenSetClearAbove {
		w.writtenNodes = make(map[string]bool)
		w.writtenNodes[node.ID] = true
	}

	key := labelSetKey(nodeLabels(node))
	w.nodeQueues[key] = append(w.nodeQueues[key], node)
	if len(w.nodeQueues[key]) >= w.FlushThreshold {
		return w.flushNodeQueue(ctx, key)
	}
	return nil
}

// WriteEdge queues an edge for batched creation. Edges are never
// deduplicated, matching spec's simpler duplicate-preserving semantics.
func (w *Writer) WriteEdge(ctx context.Context, edge Edge) error {
	w.edgeQueues[edge.Predicate] = append(w.edgeQueues[edge.Predicate], edge)
	if len(w.edgeQueues[edge.Predicate]) >= w.FlushThreshold {
		return w.flushEdgeQueue(ctx, edge.Predicate)
	}
	return nil
}

func (w *Writer) flushNodeQueue(ctx context.Context, key string) error {
	batch := w.nodeQueues[key]
	if len(batch) == 0 {
		return nil
	}
	delete(w.nodeQueues, key)
	return w.backend.MergeNodes(ctx, batch)
}

func (w *Writer) flushEdgeQueue(ctx context.Context, predicate string) error {
	batch := w.edgeQueues[predicate]
	if len(batch) == 0 {
		return nil
	}
	delete(w.edgeQueues, predicate)
	return w.backend.CreateEdges(ctx, batch)
}

// Flush pushes every remaining queued node and edge to the backend.
func (w *Writer) Flush(ctx context.Context) error {
	for key := range w.nodeQueues {
		if err := w.flushNodeQueue(ctx, key); err != nil {
			return err
		}
	}
	for predicate := range w.edgeQueues {
		if err := w.flushEdgeQueue(ctx, predicate); err != nil {
			return err
		}
	}
	return nil
}
