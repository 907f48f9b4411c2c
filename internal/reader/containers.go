package reader

import "github.com/ObesityHub/robokop-rags/internal/models"

// HitContainer is the shared iteration contract for the two hit
// containers: sequence variants (multi-allelic tolerant) and metabolites
// (deduplicated by original id). Iteration order is unspecified but
// deterministic within one process execution.
type HitContainer interface {
	HitCount() int
	Iterate() []any
}

// SequenceVariantContainer buckets GWASHits by chrom -> pos, tolerating
// multiple alleles at the same position.
type SequenceVariantContainer struct {
	byChromPos map[string]map[int][]*models.GWASHit
	order      []*models.GWASHit
}

func NewSequenceVariantContainer() *SequenceVariantContainer {
	return &SequenceVariantContainer{byChromPos: make(map[string]map[int][]*models.GWASHit)}
}

func (c *SequenceVariantContainer) Add(hit *models.GWASHit) {
	byPos, ok := c.byChromPos[hit.Chrom]
	if !ok {
		byPos = make(map[int][]*models.GWASHit)
		c.byChromPos[hit.Chrom] = byPos
	}
	byPos[hit.Pos] = append(byPos[hit.Pos], hit)
	c.order = append(c.order, hit)
}

// Get returns the variant at (chrom, pos) matching ref/alt exactly, or nil.
func (c *SequenceVariantContainer) Get(chrom string, pos int, ref, alt string) *models.GWASHit {
	byPos, ok := c.byChromPos[chrom]
	if !ok {
		return nil
	}
	for _, v := range byPos[pos] {
		if v.Ref == ref && v.Alt == alt {
			return v
		}
	}
	return nil
}

func (c *SequenceVariantContainer) HitCount() int {
	return len(c.order)
}

func (c *SequenceVariantContainer) Hits() []*models.GWASHit {
	return c.order
}

func (c *SequenceVariantContainer) Iterate() []any {
	out := make([]any, len(c.order))
	for i, h := range c.order {
		out[i] = h
	}
	return out
}

// MetaboliteContainer is a map keyed by original_id, naturally
// deduplicating repeated rows for the same metabolite.
type MetaboliteContainer struct {
	byOriginalID map[string]*models.MWASHit
	order        []string
}

func NewMetaboliteContainer() *MetaboliteContainer {
	return &MetaboliteContainer{byOriginalID: make(map[string]*models.MWASHit)}
}

func (c *MetaboliteContainer) Add(hit *models.MWASHit) {
	if _, exists := c.byOriginalID[hit.OriginalID]; !exists {
		c.order = append(c.order, hit.OriginalID)
	}
	c.byOriginalID[hit.OriginalID] = hit
}

func (c *MetaboliteContainer) HitCount() int {
	return len(c.order)
}

func (c *MetaboliteContainer) Hits() []*models.MWASHit {
	out := make([]*models.MWASHit, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byOriginalID[id])
	}
	return out
}

func (c *MetaboliteContainer) Iterate() []any {
	out := make([]any, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byOriginalID[id])
	}
	return out
}
