// Package normalizer batches calls to the node- and predicate-identity
// services with per-build memoization, grounded on the historical
// RagsNormalizer (original_source/rags_app/rags_src/rags_normalizer.py).
package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ObesityHub/robokop-rags/internal/errors"
	"github.com/ObesityHub/robokop-rags/internal/models"
	"golang.org/x/time/rate"
)

// Node is a normalized identifier: canonical id, display name, full
// synonym set, and the complete type list for the entity.
type Node struct {
	ID       string
	Name     string
	Synonyms []string
	AllTypes []string
}

// Normalizer batches and memoizes calls to the node and predicate
// identity services for the lifetime of one build.
type Normalizer struct {
	httpClient *http.Client
	limiter    *rate.Limiter

	nodeNormalizationURL string
	edgeNormalizationURL string
	defaultPredicate     string
	chunkSize             int

	cachedNodes      map[string]*Node
	cachedPredicates map[string]string

	// mu guards both caches; BuildHits shares one Normalizer between its
	// concurrent GWAS and MWAS legs.
	mu sync.Mutex
}

// New builds a Normalizer and resolves the default association predicate
// via the edge-normalization service's /versions endpoint, falling back to
// the fixed constant biolink:related_to if the bootstrap call fails.
func New(ctx context.Context, nodeURL, edgeURL string, timeout time.Duration, requestsPerSecond float64, chunkSize int) *Normalizer {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	n := &Normalizer{
		httpClient:            &http.Client{Timeout: timeout},
		limiter:               rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		nodeNormalizationURL:  nodeURL,
		edgeNormalizationURL:  edgeURL,
		defaultPredicate:      models.DefaultPredicate,
		chunkSize:             chunkSize,
		cachedNodes:           make(map[string]*Node),
		cachedPredicates:      make(map[string]string),
	}
	n.defaultPredicate = n.resolveDefaultPredicate(ctx)
	return n
}

func (n *Normalizer) resolveDefaultPredicate(ctx context.Context) string {
	base := strings.TrimSuffix(n.edgeNormalizationURL, "/resolve_predicate")
	versionsURL := base + "/versions"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, versionsURL, nil)
	if err != nil {
		return models.DefaultPredicate
	}
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return models.DefaultPredicate
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return models.DefaultPredicate
	}

	var versions []string
	if err := json.NewDecoder(resp.Body).Decode(&versions); err != nil || len(versions) < 2 {
		return models.DefaultPredicate
	}
	return versions[len(versions)-2]
}

func chunk(ids []string, size int) [][]string {
	var chunks [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[i:end])
	}
	return chunks
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

type nodeNormalizationEntry struct {
	ID struct {
		Identifier string `json:"identifier"`
		Label      string `json:"label"`
	} `json:"id"`
	EquivalentIdentifiers []struct {
		Identifier string `json:"identifier"`
		Label      string `json:"label"`
	} `json:"equivalent_identifiers"`
	Type []string `json:"type"`
}

// NormalizeNodes resolves ids against the node-identity service, batching
// uncached ids in chunks of chunkSize. Nodes already resolved earlier in
// this build are returned from the in-memory cache without a new request.
func (n *Normalizer) NormalizeNodes(ctx context.Context, ids []string) (map[string]*Node, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	toFetch := make([]string, 0, len(ids))
	for _, id := range dedupe(ids) {
		if _, ok := n.cachedNodes[id]; !ok {
			toFetch = append(toFetch, id)
		}
	}

	for _, batch := range chunk(toFetch, n.chunkSize) {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		payload, _ := json.Marshal(map[string][]string{"curies": batch})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.nodeNormalizationURL, strings.NewReader(string(payload)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.httpClient.Do(req)
		if err != nil {
			return nil, errors.NormalizationErrorf("node normalization request failed: %v", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var raw map[string]*nodeNormalizationEntry
			decodeErr := json.NewDecoder(resp.Body).Decode(&raw)
			resp.Body.Close()
			if decodeErr != nil {
				return nil, errors.NormalizationErrorf("node normalization returned malformed JSON: %v", decodeErr)
			}
			for _, id := range batch {
				entry, present := raw[id]
				if !present {
					return nil, errors.NormalizationErrorf("node normalization returned 200 but was missing an entry for %s", id)
				}
				if entry == nil {
					n.cachedNodes[id] = nil
					continue
				}
				n.cachedNodes[id] = parseNodeNormalizationEntry(entry)
			}
		case http.StatusNotFound:
			resp.Body.Close()
			for _, id := range batch {
				n.cachedNodes[id] = nil
			}
		default:
			resp.Body.Close()
			return nil, errors.NormalizationErrorf("node normalization returned status %d for %d ids", resp.StatusCode, len(batch))
		}
	}

	result := make(map[string]*Node, len(ids))
	for _, id := range ids {
		result[id] = n.cachedNodes[id]
	}
	return result, nil
}

func parseNodeNormalizationEntry(entry *nodeNormalizationEntry) *Node {
	normalizedID := entry.ID.Identifier
	name := entry.ID.Label

	synonyms := make([]string, 0, len(entry.EquivalentIdentifiers))
	for _, syn := range entry.EquivalentIdentifiers {
		synonyms = append(synonyms, syn.Identifier)
		if name == "" && syn.Label != "" {
			name = syn.Label
		}
	}
	if name == "" {
		name = curieLocalPart(normalizedID)
	}

	return &Node{
		ID:       normalizedID,
		Name:     name,
		Synonyms: synonyms,
		AllTypes: entry.Type,
	}
}

func curieLocalPart(curie string) string {
	idx := strings.Index(curie, ":")
	if idx == -1 {
		return curie
	}
	return curie[idx+1:]
}

// NormalizeEdges resolves relation predicates against the predicate
// identity service. Per spec, missing keys under HTTP 200 and HTTP 404
// both fall back to the configured default predicate rather than failing
// the batch — this deliberately diverges from the historical Python
// implementation, which raised on a missing 200-response key.
func (n *Normalizer) NormalizeEdges(ctx context.Context, predicates []string) (map[string]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	toFetch := make([]string, 0, len(predicates))
	for _, p := range dedupe(predicates) {
		if _, ok := n.cachedPredicates[p]; !ok {
			toFetch = append(toFetch, p)
		}
	}

	for _, batch := range chunk(toFetch, n.chunkSize) {
		if err := n.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		q := url.Values{}
		for _, p := range batch {
			q.Add("predicate", p)
		}
		reqURL := n.edgeNormalizationURL + "?" + q.Encode()

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := n.httpClient.Do(req)
		if err != nil {
			return nil, errors.NormalizationErrorf("edge normalization request failed: %v", err)
		}

		switch resp.StatusCode {
		case http.StatusOK:
			var raw map[string]*struct {
				Identifier string `json:"identifier"`
			}
			decodeErr := json.NewDecoder(resp.Body).Decode(&raw)
			resp.Body.Close()
			if decodeErr != nil {
				return nil, errors.NormalizationErrorf("edge normalization returned malformed JSON: %v", decodeErr)
			}
			for _, p := range batch {
				entry, present := raw[p]
				if !present || entry == nil {
					n.cachedPredicates[p] = n.defaultPredicate
					continue
				}
				n.cachedPredicates[p] = entry.Identifier
			}
		case http.StatusNotFound:
			resp.Body.Close()
			for _, p := range batch {
				n.cachedPredicates[p] = n.defaultPredicate
			}
		default:
			resp.Body.Close()
			return nil, errors.NormalizationErrorf("edge normalization returned status %d for %d predicates", resp.StatusCode, len(batch))
		}
	}

	result := make(map[string]string, len(predicates))
	for _, p := range predicates {
		result[p] = n.cachedPredicates[p]
	}
	return result, nil
}
