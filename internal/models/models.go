// Package models holds the domain types shared across the build pipeline:
// projects, studies, hits, errors, and the graph node/edge shapes written
// to the property-graph store.
package models

import "time"

// Biolink-ish type constants used as node/edge classification labels.
const (
	RootEntity           = "biolink:NamedThing"
	ChemicalSubstance    = "biolink:ChemicalSubstance"
	Disease              = "biolink:Disease"
	Gene                 = "biolink:Gene"
	PhenotypicFeature    = "biolink:PhenotypicFeature"
	SequenceVariant      = "biolink:SequenceVariant"
	AssociationRelation  = "RO:0002610"
	DefaultPredicate     = "biolink:related_to"
	IntergenicPredicate  = "GAMMA:0000102"
	SnpEffPredicatePrefx = "SNPEFF:"
)

// RagsTraitTypes are the valid original_trait_type values for a study.
var RagsTraitTypes = []string{ChemicalSubstance, Disease, PhenotypicFeature}

// StudyKind is the closed set of study types this pipeline understands.
// Dispatch on it goes through kind-indexed tables (the project manager's
// studyBehaviors, the stores' hitTables), resolved once per study rather
// than by string comparison at each call site.
type StudyKind string

const (
	GWAS StudyKind = "GWAS"
	MWAS StudyKind = "MWAS"
)

// ErrorKind is the closed taxonomy of per-study error categories.
type ErrorKind int

const (
	ErrorSearching ErrorKind = 40001
	ErrorBuilding  ErrorKind = 40002
	ErrorNormalization ErrorKind = 40003
)

func (k ErrorKind) String() string {
	switch k {
	case ErrorSearching:
		return "SEARCHING"
	case ErrorBuilding:
		return "BUILDING"
	case ErrorNormalization:
		return "NORMALIZATION"
	default:
		return "UNKNOWN"
	}
}

// Project is a named build namespace. Every graph edge produced while
// building it carries its id, enabling scoped deletion.
type Project struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Study is one association-study file registered under a project.
type Study struct {
	ID     int64     `json:"id" db:"id"`
	ProjectID int64  `json:"project_id" db:"project_id"`
	StudyName string `json:"study_name" db:"study_name"`
	StudyType StudyKind `json:"study_type" db:"study_type"`
	FilePath  string  `json:"file_path" db:"file_path"`
	PValueCutoff float64 `json:"p_value_cutoff" db:"p_value_cutoff"`
	MaxPValue    *float64 `json:"max_p_value,omitempty" db:"max_p_value"`
	HasTabix     bool     `json:"has_tabix" db:"has_tabix"`

	OriginalTraitID    string `json:"original_trait_id" db:"original_trait_id"`
	OriginalTraitType  string `json:"original_trait_type" db:"original_trait_type"`
	OriginalTraitLabel string `json:"original_trait_label" db:"original_trait_label"`
	NormalizedTraitID    *string `json:"normalized_trait_id,omitempty" db:"normalized_trait_id"`
	NormalizedTraitLabel *string `json:"normalized_trait_label,omitempty" db:"normalized_trait_label"`

	TraitNormalized bool `json:"trait_normalized" db:"trait_normalized"`
	Searched        bool `json:"searched" db:"searched"`
	Written         bool `json:"written" db:"written"`

	NumHits         *int `json:"num_hits,omitempty" db:"num_hits"`
	NumAssociations *int `json:"num_associations,omitempty" db:"num_associations"`
}

// Hit is the common shape shared by GWASHit and MWASHit.
type Hit struct {
	ID           int64  `json:"id" db:"id"`
	ProjectID    int64  `json:"project_id" db:"project_id"`
	StudyID      int64  `json:"study_id" db:"study_id"`
	OriginalID   string `json:"original_id" db:"original_id"`
	OriginalName string `json:"original_name" db:"original_name"`
	Normalized   bool   `json:"normalized" db:"normalized"`
	NormalizedID   *string `json:"normalized_id,omitempty" db:"normalized_id"`
	NormalizedName *string `json:"normalized_name,omitempty" db:"normalized_name"`
	Written      bool   `json:"written" db:"written"`
}

// ResolvedNodeID returns the node id this hit should be written/matched
// under: its normalized id if present, otherwise its original id.
func (h *Hit) ResolvedNodeID() string {
	if h.NormalizedID != nil && *h.NormalizedID != "" {
		return *h.NormalizedID
	}
	return h.OriginalID
}

// GWASHit is a single-nucleotide/indel variant significant hit.
type GWASHit struct {
	Hit
	HGVS  string `json:"hgvs" db:"hgvs"`
	Chrom string `json:"chrom" db:"chrom"`
	Pos   int    `json:"pos" db:"pos"`
	Ref   string `json:"ref" db:"ref"`
	Alt   string `json:"alt" db:"alt"`
}

// MWASHit is a significant metabolite hit; it carries no extra fields
// beyond the common Hit shape.
type MWASHit struct {
	Hit
}

// StudyError is a recorded failure for one study/phase pairing.
type StudyError struct {
	ID           int64     `json:"id" db:"id"`
	StudyID      int64     `json:"study_id" db:"study_id"`
	ErrorType    ErrorKind `json:"error_type" db:"error_type"`
	ErrorMessage string    `json:"error_message" db:"error_message"`
}

// Association is the (p_value, beta) pair returned by a file reader's
// point-lookup for one hit.
type Association struct {
	PValue float64
	Beta   float64
}

// GraphNode is a property-graph node pending or already written.
type GraphNode struct {
	ID         string
	Name       string
	AllTypes   []string
	Synonyms   []string
	Properties map[string]any
}

// GraphEdge is a property-graph edge pending or already written.
type GraphEdge struct {
	SubjectID        string
	ObjectID         string
	OriginalObjectID string
	Predicate        string
	Relation         string
	ProvidedBy       string
	Namespace        string
	ProjectID        int64
	ProjectName      string
	Properties       map[string]any
}

// Key returns the edge's dedup identity for a single build:
// (subject_id, object_id, original_object_id, predicate, namespace).
// project_id is deliberately excluded — edges with the same key but a
// different project_id are always distinct.
func (e *GraphEdge) Key() string {
	return e.SubjectID + "\x00" + e.ObjectID + "\x00" + e.OriginalObjectID + "\x00" + e.Predicate + "\x00" + e.Namespace
}

// PhaseResult is the uniform return shape for every Project Manager
// operation.
type PhaseResult struct {
	Success        bool     `json:"success"`
	SuccessMessage string   `json:"success_message"`
	Warnings       []string `json:"warnings,omitempty"`
	Errors         []string `json:"errors,omitempty"`
}

// now is a small seam so callers/tests can stamp ctime deterministically
// if ever needed; production code just calls time.Now().
var now = time.Now

// Ctime returns the current time as the time.Time value that association
// edge properties store.
func Ctime() time.Time {
	return now()
}
