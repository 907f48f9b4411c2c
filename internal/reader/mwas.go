package reader

import (
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ObesityHub/robokop-rags/internal/models"
)

// MWASFileReader reads a metabolome-wide-association CSV file: header row
// required, columns curie/label/pval*/beta?.
type MWASFileReader struct {
	FilePath string

	curieIdx, labelIdx, pValIdx, betaIdx int
	hasBeta                              bool
}

func NewMWASFileReader(filePath string) *MWASFileReader {
	return &MWASFileReader{FilePath: filePath}
}

func (r *MWASFileReader) parseHeaders(headers []string) error {
	r.curieIdx, r.labelIdx, r.pValIdx = -1, -1, -1
	for i, h := range headers {
		lower := strings.ToLower(h)
		switch {
		case h == "curie":
			r.curieIdx = i
		case h == "label":
			r.labelIdx = i
		case strings.Contains(lower, "pval") || strings.Contains(lower, "pvalue"):
			r.pValIdx = i
		case strings.Contains(lower, "beta"):
			r.betaIdx = i
			r.hasBeta = true
		}
	}
	if r.curieIdx == -1 || r.labelIdx == -1 || r.pValIdx == -1 {
		return &BadHeadersError{FilePath: r.FilePath, Observed: headers}
	}
	return nil
}

// FindSignificantHits streams the CSV once, collecting rows at or below
// cutoff into a MetaboliteContainer keyed (and deduplicated) by curie.
func (r *MWASFileReader) FindSignificantHits(cutoff float64) (*FindHitsResult, *MetaboliteContainer, error) {
	f, err := os.Open(r.FilePath)
	if err != nil {
		return &FindHitsResult{Success: false, ErrorMessage: err.Error()}, nil, nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return &FindHitsResult{Success: false, ErrorMessage: "could not read headers"}, nil, nil
	}
	if err := r.parseHeaders(headers); err != nil {
		return &FindHitsResult{Success: false, ErrorMessage: err.Error()}, nil, err
	}

	container := NewMetaboliteContainer()
	found := 0
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if r.pValIdx >= len(record) || r.curieIdx >= len(record) || r.labelIdx >= len(record) {
			continue
		}
		pValue, err := strconv.ParseFloat(record[r.pValIdx], 64)
		if err != nil {
			continue
		}
		if pValue > cutoff {
			continue
		}
		hit := &models.MWASHit{}
		hit.OriginalID = record[r.curieIdx]
		hit.OriginalName = record[r.labelIdx]
		container.Add(hit)
		found++
	}

	return &FindHitsResult{Success: true, HitCount: found}, container, nil
}

// GetAssociation re-scans the CSV linearly for the row matching the hit's
// original curie.
func (r *MWASFileReader) GetAssociation(hit *models.MWASHit) (*models.Association, error) {
	f, err := os.Open(r.FilePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	if r.curieIdx == 0 && r.labelIdx == 0 && r.pValIdx == 0 {
		if err := r.parseHeaders(headers); err != nil {
			return nil, err
		}
	}

	for {
		record, err := reader.Read()
		if err != nil {
			return nil, nil
		}
		if r.curieIdx >= len(record) {
			continue
		}
		if record[r.curieIdx] != hit.OriginalID {
			continue
		}
		pValue, err := strconv.ParseFloat(record[r.pValIdx], 64)
		if err != nil {
			return nil, nil
		}
		if pValue == 0 {
			pValue = math.SmallestNonzeroFloat64
		}
		var beta float64
		if r.hasBeta && r.betaIdx < len(record) {
			beta, _ = strconv.ParseFloat(record[r.betaIdx], 64)
		}
		return &models.Association{PValue: pValue, Beta: beta}, nil
	}
}
