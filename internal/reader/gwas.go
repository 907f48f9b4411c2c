package reader

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/klauspost/pgzip"
)

var (
	chromAliases = []string{"chrom", "chr", "chromosome"}
	posAliases   = []string{"pos", "position"}
	refAliases   = []string{"ref"}
	altAliases   = []string{"alt"}
	pValAliases  = []string{"pvalue", "pval", "p_value", "p_val"}
	betaAliases  = []string{"beta"}
)

// BadHeadersError is returned when a GWAS file's header row is missing one
// of the six required columns.
type BadHeadersError struct {
	FilePath string
	Observed []string
}

func (e *BadHeadersError) Error() string {
	return fmt.Sprintf("bad file headers in %s: %v", e.FilePath, e.Observed)
}

// FindHitsResult is the uniform result of a significant-hit scan.
type FindHitsResult struct {
	Success      bool
	HitCount     int
	ErrorMessage string
}

type gwasColumns struct {
	chrom, pos, ref, alt, pVal, beta int
}

func findAliasIndex(headers []string, aliases []string) (int, bool) {
	for _, alias := range aliases {
		for i, h := range headers {
			if h == alias {
				return i, true
			}
		}
	}
	return 0, false
}

func parseGWASHeaders(filePath string, headerLine string) (gwasColumns, error) {
	fields := strings.Fields(headerLine)
	headers := make([]string, len(fields))
	for i, f := range fields {
		headers[i] = strings.ToLower(f)
	}

	var cols gwasColumns
	var ok bool

	if cols.chrom, ok = findAliasIndex(headers, chromAliases); !ok {
		return cols, &BadHeadersError{FilePath: filePath, Observed: headers}
	}
	if cols.pos, ok = findAliasIndex(headers, posAliases); !ok {
		return cols, &BadHeadersError{FilePath: filePath, Observed: headers}
	}
	if cols.ref, ok = findAliasIndex(headers, refAliases); !ok {
		return cols, &BadHeadersError{FilePath: filePath, Observed: headers}
	}
	if cols.alt, ok = findAliasIndex(headers, altAliases); !ok {
		return cols, &BadHeadersError{FilePath: filePath, Observed: headers}
	}
	if cols.pVal, ok = findAliasIndex(headers, pValAliases); !ok {
		return cols, &BadHeadersError{FilePath: filePath, Observed: headers}
	}
	if cols.beta, ok = findAliasIndex(headers, betaAliases); !ok {
		return cols, &BadHeadersError{FilePath: filePath, Observed: headers}
	}
	return cols, nil
}

// GWASFileReader reads a GWAS association-study file: plain or gzip text,
// whitespace-separated, with optional tabix random access for point
// lookups during build_associations.
type GWASFileReader struct {
	FilePath        string
	HasTabix        bool
	ReferenceGenome ReferenceGenome
	ReferencePatch  string

	cols        gwasColumns
	initialized bool
}

func NewGWASFileReader(filePath string, hasTabix bool, genome ReferenceGenome, patch string) *GWASFileReader {
	return &GWASFileReader{
		FilePath:        filePath,
		HasTabix:        hasTabix,
		ReferenceGenome: genome,
		ReferencePatch:  patch,
	}
}

func (r *GWASFileReader) openTextStream() (*bufio.Scanner, func() error, error) {
	f, err := os.Open(r.FilePath)
	if err != nil {
		return nil, nil, err
	}
	if strings.HasSuffix(r.FilePath, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, nil, err
		}
		scanner := bufio.NewScanner(gz)
		scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
		return scanner, func() error { gz.Close(); return f.Close() }, nil
	}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1024*1024), 16*1024*1024)
	return scanner, f.Close, nil
}

// FindSignificantHits streams the file once, parsing every row's p-value
// and collecting rows at or below cutoff into a SequenceVariantContainer.
// Row-level parse errors are skipped, never fatal; only a file that cannot
// be opened, is empty, or lacks a required header fails the whole scan.
func (r *GWASFileReader) FindSignificantHits(cutoff float64) (*FindHitsResult, *SequenceVariantContainer, error) {
	scanner, closeFn, err := r.openTextStream()
	if err != nil {
		return &FindHitsResult{Success: false, ErrorMessage: err.Error()}, nil, nil
	}
	defer closeFn()

	if !scanner.Scan() {
		return &FindHitsResult{Success: false, ErrorMessage: "empty file"}, nil, nil
	}
	cols, err := parseGWASHeaders(r.FilePath, scanner.Text())
	if err != nil {
		return &FindHitsResult{Success: false, ErrorMessage: err.Error()}, nil, err
	}
	r.cols = cols
	r.initialized = true

	container := NewSequenceVariantContainer()
	found, failedConversion, lineNo := 0, 0, 0

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(scanner.Text())
		if len(fields) <= r.cols.pVal || len(fields) <= r.cols.chrom || len(fields) <= r.cols.pos ||
			len(fields) <= r.cols.ref || len(fields) <= r.cols.alt {
			continue
		}
		pValue, err := strconv.ParseFloat(fields[r.cols.pVal], 64)
		if err != nil {
			continue
		}
		if pValue > cutoff {
			continue
		}
		chrom := fields[r.cols.chrom]
		pos, err := strconv.Atoi(fields[r.cols.pos])
		if err != nil {
			continue
		}
		ref := fields[r.cols.ref]
		alt := fields[r.cols.alt]

		hgvs := ConvertVCFToHGVS(r.ReferenceGenome, r.ReferencePatch, chrom, pos, ref, alt)
		if hgvs == "" {
			failedConversion++
			continue
		}
		hit := &models.GWASHit{HGVS: hgvs, Chrom: chrom, Pos: pos, Ref: ref, Alt: alt}
		hit.OriginalID = hgvs
		hit.OriginalName = hgvs
		container.Add(hit)
		found++
	}

	return &FindHitsResult{Success: true, HitCount: found}, container, nil
}

// ensureColumns reads just the header line to resolve column indices,
// for readers used only for point lookups.
func (r *GWASFileReader) ensureColumns() error {
	if r.initialized {
		return nil
	}
	scanner, closeFn, err := r.openTextStream()
	if err != nil {
		return err
	}
	defer closeFn()
	if !scanner.Scan() {
		return fmt.Errorf("empty file %s", r.FilePath)
	}
	cols, err := parseGWASHeaders(r.FilePath, scanner.Text())
	if err != nil {
		return err
	}
	r.cols = cols
	r.initialized = true
	return nil
}

// GetAssociation retrieves (p_value, beta) for one previously-found hit,
// via tabix range query when HasTabix, else a linear text rescan.
func (r *GWASFileReader) GetAssociation(hit *models.GWASHit) (*models.Association, error) {
	if err := r.ensureColumns(); err != nil {
		return nil, err
	}

	var fields []string
	var err error
	if r.HasTabix {
		fields, err = r.getAssociationIndexed(hit)
	} else {
		fields, err = r.getAssociationText(hit)
	}
	if err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, nil
	}

	pValue, err := strconv.ParseFloat(fields[r.cols.pVal], 64)
	if err != nil {
		return nil, nil
	}
	if pValue == 0 {
		pValue = math.SmallestNonzeroFloat64
	}
	beta, err := strconv.ParseFloat(fields[r.cols.beta], 64)
	if err != nil {
		return nil, nil
	}
	return &models.Association{PValue: pValue, Beta: beta}, nil
}

func (r *GWASFileReader) getAssociationText(hit *models.GWASHit) ([]string, error) {
	scanner, closeFn, err := r.openTextStream()
	if err != nil {
		return nil, err
	}
	defer closeFn()

	if !scanner.Scan() {
		return nil, nil
	}
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) <= r.cols.alt {
			continue
		}
		if fields[r.cols.chrom] == hit.Chrom &&
			fields[r.cols.alt] == hit.Alt &&
			fields[r.cols.ref] == hit.Ref {
			pos, err := strconv.Atoi(fields[r.cols.pos])
			if err == nil && pos == hit.Pos {
				return fields, nil
			}
		}
	}
	return nil, nil
}

// getAssociationIndexed performs a tabix range query (pos-1, pos) against
// the bgzip-compressed, position-sorted file and returns the first row
// at hit.Pos whose ref/alt match exactly. Grounded on github.com/biogo/hts/tabix,
// wired because it is the Go equivalent of the original pytabix binding.
func (r *GWASFileReader) getAssociationIndexed(hit *models.GWASHit) ([]string, error) {
	records, err := queryTabix(r.FilePath, hit.Chrom, hit.Pos-1, hit.Pos)
	if err != nil {
		return nil, err
	}
	for _, line := range records {
		fields := strings.Fields(line)
		if len(fields) <= r.cols.alt || len(fields) <= r.cols.pos {
			continue
		}
		if fields[r.cols.alt] == hit.Alt && fields[r.cols.ref] == hit.Ref {
			if pos, err := strconv.Atoi(fields[r.cols.pos]); err == nil && pos == hit.Pos {
				return fields, nil
			}
		}
	}
	return nil, nil
}
