package project

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ObesityHub/robokop-rags/internal/errors"
	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/ObesityHub/robokop-rags/internal/storage"
)

// StudyValidation is one study's read-only consistency check result.
type StudyValidation struct {
	StudyName          string
	OK                 bool
	ExpectedAssociations int
	ActualEdgeCount      int
	UnwrittenNormalizedHits int
	Messages           []string
}

// ValidationReport is the output of Validate: a diagnostic sweep that
// never mutates state, grounded on the historical RagsValidator.
type ValidationReport struct {
	OK      bool
	Studies []StudyValidation
}

const studyAssociationCountQuery = `
MATCH ()-[r {project_id: $projectID, namespace: $namespace}]->()
RETURN count(r) AS count
`

// Validate cross-checks every study's recorded num_associations against
// the graph's actual association-edge count for that study's namespace,
// and flags any hit that is normalized but not yet written — a state that
// should never survive a successful build_associations run. It never
// writes anything, to either store.
func (m *Manager) Validate(ctx context.Context, projectID int64) (*ValidationReport, error) {
	studies, err := m.Store.ListStudies(ctx, projectID)
	if err != nil {
		return nil, err
	}

	report := &ValidationReport{OK: true}
	for _, study := range studies {
		sv := StudyValidation{StudyName: study.StudyName, OK: true}
		if study.NumAssociations != nil {
			sv.ExpectedAssociations = *study.NumAssociations
		}

		rows, err := m.GraphBackend.CustomReadQuery(ctx, studyAssociationCountQuery,
			map[string]any{"projectID": projectID, "namespace": study.StudyName})
		if err != nil {
			return nil, errors.NewGraphDBConnectionError(err)
		}
		if len(rows) > 0 {
			sv.ActualEdgeCount = toInt(rows[0]["count"])
		}
		if sv.ActualEdgeCount != sv.ExpectedAssociations {
			sv.OK = false
			sv.Messages = append(sv.Messages, fmt.Sprintf(
				"expected %d association edges, graph has %d", sv.ExpectedAssociations, sv.ActualEdgeCount))
		}

		unwritten, err := m.countUnwrittenNormalizedHits(ctx, study)
		if err != nil {
			return nil, err
		}
		sv.UnwrittenNormalizedHits = unwritten
		if unwritten > 0 {
			sv.OK = false
			sv.Messages = append(sv.Messages, fmt.Sprintf("%d normalized hit(s) never written", unwritten))
		}

		if !sv.OK {
			report.OK = false
		}
		report.Studies = append(report.Studies, sv)
	}

	return report, nil
}

func (m *Manager) countUnwrittenNormalizedHits(ctx context.Context, study *models.Study) (int, error) {
	bh, err := behaviorFor(study.StudyType)
	if err != nil {
		return 0, err
	}
	return bh.countUnwrittenNormalizedHits(m, ctx, study)
}

func (m *Manager) countUnwrittenNormalizedGWASHits(ctx context.Context, study *models.Study) (int, error) {
	hits, err := m.Store.ListGWASHits(ctx, study.ID, storage.AllHits)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, h := range hits {
		if h.Normalized && !h.Written {
			count++
		}
	}
	return count, nil
}

func (m *Manager) countUnwrittenNormalizedMWASHits(ctx context.Context, study *models.Study) (int, error) {
	hits, err := m.Store.ListMWASHits(ctx, study.ID, storage.AllHits)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, h := range hits {
		if h.Normalized && !h.Written {
			count++
		}
	}
	return count, nil
}

func toInt(v any) int {
	switch t := v.(type) {
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

// csvBatchColumns is the fixed column order of the study-upload batch
// format.
var csvBatchColumns = []string{
	"study_name", "study_type", "trait_id", "trait_type", "trait_label",
	"p_value_threshold", "max_p_value", "file_path", "has_tabix",
}

// CreateStudiesFromCSV parses the study-upload batch format (header row
// required, columns per csvBatchColumns though max_p_value and has_tabix
// are optional) and creates one study per row via Store.SaveStudy. This
// is the Go equivalent of the historical app's upload route minus the
// HTTP/file-upload plumbing.
func (m *Manager) CreateStudiesFromCSV(ctx context.Context, projectID int64, r io.Reader) ([]*models.Study, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"study_name", "study_type", "trait_id", "trait_type", "trait_label", "p_value_threshold", "file_path"} {
		if _, ok := idx[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	col := func(record []string, name string) string {
		i, ok := idx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var studies []*models.Study
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return studies, fmt.Errorf("read row %d: %w", len(studies)+1, err)
		}

		cutoff, err := strconv.ParseFloat(col(record, "p_value_threshold"), 64)
		if err != nil {
			return studies, fmt.Errorf("row %d: invalid p_value_threshold: %w", len(studies)+1, err)
		}

		study := &models.Study{
			ProjectID:          projectID,
			StudyName:          col(record, "study_name"),
			StudyType:          models.StudyKind(strings.ToUpper(col(record, "study_type"))),
			FilePath:           col(record, "file_path"),
			PValueCutoff:       cutoff,
			OriginalTraitID:    col(record, "trait_id"),
			OriginalTraitType:  col(record, "trait_type"),
			OriginalTraitLabel: col(record, "trait_label"),
		}

		if raw := col(record, "max_p_value"); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				study.MaxPValue = &v
			}
		}
		if raw := col(record, "has_tabix"); raw != "" {
			if v, err := strconv.ParseBool(raw); err == nil {
				study.HasTabix = v
			}
		}

		if err := m.Store.SaveStudy(ctx, study); err != nil {
			return studies, fmt.Errorf("row %d: %w", len(studies)+1, err)
		}
		studies = append(studies, study)
	}

	return studies, nil
}
