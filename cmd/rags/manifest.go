package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// projectManifest is the YAML shape `project apply` consumes: one project
// and its studies, the scripted alternative to the CSV batch format.
type projectManifest struct {
	Project string          `yaml:"project"`
	Studies []manifestStudy `yaml:"studies"`
}

type manifestStudy struct {
	StudyName    string   `yaml:"study_name"`
	StudyType    string   `yaml:"study_type"`
	TraitID      string   `yaml:"trait_id"`
	TraitType    string   `yaml:"trait_type"`
	TraitLabel   string   `yaml:"trait_label"`
	PValueCutoff float64  `yaml:"p_value_cutoff"`
	MaxPValue    *float64 `yaml:"max_p_value"`
	FilePath     string   `yaml:"file_path"`
	HasTabix     bool     `yaml:"has_tabix"`
}

func parseProjectManifest(r io.Reader) (*projectManifest, error) {
	var manifest projectManifest
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Project == "" {
		return nil, fmt.Errorf("manifest is missing a project name")
	}
	for i, s := range manifest.Studies {
		if s.StudyName == "" || s.FilePath == "" || s.TraitID == "" {
			return nil, fmt.Errorf("study %d is missing study_name, file_path, or trait_id", i+1)
		}
		if s.PValueCutoff <= 0 {
			return nil, fmt.Errorf("study %q needs a positive p_value_cutoff", s.StudyName)
		}
		kind := models.StudyKind(strings.ToUpper(s.StudyType))
		if kind != models.GWAS && kind != models.MWAS {
			return nil, fmt.Errorf("study %q has unsupported study_type %q", s.StudyName, s.StudyType)
		}
	}
	return &manifest, nil
}

func (s *manifestStudy) toStudy(projectID int64) *models.Study {
	return &models.Study{
		ProjectID:          projectID,
		StudyName:          s.StudyName,
		StudyType:          models.StudyKind(strings.ToUpper(s.StudyType)),
		FilePath:           s.FilePath,
		PValueCutoff:       s.PValueCutoff,
		MaxPValue:          s.MaxPValue,
		HasTabix:           s.HasTabix,
		OriginalTraitID:    s.TraitID,
		OriginalTraitType:  s.TraitType,
		OriginalTraitLabel: s.TraitLabel,
	}
}

var projectApplyCmd = &cobra.Command{
	Use:   "apply [manifest.yaml]",
	Short: "Create a project and register its studies from a YAML manifest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		manifest, err := parseProjectManifest(f)
		if err != nil {
			return err
		}

		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		project := &models.Project{Name: manifest.Project}
		if err := deps.store.SaveProject(cmd.Context(), project); err != nil {
			return fmt.Errorf("create project %q: %w", manifest.Project, err)
		}

		for _, s := range manifest.Studies {
			if err := deps.store.SaveStudy(cmd.Context(), s.toStudy(project.ID)); err != nil {
				return fmt.Errorf("register study %q: %w", s.StudyName, err)
			}
		}
		fmt.Printf("applied manifest: project %q (id %d), %d studies\n",
			project.Name, project.ID, len(manifest.Studies))
		return nil
	},
}
