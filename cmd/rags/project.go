package main

import (
	"fmt"
	"os"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage RAGS projects and their registered studies",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Register a new project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		project := &models.Project{Name: args[0]}
		if err := deps.store.SaveProject(cmd.Context(), project); err != nil {
			return fmt.Errorf("create project: %w", err)
		}
		fmt.Printf("created project %q (id %d)\n", project.Name, project.ID)
		return nil
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every registered project",
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		projects, err := deps.store.ListProjects(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range projects {
			fmt.Printf("%d\t%s\n", p.ID, p.Name)
		}
		return nil
	},
}

var projectImportCmd = &cobra.Command{
	Use:   "import-studies [project-name] [csv-file]",
	Short: "Register studies from a CSV batch file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		project, err := deps.store.GetProjectByName(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("lookup project %q: %w", args[0], err)
		}

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		studies, err := deps.manager.CreateStudiesFromCSV(cmd.Context(), project.ID, f)
		if err != nil {
			return err
		}
		fmt.Printf("registered %d studies for project %q\n", len(studies), project.Name)
		return nil
	},
}

var projectDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a project and cascade to its studies, hits, errors, and graph edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		project, err := deps.store.GetProjectByName(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("lookup project %q: %w", args[0], err)
		}

		if err := deps.backend.DeleteProject(cmd.Context(), project.ID); err != nil {
			return fmt.Errorf("delete graph edges: %w", err)
		}
		if err := deps.store.DeleteProject(cmd.Context(), project.ID); err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		fmt.Printf("deleted project %q (id %d)\n", project.Name, project.ID)
		return nil
	},
}

var projectStatusCmd = &cobra.Command{
	Use:   "status [name]",
	Short: "Print each study's lifecycle flags and open errors",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		project, err := deps.store.GetProjectByName(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("lookup project %q: %w", args[0], err)
		}

		studies, err := deps.store.ListStudies(cmd.Context(), project.ID)
		if err != nil {
			return err
		}
		for _, s := range studies {
			numHits, numAssociations := 0, 0
			if s.NumHits != nil {
				numHits = *s.NumHits
			}
			if s.NumAssociations != nil {
				numAssociations = *s.NumAssociations
			}
			fmt.Printf("study %d %q: trait_normalized=%t searched=%t written=%t num_hits=%d num_associations=%d\n",
				s.ID, s.StudyName, s.TraitNormalized, s.Searched, s.Written, numHits, numAssociations)
			errs, err := deps.store.ListStudyErrors(cmd.Context(), s.ID)
			if err != nil {
				return err
			}
			for _, e := range errs {
				fmt.Printf("  error[%s]: %s\n", e.ErrorType, e.ErrorMessage)
			}
		}
		return nil
	},
}

func init() {
	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectImportCmd)
	projectCmd.AddCommand(projectApplyCmd)
	projectCmd.AddCommand(projectDeleteCmd)
	projectCmd.AddCommand(projectStatusCmd)
}
