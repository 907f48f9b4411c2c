package main

import (
	"fmt"
	"strconv"

	"github.com/ObesityHub/robokop-rags/internal/models"
	"github.com/spf13/cobra"
)

var forceFlag bool

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Run the project-manager build phases: traits, studies, hits, associations, annotations",
}

func printResult(phase string, result *models.PhaseResult) {
	fmt.Printf("%s: %s\n", phase, result.SuccessMessage)
	for _, w := range result.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
}

func projectIDArg(args []string) (int64, error) {
	return strconv.ParseInt(args[0], 10, 64)
}

var traitsCmd = &cobra.Command{
	Use:   "traits [project-id]",
	Short: "process_traits: normalize study traits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := projectIDArg(args)
		if err != nil {
			return err
		}
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		result, err := deps.manager.ProcessTraits(cmd.Context(), id, forceFlag)
		if err != nil {
			return err
		}
		printResult("process_traits", result)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search [project-id]",
	Short: "search_studies: scan study files for significant hits",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := projectIDArg(args)
		if err != nil {
			return err
		}
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		result, err := deps.manager.SearchStudies(cmd.Context(), id)
		if err != nil {
			return err
		}
		printResult("search_studies", result)
		return nil
	},
}

var hitsCmd = &cobra.Command{
	Use:   "hits [project-id]",
	Short: "build_hits: normalize hits and write variant/metabolite nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := projectIDArg(args)
		if err != nil {
			return err
		}
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		result, err := deps.manager.BuildHits(cmd.Context(), id, forceFlag)
		if err != nil {
			return err
		}
		printResult("build_hits", result)
		return nil
	},
}

var associationsCmd = &cobra.Command{
	Use:   "associations [project-id]",
	Short: "build_associations: write trait->hit association edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := projectIDArg(args)
		if err != nil {
			return err
		}
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		result, err := deps.manager.BuildAssociations(cmd.Context(), id, forceFlag)
		if err != nil {
			return err
		}
		printResult("build_associations", result)
		return nil
	},
}

var annotateCmd = &cobra.Command{
	Use:   "annotate [project-id]",
	Short: "annotate_hits: run SnpEff over unannotated variants and write gene edges",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := projectIDArg(args)
		if err != nil {
			return err
		}
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		result, err := deps.manager.AnnotateHits(cmd.Context(), id)
		if err != nil {
			return err
		}
		printResult("annotate_hits", result)
		return nil
	},
}

var allCmd = &cobra.Command{
	Use:   "all [project-id]",
	Short: "Run every phase in order: traits, search, hits, associations, annotate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := projectIDArg(args)
		if err != nil {
			return err
		}
		deps, err := newBuildDeps(cmd.Context())
		if err != nil {
			return err
		}
		defer deps.Close(cmd.Context())

		ctx := cmd.Context()

		if r, err := deps.manager.ProcessTraits(ctx, id, forceFlag); err != nil {
			return err
		} else {
			printResult("process_traits", r)
		}
		if r, err := deps.manager.SearchStudies(ctx, id); err != nil {
			return err
		} else {
			printResult("search_studies", r)
		}
		if r, err := deps.manager.BuildHits(ctx, id, forceFlag); err != nil {
			return err
		} else {
			printResult("build_hits", r)
		}
		if r, err := deps.manager.BuildAssociations(ctx, id, forceFlag); err != nil {
			return err
		} else {
			printResult("build_associations", r)
		}
		if r, err := deps.manager.AnnotateHits(ctx, id); err != nil {
			return err
		} else {
			printResult("annotate_hits", r)
		}
		return nil
	},
}

func init() {
	buildCmd.PersistentFlags().BoolVar(&forceFlag, "force", false, "rebuild already-processed studies/hits")
	buildCmd.AddCommand(traitsCmd)
	buildCmd.AddCommand(searchCmd)
	buildCmd.AddCommand(hitsCmd)
	buildCmd.AddCommand(associationsCmd)
	buildCmd.AddCommand(annotateCmd)
	buildCmd.AddCommand(allCmd)
}
