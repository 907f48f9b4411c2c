package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [project-id]",
	Short: "Cross-check recorded association counts against the graph and flag unwritten hits",
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

		report, err := deps.manager.Validate(cmd.Context(), id)
		if err != nil {
			return err
		}

		for _, s := range report.Studies {
			status := "OK"
			if !s.OK {
				status = "FAIL"
			}
			fmt.Printf("[%s] %s: expected=%d actual=%d unwritten_normalized=%d\n",
				status, s.StudyName, s.ExpectedAssociations, s.ActualEdgeCount, s.UnwrittenNormalizedHits)
			for _, m := range s.Messages {
				fmt.Printf("    %s\n", m)
			}
		}

		if !report.OK {
			return fmt.Errorf("validation failed")
		}
		fmt.Println("validation OK")
		return nil
	},
}
