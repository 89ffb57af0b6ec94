package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tutor-client/internal/config"
	transport "tutor-client/internal/transport/http"
)

// NewGradeCmd fetches the stored grade report of an assessment.
func NewGradeCmd(configPath *string) *cobra.Command {
	var assessmentID string
	cmd := &cobra.Command{
		Use:   "grade",
		Short: "Show the grade report of a submitted assessment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			client := transport.NewClient(cfg.Server.APIURL, config.Duration(cfg.Timeouts.Request, time.Minute))
			assessment, err := client.Assessment(cmd.Context(), assessmentID)
			if err != nil {
				return describeAPIError("load assessment", err)
			}
			printAssessment(cmd.OutOrStdout(), assessment)

			report, ok, err := client.Grade(cmd.Context(), assessmentID)
			if err != nil {
				return describeAPIError("grade", err)
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Please submit your assessment first.")
				return nil
			}
			printGrade(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&assessmentID, "assessment", "", "assessment id")
	_ = cmd.MarkFlagRequired("assessment")
	return cmd
}
