package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/seenimoa/pianalytics/pkg/models"
)

// --- Submit Command ---

func (a *app) submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit [prompt]",
		Short: "Submit a prompt and print its prompt_id",
		Long: `Submit a prompt for scoring. The prompt may be given as several
arguments; they are joined with spaces.

Example:
  pianalytics submit "Analyze market sentiment for tech stocks."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.client.SubmitPrompt(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.out.PromptID("Prompt ID from submission", id)
		},
	}
}

// --- Scores Command ---

func (a *app) scoresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scores [prompt-id]",
		Short: "Fetch the time-series scores of a submitted prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := a.client.GetScores(cmd.Context(), models.PromptID(args[0]))
			if err != nil {
				return err
			}
			return a.out.Scores(series)
		},
	}
}

// --- Broadcast Command ---

func (a *app) broadcastCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "broadcast [prompt]",
		Short: "Broadcast a prompt and print its prompt_id",
		Long: `Broadcast a prompt to the analysis pipeline. Use the returned
prompt_id with the results command.

Example:
  pianalytics broadcast "Broadcast analysis for fintech sector."`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := a.client.BroadcastPrompt(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return a.out.PromptID("Broadcasted prompt ID", id)
		},
	}
}

// --- Results Command ---

func (a *app) resultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results [prompt-id]",
		Short: "Fetch analysis records and recommended tickers of a broadcast prompt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.client.GetAnalysisResults(cmd.Context(), models.PromptID(args[0]))
			if err != nil {
				return err
			}
			return a.out.Results(res)
		},
	}
}
