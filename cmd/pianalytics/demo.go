package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/seenimoa/pianalytics/internal/analytics"
	"github.com/seenimoa/pianalytics/internal/report"
)

const (
	defaultDemoPrompt          = "Analyze market sentiment for tech stocks."
	defaultDemoBroadcastPrompt = "Broadcast analysis for fintech sector."
)

// --- Demo Command ---

func (a *app) demoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run submit, scores, broadcast and results in sequence",
		Long: `Walk through the whole API once: submit a prompt, fetch its scores,
broadcast a second prompt and fetch its analysis results. The first failure
aborts the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, _ := cmd.Flags().GetString("prompt")
			broadcast, _ := cmd.Flags().GetString("broadcast-prompt")
			return runDemo(cmd.Context(), a.client, a.out, a.logger, prompt, broadcast)
		},
	}
	cmd.Flags().String("prompt", defaultDemoPrompt, "prompt to submit")
	cmd.Flags().String("broadcast-prompt", defaultDemoBroadcastPrompt, "prompt to broadcast")
	return cmd
}

// runDemo performs the four calls in order. Text output is printed as each
// step completes; structured formats print one document at the end.
func runDemo(ctx context.Context, c *analytics.Client, p *report.Printer, logger *zap.Logger, prompt, broadcast string) error {
	text := p.Format() == report.FormatText
	var run report.Run
	var err error

	if run.PromptID, err = c.SubmitPrompt(ctx, prompt); err != nil {
		return err
	}
	logger.Info("prompt submitted", zap.String("prompt_id", run.PromptID.String()))
	if text {
		if err := p.PromptID("Prompt ID from submission", run.PromptID); err != nil {
			return err
		}
	}

	if run.Scores, err = c.GetScores(ctx, run.PromptID); err != nil {
		return err
	}
	if text {
		if err := p.Scores(run.Scores); err != nil {
			return err
		}
	}

	if run.BroadcastPromptID, err = c.BroadcastPrompt(ctx, broadcast); err != nil {
		return err
	}
	logger.Info("prompt broadcast", zap.String("prompt_id", run.BroadcastPromptID.String()))
	if text {
		if err := p.PromptID("Broadcasted prompt ID", run.BroadcastPromptID); err != nil {
			return err
		}
	}

	if run.Results, err = c.GetAnalysisResults(ctx, run.BroadcastPromptID); err != nil {
		return err
	}
	if text {
		return p.Results(run.Results)
	}
	return p.Run(run)
}
