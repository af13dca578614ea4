package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/internal/common"
	"github.com/joseph-ayodele/pdf-splitter/internal/repository"
)

var historyLimit int

var errHistoryDisabled = errors.New("export history is disabled (set HISTORY_DSN)")

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded export runs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()
		if e.history == nil {
			return errHistoryDisabled
		}

		runs, err := e.history.ListRuns(ctx, historyLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tSTARTED\tDURATION\tSTATE\tOK\tFAILED")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", r.ID, r.StartedAt.Local().Format(time.DateTime),
				formatDuration(r.FinishedAt.Sub(r.StartedAt)), r.State, r.Succeeded, r.Failed)
		}
		return tw.Flush()
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the files written by one run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		v := common.NewValidator().Field("run_id", args[0], common.Required, common.UUID)
		if err := common.ValidateAndReturnError(v); err != nil {
			return err
		}
		id := uuid.MustParse(args[0])
		e, err := loadEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()
		if e.history == nil {
			return errHistoryDisabled
		}

		rows, err := e.history.ListResults(ctx, id)
		if err != nil {
			return err
		}
		return printResults(cmd, rows)
	},
}

var historyFindCmd = &cobra.Command{
	Use:   "find <output-path>",
	Short: "Find which runs wrote an output file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv(ctx, true)
		if err != nil {
			return err
		}
		defer e.Close()
		if e.history == nil {
			return errHistoryDisabled
		}

		rows, err := e.history.FindByOutput(ctx, args[0])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			printf(cmd, "no run wrote %s\n", args[0])
			return nil
		}
		return printResults(cmd, rows)
	},
}

func printResults(cmd *cobra.Command, rows []repository.ResultRow) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\t#\tPROFILE\tSOURCE\tPAGES\tOUTPUT\tSTATUS")
	for _, r := range rows {
		status := "ok"
		if !r.Success {
			status = "FAILED: " + r.ErrorMessage
		}
		pages := make([]string, len(r.Pages))
		for i, p := range r.Pages {
			pages[i] = fmt.Sprint(p)
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", r.RunID.String()[:8], r.Seq, r.ProfileName,
			r.SourcePath, strings.Join(pages, ","), r.OutputPath, status)
	}
	return tw.Flush()
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list")
	historyCmd.AddCommand(historyShowCmd, historyFindCmd)
	rootCmd.AddCommand(historyCmd)
}
