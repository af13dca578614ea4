package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/constants"
	"github.com/joseph-ayodele/pdf-splitter/internal/app"
	"github.com/joseph-ayodele/pdf-splitter/internal/entity"
	"github.com/joseph-ayodele/pdf-splitter/internal/export"
	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
)

var (
	verbose     bool
	validateSrc bool
)

var loadCmd = &cobra.Command{
	Use:   "load <folder>",
	Short: "Load a folder of PDFs and list its pages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		sink := newStatusSink(cmd.ErrOrStderr())
		session, stop := e.startSession(ctx, sink.line)
		defer stop()

		if _, err := loadFolder(cmd, session, sink, args[0]); err != nil {
			return err
		}
		pages, err := session.Pages(ctx)
		if err != nil {
			return err
		}
		bad := map[string]error{}
		for _, p := range pages {
			printf(cmd, "%s\n", p.DisplayName())
			if validateSrc {
				if _, seen := bad[p.SourcePath]; !seen {
					bad[p.SourcePath] = e.lib.Validate(p.SourcePath)
				}
			}
		}
		for _, src := range sortedKeys(bad) {
			if err := bad[src]; err != nil {
				printf(cmd, "warning: %s failed validation: %v\n", src, err)
			}
		}
		counts, _ := session.Counts(ctx)
		printf(cmd, "%d pages loaded\n", counts.Total)
		return nil
	},
}

var (
	splitProfile string
	splitSet     []string
	splitPages   string
	splitFile    string
	splitMerge   bool
	splitDryRun  bool
)

var splitCmd = &cobra.Command{
	Use:   "split <folder>",
	Short: "Assign pages of a folder to a profile and export them",
	Long: `Load every PDF in folder, assign the chosen pages to --profile and write
them to the paths produced by the profile's output pattern.

Pages are 1-based and apply to each source file: --pages 1-3,5.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func runSplit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if splitProfile == "" {
		return errors.New("--profile is required")
	}
	pageSet, err := parsePageSet(splitPages)
	if err != nil {
		return err
	}

	e, err := loadEnv(ctx, true)
	if err != nil {
		return err
	}
	defer e.Close()

	for _, kv := range splitSet {
		field, value, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("expected field=value, got %q", kv)
		}
		if err := e.profiles.SetFieldValue(splitProfile, strings.TrimSpace(field), strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	if err := e.profiles.ValidateForApply(splitProfile); err != nil {
		return err
	}

	sink := newStatusSink(cmd.ErrOrStderr())
	session, stop := e.startSession(ctx, sink.line)
	defer stop()

	if _, err := loadFolder(cmd, session, sink, args[0]); err != nil {
		return err
	}

	if splitFile != "" {
		if n, err := session.Filter(ctx, splitFile); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("no pages match %q", splitFile)
		}
	}
	pages, err := session.Pages(ctx)
	if err != nil {
		return err
	}
	var keys []entity.PageKey
	for _, p := range pages {
		if pageSet == nil || pageSet[p.PageNumber+1] {
			keys = append(keys, p.Key())
		}
	}
	if len(keys) == 0 {
		return errors.New("no pages selected")
	}
	if _, err := session.Select(ctx, keys...); err != nil {
		return err
	}
	if splitMerge {
		if _, err := session.Batch(ctx, keys...); err != nil {
			return err
		}
	}
	if splitDryRun {
		jobs, preview, err := session.PlanAssign(ctx, splitProfile)
		if err != nil {
			return err
		}
		printPreview(cmd, jobs, preview)
		return nil
	}

	n, err := session.Assign(ctx, splitProfile)
	if err != nil {
		return err
	}
	sink.printf("Assigned %d pages to %s\n", n, splitProfile)

	_, plan, err := session.PlanExport(ctx)
	if err != nil {
		return err
	}
	sink.startBar(plan.TotalFiles, "Exporting", "Exported: ", "Failed: ")
	id, _, err := session.Export(ctx)
	if err != nil {
		sink.finishBar()
		return err
	}
	out, err := session.Wait(ctx, id)
	sink.finishBar()
	if err != nil {
		return err
	}
	if out.State != constants.TaskCompleted {
		return errors.New(out.Message)
	}

	succeeded, failed := out.Run.Tally()
	for _, res := range out.Run.Results {
		mark := "ok"
		if !res.Success {
			mark = "FAILED " + res.Error
		}
		printf(cmd, "%s  %s (%s)\n", res.Job.OutputPath, mark, formatDuration(res.Duration))
	}
	printf(cmd, "Export complete! %d successful, %d failed.\n", succeeded, failed)
	if out.Report != "" {
		printf(cmd, "Report: %s\n", out.Report)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(out.Run.Results))
	}
	return nil
}

// loadFolder runs a load task with a progress bar over the folder's PDFs.
func loadFolder(cmd *cobra.Command, session *app.Session, sink *statusSink, dir string) (app.Outcome, error) {
	ctx := cmd.Context()
	files, _, err := ingest.ListPDFs(dir)
	if err != nil {
		return app.Outcome{}, err
	}
	sink.startBar(len(files), "Loading", "Processing ")
	id, err := session.LoadFolder(ctx, dir)
	if err != nil {
		sink.finishBar()
		return app.Outcome{}, err
	}
	out, err := session.Wait(ctx, id)
	sink.finishBar()
	if err != nil {
		return out, err
	}
	if out.State != constants.TaskCompleted {
		return out, errors.New(out.Message)
	}
	return out, nil
}

func printPreview(cmd *cobra.Command, jobs []entity.ExportJob, preview export.Preview) {
	printf(cmd, "%s\n", preview.Summary())
	for _, dir := range preview.Folders {
		printf(cmd, "%s/\n", dir)
		for _, name := range preview.Files[dir] {
			printf(cmd, "  %s\n", name)
		}
	}
	for i, job := range jobs {
		if len(job.Pages()) > 1 {
			printf(cmd, "job %d merges %d pages into %s\n", i+1, len(job.Pages()), job.OutputPath)
		}
	}
}

// parsePageSet reads "1-3,5" into a set of 1-based page numbers. Blank input
// selects every page and returns nil.
func parsePageSet(s string) (map[int]bool, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	out := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")
		first, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || first < 1 {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		last := first
		if isRange {
			if last, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil || last < first {
				return nil, fmt.Errorf("invalid page range %q", part)
			}
		}
		for p := first; p <= last; p++ {
			out[p] = true
		}
	}
	return out, nil
}

// statusSink routes session status lines to a progress bar, or prints them
// when --verbose is set. Lines arrive on the session goroutine.
type statusSink struct {
	w io.Writer

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	prefixes []string
}

func newStatusSink(w io.Writer) *statusSink {
	return &statusSink{w: w}
}

func (s *statusSink) startBar(max int, desc string, prefixes ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if verbose || max <= 0 {
		return
	}
	s.bar = progressbar.NewOptions(max,
		progressbar.OptionSetWriter(s.w),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(s.w) }),
	)
	s.prefixes = prefixes
}

func (s *statusSink) finishBar() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		_ = s.bar.Finish()
		s.bar = nil
	}
}

func (s *statusSink) line(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar == nil {
		if verbose {
			fmt.Fprintln(s.w, msg)
		}
		return
	}
	for _, p := range s.prefixes {
		if strings.HasPrefix(msg, p) {
			_ = s.bar.Add(1)
			break
		}
	}
	if strings.HasPrefix(msg, "Error loading ") || strings.HasPrefix(msg, "Failed: ") {
		_ = s.bar.Clear()
		fmt.Fprintln(s.w, msg)
	}
}

func (s *statusSink) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.w, format, args...)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print every status line instead of progress bars")
	loadCmd.Flags().BoolVar(&validateSrc, "validate", false, "validate each source PDF")

	splitCmd.Flags().StringVarP(&splitProfile, "profile", "p", "", "profile to assign (required)")
	splitCmd.Flags().StringArrayVar(&splitSet, "set", nil, "field=value stored on the profile before assigning (repeatable)")
	splitCmd.Flags().StringVar(&splitPages, "pages", "", "1-based pages of each source, e.g. 1-3,5 (default all)")
	splitCmd.Flags().StringVar(&splitFile, "file", "", "only pages whose file name, page or profile matches")
	splitCmd.Flags().BoolVar(&splitMerge, "merge", false, "write the selected pages into one file")
	splitCmd.Flags().BoolVar(&splitDryRun, "dry-run", false, "print the planned files without writing or renaming anything")

	rootCmd.AddCommand(loadCmd, splitCmd)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
