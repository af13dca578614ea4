package main

import (
	"errors"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/internal/ingest"
)

var (
	watchDirs    []string
	watchInitial bool
	watchCount   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Report new PDFs in profile input folders",
	Long: `Watch the input folder of every profile (or the folders given with --dir)
and print each new PDF once it has settled. Files already marked done- are ignored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		roots := watchDirs
		if len(roots) == 0 {
			seen := map[string]bool{}
			for _, p := range e.profiles.ListProfiles() {
				if p.InputFolder != "" && !seen[p.InputFolder] {
					seen[p.InputFolder] = true
					roots = append(roots, p.InputFolder)
				}
			}
		}
		if len(roots) == 0 {
			return errors.New("no folders to watch: pass --dir or set an input folder on a profile")
		}

		files, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Roots:       roots,
			InitialScan: watchInitial,
			Debounce:    e.cfg.Watch.Debounce,
		}, e.logger)
		if err != nil {
			return err
		}
		e.logger.Info("watching folders", "roots", roots, "debounce", e.cfg.Watch.Debounce)

		for {
			select {
			case path, ok := <-files:
				if !ok {
					return nil
				}
				if !watchCount {
					printf(cmd, "%s\n", path)
					continue
				}
				n, err := e.lib.PageCount(path)
				if err != nil {
					printf(cmd, "%s  (unreadable: %v)\n", path, err)
					continue
				}
				printf(cmd, "%s  %d pages in %s\n", filepath.Base(path), n, filepath.Dir(path))
			case err, ok := <-errs:
				if !ok {
					return nil
				}
				e.logger.Warn("watcher error", "error", err)
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringArrayVar(&watchDirs, "dir", nil, "folder to watch (repeatable, default all profile input folders)")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "also report PDFs already present")
	watchCmd.Flags().BoolVar(&watchCount, "count", false, "print the page count of each new PDF")
	rootCmd.AddCommand(watchCmd)
}
