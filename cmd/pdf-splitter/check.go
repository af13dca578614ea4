package main

import (
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/internal/pdf"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration, profile store, history database and renderer",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv(ctx, true)
		if err != nil {
			printf(cmd, "config: FAIL (%v)\n", err)
			return err
		}
		defer e.Close()
		printf(cmd, "config: OK\n")

		failed := false
		report := func(name string, err error) {
			if err != nil {
				failed = true
				printf(cmd, "%s: FAIL (%v)\n", name, err)
				return
			}
			printf(cmd, "%s: OK\n", name)
		}

		list := e.profiles.ListProfiles()
		var badProfile error
		for _, p := range list {
			if msgs := p.ValidateAll(); len(msgs) > 0 {
				e.logger.Debug("profile has unfilled required fields", "profile", p.Name, "fields", msgs)
			}
		}
		if len(list) == 0 {
			badProfile = errors.New("no profiles")
		}
		report(fmt.Sprintf("profiles (%s, %d)", e.cfg.Profiles.File, len(list)), badProfile)

		switch {
		case e.db != nil:
			report("history database", e.db.HealthCheck(ctx, 2*time.Second))
		case noHistory || e.cfg.History.DSN == "":
			printf(cmd, "history database: disabled\n")
		default:
			report("history database", errors.New("could not open "+e.cfg.History.DSN))
		}

		if e.cfg.Render.Renderer == pdf.RendererPdftoppm {
			_, err := exec.LookPath(e.cfg.Render.PdftoppmBin)
			report("renderer pdftoppm", err)
		} else {
			printf(cmd, "renderer: %s\n", e.cfg.Render.Renderer)
		}

		if failed {
			return errors.New("one or more checks failed")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
