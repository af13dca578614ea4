package main

import (
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/pdf-splitter/internal/pdf"
)

var (
	thumbOut   string
	thumbPages string
	thumbWidth int
	thumbScale float64
)

var thumbnailsCmd = &cobra.Command{
	Use:   "thumbnails <file.pdf>",
	Short: "Render page thumbnails as PNG files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		e, err := loadEnv(ctx, false)
		if err != nil {
			return err
		}
		defer e.Close()

		src := args[0]
		pageSet, err := parsePageSet(thumbPages)
		if err != nil {
			return err
		}
		n, err := e.lib.PageCount(src)
		if err != nil {
			return err
		}
		var refs []pdf.PageRef
		for i := 0; i < n; i++ {
			if pageSet == nil || pageSet[i+1] {
				refs = append(refs, pdf.PageRef{Path: src, Page: i})
			}
		}
		if len(refs) == 0 {
			return fmt.Errorf("%s has no pages matching %q", src, thumbPages)
		}

		width := e.cfg.Render.ThumbnailWidth
		if cmd.Flags().Changed("width") {
			width = thumbWidth
		}
		scale := e.cfg.Render.ThumbnailScale
		if cmd.Flags().Changed("scale") {
			scale = thumbScale
		}
		images, err := pdf.Thumbnails(ctx, e.lib, refs, scale, width, e.cfg.Render.Workers)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(thumbOut, 0o755); err != nil {
			return err
		}
		base := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		bar := progressbar.NewOptions(len(images),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Writing thumbnails"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetVisibility(!verbose),
		)
		for i, img := range images {
			path := filepath.Join(thumbOut, fmt.Sprintf("%s-p%03d.png", base, refs[i].Page+1))
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			if err := png.Encode(f, img); err != nil {
				f.Close()
				return fmt.Errorf("encode %s: %w", path, err)
			}
			if err := f.Close(); err != nil {
				return err
			}
			_ = bar.Add(1)
			e.logger.Debug("thumbnail written", "path", path)
		}
		_ = bar.Finish()
		printf(cmd, "\nWrote %d thumbnails to %s\n", len(images), thumbOut)
		return nil
	},
}

func init() {
	thumbnailsCmd.Flags().StringVar(&thumbOut, "out", "thumbnails", "output folder")
	thumbnailsCmd.Flags().StringVar(&thumbPages, "pages", "", "1-based pages, e.g. 1-3,5 (default all)")
	thumbnailsCmd.Flags().IntVar(&thumbWidth, "width", 0, "maximum width in pixels (default from config)")
	thumbnailsCmd.Flags().Float64Var(&thumbScale, "scale", pdf.DefaultThumbnailScale, "render scale relative to 72 dpi")
	rootCmd.AddCommand(thumbnailsCmd)
}
