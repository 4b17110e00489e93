package main

import (
	"context"
	"sync"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/tasks"
)

// Export renders the PDF photo book for the current user and logs progress as it goes.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	_, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	engine, err := r.exportEngine(ctx)
	if err != nil {
		return err
	}
	mode, theme, err := r.mapStyle(cmd)
	if err != nil {
		return err
	}

	opts := tasks.ExportOpts{
		Title:     r.config.Export.Title,
		OutputDir: r.config.Export.OutputDir,
		Path:      cmd.String("out"),
		Mode:      mode,
		Theme:     theme,
		Workers:   int(cmd.Int("workers")),
	}
	if cmd.IsSet("title") {
		opts.Title = cmd.String("title")
	}
	if opts.OutputDir == "" && opts.Path == "" {
		opts.OutputDir = "."
	}

	progress := make(chan tasks.ProgressUpdate, 50)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.logger.Info(update.Message, "phase", update.Phase, "percent", int(update.Percent))
		}
	}()

	result, err := engine.Export(ctx, user, opts, progress)
	close(progress)
	wg.Wait()
	if err != nil {
		return err
	}

	if cmd.Bool("open") && result.Path != "" {
		if err := shared.Open(result.Path); err != nil {
			r.logger.Warn("could not open export", "path", result.Path, "error", err)
		}
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"path":          result.Path,
			"pages":         result.Pages,
			"cities":        result.Cities,
			"photos":        result.Photos,
			"font_embedded": result.FontEmbedded,
			"duration_ms":   result.Duration.Milliseconds(),
		}, true)
	}

	r.writePlain("✓ Exported %d cities (%d photos, %d pages) to %s\n", result.Cities, result.Photos, result.Pages, result.Path)
	if !result.FontEmbedded {
		r.writePlain("  Note: the document font was unavailable, so the built-in font was used.\n")
	}
	return nil
}
