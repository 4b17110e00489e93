package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/state"
)

// Search prints dataset city names containing the query.
func (r *Runner) Search(ctx context.Context, cmd *cli.Command) error {
	query, err := requireArg(cmd, "query")
	if err != nil {
		return err
	}

	tracker, err := r.open(ctx)
	if err != nil {
		return err
	}
	if tracker.Dataset() == nil {
		return fmt.Errorf("%w: the city dataset is required to search", shared.ErrAssetUnavailable)
	}

	results := tracker.Search(query, int(cmd.Int("limit")))
	if cmd.Bool("json") {
		if results == nil {
			results = []string{}
		}
		return r.writeJSON(results, false)
	}

	if len(results) == 0 {
		return r.writePlain("No cities match %q\n", query)
	}
	for _, name := range results {
		r.writePlain("%s\n", name)
	}
	return nil
}

// Stats prints the visited, remaining and total counts for the current user.
func (r *Runner) Stats(ctx context.Context, cmd *cli.Command) error {
	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	stats, err := tracker.Stats(ctx, user.ID())
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(stats, false)
	}
	r.writePlainHeader(fmt.Sprintf("Footprints of %s", user.Username()))
	r.writePlain("Visited:   %d\n", stats.Visited)
	r.writePlain("Remaining: %d\n", stats.Remaining)
	return r.writePlain("Total:     %d\n", stats.Total)
}

// Snapshot renders the current user's map to a PNG file.
func (r *Runner) Snapshot(ctx context.Context, cmd *cli.Command) error {
	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	if tracker.Dataset() == nil {
		return fmt.Errorf("%w: the city dataset is required to draw the map", shared.ErrAssetUnavailable)
	}

	mode, theme, err := r.mapStyle(cmd)
	if err != nil {
		return err
	}
	visited, err := tracker.VisitedNames(ctx, user.ID())
	if err != nil {
		return err
	}

	snap, err := r.snapshotter(tracker.Dataset()).Render(ctx, geo.SnapshotRequest{Visited: visited, Mode: mode, Theme: theme})
	if err != nil {
		return err
	}

	out := cmd.String("out")
	if err := os.WriteFile(out, snap.PNG, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return r.writePlain("✓ Map written to %s (%dx%d, %d cities)\n", out, snap.Width, snap.Height, len(visited))
}

// mapStyle resolves --mode and --theme, falling back to the saved state.
func (r *Runner) mapStyle(cmd *cli.Command) (geo.ColorMode, geo.Theme, error) {
	st, err := r.store().Load()
	if err != nil {
		return "", "", err
	}

	mode, theme := st.ColorMode, st.Theme
	if cmd.IsSet("mode") {
		if mode, err = geo.ParseColorMode(cmd.String("mode")); err != nil {
			return "", "", err
		}
	}
	if cmd.IsSet("theme") {
		if theme, err = geo.ParseTheme(cmd.String("theme")); err != nil {
			return "", "", err
		}
	}
	return mode, theme, nil
}

// Theme toggles the saved map theme, or sets it when a value is given.
func (r *Runner) Theme(ctx context.Context, cmd *cli.Command) error {
	value := cmd.StringArg("value")
	st, err := r.store().Update(func(s *state.State) error {
		if value == "" {
			s.ToggleTheme()
			return nil
		}
		theme, err := geo.ParseTheme(value)
		if err != nil {
			return err
		}
		s.Theme = theme
		return nil
	})
	if err != nil {
		return err
	}
	return r.writePlain("Theme: %s\n", st.Theme)
}

// ColorMode toggles the saved color mode, or sets it when a value is given.
func (r *Runner) ColorMode(ctx context.Context, cmd *cli.Command) error {
	value := cmd.StringArg("value")
	st, err := r.store().Update(func(s *state.State) error {
		if value == "" {
			s.ToggleColorMode()
			return nil
		}
		mode, err := geo.ParseColorMode(value)
		if err != nil {
			return err
		}
		s.ColorMode = mode
		return nil
	})
	if err != nil {
		return err
	}
	return r.writePlain("Color mode: %s\n", st.ColorMode)
}
