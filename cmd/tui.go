package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/ui"
)

// TUI launches the interactive city browser for the logged-in user.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	logPath := filepath.Join(os.TempDir(), "footprint-tui.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	defer logFile.Close()
	r.SetLogger(shared.NewLogger(logFile))

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	st, err := r.store().Load()
	if err != nil {
		return err
	}

	opts := ui.Options{
		Tracker:   tracker,
		Store:     r.store(),
		User:      user,
		State:     st,
		Title:     r.config.Export.Title,
		OutputDir: r.config.Export.OutputDir,
	}
	if tracker.Dataset() != nil {
		if opts.Exports, err = r.exportEngine(ctx); err != nil {
			return err
		}
	}

	model := ui.NewModel(ctx, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
