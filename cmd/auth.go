package main

import (
	"context"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/state"
)

// Login finds or creates the named user and stores it as the current identity.
func (r *Runner) Login(ctx context.Context, cmd *cli.Command) error {
	username, err := requireArg(cmd, "username")
	if err != nil {
		return err
	}

	tracker, err := r.open(ctx)
	if err != nil {
		return err
	}

	user, created, err := tracker.Login(ctx, username)
	if err != nil {
		return err
	}

	if _, err := r.store().Update(func(s *state.State) error {
		s.Identity = &state.Identity{ID: user.ID(), Username: user.Username()}
		return nil
	}); err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{"user": user, "created": created}, true)
	}
	if created {
		return r.writePlain("✓ Welcome, %s! Your account has been created.\n", user.Username())
	}
	return r.writePlain("✓ Logged in as %s\n", user.Username())
}

// Logout clears the stored identity. Theme and color mode are kept.
func (r *Runner) Logout(ctx context.Context, cmd *cli.Command) error {
	var previous string
	if _, err := r.store().Update(func(s *state.State) error {
		if s.Identity != nil {
			previous = s.Identity.Username
		}
		s.Identity = nil
		return nil
	}); err != nil {
		return err
	}

	if previous == "" {
		return r.writePlain("Not logged in\n")
	}
	return r.writePlain("✓ Logged out %s\n", previous)
}

// WhoAmI prints the stored identity.
func (r *Runner) WhoAmI(ctx context.Context, cmd *cli.Command) error {
	st, err := r.store().Load()
	if err != nil {
		return err
	}
	identity, err := st.RequireIdentity()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(identity, true)
	}
	return r.writePlain("%s\n", identity.Username)
}
