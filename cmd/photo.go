package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/models"
)

// PhotoUpload uploads a local image and attaches it to the city. Nothing is stored if the upload fails.
func (r *Runner) PhotoUpload(ctx context.Context, cmd *cli.Command) error {
	cityName, err := requireArg(cmd, "city")
	if err != nil {
		return err
	}
	rawCategory, err := requireArg(cmd, "category")
	if err != nil {
		return err
	}
	path, err := requireArg(cmd, "file")
	if err != nil {
		return err
	}

	category, err := models.ParseCategory(rawCategory)
	if err != nil {
		return err
	}

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open photo: %w", err)
	}
	defer f.Close()

	city, err := tracker.Upload(ctx, user.ID(), cityName, category, filepath.Base(path), f)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(city, true)
	}
	photo, _ := city.PhotoFor(category)
	return r.writePlain("✓ Uploaded %s photo for %s: %s\n", category.Label(), city.CityName, photo.URL)
}

// PhotoRemove detaches a photo from a city.
func (r *Runner) PhotoRemove(ctx context.Context, cmd *cli.Command) error {
	cityName, err := requireArg(cmd, "city")
	if err != nil {
		return err
	}
	rawCategory, err := requireArg(cmd, "category")
	if err != nil {
		return err
	}

	category, err := models.ParseCategory(rawCategory)
	if err != nil {
		return err
	}

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	if err := tracker.RemovePhoto(ctx, user.ID(), cityName, category); err != nil {
		return err
	}
	return r.writePlain("✓ Removed %s photo from %s\n", category.Label(), cityName)
}
