package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/desertthunder/footprint/internal/formatter"
	"github.com/desertthunder/footprint/internal/models"
)

// CityMark marks a city as visited. Only the flags that are set change the stored details.
func (r *Runner) CityMark(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}

	req := models.SaveCityRequest{CityName: name}
	if cmd.IsSet("date") {
		date := cmd.String("date")
		req.VisitDate = &date
	}
	if cmd.IsSet("rating") {
		rating := int(cmd.Int("rating"))
		req.Rating = &rating
	}
	if cmd.IsSet("comment") {
		comment := cmd.String("comment")
		req.Comment = &comment
	}
	if err := req.Validate(); err != nil {
		return err
	}

	city, err := tracker.Save(ctx, user.ID(), req)
	if err != nil {
		return err
	}
	r.logger.Debug("saved city", "city", city.CityName, "user", user.Username())

	if cmd.Bool("json") {
		return r.writeJSON(city, true)
	}
	return r.writePlain("✓ Marked %s\n", describeCity(city))
}

// CityUnmark removes a visited city and its photos.
func (r *Runner) CityUnmark(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	if err := tracker.Unmark(ctx, user.ID(), name); err != nil {
		return err
	}
	return r.writePlain("✓ Unmarked %s\n", name)
}

// CityShow prints one visited city with its photos.
func (r *Runner) CityShow(ctx context.Context, cmd *cli.Command) error {
	name, err := requireArg(cmd, "name")
	if err != nil {
		return err
	}

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	city, err := tracker.Get(ctx, user.ID(), name)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(city, cmd.Bool("pretty"))
	}

	r.writePlainHeader(city.CityName)
	if city.VisitDate != "" {
		r.writePlain("Visited: %s\n", city.VisitDate)
	}
	if city.Rating > 0 {
		r.writePlain("Rating:  %s (%d/10)\n", city.Stars(), city.Rating)
	}
	if city.Comment != "" {
		r.writePlain("Comment: %s\n", city.Comment)
	}
	for _, photo := range city.Photos {
		r.writePlain("Photo:   [%s] %s\n", photo.Category.Label(), photo.URL)
	}
	return nil
}

// CityList prints every visited city in the chosen format.
func (r *Runner) CityList(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	tracker, user, err := r.currentUser(ctx)
	if err != nil {
		return err
	}
	cities, err := tracker.List(ctx, user.ID())
	if err != nil {
		return err
	}
	if cities == nil {
		cities = []*models.VisitedCity{}
	}

	if format == formatter.FormatJSON {
		return r.writeJSON(cities, cmd.Bool("pretty"))
	}

	if out := cmd.String("output"); out != "" {
		path, err := formatter.WriteExport(format, r.config.Export.Title, user.Username(), cities, out)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Wrote %d cities to %s\n", len(cities), path)
	}

	data, err := formatter.Export(format, r.config.Export.Title, user.Username(), cities)
	if err != nil {
		return err
	}
	_, err = r.output.Write(data)
	return err
}

func describeCity(city *models.VisitedCity) string {
	desc := city.CityName
	if city.VisitDate != "" {
		desc = fmt.Sprintf("%s (%s)", desc, city.VisitDate)
	}
	if city.Rating > 0 {
		desc = fmt.Sprintf("%s %s", desc, city.Stars())
	}
	return desc
}
