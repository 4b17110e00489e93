// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{Name: "json", Usage: "Output raw JSON"}
}

func prettyFlag() cli.Flag {
	return &cli.BoolFlag{Name: "pretty", Usage: "Pretty-print JSON output", Value: true}
}

func mapFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "theme", Usage: "Map theme: light or dark (default: saved theme)"},
		&cli.StringFlag{Name: "mode", Usage: "Color mode: colorful or single (default: saved mode)"},
	}
}

// setupCommand creates the config file if needed and migrates the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "setup",
		Usage:  "Create the config file and initialize the database",
		Action: r.Setup,
	}
}

// migrateCommand applies or rolls back schema migrations.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply pending database migrations",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "rollback", Usage: "Roll back the most recent migration"},
		},
		Action: r.Migrate,
	}
}

// loginCommand finds or creates a user and remembers it in the state file.
func loginCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "login",
		Usage:     "Log in as a user, creating it on first use",
		ArgsUsage: "<username>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "username"},
		},
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Login,
	}
}

func logoutCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "logout",
		Usage:  "Forget the logged-in user",
		Action: r.Logout,
	}
}

func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the logged-in user",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.WhoAmI,
	}
}

// cityCommand handles visited city operations
func cityCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "city",
		Aliases: []string{"cities"},
		Usage:   "Visited city operations",
		Commands: []*cli.Command{
			{
				Name:      "mark",
				Usage:     "Mark a city as visited, optionally with details",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "date", Usage: "Visit date (YYYY-MM-DD); empty clears it"},
					&cli.IntFlag{Name: "rating", Usage: "Rating from 0 (unrated) to 10"},
					&cli.StringFlag{Name: "comment", Usage: "Comment, at most 200 characters"},
					jsonFlag(),
				},
				Action: r.CityMark,
			},
			{
				Name:      "unmark",
				Usage:     "Remove a visited city and its photos",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Action: r.CityUnmark,
			},
			{
				Name:      "show",
				Usage:     "Show one visited city",
				ArgsUsage: "<name>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "name"},
				},
				Flags:  []cli.Flag{jsonFlag(), prettyFlag()},
				Action: r.CityShow,
			},
			{
				Name:  "list",
				Usage: "List visited cities",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Output format: text, json, csv or md",
						Value:   "text",
					},
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Write to a file instead of stdout",
					},
					prettyFlag(),
				},
				Action: r.CityList,
			},
		},
	}
}

// photoCommand handles city photo operations
func photoCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "photo",
		Aliases: []string{"photos"},
		Usage:   "City photo operations",
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload a photo for a city under a category (scenery, friends, food, lover)",
				ArgsUsage: "<city> <category> <file>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "city"},
					&cli.StringArg{Name: "category"},
					&cli.StringArg{Name: "file"},
				},
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.PhotoUpload,
			},
			{
				Name:      "remove",
				Usage:     "Detach the photo stored under a category",
				ArgsUsage: "<city> <category>",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "city"},
					&cli.StringArg{Name: "category"},
				},
				Action: r.PhotoRemove,
			},
		},
	}
}

func searchCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search city names in the dataset",
		ArgsUsage: "<query>",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "query"},
		},
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Usage: "Maximum number of results (0 for all)", Value: 20},
			jsonFlag(),
		},
		Action: r.Search,
	}
}

func statsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show visited and remaining city counts",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.Stats,
	}
}

func snapshotCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshot",
		Usage: "Render the map of visited cities to a PNG",
		Flags: append(mapFlags(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output path",
				Value:   "footprint_map.png",
			},
		),
		Action: r.Snapshot,
	}
}

func exportCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export visited cities with photos as a PDF",
		Flags: append(mapFlags(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output path (default: <user>_footprints_<date>.pdf in the export directory)",
			},
			&cli.StringFlag{Name: "title", Usage: "Cover title (default: from config)"},
			&cli.IntFlag{Name: "workers", Usage: "Concurrent photo downloads", Value: 4},
			&cli.BoolFlag{Name: "open", Usage: "Open the PDF once it is written"},
			jsonFlag(),
		),
		Action: r.Export,
	}
}

func themeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "Toggle the map theme, or set it",
		ArgsUsage: "[light|dark]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "value"},
		},
		Action: r.Theme,
	}
}

func colorModeCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "color-mode",
		Aliases:   []string{"colors"},
		Usage:     "Toggle the map color mode, or set it",
		ArgsUsage: "[colorful|single]",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "value"},
		},
		Action: r.ColorMode,
	}
}

func serveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "addr", Usage: "Listen address (default: from config)"},
		},
		Action: r.Serve,
	}
}

func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "tui",
		Usage:  "Interactive city browser",
		Action: r.TUI,
	}
}
