package formatter

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/footprint/internal/models"
	th "github.com/desertthunder/footprint/internal/testing"
)

func sampleCities() []*models.VisitedCity {
	return []*models.VisitedCity{
		{
			CityName:  "Beijing",
			VisitDate: "2024-01-01",
			Rating:    8,
			Comment:   "Great trip",
			Photos: []models.Photo{
				{Category: models.CategoryScenery, URL: "https://cdn.example.com/bj.jpg"},
				{Category: models.CategoryFood, URL: "https://cdn.example.com/duck.jpg"},
			},
		},
		{
			CityName: "Chengdu",
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleCities())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "City,Visit Date,Rating,Comment,Photos") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "Beijing,2024-01-01,8,Great trip,scenery=https://cdn.example.com/bj.jpg;food=https://cdn.example.com/duck.jpg") {
			t.Errorf("CSV missing Beijing record, got: %s", output)
		}
		if !strings.Contains(output, "Chengdu,,0,,") {
			t.Errorf("CSV missing Chengdu record, got: %s", output)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown("My City Footprints", "alice", sampleCities())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# My City Footprints",
			"**User**: alice",
			"**Cities**: 2",
			"## Beijing",
			"**Visited**: 2024-01-01",
			"**Rating**: ★★★★★★★★☆☆",
			"> Great trip",
			"![Scenery](https://cdn.example.com/bj.jpg)",
			"## Chengdu",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
		if strings.Contains(output, "Chengdu\n\n**Visited**") {
			t.Error("undated city should not have a visited line")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleCities())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Visited cities: 2") {
			t.Errorf("text missing count, got: %s", output)
		}
		if !strings.Contains(output, "1. Beijing (2024-01-01) ★★★★★★★★☆☆ [2 photos]") {
			t.Errorf("text missing Beijing line, got: %s", output)
		}
		if !strings.Contains(output, "   Great trip") {
			t.Errorf("text missing comment, got: %s", output)
		}
		if !strings.Contains(output, "2. Chengdu\n") {
			t.Errorf("text missing Chengdu line, got: %s", output)
		}
	})

	t.Run("Export Rejects JSON", func(t *testing.T) {
		if _, err := Export(FormatJSON, "", "", nil); err == nil {
			t.Error("expected error for json format")
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"csv", FormatCSV, false},
		{"Markdown", FormatMarkdown, false},
		{"md", FormatMarkdown, false},
		{"", FormatText, false},
		{"txt", FormatText, false},
		{"json", FormatJSON, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}

	if FormatMarkdown.Extension() != ".md" || FormatText.Extension() != ".txt" || FormatCSV.Extension() != ".csv" {
		t.Error("unexpected format extensions")
	}
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "nested", "cities.csv")

		got, err := WriteExport(FormatCSV, "title", "alice", sampleCities(), path)
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != path {
			t.Errorf("expected %s, got %s", path, got)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "Beijing") {
			t.Errorf("unexpected file content: %s", content)
		}
	})

	t.Run("WriteExport Default Path", func(t *testing.T) {
		dir := t.TempDir()
		wd := th.MustGetwd(t)
		th.MustChdir(t, dir)
		defer th.MustChdir(t, wd)

		got, err := WriteExport(FormatMarkdown, "title", "alice", sampleCities(), "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if got != "alice_footprints.md" {
			t.Errorf("unexpected default path %s", got)
		}
		th.AssertFileExists(t, filepath.Join(dir, got))
	})

	t.Run("WriteExport Unwritable", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, nil, 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := WriteExport(FormatText, "", "alice", nil, filepath.Join(blocker, "out.txt")); err == nil {
			t.Error("expected error writing below a regular file")
		}
	})
}
