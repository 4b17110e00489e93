// package formatter lays out and renders visited-city exports: the paginated PDF document and flat
// exports (CSV, Markdown, plain text).
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/footprint/internal/models"
)

// Format names a flat export format.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "text"
	FormatJSON     Format = "json"
)

// ParseFormat resolves a format name, accepting common aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "", "text", "txt":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (expected json, csv, md or text)", s)
}

// Extension returns the file extension for the format.
func (f Format) Extension() string {
	switch f {
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	}
	return "." + string(f)
}

// ExportToCSV converts visited cities to CSV with columns: City, Visit Date, Rating, Comment, Photos
//
// Photos are written as category=url pairs separated by semicolons.
func ExportToCSV(cities []*models.VisitedCity) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"City", "Visit Date", "Rating", "Comment", "Photos"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, city := range cities {
		photos := make([]string, 0, len(city.Photos))
		for _, p := range city.Photos {
			photos = append(photos, string(p.Category)+"="+p.URL)
		}

		record := []string{
			city.CityName,
			city.VisitDate,
			strconv.Itoa(city.Rating),
			city.Comment,
			strings.Join(photos, ";"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts visited cities to a Markdown document, one section per city.
func ExportToMarkdown(title, username string, cities []*models.VisitedCity) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", title)
	if username != "" {
		fmt.Fprintf(&buf, "**User**: %s\n", username)
	}
	fmt.Fprintf(&buf, "**Cities**: %d\n\n", len(cities))

	for _, city := range cities {
		fmt.Fprintf(&buf, "## %s\n\n", city.CityName)
		if city.VisitDate != "" {
			fmt.Fprintf(&buf, "**Visited**: %s\n", city.VisitDate)
		}
		if city.Rating > 0 {
			fmt.Fprintf(&buf, "**Rating**: %s\n", city.Stars())
		}
		if city.Comment != "" {
			fmt.Fprintf(&buf, "\n> %s\n", strings.ReplaceAll(city.Comment, "\n", "\n> "))
		}
		if len(city.Photos) > 0 {
			buf.WriteString("\n")
			for _, p := range city.Photos {
				fmt.Fprintf(&buf, "![%s](%s)\n", p.Category.Label(), p.URL)
			}
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts visited cities to plain text, one line per city.
func ExportToText(cities []*models.VisitedCity) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Visited cities: %d\n\n", len(cities))
	for i, city := range cities {
		fmt.Fprintf(&buf, "%d. %s", i+1, city.CityName)
		if city.VisitDate != "" {
			fmt.Fprintf(&buf, " (%s)", city.VisitDate)
		}
		if city.Rating > 0 {
			fmt.Fprintf(&buf, " %s", city.Stars())
		}
		if n := len(city.Photos); n > 0 {
			fmt.Fprintf(&buf, " [%d photo%s]", n, plural(n))
		}
		buf.WriteString("\n")
		if city.Comment != "" {
			fmt.Fprintf(&buf, "   %s\n", city.Comment)
		}
	}

	return buf.Bytes(), nil
}

// Export renders cities in one of the flat formats. JSON is handled by the caller.
func Export(format Format, title, username string, cities []*models.VisitedCity) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(cities)
	case FormatMarkdown:
		return ExportToMarkdown(title, username, cities)
	case FormatText:
		return ExportToText(cities)
	}
	return nil, fmt.Errorf("unsupported export format %q", format)
}

// WriteExport writes a flat export to path, creating parent directories.
//
// Defaults to {username}_footprints{ext} in the working directory.
func WriteExport(format Format, title, username string, cities []*models.VisitedCity, path string) (string, error) {
	if path == "" {
		path = fmt.Sprintf("%s_footprints%s", username, format.Extension())
	}

	data, err := Export(format, title, username, cities)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
