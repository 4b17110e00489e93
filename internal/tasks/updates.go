package tasks

import (
	"fmt"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase   // Operation phase
	Step    int     // Current step number within phase
	Total   int     // Total steps in this phase
	Percent float64 // Overall completion, 0-100
	Message string  // Human-readable message for display
	Data    any     // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	LoadCities Phase = iota
	FilterCities
	FetchPhotos
	RenderSnapshot
	LoadFont
	LayoutPages
	WriteDocument
	ExportDone
)

func (p Phase) String() string {
	switch p {
	case LoadCities:
		return "load_cities"
	case FilterCities:
		return "filter_cities"
	case RenderSnapshot:
		return "render_snapshot"
	case LoadFont:
		return "load_font"
	case FetchPhotos:
		return "fetch_photos"
	case LayoutPages:
		return "layout_pages"
	case WriteDocument:
		return "write_document"
	case ExportDone:
		return "done"
	default:
		return ""
	}
}

// Overall progress is split across phases; layout is the longest stretch.
const (
	percentLoaded   = 5
	percentPhotos   = 35
	percentSnapshot = 42
	percentFont     = 45
	percentLayout   = 95
)

func loadCitiesUpdate(username string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadCities,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading visited cities for %s...", username),
	}
}

func filterCitiesUpdate(kept, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FilterCities,
		Step:    kept,
		Total:   total,
		Percent: percentLoaded,
		Message: fmt.Sprintf("%d of %d cities have photos", kept, total),
	}
}

func snapshotUpdate(visited int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   RenderSnapshot,
		Step:    1,
		Total:   1,
		Percent: percentSnapshot,
		Message: fmt.Sprintf("Rendering map snapshot (%d visited)...", visited),
	}
}

func fontUpdate(embedded bool) ProgressUpdate {
	msg := "Loaded document font"
	if !embedded {
		msg = "Document font unavailable, using default font"
	}
	return ProgressUpdate{
		Phase:   LoadFont,
		Step:    1,
		Total:   1,
		Percent: percentFont,
		Message: msg,
	}
}

func fetchPhotoUpdate(step, total int, city string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPhotos,
		Step:    step,
		Total:   total,
		Percent: percentLoaded + float64(step)/float64(max(total, 1))*(percentPhotos-percentLoaded),
		Message: fmt.Sprintf("[%d/%d] Fetched photo for %s", step, total, city),
	}
}

func fetchPhotoFailedUpdate(step, total int, city string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchPhotos,
		Step:    step,
		Total:   total,
		Percent: percentLoaded + float64(step)/float64(max(total, 1))*(percentPhotos-percentLoaded),
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, city, err),
	}
}

func layoutUpdate(percent float64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LayoutPages,
		Step:    int(percent),
		Total:   100,
		Percent: percentFont + percent/100*(percentLayout-percentFont),
		Message: fmt.Sprintf("Laying out pages (%.0f%%)...", percent),
	}
}

func writeUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteDocument,
		Step:    1,
		Total:   1,
		Percent: percentLayout,
		Message: fmt.Sprintf("Writing %s...", path),
	}
}

func doneUpdate(result *ExportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportDone,
		Step:    1,
		Total:   1,
		Percent: 100,
		Message: fmt.Sprintf("✓ Exported %d cities on %d pages", result.Cities, result.Pages),
		Data:    result,
	}
}
