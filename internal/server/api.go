package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/footprint/internal/geo"
	"github.com/desertthunder/footprint/internal/models"
	"github.com/desertthunder/footprint/internal/shared"
	"github.com/desertthunder/footprint/internal/tasks"
)

// MaxUploadSize caps multipart photo uploads.
const MaxUploadSize = 10 << 20

type errorResponse struct {
	Error string `json:"error"`
}

type loginResponse struct {
	User    *models.User `json:"user"`
	Created bool         `json:"created"`
}

type searchResponse struct {
	Query   string   `json:"query"`
	Results []string `json:"results"`
}

type mapResponse struct {
	Theme      geo.Theme          `json:"theme"`
	Mode       geo.ColorMode      `json:"mode"`
	Background geo.RGB            `json:"background"`
	Visited    []string           `json:"visited"`
	Features   []geo.FeatureStyle `json:"features"`
}

// API serves the JSON endpoints over a [tasks.Tracker] and a [tasks.ExportEngine].
type API struct {
	tracker  *tasks.Tracker
	exports  *tasks.ExportEngine
	snapshot tasks.MapRenderer
	title    string
	logger   *log.Logger
}

// APIOptions configures [NewAPI]. Exports and Snapshot are optional; their endpoints answer 501 when unset.
type APIOptions struct {
	Tracker  *tasks.Tracker
	Exports  *tasks.ExportEngine
	Snapshot tasks.MapRenderer
	Title    string
	Logger   *log.Logger
}

// NewAPI creates the JSON API.
func NewAPI(opts APIOptions) *API {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &API{
		tracker:  opts.Tracker,
		exports:  opts.Exports,
		snapshot: opts.Snapshot,
		title:    opts.Title,
		logger:   logger,
	}
}

// Register adds every API route to r.
func (a *API) Register(r Router) {
	r.Handle(http.MethodPost, "/api/login", http.HandlerFunc(a.login))
	r.Handle(http.MethodGet, "/api/search", http.HandlerFunc(a.search))
	r.Handle(http.MethodGet, "/api/users/{user}/cities", a.withUser(a.listCities))
	r.Handle(http.MethodGet, "/api/users/{user}/cities/{city}", a.withUser(a.getCity))
	r.Handle(http.MethodPut, "/api/users/{user}/cities/{city}", a.withUser(a.saveCity))
	r.Handle(http.MethodDelete, "/api/users/{user}/cities/{city}", a.withUser(a.unmarkCity))
	r.Handle(http.MethodPost, "/api/users/{user}/cities/{city}/photos/{category}", a.withUser(a.uploadPhoto))
	r.Handle(http.MethodDelete, "/api/users/{user}/cities/{city}/photos/{category}", a.withUser(a.removePhoto))
	r.Handle(http.MethodGet, "/api/users/{user}/stats", a.withUser(a.stats))
	r.Handle(http.MethodGet, "/api/users/{user}/map", a.withUser(a.mapStyles))
	r.Handle(http.MethodGet, "/api/users/{user}/snapshot", a.withUser(a.renderSnapshot))
	r.Handle(http.MethodPost, "/api/users/{user}/export", a.withUser(a.export))
}

type userHandler func(w http.ResponseWriter, r *http.Request, user *models.User)

// withUser resolves the {user} path segment to an existing user.
func (a *API) withUser(next userHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.tracker.User(r.Context(), r.PathValue("user"))
		if err != nil {
			a.writeError(w, r, err)
			return
		}
		next(w, r, user)
	})
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}

	user, created, err := a.tracker.Login(r.Context(), req.Username)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, loginResponse{User: user, Created: created})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			a.writeError(w, r, fmt.Errorf("%w: limit must be a non-negative integer", shared.ErrInvalidInput))
			return
		}
		limit = n
	}

	results := a.tracker.Search(query, limit)
	if results == nil {
		results = []string{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: query, Results: results})
}

func (a *API) listCities(w http.ResponseWriter, r *http.Request, user *models.User) {
	cities, err := a.tracker.List(r.Context(), user.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if cities == nil {
		cities = []*models.VisitedCity{}
	}
	writeJSON(w, http.StatusOK, cities)
}

func (a *API) getCity(w http.ResponseWriter, r *http.Request, user *models.User) {
	city, err := a.tracker.Get(r.Context(), user.ID(), r.PathValue("city"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

// saveCity upserts the city named in the path. An empty body just marks it visited.
func (a *API) saveCity(w http.ResponseWriter, r *http.Request, user *models.User) {
	var req models.SaveCityRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, r, err)
			return
		}
	}
	req.CityName = r.PathValue("city")
	if err := req.Validate(); err != nil {
		a.writeError(w, r, err)
		return
	}

	city, err := a.tracker.Save(r.Context(), user.ID(), req)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

func (a *API) unmarkCity(w http.ResponseWriter, r *http.Request, user *models.User) {
	if err := a.tracker.Unmark(r.Context(), user.ID(), r.PathValue("city")); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// uploadPhoto reads the "file" part of a multipart form and attaches it under the category in the path.
func (a *API) uploadPhoto(w http.ResponseWriter, r *http.Request, user *models.User) {
	category, err := models.ParseCategory(r.PathValue("category"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		a.writeError(w, r, fmt.Errorf("%w: %w", shared.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		a.writeError(w, r, fmt.Errorf("%w: missing file part: %w", shared.ErrInvalidInput, err))
		return
	}
	defer file.Close()

	city, err := a.tracker.Upload(r.Context(), user.ID(), r.PathValue("city"), category, header.Filename, file)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, city)
}

func (a *API) removePhoto(w http.ResponseWriter, r *http.Request, user *models.User) {
	category, err := models.ParseCategory(r.PathValue("category"))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if err := a.tracker.RemovePhoto(r.Context(), user.ID(), r.PathValue("city"), category); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) stats(w http.ResponseWriter, r *http.Request, user *models.User) {
	stats, err := a.tracker.Stats(r.Context(), user.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// mapStyles returns the per-feature styles for the live map.
func (a *API) mapStyles(w http.ResponseWriter, r *http.Request, user *models.User) {
	dataset := a.tracker.Dataset()
	if dataset == nil {
		a.writeError(w, r, fmt.Errorf("%w: city dataset is not loaded", shared.ErrAssetUnavailable))
		return
	}

	mode, theme, err := mapOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	visited, err := a.tracker.VisitedNames(r.Context(), user.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if visited == nil {
		visited = []string{}
	}

	writeJSON(w, http.StatusOK, mapResponse{
		Theme:      theme,
		Mode:       mode,
		Background: theme.Background(),
		Visited:    visited,
		Features:   dataset.Styles(visited, mode, theme),
	})
}

func (a *API) renderSnapshot(w http.ResponseWriter, r *http.Request, user *models.User) {
	if a.snapshot == nil {
		a.writeError(w, r, shared.ErrNotImplemented)
		return
	}

	mode, theme, err := mapOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	visited, err := a.tracker.VisitedNames(r.Context(), user.ID())
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	snap, err := a.snapshot.Render(r.Context(), geo.SnapshotRequest{Visited: visited, Mode: mode, Theme: theme})
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.PNG)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(snap.PNG)
}

// export renders the PDF in memory and returns it as an attachment.
func (a *API) export(w http.ResponseWriter, r *http.Request, user *models.User) {
	if a.exports == nil {
		a.writeError(w, r, shared.ErrNotImplemented)
		return
	}

	mode, theme, err := mapOptions(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	title := r.URL.Query().Get("title")
	if title == "" {
		title = a.title
	}

	res, err := a.exports.Export(r.Context(), user, tasks.ExportOpts{Title: title, Mode: mode, Theme: theme}, nil)
	if err != nil {
		a.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": res.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(res.Data)))
	w.Header().Set("X-Export-Pages", strconv.Itoa(res.Pages))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func mapOptions(r *http.Request) (geo.ColorMode, geo.Theme, error) {
	mode, err := geo.ParseColorMode(r.URL.Query().Get("mode"))
	if err != nil {
		return "", "", err
	}
	theme, err := geo.ParseTheme(r.URL.Query().Get("theme"))
	if err != nil {
		return "", "", err
	}
	return mode, theme, nil
}

// StatusFor maps an error to the HTTP status of its sentinel.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrInvalidInput),
		errors.Is(err, shared.ErrInvalidUsername),
		errors.Is(err, shared.ErrUnknownCity),
		errors.Is(err, shared.ErrInvalidDataURI):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrExportInProgress):
		return http.StatusConflict
	case errors.Is(err, shared.ErrNoExportableCities):
		return http.StatusUnprocessableEntity
	case errors.Is(err, shared.ErrUploadFailed),
		errors.Is(err, shared.ErrAssetUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, shared.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		if status == http.StatusInternalServerError {
			msg = "internal server error"
		}
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: expected application/json, got %q", shared.ErrInvalidInput, ct)
		}
	}

	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %w", shared.ErrInvalidInput, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
