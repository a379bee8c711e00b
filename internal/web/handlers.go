package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/shelf/internal/airtable"
	"github.com/JonMunkholm/shelf/internal/core"
	"github.com/go-chi/chi/v5"
)

// maxBodySize bounds POST bodies; a sanitize request carries a whole dataset.
const maxBodySize = 10 << 20

type healthResponse struct {
	Status  string                   `json:"status"`
	Dataset *core.DatasetInfo        `json:"dataset,omitempty"`
	Imports core.ImportLimiterStatus `json:"imports"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "starting", Imports: s.catalog.ImportStatus()}
	if info, err := s.catalog.Info(); err == nil {
		resp.Status = "ok"
		resp.Dataset = &info
	}
	writeJSON(w, resp)
}

type schemaResponse struct {
	Name    string                `json:"name"`
	Label   string                `json:"label"`
	Tables  []string              `json:"tables"`
	Mapping airtable.FieldMapping `json:"mapping"`
	Active  bool                  `json:"active"`
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	active := s.catalog.Schema().Name
	schemas := airtable.Schemas()
	resp := make([]schemaResponse, 0, len(schemas))
	for _, sc := range schemas {
		resp = append(resp, schemaResponse{
			Name:    sc.Name,
			Label:   sc.Label,
			Tables:  sc.Tables,
			Mapping: sc.Mapping,
			Active:  sc.Name == active,
		})
	}
	writeJSON(w, resp)
}

func (s *Server) handleDatasetInfo(w http.ResponseWriter, r *http.Request) {
	info, err := s.catalog.Info()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, info)
}

type recordsResponse struct {
	Table   string                     `json:"table"`
	Locale  string                     `json:"locale"`
	Count   int                        `json:"count"`
	Records []airtable.SanitizedRecord `json:"records"`
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	locale, err := s.locale(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	table := chi.URLParam(r, "table")

	records, err := s.catalog.ListRecords(r.Context(), table, locale)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, recordsResponse{
		Table:   table,
		Locale:  locale,
		Count:   len(records),
		Records: records,
	})
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	locale, err := s.locale(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := s.catalog.GetRecord(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "recordID"), locale)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	info, err := s.catalog.Refresh(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, info)
}

func (s *Server) handleSanitize(w http.ResponseWriter, r *http.Request) {
	var req core.SanitizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}

	rec, err := core.SanitizeRaw(req)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, rec)
}

type addBookRequest struct {
	ISBN string `json:"isbn"`
}

func (s *Server) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req addBookRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.respondError(w, r, err)
		return
	}
	if strings.TrimSpace(req.ISBN) == "" {
		s.respondError(w, r, fmt.Errorf("%w: isbn is required", core.ErrInvalidRequest))
		return
	}

	rec, err := s.catalog.AddBookByISBN(r.Context(), req.ISBN)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, rec)
}

// locale validates the {locale} path segment against the configured
// locales. An empty configuration accepts any locale.
func (s *Server) locale(r *http.Request) (string, error) {
	locale := strings.ToLower(chi.URLParam(r, "locale"))
	if len(s.locales) > 0 && !s.locales[locale] {
		return "", fmt.Errorf("%w: unsupported locale %q", core.ErrInvalidRequest, locale)
	}
	return locale, nil
}

// decodeBody reads a JSON body into v, rejecting unknown fields and
// oversized payloads.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", core.ErrInvalidRequest, err)
	}
	return nil
}
