package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"unicode/utf8"

	"github.com/FACorreiaa/budget-tracker/internal/domain/import/parser"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/repository"
	importservice "github.com/FACorreiaa/budget-tracker/internal/domain/import/service"
	"github.com/FACorreiaa/budget-tracker/internal/domain/import/sniffer"
	"github.com/FACorreiaa/budget-tracker/pkg/middleware"
)

// MaxBodyBytes caps the size of an import request body.
const MaxBodyBytes = 10 << 20

// Importer is the part of the import service exposed over HTTP.
type Importer interface {
	Preview(ctx context.Context, req importservice.PreviewRequest) (*importservice.PreviewResult, error)
	Import(ctx context.Context, req importservice.ImportRequest) (*importservice.ImportResult, error)
	SaveMapping(ctx context.Context, req importservice.SaveMappingRequest) (*repository.BankMapping, error)
}

// ImportHandler handles the import endpoints
type ImportHandler struct {
	importSvc Importer
	logger    *slog.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importSvc Importer, logger *slog.Logger) *ImportHandler {
	return &ImportHandler{
		importSvc: importSvc,
		logger:    logger,
	}
}

// Register mounts the import routes on mux.
func (h *ImportHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/imports/preview", h.Preview)
	mux.HandleFunc("POST /api/imports", h.Import)
	mux.HandleFunc("POST /api/imports/mappings", h.SaveMapping)
}

// fileRequest is the JSON body shared by preview and import.
type fileRequest struct {
	Content         string          `json:"content"`
	SourceID        int64           `json:"source_id"`
	Delimiter       string          `json:"delimiter"`
	HasHeader       *bool           `json:"has_header"` // default true
	Mapping         json.RawMessage `json:"mapping"`
	Currency        string          `json:"currency"`
	SkipSuggestions bool            `json:"skip_suggestions"`
}

func (r fileRequest) options() (importservice.Options, error) {
	opts := importservice.Options{HasHeader: r.HasHeader == nil || *r.HasHeader}

	if r.Delimiter != "" {
		d, size := utf8.DecodeRuneInString(r.Delimiter)
		if size != len(r.Delimiter) {
			return opts, parser.ErrInvalidDelimiter
		}
		opts.Delimiter = d
	}

	if len(r.Mapping) > 0 && string(r.Mapping) != "null" {
		mapping, err := decodeMapping(r.Mapping)
		if err != nil {
			return opts, err
		}
		opts.Mapping = &mapping
	}
	return opts, nil
}

// decodeMapping starts from an empty mapping so omitted fields stay unmapped.
func decodeMapping(raw json.RawMessage) (sniffer.ColumnMapping, error) {
	mapping := sniffer.EmptyMapping()
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return mapping, err
	}
	return mapping, nil
}

// Preview handles POST /api/imports/preview
func (h *ImportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := h.decodeFileRequest(w, r)
	if !ok {
		return
	}

	result, err := h.importSvc.Preview(r.Context(), importservice.PreviewRequest{
		Content:  []byte(req.Content),
		SourceID: req.SourceID,
		Options:  opts,
	})
	if err != nil {
		h.writeServiceError(w, r, "failed to preview file", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// Import handles POST /api/imports
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	req, opts, ok := h.decodeFileRequest(w, r)
	if !ok {
		return
	}

	result, err := h.importSvc.Import(r.Context(), importservice.ImportRequest{
		Content:         []byte(req.Content),
		SourceID:        req.SourceID,
		Currency:        req.Currency,
		SkipSuggestions: req.SkipSuggestions,
		Options:         opts,
	})
	if err != nil {
		h.writeServiceError(w, r, "failed to import file", err)
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// SaveMapping handles POST /api/imports/mappings
func (h *ImportHandler) SaveMapping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Headers   []string        `json:"headers"`
		Mapping   json.RawMessage `json:"mapping"`
		Delimiter string          `json:"delimiter"`
		HasHeader *bool           `json:"has_header"`
		BankName  string          `json:"bank_name"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	fr := fileRequest{Delimiter: req.Delimiter, HasHeader: req.HasHeader, Mapping: req.Mapping}
	opts, err := fr.options()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.Mapping == nil {
		middleware.WriteError(w, http.StatusBadRequest, "mapping is required")
		return
	}

	saved, err := h.importSvc.SaveMapping(r.Context(), importservice.SaveMappingRequest{
		Headers:   req.Headers,
		Mapping:   *opts.Mapping,
		Delimiter: opts.Delimiter,
		HasHeader: opts.HasHeader,
		BankName:  req.BankName,
	})
	if err != nil {
		h.writeServiceError(w, r, "failed to save mapping", err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, saved)
}

func (h *ImportHandler) decodeFileRequest(w http.ResponseWriter, r *http.Request) (fileRequest, importservice.Options, bool) {
	var req fileRequest
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return req, importservice.Options{}, false
	}

	opts, err := req.options()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return req, opts, false
	}
	return req, opts, true
}

// writeServiceError maps service errors onto status codes.
func (h *ImportHandler) writeServiceError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	var mappingErr *sniffer.MappingError
	switch {
	case errors.As(err, &mappingErr):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, middleware.ErrorResponse{
			Error:   err.Error(),
			Missing: mappingErr.Missing,
		})
	case errors.Is(err, importservice.ErrEmptyFile),
		errors.Is(err, importservice.ErrInvalidRequest),
		errors.Is(err, parser.ErrInvalidDelimiter):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), msg,
			slog.String("request_id", middleware.GetRequestID(r.Context())),
			slog.Any("error", err),
		)
		middleware.WriteError(w, http.StatusInternalServerError, msg)
	}
}
