package projects

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/projectanalysis/internal/export"
	"github.com/rpattn/projectanalysis/internal/filter"
	"github.com/rpattn/projectanalysis/internal/logging"
	"github.com/rpattn/projectanalysis/internal/upstream"
)

const (
	tableTitle = "Projekty a členové skupin"
	pivotTitle = "Kontingenční tabulka"

	// DefaultFileName is the attachment name of the xlsx export.
	DefaultFileName = "Analyza.xlsx"
)

type Handler struct {
	service  *Service
	workbook *export.Workbook
	fileName string
}

type HandlerOption func(*Handler)

// WithFileName overrides the attachment name of the xlsx export.
func WithFileName(name string) HandlerOption {
	return func(h *Handler) {
		if strings.TrimSpace(name) != "" {
			h.fileName = strings.TrimSpace(name)
		}
	}
}

// NewHTTPHandler serves the read-only project views under any prefix; the
// view is picked by the last path segment.
func NewHTTPHandler(service *Service, workbook *export.Workbook, opts ...HandlerOption) http.Handler {
	h := &Handler{service: service, workbook: workbook, fileName: DefaultFileName}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasSuffix(path, "/table"):
		h.handleTable(w, r)
	case strings.HasSuffix(path, "/flatjson"):
		h.handleFlatJSON(w, r)
	case strings.HasSuffix(path, "/json"):
		h.handleJSON(w, r)
	case strings.HasSuffix(path, "/xlsx"):
		h.handleXLSX(w, r)
	case strings.HasSuffix(path, "/pivot"):
		h.handlePivot(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

func (h *Handler) handleTable(w http.ResponseWriter, r *http.Request) {
	where, ok := h.parseWhere(w, r)
	if !ok {
		return
	}
	set, err := h.service.ResolveFlat(r.Context(), where, r.Cookies())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteRecordsHTML(&buf, tableTitle, set); err != nil {
		h.writeError(w, r, fmt.Errorf("render table: %w", err))
		return
	}
	writeHTML(w, buf.Bytes())
}

func (h *Handler) handleFlatJSON(w http.ResponseWriter, r *http.Request) {
	where, ok := h.parseWhere(w, r)
	if !ok {
		return
	}
	set, err := h.service.ResolveFlat(r.Context(), where, r.Cookies())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	export.WriteJSON(w, http.StatusOK, set)
}

func (h *Handler) handleJSON(w http.ResponseWriter, r *http.Request) {
	where, ok := h.parseWhere(w, r)
	if !ok {
		return
	}
	raw, err := h.service.ResolveJSON(r.Context(), where, r.Cookies())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	export.WriteJSON(w, http.StatusOK, raw)
}

func (h *Handler) handleXLSX(w http.ResponseWriter, r *http.Request) {
	where, ok := h.parseWhere(w, r)
	if !ok {
		return
	}
	set, err := h.service.ResolveFlat(r.Context(), where, r.Cookies())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if _, err := h.workbook.Write(&buf, set); err != nil {
		h.writeError(w, r, fmt.Errorf("build workbook: %w", err))
		return
	}
	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", h.fileName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handlePivot(w http.ResponseWriter, r *http.Request) {
	where, ok := h.parseWhere(w, r)
	if !ok {
		return
	}
	table, err := h.service.ResolvePivot(r.Context(), where, r.Cookies())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WritePivotHTML(&buf, pivotTitle, table); err != nil {
		h.writeError(w, r, fmt.Errorf("render pivot: %w", err))
		return
	}
	writeHTML(w, buf.Bytes())
}

func (h *Handler) parseWhere(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	where, err := filter.Parse(r.URL.Query().Get(upstream.FilterVariable))
	if err != nil {
		h.writeError(w, r, err)
		return nil, false
	}
	return where, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	event := logging.Ctx(r.Context()).Warn()
	if status >= http.StatusInternalServerError {
		event = logging.Ctx(r.Context()).Error()
	}
	event.Err(err).Int("status", status).Str("path", r.URL.Path).Msg("[PROJECTS] request failed")
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, filter.ErrMissingFilter), errors.Is(err, filter.ErrMalformedFilter):
		return http.StatusBadRequest
	case errors.Is(err, upstream.ErrUpstreamEnvelope), errors.Is(err, upstream.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeHTML(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
