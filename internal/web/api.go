package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/roasbeef/canvasrca/internal/cache"
	"github.com/roasbeef/canvasrca/internal/extract"
	"github.com/roasbeef/canvasrca/internal/notify"
	"github.com/roasbeef/canvasrca/internal/popup"
)

// maxRequestBytes bounds popup request bodies, which carry page markup.
const maxRequestBytes = 8 << 20

// APIResponse wraps API responses.
type APIResponse struct {
	Data any `json:"data"`
}

// APIError represents an API error response.
type APIError struct {
	Error APIErrorDetail `json:"error"`
}

// APIErrorDetail contains error details.
type APIErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SummaryResponse is a cached record as returned by the API.
type SummaryResponse struct {
	URL       string       `json:"url"`
	Key       string       `json:"key"`
	Summary   string       `json:"summary"`
	Links     []cache.Link `json:"links"`
	UpdatedAt string       `json:"updated_at,omitempty"`
}

func newSummaryResponse(rec cache.Record) SummaryResponse {
	resp := SummaryResponse{
		URL:     rec.URL(),
		Key:     rec.Key,
		Summary: rec.Summary,
		Links:   rec.Links,
	}
	if !rec.Timestamp.IsZero() {
		resp.UpdatedAt = rec.Timestamp.UTC().Format(time.RFC3339)
	}

	return resp
}

// PopupRequest is the body of the popup action endpoints.
type PopupRequest struct {
	TabID notify.TabID `json:"tab_id"`
	URL   string       `json:"url"`

	// HTML is the page markup captured by the browser. When empty the
	// server fetches the page itself, if it is configured to.
	HTML string `json:"html,omitempty"`

	// On selects the toggle direction; absent means on.
	On *bool `json:"on,omitempty"`
}

// PopupResponse reports the popup state after an action.
type PopupResponse struct {
	State popup.State `json:"state"`
	Busy  bool        `json:"busy,omitempty"`
}

// registerAPIV1Routes registers all /api/v1/ routes.
func (s *Server) registerAPIV1Routes() {
	// CORS middleware for API routes.
	corsMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			}

			// Handle preflight requests.
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next(w, r)
		}
	}

	// JSON middleware for API routes.
	jsonMiddleware := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			next(w, r)
		}
	}

	api := func(handler http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(jsonMiddleware(handler))
	}

	s.mux.HandleFunc("/api/v1/health", api(s.handleAPIV1Health))
	s.mux.HandleFunc("/api/v1/summary", api(s.handleAPIV1Summary))
	s.mux.HandleFunc("/api/v1/summaries", api(s.handleAPIV1Summaries))
	s.mux.HandleFunc("/api/v1/popup/toggle", api(s.handleAPIV1PopupToggle))
	s.mux.HandleFunc("/api/v1/popup/regenerate",
		api(s.handleAPIV1PopupRegenerate))
	s.mux.HandleFunc("/api/v1/maintenance", api(s.handleAPIV1Maintenance))
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Warn("Error encoding JSON response", "error", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, status int, code,
	message string) {

	s.writeJSON(w, status, APIError{
		Error: APIErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// handleAPIV1Health handles GET /api/v1/health.
func (s *Server) handleAPIV1Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"overlays":  s.hub.ClientCount(),
		"listeners": s.deps.Notifier.TotalSubscribers(),
		"popups":    s.openPopups(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

// handleAPIV1Summary handles GET /api/v1/summary?url=.
func (s *Server) handleAPIV1Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed")
		return
	}

	pageURL := r.URL.Query().Get("url")
	if pageURL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request",
			"url is required")
		return
	}

	rec := s.deps.Cache.Get(r.Context(), pageURL)
	if rec.IsNone() {
		s.writeError(w, http.StatusNotFound, "not_found",
			"No summary cached for this page")
		return
	}

	s.writeJSON(w, http.StatusOK, APIResponse{
		Data: newSummaryResponse(rec.UnsafeFromSome()),
	})
}

// handleAPIV1Summaries handles GET /api/v1/summaries.
func (s *Server) handleAPIV1Summaries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed")
		return
	}

	records := s.deps.Cache.Records(r.Context())
	out := make([]SummaryResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, newSummaryResponse(rec))
	}

	s.writeJSON(w, http.StatusOK, APIResponse{Data: out})
}

// handleAPIV1Maintenance handles POST /api/v1/maintenance.
func (s *Server) handleAPIV1Maintenance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed")
		return
	}

	report := s.deps.Cache.RunMaintenance(r.Context())
	s.writeJSON(w, http.StatusOK, APIResponse{Data: report})
}

// handleAPIV1PopupToggle handles POST /api/v1/popup/toggle.
func (s *Server) handleAPIV1PopupToggle(w http.ResponseWriter, r *http.Request) {
	s.handlePopupAction(w, r, func(ctrl *popup.Controller,
		req PopupRequest) error {

		on := req.On == nil || *req.On
		return ctrl.Toggle(r.Context(), on)
	})
}

// handleAPIV1PopupRegenerate handles POST /api/v1/popup/regenerate.
func (s *Server) handleAPIV1PopupRegenerate(w http.ResponseWriter,
	r *http.Request) {

	s.handlePopupAction(w, r, func(ctrl *popup.Controller,
		_ PopupRequest) error {

		return ctrl.Regenerate(r.Context())
	})
}

// handlePopupAction decodes a popup request, runs action on the tab's
// popup and writes the resulting view state. Pipeline failures are part of
// the state, not HTTP errors.
func (s *Server) handlePopupAction(w http.ResponseWriter, r *http.Request,
	action func(*popup.Controller, PopupRequest) error) {

	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			"Method not allowed")
		return
	}

	var req PopupRequest
	body := http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request",
			"Invalid request body")
		return
	}
	if req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request",
			"url is required")
		return
	}

	sess := s.acquirePopup(req, s.sourceFor(req))
	defer s.releasePopup(req.TabID, sess)

	err := action(sess.ctrl, req)
	resp := PopupResponse{State: sess.view.Snapshot()}

	switch {
	case errors.Is(err, popup.ErrBusy):
		resp.Busy = true
		s.writeJSON(w, http.StatusConflict, APIResponse{Data: resp})

	default:
		s.writeJSON(w, http.StatusOK, APIResponse{Data: resp})
	}
}

// sourceFor returns the page source of a popup request: the posted markup,
// else the fetcher. It is nil when neither is available, which only fails
// the actions that reach extraction.
func (s *Server) sourceFor(req PopupRequest) extract.Source {
	if req.HTML != "" {
		return extract.HTMLSource(req.HTML)
	}

	return s.deps.Fetcher
}
