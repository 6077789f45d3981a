package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"comic-catalog-provider/internal/domain"
	"comic-catalog-provider/internal/service"
)

// Response is the JSON body of every search endpoint.
type Response[T any] struct {
	Status  domain.Status `json:"status"`
	Items   []T           `json:"items"`
	Partial bool          `json:"partial,omitempty"`
	Error   string        `json:"error,omitempty"`
	Message string        `json:"message,omitempty"`
}

// DetailsResponse is the JSON body of the album details endpoint.
type DetailsResponse struct {
	Status  domain.Status  `json:"status"`
	Details domain.Details `json:"details"`
	Error   string         `json:"error,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Handler handles HTTP requests for the catalog metadata API.
type Handler struct {
	service *service.Service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(service *service.Service) *Handler {
	return &Handler{service: service}
}

// Register installs the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/{provider}/series", h.SearchSeries)
	mux.HandleFunc("GET /api/{provider}/albums", h.SearchAlbums)
	mux.HandleFunc("GET /api/{provider}/series/{id}/albums", h.SeriesAlbums)
	mux.HandleFunc("GET /api/{provider}/details", h.AlbumDetails)
	mux.HandleFunc("GET /health", Health)
}

// extractQuery reads the search query from the request, trying "q" first then "query".
func extractQuery(r *http.Request) string {
	if q := r.URL.Query().Get("q"); q != "" {
		return q
	}
	return r.URL.Query().Get("query")
}

// SearchSeries handles series searches for one provider or "all".
func (h *Handler) SearchSeries(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")
	query := extractQuery(r)
	if query == "" {
		slog.Warn("Series search request missing query", "provider", providerID)
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	slog.Info("Handling series search request", "provider", providerID, "query", query)

	res, err := h.service.SearchSeries(r.Context(), providerID, query)
	if err != nil {
		writeServiceError(w, providerID, err)
		return
	}
	writeResult(w, res)
}

// SearchAlbums handles album searches for one provider or "all".
func (h *Handler) SearchAlbums(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")
	query := extractQuery(r)
	if query == "" {
		slog.Warn("Album search request missing query", "provider", providerID)
		http.Error(w, "missing query", http.StatusBadRequest)
		return
	}

	slog.Info("Handling album search request", "provider", providerID, "query", query)

	res, err := h.service.SearchAlbums(r.Context(), providerID, query)
	if err != nil {
		writeServiceError(w, providerID, err)
		return
	}
	writeResult(w, res)
}

// SeriesAlbums lists the albums of one series.
func (h *Handler) SeriesAlbums(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")
	seriesID := r.PathValue("id")
	seriesName := r.URL.Query().Get("name")

	slog.Info("Handling series albums request", "provider", providerID, "series_id", seriesID, "series_name", seriesName)

	res, err := h.service.SearchAlbumsBySeriesID(r.Context(), providerID, seriesID, seriesName)
	if err != nil {
		writeServiceError(w, providerID, err)
		return
	}
	writeResult(w, res)
}

// AlbumDetails returns the detail mapping of one album page.
func (h *Handler) AlbumDetails(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("provider")
	detailURL := r.URL.Query().Get("url")
	if detailURL == "" {
		slog.Warn("Details request missing url", "provider", providerID)
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}

	details, err := h.service.AlbumDetails(r.Context(), providerID, detailURL)
	if err != nil {
		if errors.Is(err, domain.ErrProviderNotFound) || errors.Is(err, domain.ErrUnsupported) {
			writeServiceError(w, providerID, err)
			return
		}
		status := domain.Classify(err)
		writeJSON(w, statusCode(status), DetailsResponse{
			Status:  status,
			Details: domain.Details{},
			Error:   string(status),
			Message: err.Error(),
		})
		return
	}
	if details == nil {
		details = domain.Details{}
	}
	writeJSON(w, http.StatusOK, DetailsResponse{Status: domain.StatusOK, Details: details})
}

// Health reports liveness.
func Health(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewResponse converts a search result into its JSON body.
func NewResponse[T any](res domain.Result[T]) Response[T] {
	body := Response[T]{Status: res.Status, Items: res.Items, Partial: res.Partial}
	if body.Items == nil {
		body.Items = []T{}
	}
	switch {
	case res.Succeeded():
		if res.Partial && res.Err != nil {
			body.Message = res.Err.Error()
		}
	case res.Signal != nil:
		body.Error = res.Signal.Code
		body.Message = res.Signal.Message
	case res.Err != nil:
		body.Error = string(res.Status)
		body.Message = res.Err.Error()
	}
	return body
}

func writeResult[T any](w http.ResponseWriter, res domain.Result[T]) {
	writeJSON(w, statusCode(res.Status), NewResponse(res))
}

func writeServiceError(w http.ResponseWriter, providerID string, err error) {
	switch {
	case errors.Is(err, domain.ErrProviderNotFound):
		slog.Warn("Unknown provider requested", "provider", providerID)
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, domain.ErrUnsupported):
		http.Error(w, err.Error(), http.StatusNotImplemented)
	default:
		slog.Error("Catalog request failed", "provider", providerID, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func statusCode(status domain.Status) int {
	switch status {
	case domain.StatusOK:
		return http.StatusOK
	case domain.StatusTooManyResults:
		return http.StatusUnprocessableEntity
	case domain.StatusCancelled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
