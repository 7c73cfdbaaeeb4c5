package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/localmart/catalog-ingest/internal/pipeline"
	"github.com/localmart/catalog-ingest/internal/runs"
	"github.com/localmart/catalog-ingest/internal/sources"
	"github.com/localmart/catalog-ingest/pkg/domain"
	"github.com/localmart/catalog-ingest/pkg/utils"
)

const (
	defaultMaxBodySize = 50 << 20 // feeds are CSV, 50MB is generous
	defaultPageLimit   = 50
	maxPageLimit       = 500
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ImportAccepted is the fire and forget acknowledgement.
type ImportAccepted struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

// Handler provides the catalog API endpoints.
type Handler struct {
	ingestor    *pipeline.Ingestor
	store       domain.CatalogStore
	registry    runs.Registry
	maxBodySize int64
}

// NewHandler creates a handler over the ingestor, store and run registry.
func NewHandler(ingestor *pipeline.Ingestor, store domain.CatalogStore, registry runs.Registry) *Handler {
	return &Handler{
		ingestor:    ingestor,
		store:       store,
		registry:    registry,
		maxBodySize: defaultMaxBodySize,
	}
}

// ImportCSV handles POST /import/csv. The feed arrives either as the raw
// request body or as the "feed" part of a multipart upload. The default is
// fire and forget: the response is a 202 with a run id and the caller polls
// the run endpoint. "?wait=true" blocks and returns the finished run.
func (h *Handler) ImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	feed := io.ReadCloser(r.Body)
	contentType := r.Header.Get("Content-Type")
	feedName := r.URL.Query().Get("name")

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("feed")
		if err != nil {
			h.respondError(w, http.StatusBadRequest, "multipart upload requires a 'feed' file part")
			return
		}
		feed = file
		contentType = header.Header.Get("Content-Type")
		if feedName == "" {
			feedName = header.Filename
		}
		if contentType == "" && strings.HasSuffix(strings.ToLower(header.Filename), ".csv") {
			contentType = "text/csv"
		}
	}

	// the request body does not outlive the handler, so buffer the feed
	// before handing it to a fire and forget run
	data, err := io.ReadAll(feed)
	feed.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		h.respondError(w, http.StatusBadRequest, "error reading feed payload")
		return
	}

	req := pipeline.IngestRequest{
		ContentType: contentType,
		Feed:        feedName,
		Sync:        r.URL.Query().Get("wait") == "true",
	}

	run, err := h.ingestor.Ingest(r.Context(), io.NopCloser(bytes.NewReader(data)), req)
	if err != nil {
		switch {
		case errors.Is(err, sources.ErrUnsupportedContentType):
			h.respondError(w, http.StatusUnsupportedMediaType, err.Error())
		case errors.Is(err, sources.ErrEmptyFeed), errors.Is(err, sources.ErrHeaderDecode):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if req.Sync {
		h.respondJSON(w, http.StatusOK, run)
		return
	}
	h.respondJSON(w, http.StatusAccepted, ImportAccepted{RunID: run.ID, State: string(run.State)})
}

// ImportBucket handles POST /import/bucket: it ingests the CSV object the
// service is configured for (BUCKET and FEED_PATH env variables), streaming
// it straight from cloud storage. "?path=" selects a different object in the
// same bucket; mode selection matches ImportCSV.
func (h *Handler) ImportBucket(w http.ResponseWriter, r *http.Request) {
	cfg, err := utils.BuildBucketConfig()
	if err != nil {
		h.respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	path := cfg.Path
	if p := r.URL.Query().Get("path"); p != "" {
		path = p
	}

	req := pipeline.IngestRequest{
		ContentType: "text/csv",
		Feed:        path,
		Sync:        r.URL.Query().Get("wait") == "true",
	}

	run, err := h.ingestor.IngestSource(r.Context(), sources.CloudCSVConfig{
		Bucket: cfg.Bucket,
		Path:   path,
	}, req)
	if err != nil {
		switch {
		case errors.Is(err, sources.ErrCloudCSVObjectNotExist):
			h.respondError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, sources.ErrCloudCSVObjectPathRequired),
			errors.Is(err, sources.ErrEmptyFeed),
			errors.Is(err, sources.ErrHeaderDecode):
			h.respondError(w, http.StatusBadRequest, err.Error())
		default:
			h.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if req.Sync {
		h.respondJSON(w, http.StatusOK, run)
		return
	}
	h.respondJSON(w, http.StatusAccepted, ImportAccepted{RunID: run.ID, State: string(run.State)})
}

// GetRun handles GET /runs/{run_id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.registry.Get(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		if errors.Is(err, runs.ErrRunNotFound) {
			h.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, run)
}

// ListRuns handles GET /runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	all, err := h.registry.List(r.Context())
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, all)
}

// CreateMerchant handles POST /merchants.
func (h *Handler) CreateMerchant(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req domain.Merchant
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		h.respondError(w, http.StatusBadRequest, "merchant name is required")
		return
	}

	created, err := h.store.CreateMerchant(r.Context(), &req)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateMerchant) {
			h.respondError(w, http.StatusConflict, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// GetMerchant handles GET /merchants/{merchant_id}.
func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	m, err := h.store.GetMerchant(r.Context(), chi.URLParam(r, "merchant_id"))
	if err != nil {
		if errors.Is(err, domain.ErrMerchantNotFound) {
			h.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, m)
}

// ListMerchants handles GET /merchants.
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	merchants, err := h.store.ListMerchants(r.Context(), offset, limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, merchants)
}

// ListMerchantOffers handles GET /merchants/{merchant_id}/offers.
func (h *Handler) ListMerchantOffers(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "merchant_id")
	if _, err := h.store.GetMerchant(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrMerchantNotFound) {
			h.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	offers, err := h.store.ListOffersByMerchant(r.Context(), id)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, offers)
}

// CreateOffer handles POST /offers.
func (h *Handler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)

	var req domain.Offer
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid JSON in request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		h.respondError(w, http.StatusBadRequest, "offer title is required")
		return
	}
	if req.MerchantID == "" {
		h.respondError(w, http.StatusBadRequest, "merchant_id is required")
		return
	}

	if _, err := h.store.GetMerchant(r.Context(), req.MerchantID); err != nil {
		if errors.Is(err, domain.ErrMerchantNotFound) {
			h.respondError(w, http.StatusBadRequest, "merchant_id does not reference an existing merchant")
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	created, err := h.store.CreateOffer(r.Context(), &req)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusCreated, created)
}

// GetOffer handles GET /offers/{offer_id}.
func (h *Handler) GetOffer(w http.ResponseWriter, r *http.Request) {
	o, err := h.store.GetOffer(r.Context(), chi.URLParam(r, "offer_id"))
	if err != nil {
		if errors.Is(err, domain.ErrOfferNotFound) {
			h.respondError(w, http.StatusNotFound, err.Error())
			return
		}
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, o)
}

// ListOffers handles GET /offers.
func (h *Handler) ListOffers(w http.ResponseWriter, r *http.Request) {
	offset, limit := pageParams(r)
	offers, err := h.store.ListOffers(r.Context(), offset, limit)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, offers)
}

func pageParams(r *http.Request) (offset, limit int) {
	limit = defaultPageLimit
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, maxPageLimit)
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return offset, limit
}

// respondJSON sends a JSON response with the given status code.
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response with the given status code and message.
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{Error: message})
}
