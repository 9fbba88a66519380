// Package handler provides HTTP request handlers for the view counter.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/devrev/viewcounter/internal/config"
	"github.com/devrev/viewcounter/internal/converter"
	apierrors "github.com/devrev/viewcounter/internal/errors"
	"github.com/devrev/viewcounter/internal/service"
	"go.uber.org/zap"
)

// Handlers contains all HTTP handlers and their dependencies.
type Handlers struct {
	views         *service.ViewService
	httpToService *converter.HTTPToService
	serviceToHTTP *converter.ServiceToHTTP
	errorHandler  *apierrors.Handler
	logger        *zap.Logger
	timeout       time.Duration
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(
	views *service.ViewService,
	errorHandler *apierrors.Handler,
	logger *zap.Logger,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		views:         views,
		httpToService: converter.NewHTTPToService(cfg.Views.ClientAddressHeader),
		serviceToHTTP: converter.NewServiceToHTTP(),
		errorHandler:  errorHandler,
		logger:        logger,
		timeout:       cfg.Server.RequestTimeout,
	}
}

// RecordView handles POST /incr requests.
// Accepted views answer 202 whether they were counted, deduplicated, or lost
// to a store failure.
func (h *Handlers) RecordView(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	args, err := h.httpToService.RecordViewRequest(r)
	if err != nil {
		h.errorHandler.WritePlainError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	outcome, err := h.views.RecordView(ctx, args.Collection, args.Slug, args.ClientAddress)
	if err != nil {
		if apierrors.StatusFor(err) == http.StatusBadRequest {
			h.errorHandler.WritePlainError(w, http.StatusBadRequest, err.Error(), requestID)
			return
		}
		h.logger.Warn("view not recorded",
			zap.String("slug", args.Slug),
			zap.String("request_id", requestID),
			zap.Error(err))
	} else {
		h.logger.Debug("view accepted",
			zap.String("slug", args.Slug),
			zap.String("outcome", outcome.String()),
			zap.String("request_id", requestID))
	}

	w.WriteHeader(http.StatusAccepted)
}

// GetView handles GET /views/{slug} requests.
func (h *Handlers) GetView(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	args, err := h.httpToService.GetViewRequest(r)
	if err != nil {
		h.errorHandler.WritePlainError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	views, err := h.views.GetView(ctx, args.Collection, args.Slug)

	statusCode := http.StatusOK
	if err != nil {
		statusCode = http.StatusInternalServerError
	}
	h.writeJSONResponse(w, statusCode, h.serviceToHTTP.ViewResponse(views, err))
}

// GetViewsBatch handles POST /views requests.
func (h *Handlers) GetViewsBatch(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")

	args, err := h.httpToService.GetViewsBatchRequest(r)
	if err != nil {
		h.errorHandler.WritePlainError(w, http.StatusBadRequest, err.Error(), requestID)
		return
	}

	// Create context with timeout
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	views, err := h.views.GetViewsBatch(ctx, args.Collection, args.Slugs)

	statusCode := http.StatusOK
	if err != nil {
		statusCode = http.StatusInternalServerError
	}
	h.writeJSONResponse(w, statusCode, h.serviceToHTTP.BatchViewsResponse(views))
}

// writeJSONResponse writes a JSON response to the HTTP response writer.
func (h *Handlers) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}
