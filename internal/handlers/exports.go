package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/palchat/backend/internal/export"
	"github.com/palchat/backend/internal/logging"
	"github.com/palchat/backend/internal/models"
	"github.com/palchat/backend/internal/repositories"
)

// ExportHandler schedules and reports conversation transcript exports.
type ExportHandler struct {
	Friends  FriendStore
	Exports  ExportStore
	Exporter TranscriptExporter
}

// Create handles POST /api/v1/exports.
func (h ExportHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	logger := logging.FromContext(ctx)
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	if h.Exporter == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "transcript exports are not configured")
		return
	}

	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid export payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Peer = strings.TrimSpace(req.Peer)
	if req.Peer == "" {
		respondError(ctx, w, http.StatusBadRequest, "peer is required")
		return
	}

	friends, err := h.Friends.IsAccepted(ctx, identity.Username, req.Peer)
	if err != nil {
		logger.Error("friendship lookup failed", "error", err, "peer", req.Peer)
		respondError(ctx, w, http.StatusInternalServerError, "failed to schedule export")
		return
	}
	if !friends {
		respondError(ctx, w, http.StatusForbidden, "You can only export conversations with friends")
		return
	}

	job, err := h.Exporter.Enqueue(ctx, identity.Username, req.Peer)
	if err != nil {
		if errors.Is(err, export.ErrStorageUnavailable) || errors.Is(err, export.ErrExporterClosed) {
			respondError(ctx, w, http.StatusServiceUnavailable, "transcript exports are unavailable")
			return
		}
		logger.Error("enqueue export failed", "error", err, "peer", req.Peer)
		respondError(ctx, w, http.StatusInternalServerError, "failed to schedule export")
		return
	}

	respondJSON(ctx, w, http.StatusAccepted, newExportResponse(job))
}

// Get handles GET /api/v1/exports/{exportID}. Exports owned by someone else
// are reported as missing.
func (h ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	identity, ok := currentIdentity(w, r)
	if !ok {
		return
	}

	id := r.PathValue("exportID")
	if _, err := uuid.Parse(id); err != nil || h.Exports == nil {
		respondError(ctx, w, http.StatusNotFound, "export not found")
		return
	}

	job, err := h.Exports.Find(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "export not found")
			return
		}
		logging.FromContext(ctx).Error("load export failed", "error", err, "exportId", id)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load export")
		return
	}
	if job.Owner != identity.Username {
		respondError(ctx, w, http.StatusNotFound, "export not found")
		return
	}

	respondJSON(ctx, w, http.StatusOK, newExportResponse(job))
}

type exportRequest struct {
	Peer string `json:"peer"`
}

type exportResponse struct {
	ID        string    `json:"id"`
	Peer      string    `json:"peer"`
	Status    string    `json:"status"`
	Location  string    `json:"location,omitempty"`
	Size      int64     `json:"size,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func newExportResponse(e models.Export) exportResponse {
	return exportResponse{
		ID:        e.ID,
		Peer:      e.Peer,
		Status:    e.Status,
		Location:  e.Location,
		Size:      e.Size,
		CreatedAt: e.CreatedAt,
	}
}
