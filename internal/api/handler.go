package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gifsmith/gifsmith/internal/domain/entity"
	"github.com/gifsmith/gifsmith/internal/domain/port"
	"github.com/gifsmith/gifsmith/internal/usecase"
)

const maxUploadBytes = 1 << 30 // 1 GiB

// Handler is the narrow update/read surface the presentation layer talks
// to. It only moves Segment records in and out of the use case; all
// sequencing lives below it.
type Handler struct {
	svc      *usecase.SegmentService
	archiver port.Archiver
	logger   *zap.Logger
	tempDir  string
}

func NewHandler(svc *usecase.SegmentService, archiver port.Archiver, tempDir string, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, archiver: archiver, tempDir: tempDir, logger: logger}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /videos", h.uploadVideo)
	mux.HandleFunc("POST /segments", h.createSegment)
	mux.HandleFunc("GET /segments", h.listSegments)
	mux.HandleFunc("GET /segments/{id}", h.getSegment)
	mux.HandleFunc("PUT /segments/{id}/timerange", h.updateTimeRange)
	mux.HandleFunc("POST /segments/{id}/extract", h.extractFrames)
	mux.HandleFunc("POST /segments/{id}/select", h.selectFrame)
	mux.HandleFunc("POST /segments/{id}/generate", h.generateGif)
	mux.HandleFunc("GET /segments/{id}/gif", h.downloadGif)
	mux.HandleFunc("GET /segments/{id}/frames.zip", h.downloadFrames)
	mux.HandleFunc("DELETE /segments/{id}", h.removeSegment)
}

func (h *Handler) uploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("video")
	if err != nil {
		http.Error(w, "missing video file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(mimeType, "video/") {
		// Non-video drops are ignored.
		http.Error(w, "only video/* media is accepted", http.StatusUnsupportedMediaType)
		return
	}

	if err := os.MkdirAll(h.tempDir, 0o755); err != nil {
		h.internalError(w, "create temp dir", err)
		return
	}
	destPath := filepath.Join(h.tempDir, fmt.Sprintf("source-%s%s", uuid.NewString(), filepath.Ext(header.Filename)))
	dest, err := os.Create(destPath)
	if err != nil {
		h.internalError(w, "create video file", err)
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		os.Remove(destPath)
		h.internalError(w, "write video file", err)
		return
	}
	dest.Close()

	video, err := h.svc.RegisterVideo(r.Context(), destPath, mimeType)
	if err != nil {
		os.Remove(destPath)
		if errors.Is(err, usecase.ErrUnsupportedMedia) {
			http.Error(w, "only video/* media is accepted", http.StatusUnsupportedMediaType)
			return
		}
		h.internalError(w, "register video", err)
		return
	}

	writeJSON(w, http.StatusCreated, videoResponse{
		DurationSeconds: video.DurationSeconds,
		Width:           video.Width,
		Height:          video.Height,
	})
}

func (h *Handler) createSegment(w http.ResponseWriter, r *http.Request) {
	var req timeRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	seg, err := h.svc.CreateSegment(entity.TimeRange{Start: req.Start, End: req.End})
	switch {
	case errors.Is(err, usecase.ErrNoVideo):
		http.Error(w, "no video registered", http.StatusConflict)
		return
	case errors.Is(err, entity.ErrInvalidTimeRange):
		http.Error(w, "invalid time range", http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.internalError(w, "create segment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSegmentResponse(seg))
}

func (h *Handler) listSegments(w http.ResponseWriter, r *http.Request) {
	segments := h.svc.Segments()
	out := make([]segmentResponse, len(segments))
	for i, seg := range segments {
		out[i] = toSegmentResponse(seg)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	seg, err := h.svc.Segment(id)
	if err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toSegmentResponse(seg))
}

func (h *Handler) updateTimeRange(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	var req timeRangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	seg, err := h.svc.UpdateTimeRange(id, entity.TimeRange{Start: req.Start, End: req.End})
	if err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toSegmentResponse(seg))
}

func (h *Handler) extractFrames(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	seg, err := h.svc.ExtractFrames(r.Context(), id)
	switch {
	case errors.Is(err, usecase.ErrSegmentNotFound):
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	case errors.Is(err, usecase.ErrNoVideo):
		http.Error(w, "no video registered", http.StatusConflict)
		return
	case err != nil:
		h.internalError(w, "extract frames", err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSegmentResponse(seg))
}

func (h *Handler) selectFrame(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	var req selectFrameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	frameID, err := uuid.Parse(req.FrameID)
	if err != nil {
		http.Error(w, "invalid frame id", http.StatusBadRequest)
		return
	}
	seg, err := h.svc.SelectFrame(id, frameID)
	if err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, toSegmentResponse(seg))
}

func (h *Handler) generateGif(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	seg, err := h.svc.GenerateGif(r.Context(), id)
	if err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, toSegmentResponse(seg))
}

func (h *Handler) downloadGif(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	rc, size, err := h.svc.OpenGif(r.Context(), id)
	switch {
	case errors.Is(err, usecase.ErrSegmentNotFound):
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	case errors.Is(err, usecase.ErrNoArtifact):
		http.Error(w, "segment has no encoded animation", http.StatusConflict)
		return
	case err != nil:
		h.internalError(w, "fetch gif", err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("video-to-gif-%s.gif", id)))
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.Warn("gif download interrupted", zap.String("segment_id", id.String()), zap.Error(err))
	}
}

func (h *Handler) downloadFrames(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	seg, err := h.svc.Segment(id)
	if err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	if len(seg.Frames) == 0 {
		http.Error(w, "segment has no frames", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("frames-%s.zip", id)))
	if err := h.archiver.ArchiveFrames(r.Context(), seg.Frames, w); err != nil {
		h.logger.Warn("frame archive interrupted", zap.String("segment_id", id.String()), zap.Error(err))
	}
}

func (h *Handler) removeSegment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	if err := h.svc.RemoveSegment(id); err != nil {
		http.Error(w, "segment not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) segmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid segment id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
