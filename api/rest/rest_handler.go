package rest

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/zlnvch/whiteboard/apperr"
	"github.com/zlnvch/whiteboard/ingest"
	"github.com/zlnvch/whiteboard/models"
	"github.com/zlnvch/whiteboard/service"
	"github.com/zlnvch/whiteboard/store"
)

// Multipart framing on top of the file itself.
const formOverhead = 1 << 20

type Handler struct {
	Service *service.Service
	Limits  ingest.Limits
}

func NewHandler(svc *service.Service, limits ingest.Limits) *Handler {
	return &Handler{Service: svc, Limits: limits}
}

type listBoardsResponse struct {
	Boards []models.SnapshotSummary `json:"boards"`
	Drafts []string                 `json:"drafts"`
}

func (h *Handler) HandleBoards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerId, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	list, err := h.Service.ListBoards(r.Context(), ownerId)
	if err != nil {
		log.Printf("List boards failed for %s: %v", ownerId, err)
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, listBoardsResponse{Boards: list.Boards, Drafts: list.Drafts})
}

func (h *Handler) HandleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ownerId, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r))
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	boardId := r.PathValue("id")
	if boardId == "" {
		http.Error(w, "board id required", http.StatusBadRequest)
		return
	}

	snap, err := h.Service.GetBoard(r.Context(), ownerId, boardId)
	if err != nil {
		if !errors.Is(err, store.ErrItemNotFound) {
			log.Printf("Get board %s failed for %s: %v", boardId, ownerId, err)
		}
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, snap)
}

type ingestPDFResponse struct {
	Pages []ingest.Asset `json:"pages"`
}

// HandleIngestImage accepts a multipart "file" and returns the asset to
// place with an insert_image input.
func (h *Handler) HandleIngestImage(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r, h.Limits.MaxImageBytes)
	if !ok {
		return
	}

	asset, err := h.Service.Importer.ImportImage(data)
	if err != nil {
		log.Printf("Image import failed: %v", err)
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, asset)
}

func (h *Handler) HandleIngestPDF(w http.ResponseWriter, r *http.Request) {
	data, ok := h.readUpload(w, r, h.Limits.MaxPDFBytes)
	if !ok {
		return
	}

	pages, err := h.Service.Importer.ImportPDF(r.Context(), data)
	if err != nil {
		log.Printf("PDF import failed: %v", err)
		h.sendError(w, err)
		return
	}
	h.sendResponse(w, ingestPDFResponse{Pages: pages})
}

// readUpload authenticates the request and reads the "file" part. Files
// over maxBytes are rejected; the one extra byte read is how that is told
// apart from a file of exactly maxBytes.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) ([]byte, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	if _, err := h.Service.AuthenticateToken(h.getTokenFromAuthHeader(r)); err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+formOverhead)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.sendError(w, apperr.NewValidation("file is too large"))
			return nil, false
		}
		http.Error(w, "file required", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return nil, false
	}
	return data, true
}

type errorResponse struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// sendError maps the error kind to a status and a user-facing message.
func (h *Handler) sendError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, store.ErrItemNotFound) {
		status = http.StatusNotFound
		err = apperr.NewValidation("board not found")
	} else if kind, ok := apperr.KindOf(err); ok {
		switch kind {
		case apperr.KindValidation:
			status = http.StatusBadRequest
		case apperr.KindDecode:
			status = http.StatusUnprocessableEntity
		case apperr.KindNetwork:
			status = http.StatusBadGateway
		case apperr.KindStorageUnavailable:
			status = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: apperr.UserMessage(err), Retryable: apperr.Retryable(err)})
}

func (h *Handler) sendResponse(w http.ResponseWriter, resp any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func (h *Handler) getTokenFromAuthHeader(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return ""
	}
	return strings.TrimPrefix(authHeader, prefix)
}
