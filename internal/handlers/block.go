package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/services"
)

type BlockHandler struct {
	blockService services.BlockServiceInterface
}

func NewBlockHandler(blockService services.BlockServiceInterface) *BlockHandler {
	return &BlockHandler{blockService: blockService}
}

type BlockRequest struct {
	UserID string `json:"user_id"`
}

type BlockListResponse struct {
	Blocked []models.BlockedUser `json:"blocked"`
}

func (h *BlockHandler) Block(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req BlockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	blockedID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	if err := h.blockService.Block(r.Context(), userID, blockedID); err != nil {
		writeServiceError(w, "block user", err)
		return
	}
	writeJSON(w, http.StatusCreated, MessageResponse{Message: "User blocked"})
}

func (h *BlockHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	blockedID, ok := pathUUID(w, r, "id", "user ID")
	if !ok {
		return
	}

	if err := h.blockService.Unblock(r.Context(), userID, blockedID); err != nil {
		writeServiceError(w, "unblock user", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "User unblocked"})
}

func (h *BlockHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	blocked, err := h.blockService.ListBlocked(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "list blocked users", err)
		return
	}
	writeJSON(w, http.StatusOK, BlockListResponse{Blocked: blocked})
}
