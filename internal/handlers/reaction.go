package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/penpals/internal/services"
)

type ReactionHandler struct {
	reactionService services.ReactionServiceInterface
}

func NewReactionHandler(reactionService services.ReactionServiceInterface) *ReactionHandler {
	return &ReactionHandler{reactionService: reactionService}
}

type ReactRequest struct {
	Emoji string `json:"emoji"`
}

func (h *ReactionHandler) React(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathUUID(w, r, "id", "post ID")
	if !ok {
		return
	}

	var req ReactRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	reaction, err := h.reactionService.AddReaction(r.Context(), userID, postID, req.Emoji)
	if err != nil {
		writeServiceError(w, "add reaction", err)
		return
	}
	writeJSON(w, http.StatusOK, reaction)
}

func (h *ReactionHandler) Unreact(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	postID, ok := pathUUID(w, r, "id", "post ID")
	if !ok {
		return
	}

	if err := h.reactionService.RemoveReaction(r.Context(), userID, postID); err != nil {
		writeServiceError(w, "remove reaction", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Reaction removed"})
}
