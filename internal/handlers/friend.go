package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/penpals/internal/services"
)

type FriendHandler struct {
	friendService services.FriendServiceInterface
}

func NewFriendHandler(friendService services.FriendServiceInterface) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

type SendFriendRequestRequest struct {
	UserID string `json:"user_id"`
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req SendFriendRequestRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	receiverID, err := uuid.Parse(req.UserID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	request, err := h.friendService.SendRequest(r.Context(), userID, receiverID)
	if err != nil {
		writeServiceError(w, "send friend request", err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, true)
}

func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, false)
}

func (h *FriendHandler) respond(w http.ResponseWriter, r *http.Request, accept bool) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, r, "id", "request ID")
	if !ok {
		return
	}

	request, err := h.friendService.RespondRequest(r.Context(), userID, requestID, accept)
	if err != nil {
		writeServiceError(w, "respond to friend request", err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, r, "id", "request ID")
	if !ok {
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), userID, requestID); err != nil {
		writeServiceError(w, "cancel friend request", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend request canceled"})
}

func (h *FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	friendID, ok := pathUUID(w, r, "userId", "user ID")
	if !ok {
		return
	}

	if err := h.friendService.Unfriend(r.Context(), userID, friendID); err != nil {
		writeServiceError(w, "unfriend", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Friend removed"})
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, err := h.friendService.ListFriends(r.Context(), userID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list friends", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *FriendHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, err := h.friendService.ListIncomingRequests(r.Context(), userID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list friend requests", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *FriendHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, err := h.friendService.ListSentRequests(r.Context(), userID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list sent friend requests", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
