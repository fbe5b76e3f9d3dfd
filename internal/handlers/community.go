package handlers

import (
	"io"
	"net/http"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/services"
)

type CommunityHandler struct {
	communityService services.CommunityServiceInterface
}

func NewCommunityHandler(communityService services.CommunityServiceInterface) *CommunityHandler {
	return &CommunityHandler{communityService: communityService}
}

func (h *CommunityHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params models.CreateCommunityParams
	if !decodeJSON(w, r, &params) {
		return
	}
	if params.GenderRestriction != nil && !params.GenderRestriction.Valid() {
		writeError(w, http.StatusBadRequest, "Invalid gender restriction")
		return
	}

	community, err := h.communityService.CreateCommunity(r.Context(), userID, params)
	if err != nil {
		writeServiceError(w, "create community", err)
		return
	}
	writeJSON(w, http.StatusCreated, community)
}

func (h *CommunityHandler) Get(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	communityID, ok := pathUUID(w, r, "id", "community ID")
	if !ok {
		return
	}

	community, err := h.communityService.GetCommunity(r.Context(), communityID)
	if err != nil {
		writeServiceError(w, "get community", err)
		return
	}
	writeJSON(w, http.StatusOK, community)
}

// Join accepts an empty body; the request message is optional.
func (h *CommunityHandler) Join(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	communityID, ok := pathUUID(w, r, "id", "community ID")
	if !ok {
		return
	}

	var req models.JoinCommunityParams
	if r.Body != nil && r.ContentLength != 0 {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(body) > 0 && !unmarshalBody(w, body, &req) {
			return
		}
	}

	membership, err := h.communityService.RequestToJoin(r.Context(), userID, communityID, req)
	if err != nil {
		writeServiceError(w, "join community", err)
		return
	}
	writeJSON(w, http.StatusCreated, membership)
}

func (h *CommunityHandler) AcceptMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	membershipID, ok := pathUUID(w, r, "id", "membership ID")
	if !ok {
		return
	}

	membership, err := h.communityService.AcceptJoin(r.Context(), userID, membershipID)
	if err != nil {
		writeServiceError(w, "accept join request", err)
		return
	}
	writeJSON(w, http.StatusOK, membership)
}

func (h *CommunityHandler) RejectMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	membershipID, ok := pathUUID(w, r, "id", "membership ID")
	if !ok {
		return
	}

	if err := h.communityService.RejectJoin(r.Context(), userID, membershipID); err != nil {
		writeServiceError(w, "reject join request", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Join request rejected"})
}

func (h *CommunityHandler) Leave(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	communityID, ok := pathUUID(w, r, "id", "community ID")
	if !ok {
		return
	}

	if err := h.communityService.Leave(r.Context(), userID, communityID); err != nil {
		writeServiceError(w, "leave community", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Left community"})
}

func (h *CommunityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	communityID, ok := pathUUID(w, r, "id", "community ID")
	if !ok {
		return
	}

	if err := h.communityService.DeleteCommunity(r.Context(), userID, communityID); err != nil {
		writeServiceError(w, "delete community", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Community deleted"})
}

func (h *CommunityHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}
	communityID, ok := pathUUID(w, r, "id", "community ID")
	if !ok {
		return
	}

	page, err := h.communityService.ListMembers(r.Context(), communityID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list members", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *CommunityHandler) ListJoinRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	communityID, ok := pathUUID(w, r, "id", "community ID")
	if !ok {
		return
	}

	page, err := h.communityService.ListJoinRequests(r.Context(), userID, communityID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list join requests", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
