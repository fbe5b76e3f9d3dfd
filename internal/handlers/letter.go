package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/services"
)

type LetterHandler struct {
	letterService services.LetterServiceInterface
}

func NewLetterHandler(letterService services.LetterServiceInterface) *LetterHandler {
	return &LetterHandler{letterService: letterService}
}

func (h *LetterHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params models.ScheduleLetterParams
	if !decodeJSON(w, r, &params) {
		return
	}

	letter, err := h.letterService.ScheduleLetter(r.Context(), userID, params)
	if err != nil {
		writeServiceError(w, "schedule letter", err)
		return
	}
	writeJSON(w, http.StatusCreated, letter)
}

func (h *LetterHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := h.letterService.ListInbox(r.Context(), userID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list inbox", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Sent lists the caller's letters, optionally narrowed with ?status=.
func (h *LetterHandler) Sent(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var status *models.LetterStatus
	switch s := models.LetterStatus(r.URL.Query().Get("status")); s {
	case "":
	case models.LetterStatusScheduled, models.LetterStatusDelivered:
		status = &s
	default:
		writeError(w, http.StatusBadRequest, "Invalid status filter")
		return
	}

	page, err := h.letterService.ListSent(r.Context(), userID, status, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list sent letters", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *LetterHandler) OnTheWay(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	count, err := h.letterService.CountOnTheWay(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "count letters on the way", err)
		return
	}
	writeJSON(w, http.StatusOK, CountResponse{Count: int64(count)})
}

func (h *LetterHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	letterID, ok := pathUUID(w, r, "id", "letter ID")
	if !ok {
		return
	}

	letter, err := h.letterService.GetLetter(r.Context(), userID, letterID)
	if err != nil {
		writeServiceError(w, "get letter", err)
		return
	}
	writeJSON(w, http.StatusOK, letter)
}

func (h *LetterHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	letterID, ok := pathUUID(w, r, "id", "letter ID")
	if !ok {
		return
	}

	if err := h.letterService.DeleteLetter(r.Context(), userID, letterID); err != nil {
		writeServiceError(w, "delete letter", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Letter deleted"})
}
