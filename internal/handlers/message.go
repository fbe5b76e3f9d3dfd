package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/penpals/internal/models"
	"github.com/HammerMeetNail/penpals/internal/services"
)

type MessageHandler struct {
	messageService services.MessageServiceInterface
}

func NewMessageHandler(messageService services.MessageServiceInterface) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// TimelineResponse is a message page rendered oldest first with separators.
type TimelineResponse struct {
	Entries    []models.TimelineEntry `json:"entries"`
	NextCursor string                 `json:"next_cursor,omitempty"`
	IsDone     bool                   `json:"is_done"`
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var params models.SendMessageParams
	if !decodeJSON(w, r, &params) {
		return
	}

	view, err := h.messageService.SendMessage(r.Context(), userID, params)
	if err != nil {
		writeServiceError(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *MessageHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	page, err := h.messageService.ListConversations(r.Context(), userID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list conversations", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// ListMessages returns newest first, or a chronological timeline with time
// separators when ?layout=timeline.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	page, err := h.messageService.ListMessages(r.Context(), userID, conversationID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list messages", err)
		return
	}

	if r.URL.Query().Get("layout") == "timeline" {
		writeJSON(w, http.StatusOK, TimelineResponse{
			Entries:    services.Timeline(page.Items, h.messageService.SeparatorGap()),
			NextCursor: page.NextCursor,
			IsDone:     page.IsDone,
		})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) ListReplies(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	conversationID := r.PathValue("id")
	parentID, ok := pathUUID(w, r, "messageId", "message ID")
	if !ok {
		return
	}

	page, err := h.messageService.ListReplies(r.Context(), userID, conversationID, parentID, pageRequest(r))
	if err != nil {
		writeServiceError(w, "list replies", err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, r, "id", "message ID")
	if !ok {
		return
	}

	msg, err := h.messageService.MarkRead(r.Context(), userID, messageID)
	if err != nil {
		writeServiceError(w, "mark message read", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, r, "id", "message ID")
	if !ok {
		return
	}

	if err := h.messageService.DeleteMessage(r.Context(), userID, messageID); err != nil {
		writeServiceError(w, "delete message", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Message deleted"})
}

func (h *MessageHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	conversationID := r.PathValue("id")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "Invalid conversation ID")
		return
	}

	if err := h.messageService.DeleteConversation(r.Context(), userID, conversationID); err != nil {
		writeServiceError(w, "delete conversation", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Conversation deleted"})
}
