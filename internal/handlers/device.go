package handlers

import (
	"net/http"

	"github.com/HammerMeetNail/penpals/internal/services"
)

type DeviceHandler struct {
	userService services.UserServiceInterface
}

func NewDeviceHandler(userService services.UserServiceInterface) *DeviceHandler {
	return &DeviceHandler{userService: userService}
}

type RegisterDeviceRequest struct {
	Token string `json:"token"`
}

// Register stores the caller's push token. An empty token unregisters.
func (h *DeviceHandler) Register(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req RegisterDeviceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Token) > 4096 {
		writeError(w, http.StatusBadRequest, "Device token too long")
		return
	}

	if err := h.userService.RegisterDevice(r.Context(), userID, req.Token); err != nil {
		writeServiceError(w, "register device", err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Device registered"})
}
