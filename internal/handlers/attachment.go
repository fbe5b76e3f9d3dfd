package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/HammerMeetNail/penpals/internal/blobstore"
	"github.com/HammerMeetNail/penpals/internal/logging"
)

const maxAttachmentBytes = 10 << 20

// BlobStore is the subset of blobstore.LocalStore the handlers use.
type BlobStore interface {
	Save(filename string, r io.Reader) (string, error)
	URL(ref string) string
	Path(ref string) (string, bool)
}

type AttachmentHandler struct {
	store BlobStore
}

func NewAttachmentHandler(store BlobStore) *AttachmentHandler {
	return &AttachmentHandler{store: store}
}

type AttachmentResponse struct {
	Ref string `json:"ref"`
	URL string `json:"url"`
}

// Upload stores a multipart "file" field and returns the reference to put in
// a message's image_ref.
func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxAttachmentBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing or oversized file")
		return
	}
	defer file.Close()

	ref, err := h.store.Save(header.Filename, file)
	if err != nil {
		if errors.Is(err, blobstore.ErrUnsupportedType) {
			writeError(w, http.StatusBadRequest, "Unsupported file type")
			return
		}
		logging.Error("Failed to store attachment", map[string]interface{}{
			"user_id": userID.String(),
			"error":   err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusCreated, AttachmentResponse{Ref: ref, URL: h.store.URL(ref)})
}

// Serve streams a stored blob by reference.
func (h *AttachmentHandler) Serve(w http.ResponseWriter, r *http.Request) {
	path, ok := h.store.Path(r.PathValue("ref"))
	if !ok {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	http.ServeFile(w, r, path)
}
