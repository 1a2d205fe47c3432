package media

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/events"
)

type AvatarStore interface {
	UpdateFields(ctx context.Context, id string, fields map[string]any) error
}

// ResizeHandler reacts to image.resized events: it derives the owning user
// from the thumbnail's base name, resolves a download URL, and writes it
// into the user's avatar field.
//
// The file naming convention is the only ownership link; there is no
// signature check on the event. Uploads go through the authenticated
// avatar endpoint, which is what keeps the path trustworthy.
type ResizeHandler struct {
	store  ObjectStore
	users  AvatarStore
	urlTTL time.Duration
	log    *zap.SugaredLogger
}

func NewResizeHandler(store ObjectStore, users AvatarStore, urlTTL time.Duration, log *zap.SugaredLogger) *ResizeHandler {
	return &ResizeHandler{store: store, users: users, urlTTL: urlTTL, log: log}
}

// Handle is an events.Handler for the image.resized topic.
func (h *ResizeHandler) Handle(ctx context.Context, _ string, value []byte) error {
	var ev events.ImageResized
	if err := json.Unmarshal(value, &ev); err != nil {
		return fmt.Errorf("decode image.resized: %w", err)
	}
	userID, err := UserIDFromPath(ev.Name)
	if err != nil {
		return err
	}
	url, err := h.store.DownloadURL(ctx, ev.Name, h.urlTTL)
	if err != nil {
		return fmt.Errorf("resolve download url for %s: %w", ev.Name, err)
	}
	if err := h.users.UpdateFields(ctx, userID, map[string]any{"avatar": url}); err != nil {
		return fmt.Errorf("update avatar for %s: %w", userID, err)
	}
	h.log.Infow("avatar updated", "user", userID)
	return nil
}

// UserIDFromPath extracts the user id from a thumbnail object path of the
// form thumbnails/<userID>.<ext>.
func UserIDFromPath(objectPath string) (string, error) {
	base := path.Base(objectPath)
	id := strings.TrimSuffix(base, path.Ext(base))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("media: no user id in object path %q", objectPath)
	}
	return id, nil
}
