// Package media owns the avatar pipeline: upload, thumbnail resize, and
// the post-resize trigger that points the user document at the thumbnail.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"path"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/events"
)

// Object layout in the bucket. The thumbnail base name IS the user id;
// the resize handler depends on it to find the document to update.
const (
	avatarPrefix    = "avatars"
	thumbnailPrefix = "thumbnails"
	thumbnailWidth  = 320
)

type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	DownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

type ResizedPublisher interface {
	PublishImageResized(ctx context.Context, ev events.ImageResized) error
}

type Service struct {
	store  ObjectStore
	pub    ResizedPublisher
	urlTTL time.Duration
	log    *zap.SugaredLogger
}

func NewService(store ObjectStore, pub ResizedPublisher, urlTTL time.Duration, log *zap.SugaredLogger) *Service {
	return &Service{store: store, pub: pub, urlTTL: urlTTL, log: log}
}

// UploadAvatar stores the original image under avatars/ and a resized copy
// under thumbnails/<userID>.<ext>, then announces the thumbnail on the
// bus. The user document is not touched here; that is the resize
// handler's job.
func (s *Service) UploadAvatar(ctx context.Context, userID, filename, contentType string, data []byte) (string, error) {
	ext := strings.TrimPrefix(path.Ext(filename), ".")
	if ext == "" {
		ext = "jpg"
	}

	originalKey := fmt.Sprintf("%s/%s.%s", avatarPrefix, userID, ext)
	if err := s.store.Upload(ctx, originalKey, contentType, data); err != nil {
		return "", err
	}

	thumb, err := resize(data)
	if err != nil {
		return "", fmt.Errorf("resize avatar: %w", err)
	}
	thumbKey := fmt.Sprintf("%s/%s.jpg", thumbnailPrefix, userID)
	if err := s.store.Upload(ctx, thumbKey, "image/jpeg", thumb); err != nil {
		return "", err
	}

	if err := s.pub.PublishImageResized(ctx, events.ImageResized{Name: thumbKey, ContentType: "image/jpeg"}); err != nil {
		s.log.Warnw("publish image.resized", "key", thumbKey, "err", err)
	}
	return thumbKey, nil
}

func resize(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
