package media

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/joeldelcastillo/verndale-chat-app/internal/events"
)

type fakeObjectStore struct {
	objects map[string][]byte
	urls    map[string]string
}

func newFakeObjectStore() *fakeObjectStore {
	return &fakeObjectStore{objects: make(map[string][]byte), urls: make(map[string]string)}
}

func (f *fakeObjectStore) Upload(_ context.Context, key, _ string, data []byte) error {
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStore) DownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://bucket.example/" + key, nil
}

type fakeAvatarStore struct {
	updates map[string]map[string]any
}

func (f *fakeAvatarStore) UpdateFields(_ context.Context, id string, fields map[string]any) error {
	if f.updates == nil {
		f.updates = make(map[string]map[string]any)
	}
	f.updates[id] = fields
	return nil
}

type fakeResizedPub struct {
	events []events.ImageResized
}

func (f *fakeResizedPub) PublishImageResized(_ context.Context, ev events.ImageResized) error {
	f.events = append(f.events, ev)
	return nil
}

func TestUserIDFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
		ok   bool
	}{
		{"thumbnails/u123.png", "u123", true},
		{"thumbnails/u123.jpg", "u123", true},
		{"thumbnails/nested/u9.webp", "u9", true},
		{"u123.png", "u123", true},
		{"thumbnails/.png", "", false},
	}
	for _, c := range cases {
		got, err := UserIDFromPath(c.path)
		if c.ok && (err != nil || got != c.want) {
			t.Errorf("UserIDFromPath(%q) = %q, %v; want %q", c.path, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Errorf("UserIDFromPath(%q) expected error", c.path)
		}
	}
}

func TestResizeHandlerUpdatesAvatar(t *testing.T) {
	store := newFakeObjectStore()
	users := &fakeAvatarStore{}
	h := NewResizeHandler(store, users, time.Hour, zap.NewNop().Sugar())

	payload, _ := json.Marshal(events.ImageResized{Name: "thumbnails/u42.jpg", ContentType: "image/jpeg"})
	if err := h.Handle(context.Background(), "thumbnails/u42.jpg", payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	fields, ok := users.updates["u42"]
	if !ok {
		t.Fatal("user document not updated")
	}
	if fields["avatar"] != "https://bucket.example/thumbnails/u42.jpg" {
		t.Errorf("avatar = %v", fields["avatar"])
	}
}

func TestResizeHandlerRejectsGarbage(t *testing.T) {
	h := NewResizeHandler(newFakeObjectStore(), &fakeAvatarStore{}, time.Hour, zap.NewNop().Sugar())
	if err := h.Handle(context.Background(), "", []byte("{not json")); err == nil {
		t.Error("expected decode error")
	}
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestUploadAvatarWritesOriginalAndThumbnail(t *testing.T) {
	store := newFakeObjectStore()
	pub := &fakeResizedPub{}
	svc := NewService(store, pub, time.Hour, zap.NewNop().Sugar())

	key, err := svc.UploadAvatar(context.Background(), "u7", "me.png", "image/png", testPNG(t))
	if err != nil {
		t.Fatalf("UploadAvatar: %v", err)
	}
	if key != "thumbnails/u7.jpg" {
		t.Errorf("thumbnail key = %q", key)
	}
	if _, ok := store.objects["avatars/u7.png"]; !ok {
		t.Error("original not uploaded")
	}
	thumb, ok := store.objects["thumbnails/u7.jpg"]
	if !ok {
		t.Fatal("thumbnail not uploaded")
	}
	cfg, err := jpegConfig(thumb)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if cfg.Width != thumbnailWidth {
		t.Errorf("thumbnail width = %d, want %d", cfg.Width, thumbnailWidth)
	}
	if len(pub.events) != 1 || pub.events[0].Name != key {
		t.Errorf("image.resized not published: %+v", pub.events)
	}
}

func jpegConfig(data []byte) (image.Config, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	return cfg, err
}

func TestUploadAvatarRejectsNonImage(t *testing.T) {
	svc := NewService(newFakeObjectStore(), &fakeResizedPub{}, time.Hour, zap.NewNop().Sugar())
	if _, err := svc.UploadAvatar(context.Background(), "u7", "notes.txt", "text/plain", []byte("hello")); err == nil {
		t.Error("expected decode error for non-image payload")
	}
}
