package logger

import "testing"

func TestNewIsSingleton(t *testing.T) {
	first, err := New(Config{Development: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if first == nil {
		t.Fatal("New returned nil logger without error")
	}
	second, err := New(Config{Development: false})
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	if second != first {
		t.Error("second call built a different logger")
	}
}
