package image

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestSaver_Save(t *testing.T) {
	payload := []byte("\x89PNG fake image bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer server.Close()

	path := filepath.Join(t.TempDir(), "out", "meme.png")
	saver := NewSaver()

	saved, err := saver.Save(context.Background(), server.URL+"/x.png", path, "")
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if saved != path {
		t.Errorf("Save() = %q, want %q", saved, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != string(payload) {
		t.Errorf("written bytes = %q", data)
	}
}

func TestSaver_SaveNoImage(t *testing.T) {
	saver := NewSaver()
	if _, err := saver.Save(context.Background(), "", "out.png", "cat"); err == nil {
		t.Error("Save() with no URL error = nil, want failure")
	}
}

func TestSaver_SaveRejectsTraversal(t *testing.T) {
	saver := NewSaver()
	if _, err := saver.Save(context.Background(), "http://localhost/x.png", "../escape.png", ""); err == nil {
		t.Error("Save() with traversal path error = nil, want failure")
	}
}

func TestSaver_SaveDownloadFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	saver := NewSaver()
	path := filepath.Join(t.TempDir(), "meme.png")
	if _, err := saver.Save(context.Background(), server.URL+"/gone.png", path, ""); err == nil {
		t.Fatal("Save() error = nil, want download failure")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("failed download still produced a file")
	}
}

func TestGenerateFilename(t *testing.T) {
	stamp := time.Date(2024, 6, 1, 12, 30, 45, 0, time.UTC)

	got := GenerateFilename("a tired cat", stamp)
	if got != "a tired cat-20240601-123045.png" {
		t.Errorf("GenerateFilename() = %q", got)
	}

	long := GenerateFilename(strings.Repeat("x", 100), stamp)
	if want := strings.Repeat("x", 40) + "-20240601-123045.png"; long != want {
		t.Errorf("GenerateFilename(long) = %q, want name truncated to 40", long)
	}

	empty := GenerateFilename("", stamp)
	if empty != "meme-20240601-123045.png" {
		t.Errorf("GenerateFilename(empty) = %q", empty)
	}
}
