// Package image downloads generated meme images and writes them to local
// files. The backend serves result images by URL; the engine only carries
// URLs, so saving is the one place bytes are fetched.
package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ShowBamboo/ai-meme-generator/internal/security"
)

type Saver struct {
	httpClient *http.Client
}

func NewSaver() *Saver {
	return &Saver{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Save downloads imageURL and writes it to path. An empty path gets a
// timestamped filename derived from label (typically the prompt).
func (s *Saver) Save(ctx context.Context, imageURL, path, label string) (string, error) {
	if imageURL == "" {
		return "", fmt.Errorf("no image to save")
	}
	if path == "" {
		path = GenerateFilename(label, time.Now())
	}
	if err := security.ValidateSavePath(path); err != nil {
		return "", err
	}

	data, err := s.download(ctx, imageURL)
	if err != nil {
		return "", fmt.Errorf("failed to download image: %w", err)
	}

	if err := ensureDir(path); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

func (s *Saver) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GenerateFilename builds a timestamped png filename from free text.
func GenerateFilename(label string, t time.Time) string {
	name := security.SanitizeFilename(label)
	if len(name) > 40 {
		name = name[:40]
	}
	return fmt.Sprintf("%s-%s.png", name, t.Format("20060102-150405"))
}
