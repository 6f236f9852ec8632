package image

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ohyesboy/BananaPicGen/internal/security"
)

// maxInputBytes matches the inline-payload limit of the generation API.
const maxInputBytes = 7 * 1024 * 1024

var supportedExts = []string{".png", ".jpg", ".jpeg", ".webp"}

// Loader reads reference images from disk into the binary blobs the
// generation call consumes.
type Loader struct {
	maxBytes int64
}

func NewLoader() *Loader {
	return &Loader{maxBytes: maxInputBytes}
}

func (l *Loader) Load(path string) ([]byte, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(supportedExts, ext) {
		return nil, fmt.Errorf("unsupported image format %q: use one of %v", ext, supportedExts)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	if info.Size() > l.maxBytes {
		return nil, fmt.Errorf("image %s is too large: %d bytes (max %d)", path, info.Size(), l.maxBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

func (l *Loader) LoadAll(paths []string) ([][]byte, error) {
	images := make([][]byte, 0, len(paths))
	for _, path := range paths {
		data, err := l.Load(path)
		if err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, nil
}

// Saver writes generated results to disk. Results arrive as data: URLs for
// inline payloads or http(s) URLs to download.
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

func (s *Saver) Save(ctx context.Context, imageURL, path string) error {
	if err := security.ValidateSavePath(path); err != nil {
		return err
	}

	data, err := s.fetch(ctx, imageURL)
	if err != nil {
		return err
	}

	if err := s.ensureDir(path); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

func (s *Saver) fetch(ctx context.Context, imageURL string) ([]byte, error) {
	if strings.HasPrefix(imageURL, "data:") {
		return decodeDataURL(imageURL)
	}
	if strings.HasPrefix(imageURL, "http://") || strings.HasPrefix(imageURL, "https://") {
		return s.downloadFromURL(ctx, imageURL)
	}
	return nil, fmt.Errorf("unsupported image URL scheme")
}

func decodeDataURL(url string) ([]byte, error) {
	_, payload, found := strings.Cut(url, ",")
	if !found {
		return nil, fmt.Errorf("malformed data URL")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image data: %w", err)
	}
	return data, nil
}

func (s *Saver) downloadFromURL(ctx context.Context, url string) ([]byte, error) {
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

func (s *Saver) ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}

// GenerateFilename builds an output filename from a task's position and
// prompt name.
func GenerateFilename(index int, name string) string {
	sanitized := security.SanitizeFilename(strings.ToLower(strings.Join(strings.Fields(name), "-")))
	if len(sanitized) > 50 {
		sanitized = strings.TrimSuffix(sanitized[:50], "-")
	}
	return fmt.Sprintf("%03d-%s.png", index, sanitized)
}
