// Package imgsrc loads card images from local paths or http(s) URLs and
// derives their sha256 content hash, which is the card identity everywhere
// downstream.
package imgsrc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cardex-ai/cardex/engine/domain"
)

// Loader fetches image bytes from a path or URL.
type Loader struct {
	httpClient *http.Client
	maxBytes   int64
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient overrides the HTTP client used for URL sources.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.httpClient = c }
}

// WithMaxBytes overrides the image size cap.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) { l.maxBytes = n }
}

// New creates a Loader with a timeout'd HTTP client and the default size cap.
func New(opts ...Option) *Loader {
	l := &Loader{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxBytes:   domain.MaxImageBytes,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load reads the image at source and returns its bytes plus an ImageRef with
// the content hash filled in. Source may be a local path or an http(s) URL.
func (l *Loader) Load(ctx context.Context, source string) ([]byte, domain.ImageRef, error) {
	if err := domain.ValidateImageSource(source); err != nil {
		return nil, domain.ImageRef{}, err
	}

	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		data, err = l.fetch(ctx, source)
	} else {
		data, err = l.read(source)
	}
	if err != nil {
		return nil, domain.ImageRef{}, err
	}

	mime := sniffImage(data)
	if mime == "" {
		return nil, domain.ImageRef{}, domain.NewValidationError("source", source, domain.ErrNotAnImage)
	}

	sum := sha256.Sum256(data)
	ref := domain.ImageRef{
		Hash:     hex.EncodeToString(sum[:]),
		Source:   source,
		MimeType: mime,
		Size:     int64(len(data)),
	}
	return data, ref, nil
}

func (l *Loader) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imgsrc: build request: %w", err)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imgsrc: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("imgsrc: fetch %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("imgsrc: read body: %w", err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, domain.NewValidationError("source", url, domain.ErrImageTooLarge)
	}
	return data, nil
}

func (l *Loader) read(path string) ([]byte, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("imgsrc: stat %s: %w", path, err)
	}
	if fi.Size() > l.maxBytes {
		return nil, domain.NewValidationError("source", path, domain.ErrImageTooLarge)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("imgsrc: read %s: %w", path, err)
	}
	return data, nil
}

// Describe validates already-loaded image bytes (an upload, typically) and
// builds their ImageRef.
func Describe(data []byte, source string) (domain.ImageRef, error) {
	if int64(len(data)) > domain.MaxImageBytes {
		return domain.ImageRef{}, domain.NewValidationError("source", source, domain.ErrImageTooLarge)
	}
	mime := sniffImage(data)
	if mime == "" {
		return domain.ImageRef{}, domain.NewValidationError("source", source, domain.ErrNotAnImage)
	}
	sum := sha256.Sum256(data)
	return domain.ImageRef{
		Hash:     hex.EncodeToString(sum[:]),
		Source:   source,
		MimeType: mime,
		Size:     int64(len(data)),
	}, nil
}

// sniffImage returns the mime type for supported image formats, or "".
// http.DetectContentType covers the formats card photos come in.
func sniffImage(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/jpeg", "image/png", "image/webp", "image/gif":
		return ct
	default:
		return ""
	}
}
