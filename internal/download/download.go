// Package download fetches model and font files over HTTP into a local cache directory.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	// MaxSize caps a single download; larger responses are rejected.
	MaxSize = 256 << 20
)

// ErrTooLarge is returned when the response body exceeds MaxSize.
var ErrTooLarge = errors.New("download: response too large")

// Client downloads files. The zero value uses a client with a 60s timeout.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

func (c *Client) http() *http.Client {
	if c != nil && c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: defaultTimeout}
}

// Fetch downloads rawURL into destDir and returns the saved path. The file name comes from
// Content-Disposition or the URL path; the extension from the URL or Content-Type. The body is
// written to a temporary file first and renamed into place, so watchers never see a partial file.
func (c *Client) Fetch(ctx context.Context, rawURL, destDir string) (savedPath string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("download: %q is not an http(s) URL", rawURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if c != nil && c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	resp, err := c.http().Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > MaxSize {
		return "", ErrTooLarge
	}

	name := FileName(u, resp.Header)
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	tmp, err := os.CreateTemp(destDir, ".part-*")
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	n, err := io.Copy(tmp, io.LimitReader(resp.Body, MaxSize+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	if n > MaxSize {
		err = ErrTooLarge
		return "", err
	}
	savedPath = filepath.Join(destDir, name)
	if err = os.Rename(tmp.Name(), savedPath); err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return savedPath, nil
}

// FileName picks a safe local file name for a response.
func FileName(u *url.URL, h http.Header) string {
	name := fromContentDisposition(h.Get("Content-Disposition"))
	if name == "" {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		name = "model"
	}
	name = sanitize(name)
	if ext := extFromName(name); ext != "" {
		return name
	}
	if ext := extFromContentType(h.Get("Content-Type")); ext != "" {
		return name + ext
	}
	return name + ".bin"
}

func fromContentDisposition(cd string) string {
	if cd == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return ""
	}
	return filepath.Base(params["filename"])
}

var knownExts = []string{".glb", ".gltf", ".obj", ".zip", ".ttf", ".otf"}

func extFromName(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range knownExts {
		if ext == e {
			return ext
		}
	}
	return ""
}

func extFromContentType(ct string) string {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	switch mt {
	case "model/gltf-binary":
		return ".glb"
	case "model/gltf+json":
		return ".gltf"
	case "model/obj", "text/x-wavefront-obj":
		return ".obj"
	case "application/zip", "application/x-zip-compressed":
		return ".zip"
	case "font/ttf", "font/sfnt":
		return ".ttf"
	case "font/otf":
		return ".otf"
	}
	return ""
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]+`)

func sanitize(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "model"
	}
	if len(name) > 96 {
		ext := filepath.Ext(name)
		if len(ext) > 8 {
			ext = ""
		}
		name = name[:96-len(ext)] + ext
	}
	return name
}
