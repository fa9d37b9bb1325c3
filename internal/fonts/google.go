package fonts

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	googleAPI = "https://api.github.com/repos/google/fonts/contents/ofl"
	googleRaw = "https://raw.githubusercontent.com/google/fonts/"
)

// Google looks up font files in the google/fonts repository. The zero value talks to GitHub.
type Google struct {
	HTTP *http.Client
	// API and RawPrefix override the listing endpoint and the only accepted download prefix.
	API       string
	RawPrefix string
}

type githubFile struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	DownloadURL string `json:"download_url"`
}

// Folders converts a display name to the folder names google/fonts may use for it:
// "Open Sans" gives "opensans" then "open-sans".
func Folders(family string) []string {
	lower := strings.ToLower(strings.TrimSpace(family))
	if lower == "" {
		return nil
	}
	noSpaces := strings.ReplaceAll(lower, " ", "")
	out := []string{noSpaces}
	if hyphens := strings.ReplaceAll(lower, " ", "-"); hyphens != noSpaces {
		out = append(out, hyphens)
	}
	return out
}

// URL returns the download URL of a font file for family, preferring a non-italic file.
func (g *Google) URL(ctx context.Context, family string) (string, error) {
	folders := Folders(family)
	if len(folders) == 0 {
		return "", fmt.Errorf("fonts: empty family name")
	}
	var lastErr error
	for _, folder := range folders {
		u, err := g.folderURL(ctx, folder)
		if err == nil {
			return u, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func (g *Google) folderURL(ctx context.Context, folder string) (string, error) {
	api, raw := googleAPI, googleRaw
	if g.API != "" {
		api = g.API
	}
	if g.RawPrefix != "" {
		raw = g.RawPrefix
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, api+"/"+url.PathEscape(folder), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	client := g.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("google fonts: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("font %q not found on Google Fonts", folder)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("google fonts: HTTP %d", resp.StatusCode)
	}
	var files []githubFile
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return "", fmt.Errorf("google fonts: %w", err)
	}

	var fallback string
	for _, f := range files {
		if f.Type != "file" || !hasFontExt(f.Name) || !strings.HasPrefix(f.DownloadURL, raw) {
			continue
		}
		if strings.Contains(strings.ToLower(f.Name), "italic") {
			if fallback == "" {
				fallback = f.DownloadURL
			}
			continue
		}
		return f.DownloadURL, nil
	}
	if fallback != "" {
		return fallback, nil
	}
	return "", fmt.Errorf("no .ttf/.otf file found for %q on Google Fonts", folder)
}
