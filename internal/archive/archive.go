// Package archive unpacks zipped model bundles (a .gltf with its buffers and textures).
package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// MaxExtracted caps the total bytes written by one Unzip.
const MaxExtracted = 512 << 20

var (
	// ErrTooLarge is returned when the archive expands beyond MaxExtracted.
	ErrTooLarge = errors.New("unzip: archive expands too large")
	// ErrNoModel is returned when an archive holds no loadable model.
	ErrNoModel = errors.New("archive: no .glb, .gltf or .obj inside")
)

// Unzip extracts zipPath into destDir, preserving directory structure. Entries that would
// land outside destDir are skipped. Returns the extracted file paths.
func Unzip(zipPath, destDir string) (extracted []string, err error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil && !(errors.Is(err, zip.ErrInsecurePath) && r != nil) {
		return nil, fmt.Errorf("unzip: %w", err)
	}
	defer r.Close()
	absDir, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("unzip: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return nil, fmt.Errorf("unzip: %w", err)
	}

	var budget int64 = MaxExtracted
	for _, f := range r.File {
		dest := filepath.Join(absDir, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(dest, absDir+string(os.PathSeparator)) {
			continue // path escape
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return nil, fmt.Errorf("unzip: %w", err)
			}
			continue
		}
		n, err := extract(f, dest, budget)
		if err != nil {
			return nil, err
		}
		budget -= n
		extracted = append(extracted, dest)
	}
	return extracted, nil
}

func extract(f *zip.File, dest string, budget int64) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("unzip: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("unzip: %s: %w", f.Name, err)
	}
	defer rc.Close()
	out, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("unzip: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(rc, budget+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, fmt.Errorf("unzip: %s: %w", f.Name, err)
	}
	if n > budget {
		return n, ErrTooLarge
	}
	return n, nil
}

// modelRank orders model formats by preference; lower is better.
var modelRank = map[string]int{".glb": 0, ".gltf": 1, ".obj": 2}

// FindModel picks the model to load from a list of extracted files: the shallowest path wins,
// then .glb over .gltf over .obj, then name order.
func FindModel(paths []string) (string, error) {
	var models []string
	for _, p := range paths {
		if _, ok := modelRank[strings.ToLower(filepath.Ext(p))]; ok {
			models = append(models, p)
		}
	}
	if len(models) == 0 {
		return "", ErrNoModel
	}
	depth := func(p string) int { return strings.Count(filepath.ToSlash(p), "/") }
	sort.SliceStable(models, func(i, j int) bool {
		a, b := models[i], models[j]
		if da, db := depth(a), depth(b); da != db {
			return da < db
		}
		ra, rb := modelRank[strings.ToLower(filepath.Ext(a))], modelRank[strings.ToLower(filepath.Ext(b))]
		if ra != rb {
			return ra < rb
		}
		return a < b
	})
	return models[0], nil
}

// IsArchive reports whether path names a zip file.
func IsArchive(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".zip")
}
