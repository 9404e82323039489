// Package artifact writes audit files (raw model responses, repair failures)
// without ever replacing an existing file.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

const maxNameLen = 80

// maxSuffix bounds the collision search so a broken filesystem cannot spin forever.
const maxSuffix = 10000

var (
	unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]`)
	dashRuns    = regexp.MustCompile(`-+`)
)

// path segments that say nothing about which program a page describes
var genericSegments = map[string]struct{}{
	"funding":     {},
	"grants":      {},
	"programs":    {},
	"application": {},
}

// Store writes files under a single directory.
type Store struct {
	dir string
}

// New creates the directory if needed.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("artifact directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string { return s.dir }

// WriteUnique writes data to <base><ext>, or <base>_<n><ext> for the first n
// that does not exist yet, and returns the path written.
func (s *Store) WriteUnique(base, ext string, data []byte) (string, error) {
	base = sanitizeName(base)
	for n := 0; n < maxSuffix; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		path := filepath.Join(s.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create artifact %s: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write artifact %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close artifact %s: %w", name, err)
		}
		return path, nil
	}
	return "", fmt.Errorf("no free artifact name for %s%s", base, ext)
}

// SourceName derives a short, filesystem-safe name for a source URL: the last
// three meaningful path segments, or the first label of the host when the
// path has none.
func SourceName(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return sanitizeName(rawURL)
	}

	var parts []string
	for _, seg := range strings.Split(u.Path, "/") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		seg = strings.TrimSuffix(seg, filepath.Ext(seg))
		if _, generic := genericSegments[strings.ToLower(seg)]; generic {
			continue
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		host := strings.TrimPrefix(u.Hostname(), "www.")
		return sanitizeName(strings.SplitN(host, ".", 2)[0])
	}
	if len(parts) > 3 {
		parts = parts[len(parts)-3:]
	}
	return sanitizeName(strings.Join(parts, "-"))
}

func sanitizeName(s string) string {
	s = unsafeChars.ReplaceAllString(s, "-")
	s = dashRuns.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxNameLen {
		s = strings.TrimRight(s[:maxNameLen], "-")
	}
	if s == "" {
		return "artifact"
	}
	return s
}
