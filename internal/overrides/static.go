package overrides

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	perrors "github.com/conneroisu/plonepack/internal/errors"
)

// Legacy images referenced by query.recurrenceinput.css, which CMFPlone
// bundles without them.
//
//go:embed static/*
var bundled embed.FS

// refusedName is never served as a static fallback.
const refusedName = "LICENSE"

// StaticFallbacks answers whether a bundled replacement exists for a
// single-segment request name.
type StaticFallbacks interface {
	Lookup(name string) (string, bool)
}

// BundledNames lists the embedded fallback files.
func BundledNames() []string {
	entries, err := fs.ReadDir(bundled, "static")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

// Materialize writes every bundled fallback missing from dir and returns
// the paths it wrote. Existing files are left alone.
func Materialize(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, perrors.NewIOError(perrors.ErrCodeStaticUnavailable, "create static dir", err).WithTarget(dir)
	}

	var written []string
	for _, name := range BundledNames() {
		dst := filepath.Join(dir, name)
		if _, err := os.Stat(dst); err == nil {
			continue
		}
		data, err := bundled.ReadFile(path.Join("static", name))
		if err != nil {
			return written, fmt.Errorf("read bundled %s: %w", name, err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return written, perrors.NewIOError(perrors.ErrCodeStaticUnavailable, "write static fallback", err).WithTarget(dst)
		}
		written = append(written, dst)
	}
	return written, nil
}

// DirFallbacks serves fallbacks from a directory on disk.
type DirFallbacks struct {
	Dir string
	// Stat defaults to os.Stat.
	Stat func(string) (fs.FileInfo, error)
}

// Lookup returns Dir/name when it is an existing regular file. LICENSE and
// anything that is not a single plain segment are refused.
func (d DirFallbacks) Lookup(name string) (string, bool) {
	if d.Dir == "" || name == "" || name == refusedName || name == "." || name == ".." {
		return "", false
	}
	if strings.ContainsAny(name, `/\`) {
		return "", false
	}
	stat := d.Stat
	if stat == nil {
		stat = os.Stat
	}
	p := filepath.Join(d.Dir, name)
	info, err := stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return p, true
}
