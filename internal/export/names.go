package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"
)

const (
	maxFileNameLen = 120
	maxClipNameLen = 128
)

// FileName turns a project name into a portable file name stem. Path
// separators and characters reserved on Windows become underscores,
// whitespace runs collapse to one space, and leading or trailing dots and
// spaces are dropped. The result may be empty.
func FileName(s string) string {
	name := collapse(s, func(r rune) rune {
		if strings.ContainsRune(`<>:"/\|?*`, r) {
			return '_'
		}
		return r
	})
	name = truncate(name, maxFileNameLen)
	return strings.Trim(name, ". ")
}

// ClipName fits clip text or a media basename onto one EDL comment line.
func ClipName(s string) string {
	return strings.TrimSpace(truncate(collapse(s, nil), maxClipNameLen))
}

// collapse maps every rune through fn, turns each whitespace run into a
// single space and drops other control characters.
func collapse(s string, fn func(rune) rune) string {
	var b strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
			continue
		case unicode.IsControl(r):
			continue
		}
		if space {
			b.WriteByte(' ')
			space = false
		}
		if fn != nil {
			r = fn(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ValidateOutputDir accepts an existing directory given as a clean path
// without parent references.
func ValidateOutputDir(dir string) error {
	switch {
	case strings.TrimSpace(dir) == "":
		return errors.New("output_dir is required")
	case slices.Contains(strings.Split(filepath.ToSlash(dir), "/"), ".."):
		return errors.New("output_dir cannot contain path traversal")
	case filepath.Clean(dir) != dir:
		return errors.New("output_dir must be a clean path")
	}

	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("output_dir %s does not exist", dir)
	case err != nil:
		return fmt.Errorf("output_dir %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("output_dir %s is not a directory", dir)
	}
	return nil
}
