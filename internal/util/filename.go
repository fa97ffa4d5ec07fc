package util

import (
	"os"
	"path/filepath"
	"strings"
)

// SafeFilename strips any path components and characters that are unsafe in
// a storage locator. Empty results fall back to a generic document name.
func SafeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, string(os.PathSeparator), "_")
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "input.docx"
	}
	return name
}
