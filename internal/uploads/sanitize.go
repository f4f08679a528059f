package uploads

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameLen = 255
	maxExtLen  = 16
)

// SanitizeFilename maps a client-supplied filename to a safe name inside
// the upload root. Any directory component is dropped, so traversal
// sequences such as "../../etc/passwd" collapse to "passwd".
func SanitizeFilename(name string) string {
	// Keep only the last path element, whatever the client's separator.
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}

	// Remove null bytes and other control characters
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.ToValidUTF8(name, "")

	// Trim spaces and dots from start/end
	name = strings.Trim(name, " .")

	if len(name) > maxNameLen {
		ext := filepath.Ext(name)
		if len(ext) > maxExtLen {
			ext = ""
		}
		base := name[:len(name)-len(ext)]
		cut := maxNameLen - len(ext)
		for cut > 0 && !utf8.RuneStart(base[cut]) {
			cut--
		}
		name = strings.Trim(strings.Trim(base[:cut], " .")+ext, " .")
	}

	if name == "" {
		return "unnamed"
	}

	return name
}

// ValidateName rejects any name that SanitizeFilename would rewrite.
func ValidateName(name string) error {
	if name == "" || SanitizeFilename(name) != name {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
