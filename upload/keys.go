package upload

import (
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v4"
)

const fallbackFilename = "upload"

// ObjectKey places filename under the owner's prefix with a random segment so
// two uploads of the same name never collide: "<owner>/<nonce>/<name>".
func ObjectKey(ownerID uuid.UUID, filename string) string {
	return ownerID.String() + "/" + shortuuid.New() + "/" + SanitizeFilename(filename)
}

// OwnsKey reports whether key was issued under ownerID's prefix.
func OwnsKey(ownerID uuid.UUID, key string) bool {
	rest, ok := strings.CutPrefix(key, ownerID.String()+"/")
	if !ok || rest == "" {
		return false
	}
	for _, seg := range strings.Split(rest, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return false
		}
	}
	return true
}

// SanitizeFilename keeps only the final path element of name and drops control
// characters.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == "/" || name == ".." {
		return fallbackFilename
	}
	return name
}
