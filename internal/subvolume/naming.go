package subvolume

import (
	"crypto/rand"
	"fmt"
	"regexp"
)

const randomNameAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandomToken returns a random alphanumeric token of the given
// length, used for the Flat Staging Area's default base name and the
// Root Snapshot Bootstrap's snapshot name (spec §3 "Staging Area",
// §4.5 step 1) when the user doesn't supply one explicitly.
func RandomToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random token: %w", err)
	}
	for i, b := range buf {
		buf[i] = randomNameAlphabet[int(b)%len(randomNameAlphabet)]
	}
	return string(buf), nil
}

// stagingBaseNameRE matches valid staging/bootstrap directory names:
// letters, digits, dot, dash, underscore, same charset btrfs allows
// in a subvolume's basename.
var stagingBaseNameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateBaseName checks a user-supplied --snap-base name for the
// characters a path component may contain. It intentionally does not
// reject a name that collides with an existing directory: spec §9
// documents that a collision is treated as idempotent resume.
func ValidateBaseName(name string) error {
	if name == "" {
		return fmt.Errorf("base name must not be empty")
	}
	if !stagingBaseNameRE.MatchString(name) {
		return fmt.Errorf("base name %q contains characters not allowed in a path component", name)
	}
	return nil
}
