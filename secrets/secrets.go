// Package secrets keeps credentials out of config files: they are read from
// .env files into the environment, where config picks them up.
package secrets

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultFile is read when Load is called without arguments.
const DefaultFile = ".env"

// Load reads each .env file into the process environment. Variables that are
// already set win. Missing files are skipped.
func Load(files ...string) error {
	if len(files) == 0 {
		files = []string{DefaultFile}
	}
	for _, f := range files {
		err := godotenv.Load(f)
		switch {
		case err == nil:
			log.Printf("🔑 Loaded secrets from %s", f)
		case errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Mask hides all but the last four characters of a credential for logging.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}
