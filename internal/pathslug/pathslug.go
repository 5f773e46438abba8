// Package pathslug resolves the on-disk output path for a decoded
// call, deriving the dated directory layout from caller-supplied
// metadata when available and falling back to a flat layout otherwise.
package pathslug

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"golang.org/x/sync/singleflight"
	"golang.org/x/text/unicode/norm"
)

// Resolver computes output paths under a fixed root and deduplicates
// concurrent MkdirAll calls for the same directory.
type Resolver struct {
	root  string
	group singleflight.Group
}

// New returns a Resolver rooted at root.
func New(root string) *Resolver {
	return &Resolver{root: root}
}

// Paths is the resolved wav/json output path pair for one call.
type Paths struct {
	Dir  string
	WAV  string
	JSON string
}

// Resolve computes the output paths for basename, using shortName and
// startTime when both are present to build
// <root>/<slug(shortName)>/<YYYY>/<MM>/<DD>/<basename>, else falling
// back to <root>/<basename>. It creates the resolved directory,
// deduplicating concurrent creates of the same path across callers.
func (r *Resolver) Resolve(basename, shortName string, startTime time.Time, hasDated bool) (Paths, error) {
	dir := r.root
	if hasDated && shortName != "" {
		slug := Slug(shortName)
		if slug != "" {
			dir = filepath.Join(r.root, slug,
				startTime.Format("2006"), startTime.Format("01"), startTime.Format("02"))
		}
	}

	if err := r.mkdirAll(dir); err != nil {
		return Paths{}, err
	}

	return Paths{
		Dir:  dir,
		WAV:  filepath.Join(dir, basename+".wav"),
		JSON: filepath.Join(dir, basename+".json"),
	}, nil
}

func (r *Resolver) mkdirAll(dir string) error {
	_, err, _ := r.group.Do(dir, func() (interface{}, error) {
		return nil, os.MkdirAll(dir, 0755)
	})
	return err
}

// Slug normalizes s to Unicode NFC and collapses every run of
// non-alphanumeric runes to a single underscore, trimming
// leading/trailing underscores. Case is preserved verbatim — short_name
// values like "SYS1" must land on disk exactly as supplied. The result
// never contains "/", "\", or "..", so it cannot be used to escape the
// output root regardless of what a caller supplies as short_name.
func Slug(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	lastWasUnderscore := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastWasUnderscore = false
			continue
		}
		if !lastWasUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastWasUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
