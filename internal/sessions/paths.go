package sessions

import (
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/strrl/claude-history/internal/orchestrator"
)

var unsafeProjectChars = regexp.MustCompile(`[^A-Za-z0-9-]`)

// EncodeProjectPath converts a working directory into the directory name
// Claude uses under its projects directory: separators, the drive colon and
// any other character outside [A-Za-z0-9-] become '-'.
func EncodeProjectPath(path string) string {
	return unsafeProjectChars.ReplaceAllString(path, "-")
}

// DecodeProjectPath is a best-effort inverse of EncodeProjectPath. Directory
// names that contained '-' cannot be recovered, so the real cwd recorded in
// the transcript is preferred whenever it is available.
func DecodeProjectPath(encoded string, windows bool) string {
	if windows {
		if len(encoded) >= 2 && encoded[1] == '-' {
			return encoded[:1] + ":" + strings.ReplaceAll(encoded[2:], "-", "\\")
		}
		return strings.ReplaceAll(encoded, "-", "\\")
	}
	return strings.ReplaceAll(encoded, "-", "/")
}

// ShortName returns the last element of a display path
func ShortName(path string) string {
	path = strings.TrimRight(path, "/\\")
	if i := strings.LastIndexAny(path, "/\\"); i >= 0 {
		return path[i+1:]
	}
	return path
}

var safeID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// checkID rejects identifiers that could escape their directory or act as
// glob patterns.
func checkID(kind, id string) error {
	if id == "" || id == "." || id == ".." || !safeID.MatchString(id) {
		return errors.Wrapf(orchestrator.ErrNotFound, "invalid %s id %q", kind, id)
	}
	return nil
}

// sqlString quotes s as a SQL string literal
func sqlString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// hasTranscripts reports whether dir holds at least one .jsonl file at any
// depth. A missing dir is reported as ErrNotFound.
func hasTranscripts(dir string) (bool, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return false, errors.Wrapf(orchestrator.ErrNotFound, "sessions directory %s", dir)
		}
		return false, errors.Wrapf(orchestrator.ErrIO, "stat %s: %v", dir, err)
	}

	found := false
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".jsonl") {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return false, errors.Wrapf(orchestrator.ErrIO, "walk %s: %v", dir, err)
	}
	return found, nil
}

// sessionIDFromFile returns the file name without its extension
func sessionIDFromFile(path string) string {
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
