package skill

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Skills report where they wrote a note only through prose, so extraction is
// a fixed precedence ladder of text patterns. The ordering is a contract:
// the explicit marker always beats formatting heuristics, and the action-verb
// pattern is the last resort before the filesystem fallback.
var (
	boldPattern     = regexp.MustCompile(`\*\*([^*]+\.md)\*\*`)
	backtickPattern = regexp.MustCompile("`([^`]+\\.md)`")
	actionPattern   = regexp.MustCompile(`(?i)(?:wrote|written|saved|created)[^\n]*?(?:to|at|in)\s+([A-Za-z][^\n]+?\.md)`)
)

// markerPrefix introduces the authoritative note-path line newer skills emit.
const markerPrefix = "NOTE_PATH:"

// fallbackWindow bounds how recently a note must have been modified for the
// filesystem fallback to attribute it to the current invocation.
const fallbackWindow = 10 * time.Second

// ExtractNotePath recovers the note path a skill reports in its output.
// folder is the vault-relative directory the category writes into. Returns ""
// when no pattern matches.
//
// Typical outputs:
//
//	NOTE_PATH: /vault/Clippings/Title.md
//	Done. I've saved the article analysis to **Clippings/Title.md**.
//	Done. I've created the note at `Clippings/Title.md`.
//	Successfully wrote note to Clippings/Article extractions/Title.md
func ExtractNotePath(stdout, vaultDir, folder string) string {
	for _, line := range strings.Split(stdout, "\n") {
		trimmed := strings.TrimSpace(line)
		if rest, ok := strings.CutPrefix(trimmed, markerPrefix); ok {
			if path := strings.TrimSpace(rest); path != "" {
				return resolveNotePath(path, vaultDir, folder)
			}
		}
	}

	if match := boldPattern.FindStringSubmatch(stdout); match != nil {
		return resolveNotePath(match[1], vaultDir, folder)
	}
	if match := backtickPattern.FindStringSubmatch(stdout); match != nil {
		return resolveNotePath(match[1], vaultDir, folder)
	}

	if folder != "" {
		folderPattern := regexp.MustCompile(`(` + regexp.QuoteMeta(folder) + `/[^\n]+?\.md)`)
		if match := folderPattern.FindStringSubmatch(stdout); match != nil {
			return filepath.Join(vaultDir, match[1])
		}
	}

	if match := actionPattern.FindStringSubmatch(stdout); match != nil {
		return resolveNotePath(strings.TrimSpace(match[1]), vaultDir, folder)
	}

	return ""
}

// resolveNotePath makes a recovered path absolute. Paths that already carry a
// separator are vault-relative; bare filenames land in the category folder.
func resolveNotePath(path, vaultDir, folder string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	if strings.Contains(path, "/") {
		return filepath.Join(vaultDir, path)
	}
	return filepath.Join(vaultDir, folder, path)
}

// FindRecentNote scans dir for .md files modified within the fallback window
// after start. It returns a path only when exactly one file qualifies; zero
// or several matches are ambiguous and yield "". A missing directory also
// yields "".
func FindRecentNote(dir string, start time.Time) string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	cutoff := start.Add(-fallbackWindow)
	var found string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if found != "" {
			return ""
		}
		found = filepath.Join(dir, entry.Name())
	}
	return found
}
