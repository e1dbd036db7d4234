package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	dailyNotesFolder = "_Daily"
	knowledgeHeading = "## On-Demand Knowledge"
	captureHeading   = "## Capture"
)

// appendToDailyNote records a promoted clip in today's daily note under the
// knowledge heading. The section is created before the capture heading (or
// at the end) when missing. A missing daily note is not an error; the vault
// owner may simply not have opened today's note yet.
func appendToDailyNote(vaultDir, title, category, insight string, now time.Time) error {
	notePath := filepath.Join(vaultDir, dailyNotesFolder, now.Format("2006-01-02")+".md")

	content, err := os.ReadFile(notePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read daily note: %w", err)
	}

	entry := fmt.Sprintf("- **[[%s]]** → %s — *Just now*\n  > %s", title, category, insight)
	lines := strings.Split(string(content), "\n")

	sectionIdx := -1
	captureIdx := -1
	for i, line := range lines {
		switch strings.TrimSpace(line) {
		case knowledgeHeading:
			sectionIdx = i
		case captureHeading:
			captureIdx = i
		}
	}

	switch {
	case sectionIdx >= 0:
		// Insert at the end of the existing section, before the next heading.
		insertIdx := len(lines)
		for i := sectionIdx + 1; i < len(lines); i++ {
			if strings.HasPrefix(lines[i], "## ") {
				insertIdx = i
				break
			}
		}
		var inserted []string
		if insertIdx > sectionIdx+1 && strings.TrimSpace(lines[insertIdx-1]) != "" {
			inserted = []string{entry, ""}
		} else {
			inserted = []string{entry}
		}
		lines = append(lines[:insertIdx], append(inserted, lines[insertIdx:]...)...)

	case captureIdx >= 0:
		section := []string{knowledgeHeading, entry, ""}
		lines = append(lines[:captureIdx], append(section, lines[captureIdx:]...)...)

	default:
		if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) != "" {
			lines = append(lines, "")
		}
		lines = append(lines, knowledgeHeading, entry)
	}

	if err := os.WriteFile(notePath, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return fmt.Errorf("write daily note: %w", err)
	}
	return nil
}
