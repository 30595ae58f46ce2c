package workflow

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/clipforge/clipforge-agent/internal/session"
)

const maxClipNameLen = 48

// clipFilename builds a fallback output name when the renderer did not
// provide one, keeping the highlight index visible for traceability.
func clipFilename(sessionID string, index int, title string) string {
	name := sanitizeClipName(title, maxClipNameLen)
	if name == "" {
		return fmt.Sprintf("%s_clip_%02d.mp4", sessionID, index)
	}
	return fmt.Sprintf("%s_%02d_%s.mp4", sessionID, index, name)
}

func titleOf(s *session.Session, index int) string {
	if index < 0 || index >= len(s.Highlights) {
		return ""
	}
	return s.Highlights[index].Title
}

// sanitizeClipName lowers a highlight title into a filesystem-safe slug:
// letters and digits kept, runs of anything else collapsed to single
// underscores, capped at maxLen runes.
func sanitizeClipName(s string, maxLen int) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if pendingSep && b.Len() > 0 {
				b.WriteRune('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToLower(r))
		default:
			pendingSep = true
		}
	}

	runes := []rune(b.String())
	if maxLen > 0 && len(runes) > maxLen {
		runes = runes[:maxLen]
	}
	return strings.Trim(string(runes), "_")
}
