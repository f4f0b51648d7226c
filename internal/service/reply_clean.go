package service

import (
	"regexp"
	"strings"
)

var (
	replyFenceStart = regexp.MustCompile("(?is)^\\s*```[a-z]*\\s*")
	replyFenceEnd   = regexp.MustCompile("(?is)\\s*```\\s*$")
	replySpeaker    = regexp.MustCompile(`(?i)^\s*(buddy|assistant)\s*:\s*`)
)

// cleanModelReply quita BOM, fences que envuelven toda la respuesta y la etiqueta
// "Buddy:" que algunos modelos anteponen. No toca el contenido interno.
func cleanModelReply(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = strings.TrimPrefix(s, "\uFEFF")

	if strings.HasPrefix(s, "```") && strings.HasSuffix(s, "```") && len(s) > 6 {
		s = replyFenceStart.ReplaceAllString(s, "")
		s = replyFenceEnd.ReplaceAllString(s, "")
	}
	s = replySpeaker.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
