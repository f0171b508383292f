package modules

import (
	"strings"
	"unicode"
)

// ParseCommand splits content into command and arguments if it starts with prefix or
// mentions the bot. The mention form accepts both <@id> and <@!id>.
func ParseCommand(content, prefix, botUserID string) (command string, args string, ok bool) {
	content = strings.TrimSpace(content)

	var rest string
	switch {
	case prefix != "" && strings.HasPrefix(content, prefix):
		rest = content[len(prefix):]
	case botUserID != "" && strings.HasPrefix(content, "<@"+botUserID+">"):
		rest = content[len("<@"+botUserID+">"):]
	case botUserID != "" && strings.HasPrefix(content, "<@!"+botUserID+">"):
		rest = content[len("<@!"+botUserID+">"):]
	default:
		return "", "", false
	}

	rest = strings.TrimLeftFunc(rest, unicode.IsSpace)
	if rest == "" {
		return "", "", false
	}

	end := strings.IndexFunc(rest, unicode.IsSpace)
	if end < 0 {
		return rest, "", true
	}
	return rest[:end], strings.TrimSpace(rest[end:]), true
}
