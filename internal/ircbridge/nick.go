package ircbridge

import (
	"strings"
)

const nickPunctuation = ",:;.!?"

// containsNick reports whether nick is addressed as a whole word in text,
// e.g. "bot: hi", "hey @bot", "thanks bot!".
func containsNick(nick, text string) bool {
	lowerNick := strings.ToLower(nick)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.TrimPrefix(word, "@")
		if strings.TrimRight(word, nickPunctuation) == lowerNick {
			return true
		}
	}
	return false
}

// removeBotNick strips the addressing prefix ("bot:", "@bot,") or any other
// whole-word mention of nick and returns the remaining question.
func removeBotNick(nick, message string) string {
	lowerNick := strings.ToLower(nick)
	words := strings.Fields(message)
	kept := words[:0]
	for _, word := range words {
		bare := strings.TrimRight(strings.TrimPrefix(strings.ToLower(word), "@"), nickPunctuation)
		if bare == lowerNick {
			continue
		}
		kept = append(kept, word)
	}
	return strings.TrimSpace(strings.TrimLeft(strings.Join(kept, " "), nickPunctuation+"@ "))
}
