package ircbridge

import (
	"regexp"
	"strings"
)

// maxLineLength is a safe PRIVMSG payload size.
const maxLineLength = 400

var (
	paragraphBreak = regexp.MustCompile(`\n\s*\n`)
	whitespaceRun  = regexp.MustCompile(`\s+`)

	codeFenceOpen  = regexp.MustCompile("```[a-zA-Z]*\n")
	codeFenceClose = regexp.MustCompile("```")
	inlineCode     = regexp.MustCompile("`([^`]+)`")
	header         = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)
	boldStars      = regexp.MustCompile(`\*\*([^*]+)\*\*`)
	boldUnderscore = regexp.MustCompile(`__([^_]+)__`)
	italicStar     = regexp.MustCompile(`\*([^*]+)\*`)
	bulletItem     = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+(.+)$`)
	numberedItem   = regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+(.+)$`)
	image          = regexp.MustCompile(`!\[([^\]]*)\]\(([^)]+)\)`)
	link           = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	parenthesizedURL = regexp.MustCompile(`\((https?://[^\s)]+)\)`)
	trailingURLPunct = regexp.MustCompile(`(https?://[^\s)]+?)([.,;:!?]+)(\s|$)`)
)

// formatForIRC flattens a markdown answer into IRC-sized lines.
func formatForIRC(response string) []string {
	response = cleanMarkdown(response)
	response = cleanURLFormatting(response)

	response = paragraphBreak.ReplaceAllString(response, " | ")
	response = whitespaceRun.ReplaceAllString(response, " ")
	response = strings.TrimSpace(response)

	var chunks []string
	for len(response) > 0 {
		if len(response) <= maxLineLength {
			chunks = append(chunks, response)
			break
		}
		breakPoint := findBreakPoint(response, maxLineLength)
		chunks = append(chunks, strings.TrimSpace(response[:breakPoint]))
		response = strings.TrimSpace(response[breakPoint:])
	}
	return chunks
}

func cleanMarkdown(text string) string {
	text = codeFenceOpen.ReplaceAllString(text, "")
	text = codeFenceClose.ReplaceAllString(text, "")
	text = inlineCode.ReplaceAllString(text, "'$1'")
	text = header.ReplaceAllString(text, "== $1 ==")
	text = boldStars.ReplaceAllString(text, "*$1*")
	text = boldUnderscore.ReplaceAllString(text, "*$1*")
	text = bulletItem.ReplaceAllString(text, "• $1")
	text = numberedItem.ReplaceAllString(text, "• $1")
	text = italicStar.ReplaceAllString(text, "$1")
	text = image.ReplaceAllString(text, "[Image: $1] $2")
	text = link.ReplaceAllString(text, "$1 $2")
	return text
}

func cleanURLFormatting(text string) string {
	text = parenthesizedURL.ReplaceAllString(text, "$1")
	text = trailingURLPunct.ReplaceAllString(text, "$1$3")
	return text
}

// findBreakPoint picks where to split text near maxLength, preferring the end
// of a sentence, then other punctuation, then a space. The result never
// splits a UTF-8 sequence.
func findBreakPoint(text string, maxLength int) int {
	if len(text) <= maxLength {
		return len(text)
	}

	lowest := maxLength - 80
	if lowest < 1 {
		lowest = 1
	}
	for _, stops := range []string{".!?", ",;:|", " "} {
		for i := maxLength - 1; i >= lowest; i-- {
			if strings.IndexByte(stops, text[i]) >= 0 && (i+1 >= len(text) || text[i+1] == ' ' || stops == " ") {
				return i + 1
			}
		}
	}

	i := maxLength
	for i > 0 && !isRuneStart(text[i]) {
		i--
	}
	return i
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
