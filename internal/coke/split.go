package coke

import "strings"

// MessageDelimiter separates the phrase chunks of one logical reply, so a
// client can render them as consecutive chat bubbles.
const MessageDelimiter = "<newline>"

// SplitMessage cuts a reply on the delimiter, dropping empty chunks. A reply
// without the delimiter comes back as a single chunk.
func SplitMessage(message string) []string {
	var out []string
	for _, part := range strings.Split(message, MessageDelimiter) {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return []string{strings.TrimSpace(message)}
	}
	return out
}
