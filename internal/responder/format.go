// Package responder implements the matching side of the bot: response
// templates, pattern-based responders, and the aggregation of responses for a
// single inbound message.
package responder

import (
	"regexp"
	"strconv"
)

// placeholderRE matches "$<index>" placeholders. Digits are consumed greedily,
// so "$10" always refers to capture 10.
var placeholderRE = regexp.MustCompile(`\$(\d+)`)

// Format renders template against captures, where captures[0] is the whole
// match and captures[n] the nth group.
//
// Placeholders whose index is out of range (or too large to parse) are left
// verbatim.
//
// Example:
//
//	Format("$0 -> $1", []string{"PD-123", "PD-123"}) // "PD-123 -> PD-123"
//	Format("$9", []string{"a"})                     // "$9"
func Format(template string, captures []string) string {
	return placeholderRE.ReplaceAllStringFunc(template, func(ph string) string {
		idx, err := strconv.Atoi(ph[1:])
		if err != nil || idx < 0 || idx >= len(captures) {
			return ph
		}
		return captures[idx]
	})
}
