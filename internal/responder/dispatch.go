package responder

import "strings"

// Respond runs message through set in order and joins every produced response
// with a newline. The boolean is false when nothing matched, in which case no
// reply should be sent.
func Respond(set []Responder, message string) (string, bool) {
	var all []string
	for _, r := range set {
		all = append(all, r.Responses(message)...)
	}
	if len(all) == 0 {
		return "", false
	}
	return strings.Join(all, "\n"), true
}
