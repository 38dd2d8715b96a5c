package responder

import "strings"

// scanSource walks a pattern once. It returns the pattern with dot-all
// applied (an unescaped "." outside a character class becomes [\s\S]) and the
// capturing groups in the order of their opening parens: "" for a numbered
// group, the name for a named one.
func scanSource(src string, dotAll bool) (string, []string) {
	rs := []rune(src)
	var b strings.Builder
	b.Grow(len(src))
	var groups []string
	inClass := false

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case r == '\\':
			b.WriteRune(r)
			if i+1 < len(rs) {
				i++
				b.WriteRune(rs[i])
			}
			continue
		case inClass:
			if r == ']' {
				inClass = false
			}
		case r == '[':
			inClass = true
		case r == '.' && dotAll:
			b.WriteString(`[\s\S]`)
			continue
		case r == '(':
			if i+1 < len(rs) && rs[i+1] == '?' {
				if name, ok := groupName(rs[i+2:]); ok {
					groups = append(groups, name)
				}
			} else {
				groups = append(groups, "")
			}
		}
		b.WriteRune(r)
	}
	return b.String(), groups
}

// groupName reads the name of a (?<name>...) or (?'name'...) group from the
// runes after "(?". Lookbehinds are not groups.
func groupName(rest []rune) (string, bool) {
	if len(rest) < 2 {
		return "", false
	}
	var end rune
	switch {
	case rest[0] == '<' && rest[1] != '=' && rest[1] != '!':
		end = '>'
	case rest[0] == '\'':
		end = '\''
	default:
		return "", false
	}
	for j := 1; j < len(rest); j++ {
		if rest[j] == end {
			return string(rest[1:j]), j > 1
		}
	}
	return "", false
}

// groupOrder maps capture positions ($1, $2, ...) to regexp2 group numbers.
// regexp2 numbers unnamed groups before named ones; JavaScript numbers every
// group by its opening paren. A nil result means the scan and the compiled
// expression disagree, and regexp2's own order is used.
func groupOrder(groups []string, compiled []int, numberOf func(string) int) []int {
	if len(groups) != len(compiled)-1 {
		return nil
	}
	order := make([]int, 0, len(groups))
	unnamed := 0
	for _, name := range groups {
		if name == "" {
			unnamed++
			order = append(order, unnamed)
			continue
		}
		n := numberOf(name)
		if n < 0 {
			return nil
		}
		order = append(order, n)
	}
	return order
}
