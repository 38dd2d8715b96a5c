package responder

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/rs/zerolog/log"
)

// Responder produces zero or more response strings for an inbound message.
// Implementations must be safe for concurrent use and must not keep state
// between calls.
type Responder interface {
	Responses(message string) []string
}

// ErrInvalidFlags is wrapped by PatternCompileError when the flags string
// contains an unknown or repeated modifier.
var ErrInvalidFlags = errors.New("invalid flags")

// PatternCompileError reports a pattern/flags pair that cannot be compiled.
type PatternCompileError struct {
	Pattern string
	Flags   string
	Err     error
}

func (e *PatternCompileError) Error() string {
	return fmt.Sprintf("invalid pattern /%s/%s: %v", e.Pattern, e.Flags, e.Err)
}

func (e *PatternCompileError) Unwrap() error { return e.Err }

// Flags are the parsed pattern modifiers.
//
//	g  scan for every non-overlapping match
//	i  case-insensitive
//	m  ^ and $ match at line boundaries
//	s  . matches newlines
//	u  unicode mode, enables \u{...} code point escapes
//	y  sticky: every match must start where the previous one ended
type Flags struct {
	Global     bool
	IgnoreCase bool
	Multiline  bool
	DotAll     bool
	Unicode    bool
	Sticky     bool
}

// ParseFlags parses a flags string such as "gi". Unknown or duplicated
// characters yield an error wrapping ErrInvalidFlags.
func ParseFlags(s string) (Flags, error) {
	var f Flags
	seen := make(map[rune]bool, len(s))
	for _, r := range s {
		if seen[r] {
			return Flags{}, fmt.Errorf("%w: duplicate %q", ErrInvalidFlags, r)
		}
		seen[r] = true
		switch r {
		case 'g':
			f.Global = true
		case 'i':
			f.IgnoreCase = true
		case 'm':
			f.Multiline = true
		case 's':
			f.DotAll = true
		case 'u':
			f.Unicode = true
		case 'y':
			f.Sticky = true
		default:
			return Flags{}, fmt.Errorf("%w: unknown %q", ErrInvalidFlags, r)
		}
	}
	return f, nil
}

// options maps flags onto regexp2 options. ECMAScript semantics always
// apply; regexp2 rejects Singleline in that mode, so dot-all is applied to
// the source by scanSource instead.
func (f Flags) options() regexp2.RegexOptions {
	var opts regexp2.RegexOptions = regexp2.ECMAScript
	if f.Unicode {
		opts |= regexp2.Unicode
	}
	if f.IgnoreCase {
		opts |= regexp2.IgnoreCase
	}
	if f.Multiline {
		opts |= regexp2.Multiline
	}
	return opts
}

// Option configures a Pattern.
type Option func(*Pattern)

// WithMatchTimeout bounds the time a single match attempt may take.
// Zero means no limit.
func WithMatchTimeout(d time.Duration) Option {
	return func(p *Pattern) {
		if d > 0 {
			p.re.MatchTimeout = d
		}
	}
}

// Pattern is a Responder backed by a compiled regular expression and a
// response template (see Format).
type Pattern struct {
	re       *regexp2.Regexp
	flags    Flags
	groups   []int // regexp2 group number for $1, $2, ...; nil keeps regexp2 order
	source   string
	rawFlags string
	response string
}

var _ Responder = (*Pattern)(nil)

// NewPattern compiles pattern with flags. It returns a *PatternCompileError
// when either is invalid.
func NewPattern(pattern, flags, response string, opts ...Option) (*Pattern, error) {
	f, err := ParseFlags(flags)
	if err != nil {
		return nil, &PatternCompileError{Pattern: pattern, Flags: flags, Err: err}
	}
	src, groups := scanSource(pattern, f.DotAll)
	re, err := regexp2.Compile(src, f.options())
	if err != nil {
		return nil, &PatternCompileError{Pattern: pattern, Flags: flags, Err: err}
	}
	p := &Pattern{
		re:       re,
		flags:    f,
		groups:   groupOrder(groups, re.GetGroupNumbers(), re.GroupNumberFromName),
		source:   pattern,
		rawFlags: flags,
		response: response,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Validate reports whether pattern and flags compile.
func Validate(pattern, flags string) error {
	_, err := NewPattern(pattern, flags, "")
	return err
}

// String renders the pattern in /source/flags form.
func (p *Pattern) String() string { return "/" + p.source + "/" + p.rawFlags }

// Responses formats the response template once per match in message. Without
// the global flag only the first match is used. Zero-width matches advance
// the scan by one rune.
func (p *Pattern) Responses(message string) []string {
	text := []rune(message)
	var out []string

	start := 0
	for start <= len(text) {
		m, err := p.re.FindRunesMatchStartingAt(text, start)
		if err != nil {
			// Only a match timeout ends up here.
			log.Warn().Err(err).Str("pattern", p.String()).Msg("pattern scan aborted")
			break
		}
		if m == nil {
			break
		}
		if p.flags.Sticky && m.Index != start {
			break
		}

		out = append(out, Format(p.response, p.captures(m)))

		if !p.flags.Global {
			break
		}
		next := m.Index + m.Length
		if m.Length == 0 {
			next++
		}
		start = next
	}
	return out
}

// captures returns the whole match followed by every group, numbered by
// opening paren. Groups that did not participate in the match are empty
// strings.
func (p *Pattern) captures(m *regexp2.Match) []string {
	if p.groups == nil {
		groups := m.Groups()
		out := make([]string, len(groups))
		for i := range groups {
			out[i] = groups[i].String()
		}
		return out
	}
	out := make([]string, len(p.groups)+1)
	out[0] = m.String()
	for i, n := range p.groups {
		if g := m.GroupByNumber(n); g != nil {
			out[i+1] = g.String()
		}
	}
	return out
}
