package shell

import (
	"errors"
	"strings"
)

var (
	ErrUnterminatedQuote = errors.New("shell: unterminated quote")
	ErrDanglingEscape    = errors.New("shell: line ends with an escape")
)

// SplitArgs splits a command line on spaces. A double-quoted section is
// one argument and may be empty; a backslash takes the next character
// literally, inside or outside quotes.
func SplitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inArg   bool
		quoted  bool
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
			inArg = true
		case r == '"':
			quoted = !quoted
			inArg = true
		case (r == ' ' || r == '\t') && !quoted:
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if escaped {
		return nil, ErrDanglingEscape
	}
	if quoted {
		return nil, ErrUnterminatedQuote
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
