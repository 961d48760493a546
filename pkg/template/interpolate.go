package template

import (
	"errors"
	"fmt"
	"strings"
)

type (
	segment struct {
		text   string
		isExpr bool
	}

	parsed []segment
)

const (
	openDelim   = "{{"
	closeDelim  = "}}"
	escapeDelim = `\{{`
)

var (
	ErrUnterminated = errors.New("unterminated expression")
	ErrEmptyExpr    = errors.New("empty expression")
)

// IsTemplate returns whether s contains any placeholder or escape
func IsTemplate(s string) bool {
	return strings.Contains(s, openDelim)
}

func parse(src string) (parsed, error) {
	var res parsed
	var lit strings.Builder

	rest := src
	for len(rest) > 0 {
		if strings.HasPrefix(rest, escapeDelim) {
			lit.WriteString(openDelim)
			rest = rest[len(escapeDelim):]
			continue
		}
		if !strings.HasPrefix(rest, openDelim) {
			lit.WriteByte(rest[0])
			rest = rest[1:]
			continue
		}

		end := strings.Index(rest[len(openDelim):], closeDelim)
		if end < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnterminated, src)
		}
		expr := strings.TrimSpace(rest[len(openDelim) : len(openDelim)+end])
		if expr == "" {
			return nil, fmt.Errorf("%w: %q", ErrEmptyExpr, src)
		}
		if lit.Len() > 0 {
			res = append(res, segment{text: lit.String()})
			lit.Reset()
		}
		res = append(res, segment{text: expr, isExpr: true})
		rest = rest[len(openDelim)+end+len(closeDelim):]
	}

	if lit.Len() > 0 {
		res = append(res, segment{text: lit.String()})
	}
	return res, nil
}

func (p parsed) single() (string, bool) {
	if len(p) == 1 && p[0].isExpr {
		return p[0].text, true
	}
	return "", false
}
