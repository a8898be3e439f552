package grid

import (
	"strings"
)

const (
	codeSeparator    = '+'
	codePadding      = '0'
	codeSeparatorPos = 8

	// FullCodeLength is the digit count of a level 5 code.
	FullCodeLength = 2 * MaxLevel
)

// Code is a parsed full grid code held as its significant digits, free of
// separator and padding, so hierarchy operations never index formatted strings.
type Code struct {
	digits string
}

// ParseCode accepts a formatted full code ("9F6JGMQJ+QJ", "9F6J0000+").
// Alphabet validation belongs to the codec; this only checks structure.
func ParseCode(s string) (Code, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	sep := strings.IndexByte(s, codeSeparator)
	if sep != codeSeparatorPos || strings.Count(s, string(codeSeparator)) != 1 {
		return Code{}, &CodeError{Code: s}
	}
	head := strings.TrimRight(s[:sep], string(codePadding))
	tail := s[sep+1:]
	if len(head) == 0 || len(head)%2 == 1 || strings.IndexByte(head, codePadding) >= 0 {
		return Code{}, &CodeError{Code: s}
	}
	if len(head) < codeSeparatorPos && tail != "" {
		return Code{}, &CodeError{Code: s}
	}
	if len(tail) == 1 || strings.IndexByte(tail, codePadding) >= 0 {
		return Code{}, &CodeError{Code: s}
	}
	return Code{digits: head + tail}, nil
}

func (c Code) Digits() string { return c.digits }

// Level is the number of digit pairs, capped at MaxLevel for refined codes.
func (c Code) Level() int {
	return min(len(c.digits)/2, MaxLevel)
}

// String formats the code with padding and separator.
func (c Code) String() string {
	if len(c.digits) >= codeSeparatorPos {
		return c.digits[:codeSeparatorPos] + string(codeSeparator) + c.digits[codeSeparatorPos:]
	}
	return c.digits + strings.Repeat(string(codePadding), codeSeparatorPos-len(c.digits)) + string(codeSeparator)
}

// Prefix returns the ancestor code at level.
func (c Code) Prefix(level int) Code {
	n := min(2*max(level, MinLevel), len(c.digits))
	return Code{digits: c.digits[:n]}
}

func (c Code) IsPrefixOf(o Code) bool {
	return len(c.digits) <= len(o.digits) && strings.HasPrefix(o.digits, c.digits)
}

// Local drops the two leading pairs ("9F6JGMQJ+QJ" -> "GMQJ+QJ"). Codes
// without digits past the separator-free head have no local form.
func (c Code) Local() string {
	if len(c.digits) < codeSeparatorPos {
		return ""
	}
	return c.String()[4:]
}

// Label breaks the code into display lines at the pair groupings.
func (c Code) Label() string {
	d := c.digits
	switch {
	case len(d) > codeSeparatorPos:
		return d[:4] + "\n" + d[4:8] + string(codeSeparator) + "\n" + d[8:]
	case len(d) == codeSeparatorPos:
		return d[:4] + "\n" + d[4:8] + string(codeSeparator)
	case len(d) > 4:
		return d[:4] + "\n" + d[4:]
	default:
		return d
	}
}
