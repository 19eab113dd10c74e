package astfile

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokLifetime
	tokString
	tokPunct
)

type token struct {
	kind tokKind
	text string
	off  int // byte offset inside the scalar
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokString:
		return fmt.Sprintf("%q", t.text)
	default:
		return "`" + t.text + "`"
	}
}

// multi-byte punctuation, longest first
var puncts = []string{"...", "::", "->", "&", "~", "*", "[", "]", "(", ")", "<", ">", ",", ":", "+", "=", "!", "_"}

// lex splits a surface-syntax snippet into tokens.
func lex(src string) ([]token, error) {
	var out []token
	i := 0
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		switch {
		case unicode.IsSpace(r):
			i += size
		case r == '\'':
			j := i + 1
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			if j == i+1 {
				return nil, fmt.Errorf("expected a lifetime name at offset %d", i)
			}
			out = append(out, token{kind: tokLifetime, text: src[i:j], off: i})
			i = j
		case r == '"':
			j := strings.IndexByte(src[i+1:], '"')
			if j < 0 {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			out = append(out, token{kind: tokString, text: src[i+1 : i+1+j], off: i})
			i += j + 2
		case r == '_' && (i+1 >= len(src) || !isIdentByte(src[i+1])):
			out = append(out, token{kind: tokPunct, text: "_", off: i})
			i++
		case r == '_' || unicode.IsLetter(r):
			j := i + size
			for j < len(src) && isIdentByte(src[j]) {
				j++
			}
			out = append(out, token{kind: tokIdent, text: src[i:j], off: i})
			i = j
		default:
			matched := false
			for _, p := range puncts {
				if strings.HasPrefix(src[i:], p) {
					out = append(out, token{kind: tokPunct, text: p, off: i})
					i += len(p)
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("unexpected character %q at offset %d", r, i)
			}
		}
	}
	out = append(out, token{kind: tokEOF, off: len(src)})
	return out, nil
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
