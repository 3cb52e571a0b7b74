package directive

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokInt
	tokSymbol
	tokComma
	tokColon
	tokArrow
	tokBang
	tokLBrace
	tokRBrace
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
	num  int64
	col  int
	end  int
}

func (k tokenKind) String() string {
	switch k {
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokInt:
		return "integer"
	case tokSymbol:
		return "symbol"
	case tokComma:
		return "','"
	case tokColon:
		return "':'"
	case tokArrow:
		return "'=>'"
	case tokBang:
		return "'!'"
	case tokLBrace:
		return "'{'"
	case tokRBrace:
		return "'}'"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	default:
		return "token"
	}
}

// lexLine splits a single source line into tokens, dropping any trailing comment.
func lexLine(line string, lineNo int) ([]token, error) {
	var toks []token
	src := []rune(line)
	i := 0

	errAt := func(col int, format string, args ...any) error {
		return &SyntaxError{Line: lineNo, Col: col + 1, Msg: fmt.Sprintf(format, args...)}
	}

	for i < len(src) {
		r := src[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '#':
			return toks, nil
		case r == '\'' || r == '"':
			s, n, err := lexString(src[i:], r)
			if err != nil {
				return nil, errAt(i, "%v", err)
			}
			toks = append(toks, token{kind: tokString, text: s, col: i})
			i += n
		case r == '-' || r == '+' || unicode.IsDigit(r):
			start := i
			i++
			for i < len(src) && (unicode.IsDigit(src[i]) || src[i] == '_') {
				i++
			}
			text := strings.ReplaceAll(string(src[start:i]), "_", "")
			n, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				return nil, errAt(start, "malformed integer %q", string(src[start:i]))
			}
			toks = append(toks, token{kind: tokInt, text: text, num: n, col: start})
		case r == ':':
			// `key:` directly after an identifier is a hash label, not a symbol.
			label := len(toks) > 0 && toks[len(toks)-1].kind == tokIdent && toks[len(toks)-1].end == i
			if !label && i+1 < len(src) && isIdentStart(src[i+1]) {
				start := i
				i++
				for i < len(src) && isIdentPart(src[i]) {
					i++
				}
				toks = append(toks, token{kind: tokSymbol, text: string(src[start+1 : i]), col: start})
				continue
			}
			toks = append(toks, token{kind: tokColon, text: ":", col: i})
			i++
		case r == '=' && i+1 < len(src) && src[i+1] == '>':
			toks = append(toks, token{kind: tokArrow, text: "=>", col: i})
			i += 2
		case isIdentStart(r):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(src[start:i]), col: start, end: i})
		default:
			kind, ok := punct[r]
			if !ok {
				return nil, errAt(i, "unexpected character %q", r)
			}
			toks = append(toks, token{kind: kind, text: string(r), col: i})
			i++
		}
	}
	return toks, nil
}

var punct = map[rune]tokenKind{
	',': tokComma,
	'!': tokBang,
	'{': tokLBrace,
	'}': tokRBrace,
	'(': tokLParen,
	')': tokRParen,
}

// lexString reads a quoted string starting at src[0] and returns its value and
// the number of runes consumed, quotes included.
func lexString(src []rune, quote rune) (string, int, error) {
	var b strings.Builder
	for i := 1; i < len(src); i++ {
		r := src[i]
		switch {
		case r == quote:
			return b.String(), i + 1, nil
		case r == '\\' && i+1 < len(src):
			i++
			next := src[i]
			if quote == '\'' {
				// Single quotes only escape the quote and the backslash.
				if next != '\'' && next != '\\' {
					b.WriteRune('\\')
				}
				b.WriteRune(next)
				continue
			}
			switch next {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(next)
			}
		default:
			b.WriteRune(r)
		}
	}
	return "", 0, fmt.Errorf("unterminated string")
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || r == '?'
}
