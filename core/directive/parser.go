package directive

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Directive is a single directive call read from a file.
type Directive struct {
	// Name is the directive name, including a trailing '!' (e.g. "preload_app!").
	Name string
	// Args holds the positional arguments. Values are string, int, bool, nil or
	// map[string]any for hash literals. Symbols are returned as strings.
	Args []any
	// Line is the 1-based source line.
	Line int
}

// SyntaxError reports malformed directive source.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

// Parse reads every directive from r in source order.
func Parse(r io.Reader) ([]Directive, error) {
	var out []Directive

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		toks, err := lexLine(sc.Text(), lineNo)
		if err != nil {
			return nil, err
		}
		if len(toks) == 0 {
			continue
		}
		p := &parser{toks: toks, line: lineNo}
		d, err := p.directive()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read directives: %w", err)
	}
	return out, nil
}

// ParseString is a convenience wrapper around Parse.
func ParseString(src string) ([]Directive, error) {
	return Parse(strings.NewReader(src))
}

type parser struct {
	toks []token
	pos  int
	line int
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *parser) next() (token, bool) {
	t, ok := p.peek()
	if ok {
		p.pos++
	}
	return t, ok
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return &SyntaxError{Line: p.line, Col: t.col + 1, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) eolError(format string, args ...any) error {
	col := 1
	if n := len(p.toks); n > 0 {
		col = p.toks[n-1].col + len(p.toks[n-1].text) + 1
	}
	return &SyntaxError{Line: p.line, Col: col, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t, ok := p.next()
	if !ok {
		return t, p.eolError("expected %s, got end of line", kind)
	}
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, got %s", kind, t.kind)
	}
	return t, nil
}

func (p *parser) directive() (Directive, error) {
	name, err := p.expect(tokIdent)
	if err != nil {
		return Directive{}, err
	}
	d := Directive{Name: name.text, Line: p.line}

	if t, ok := p.peek(); ok && t.kind == tokBang {
		p.pos++
		d.Name += "!"
	}

	t, ok := p.peek()
	if !ok {
		return d, nil
	}

	parens := t.kind == tokLParen
	if parens {
		p.pos++
		if t, ok := p.peek(); ok && t.kind == tokRParen {
			p.pos++
			return d, p.end()
		}
	}

	d.Args, err = p.args()
	if err != nil {
		return Directive{}, err
	}

	if parens {
		if _, err := p.expect(tokRParen); err != nil {
			return Directive{}, err
		}
	}
	return d, p.end()
}

func (p *parser) end() error {
	if t, ok := p.peek(); ok {
		return p.errorf(t, "unexpected %s after directive", t.kind)
	}
	return nil
}

func (p *parser) args() ([]any, error) {
	var args []any
	for {
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		args = append(args, v)

		t, ok := p.peek()
		if !ok || t.kind != tokComma {
			return args, nil
		}
		p.pos++
	}
}

func (p *parser) value() (any, error) {
	t, ok := p.next()
	if !ok {
		return nil, p.eolError("expected a value, got end of line")
	}
	switch t.kind {
	case tokString, tokSymbol:
		return t.text, nil
	case tokInt:
		return int(t.num), nil
	case tokIdent:
		switch t.text {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil":
			return nil, nil
		}
		return nil, p.errorf(t, "unsupported bare word %q", t.text)
	case tokLBrace:
		return p.hash()
	default:
		return nil, p.errorf(t, "unexpected %s", t.kind)
	}
}

// hash parses the remainder of a hash literal; the opening brace is consumed.
func (p *parser) hash() (map[string]any, error) {
	h := make(map[string]any)
	for {
		t, ok := p.next()
		if !ok {
			return nil, p.eolError("unterminated hash literal")
		}
		if t.kind == tokRBrace {
			return h, nil
		}

		var key string
		switch t.kind {
		case tokIdent:
			// Ruby 1.9 style `key: value`.
			if _, err := p.expect(tokColon); err != nil {
				return nil, err
			}
			key = t.text
		case tokSymbol, tokString:
			if _, err := p.expect(tokArrow); err != nil {
				return nil, err
			}
			key = t.text
		default:
			return nil, p.errorf(t, "expected hash key, got %s", t.kind)
		}

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		h[key] = v

		t, ok = p.next()
		if !ok {
			return nil, p.eolError("unterminated hash literal")
		}
		switch t.kind {
		case tokComma:
			continue
		case tokRBrace:
			return h, nil
		default:
			return nil, p.errorf(t, "expected ',' or '}', got %s", t.kind)
		}
	}
}
