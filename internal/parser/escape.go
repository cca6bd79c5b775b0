package parser

import (
	"strconv"
	"strings"

	"github.com/0x4d5352/regaudit/internal/ast"
)

// parseEscape reads a backslash escape. Several escapes change meaning
// inside a character class: backrefs become octal escapes, \b becomes a
// backspace, assertions become literals.
func (p *parser) parseEscape(inClass bool) (ast.Node, error) {
	start := p.pos
	p.pos++ // backslash
	if p.eof() {
		return nil, p.errorf("pattern ends with a backslash")
	}
	c := p.peek()
	switch {
	case c == '0':
		return p.parseLegacyOctal(start)
	case isDigit(c):
		if inClass {
			if c >= '8' {
				p.pos++
				return &ast.Literal{Value: string(c), Pos: p.span(start)}, nil
			}
			return p.parseLegacyOctal(start)
		}
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		return &ast.Backref{Ref: p.src[start:p.pos], Pos: p.span(start)}, nil
	case c == 'g' && !inClass:
		return p.parseGEscape(start)
	case c == 'k' && !inClass:
		return p.parseKEscape(start)
	case c == 'x':
		return p.parseHexEscape(start, 2)
	case c == 'u':
		return p.parseHexEscape(start, 4)
	case c == 'o':
		return p.parseBraceOctal(start)
	case c == 'c':
		return p.parseControl(start)
	case c == 'p' || c == 'P':
		return p.parseProperty(start)
	case c == 'N':
		return p.parseNamed(start, inClass)
	case strings.IndexByte("dDwWsShHvV", c) >= 0 || (c == 'R' && !inClass):
		p.pos++
		return &ast.CharType{Value: c, Pos: p.span(start)}, nil
	case c == 'b' && inClass:
		p.pos++
		return &ast.CharLiteral{
			CodePoint: 0x08, OriginalRepr: `\b`, Kind: ast.CharKindUnicode, Pos: p.span(start),
		}, nil
	case strings.IndexByte("AzZGbB", c) >= 0 && !inClass:
		p.pos++
		return &ast.Assertion{Value: c, Pos: p.span(start)}, nil
	case c == 'K' && !inClass:
		p.pos++
		return &ast.Keep{Pos: p.span(start)}, nil
	case c == 'Q':
		p.pos++
		text := p.src[p.pos:]
		if end := strings.Index(text, `\E`); end >= 0 {
			text = text[:end]
			p.pos += end + 2
		} else {
			p.pos = len(p.src)
		}
		return &ast.Literal{Value: text, Pos: p.span(start)}, nil
	case c == 'E':
		p.pos++
		return nil, nil
	}
	if r, ok := controlValue(c); ok {
		p.pos++
		return &ast.CharLiteral{
			CodePoint: r, OriginalRepr: p.src[start:p.pos], Kind: ast.CharKindUnicode, Pos: p.span(start),
		}, nil
	}
	p.pos++
	return &ast.Literal{Value: string(c), Pos: p.span(start)}, nil
}

func controlValue(c byte) (rune, bool) {
	switch c {
	case 'n':
		return '\n', true
	case 'r':
		return '\r', true
	case 't':
		return '\t', true
	case 'f':
		return '\f', true
	case 'a':
		return 0x07, true
	case 'e':
		return 0x1B, true
	}
	return 0, false
}

// parseLegacyOctal reads \NNN with up to three octal digits.
func (p *parser) parseLegacyOctal(start int) (ast.Node, error) {
	digitStart := p.pos
	for !p.eof() && p.pos-digitStart < 3 && p.peek() >= '0' && p.peek() <= '7' {
		p.pos++
	}
	repr := p.src[start:p.pos]
	cp := rune(-1)
	if v, err := strconv.ParseInt(p.src[digitStart:p.pos], 8, 32); err == nil {
		cp = rune(v)
	}
	return &ast.CharLiteral{
		CodePoint: cp, OriginalRepr: repr, Kind: ast.CharKindOctalLegacy, Pos: p.span(start),
	}, nil
}

// parseGEscape reads \g1, \g{-2}, \g{name}, \g<name>, \g'name'.
// Angle-bracket and quote forms are subroutine calls.
func (p *parser) parseGEscape(start int) (ast.Node, error) {
	p.pos++ // 'g'
	if p.eof() {
		return nil, p.errorf("incomplete \\g escape")
	}
	switch p.peek() {
	case '{':
		p.pos++
		if _, err := p.readUntil('}'); err != nil {
			return nil, err
		}
		return &ast.Backref{Ref: p.src[start:p.pos], Pos: p.span(start)}, nil
	case '<':
		p.pos++
		ref, err := p.readSubroutineRef('>')
		if err != nil {
			return nil, err
		}
		return &ast.Subroutine{Reference: ref, Pos: p.span(start)}, nil
	case '\'':
		p.pos++
		ref, err := p.readSubroutineRef('\'')
		if err != nil {
			return nil, err
		}
		return &ast.Subroutine{Reference: ref, Pos: p.span(start)}, nil
	}
	if p.peek() == '+' || p.peek() == '-' {
		p.pos++
	}
	digits := 0
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
		digits++
	}
	if digits == 0 {
		return nil, p.errorf("incomplete \\g escape")
	}
	return &ast.Backref{Ref: p.src[start:p.pos], Pos: p.span(start)}, nil
}

func (p *parser) readSubroutineRef(terminator byte) (string, error) {
	refStart := p.pos
	if !p.eof() && (p.peek() == '+' || p.peek() == '-') {
		p.pos++
	}
	for !p.eof() && p.peek() != terminator {
		if !isNameChar(p.peek()) {
			return "", p.errorf("invalid character %q in subroutine reference", p.peek())
		}
		p.pos++
	}
	if p.eof() {
		return "", p.errorf("unterminated subroutine reference")
	}
	ref := p.src[refStart:p.pos]
	p.pos++
	if ref == "" {
		return "", p.errorf("empty subroutine reference")
	}
	return ref, nil
}

// parseKEscape reads \k<name>, \k'name', \k{name}.
func (p *parser) parseKEscape(start int) (ast.Node, error) {
	p.pos++ // 'k'
	if p.eof() {
		return nil, p.errorf("incomplete \\k escape")
	}
	var term byte
	switch p.peek() {
	case '<':
		term = '>'
	case '\'':
		term = '\''
	case '{':
		term = '}'
	default:
		return nil, p.errorf("malformed \\k escape")
	}
	p.pos++
	if _, err := p.readUntil(term); err != nil {
		return nil, err
	}
	return &ast.Backref{Ref: p.src[start:p.pos], Pos: p.span(start)}, nil
}

// parseHexEscape reads \x / \u escapes, braced or fixed-width.
func (p *parser) parseHexEscape(start, width int) (ast.Node, error) {
	p.pos++ // 'x' or 'u'
	if !p.eof() && p.peek() == '{' {
		p.pos++
		code, err := p.readUntil('}')
		if err != nil {
			return nil, err
		}
		return &ast.Unicode{Code: code, Pos: p.span(start)}, nil
	}
	digitStart := p.pos
	for !p.eof() && p.pos-digitStart < width && isHexDigit(p.peek()) {
		p.pos++
	}
	code := p.src[digitStart:p.pos]
	if code == "" {
		code = "0"
	}
	return &ast.Unicode{Code: code, Pos: p.span(start)}, nil
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// parseBraceOctal reads \o{...}. Digit validation is the validator's job,
// so the raw body is preserved in OriginalRepr.
func (p *parser) parseBraceOctal(start int) (ast.Node, error) {
	p.pos++ // 'o'
	if err := p.expect('{'); err != nil {
		return nil, err
	}
	body, err := p.readUntil('}')
	if err != nil {
		return nil, err
	}
	cp := rune(-1)
	if v, err := strconv.ParseInt(body, 8, 32); err == nil {
		cp = rune(v)
	}
	return &ast.CharLiteral{
		CodePoint: cp, OriginalRepr: p.src[start:p.pos], Kind: ast.CharKindOctal, Pos: p.span(start),
	}, nil
}

// parseControl reads \cX.
func (p *parser) parseControl(start int) (ast.Node, error) {
	p.pos++ // 'c'
	if p.eof() {
		return nil, p.errorf("incomplete \\c escape")
	}
	c := p.peek()
	p.pos++
	upper := c
	if upper >= 'a' && upper <= 'z' {
		upper -= 0x20
	}
	return &ast.ControlChar{Char: c, CodePoint: rune(upper ^ 0x40), Pos: p.span(start)}, nil
}

// parseProperty reads \p{...}, \P{...} and the one-letter \pL form.
// Negation is normalized into a leading ^ on the property text.
func (p *parser) parseProperty(start int) (ast.Node, error) {
	negated := p.peek() == 'P'
	p.pos++
	if p.eof() {
		return nil, p.errorf("incomplete property escape")
	}
	var prop string
	if p.peek() == '{' {
		p.pos++
		body, err := p.readUntil('}')
		if err != nil {
			return nil, err
		}
		prop = body
	} else {
		prop = string(p.peek())
		p.pos++
	}
	if strings.HasPrefix(prop, "^") {
		negated = !negated
		prop = prop[1:]
	}
	if negated {
		prop = "^" + prop
	}
	return &ast.UnicodeProp{Prop: prop, Pos: p.span(start)}, nil
}

// parseNamed reads \N and \N{...}. \N{U+hhhh} resolves immediately; other
// names stay symbolic for the validator to judge.
func (p *parser) parseNamed(start int, inClass bool) (ast.Node, error) {
	p.pos++ // 'N'
	if p.eof() || p.peek() != '{' {
		if inClass {
			return &ast.Literal{Value: "N", Pos: p.span(start)}, nil
		}
		return &ast.CharType{Value: 'N', Pos: p.span(start)}, nil
	}
	p.pos++
	name, err := p.readUntil('}')
	if err != nil {
		return nil, err
	}
	if hex, ok := strings.CutPrefix(name, "U+"); ok {
		cp := rune(-1)
		if v, err := strconv.ParseInt(hex, 16, 64); err == nil && v <= int64(0x10FFFF) {
			cp = rune(v)
		}
		return &ast.CharLiteral{
			CodePoint: cp, OriginalRepr: p.src[start:p.pos], Kind: ast.CharKindUnicodeNamed, Pos: p.span(start),
		}, nil
	}
	return &ast.UnicodeNamed{Name: name, Pos: p.span(start)}, nil
}
