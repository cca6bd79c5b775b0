package parser

import (
	"unicode/utf8"

	"github.com/0x4d5352/regaudit/internal/ast"
)

// parseCharClass reads a bracket expression. The cursor sits on '['.
func (p *parser) parseCharClass() (ast.Node, error) {
	start := p.pos
	p.pos++ // '['
	negated := false
	if !p.eof() && p.peek() == '^' {
		negated = true
		p.pos++
	}
	expr, err := p.parseClassBody(start)
	if err != nil {
		return nil, err
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return &ast.CharClass{Expression: expr, IsNegated: negated, Pos: p.span(start)}, nil
}

// parseClassBody reads class parts up to ']' and folds && / -- set
// operations right-associatively.
func (p *parser) parseClassBody(classStart int) (ast.Node, error) {
	partsStart := p.pos
	parts, op, err := p.parseClassParts(classStart)
	if err != nil {
		return nil, err
	}
	left := p.wrapClassParts(parts, partsStart)
	if op == 0 {
		return left, nil
	}
	right, err := p.parseClassBody(classStart)
	if err != nil {
		return nil, err
	}
	kind := ast.ClassIntersection
	if op == '-' {
		kind = ast.ClassSubtraction
	}
	return &ast.ClassOperation{
		Left: left, Right: right, Kind: kind,
		Pos: ast.Position{Start: left.Span().Start, End: right.Span().End},
	}, nil
}

func (p *parser) wrapClassParts(parts []ast.Node, partsStart int) ast.Node {
	switch len(parts) {
	case 0:
		return &ast.Literal{Pos: p.span(partsStart)}
	case 1:
		return parts[0]
	}
	return &ast.Sequence{
		Children: parts,
		Pos:      ast.Position{Start: parts[0].Span().Start, End: parts[len(parts)-1].Span().End},
	}
}

// parseClassParts collects parts until ']' (left unconsumed) or a set
// operator (consumed; returned as '&' or '-').
func (p *parser) parseClassParts(classStart int) ([]ast.Node, byte, error) {
	var parts []ast.Node
	first := true
	for {
		if p.eof() {
			return nil, 0, &Error{Pos: classStart + p.base, Message: "unterminated character class"}
		}
		c := p.peek()
		if c == ']' && !first {
			return parts, 0, nil
		}
		if c == '&' && p.peekAt(1) == '&' {
			p.pos += 2
			return parts, '&', nil
		}
		if c == '-' && p.peekAt(1) == '-' && !first {
			p.pos += 2
			return parts, '-', nil
		}
		first = false
		part, err := p.parseClassPart()
		if err != nil {
			return nil, 0, err
		}
		if part == nil {
			continue
		}
		part, err = p.maybeRange(part)
		if err != nil {
			return nil, 0, err
		}
		parts = append(parts, part)
	}
}

func (p *parser) parseClassPart() (ast.Node, error) {
	start := p.pos
	switch c := p.peek(); {
	case c == '[' && p.peekAt(1) == ':':
		return p.parsePosixClass(start)
	case c == '[':
		return p.parseCharClass()
	case c == '\\':
		return p.parseEscape(true)
	default:
		r, size := utf8.DecodeRuneInString(p.src[p.pos:])
		p.pos += size
		return &ast.Literal{Value: string(r), Pos: p.span(start)}, nil
	}
}

// maybeRange upgrades part to a Range when a '-' connects it to another
// single part. A trailing '-' before ']' stays literal.
func (p *parser) maybeRange(part ast.Node) (ast.Node, error) {
	if p.eof() || p.peek() != '-' {
		return part, nil
	}
	next := p.peekAt(1)
	if next == ']' || next == 0 || (next == '-' && p.peekAt(2) != ']') {
		return part, nil
	}
	p.pos++ // '-'
	end, err := p.parseClassPart()
	if err != nil {
		return nil, err
	}
	return &ast.Range{
		Start: part, End: end,
		Pos: ast.Position{Start: part.Span().Start, End: end.Span().End},
	}, nil
}

// parsePosixClass reads [:name:] and [:^name:]. The cursor sits on '['.
func (p *parser) parsePosixClass(start int) (ast.Node, error) {
	p.pos += 2 // '[:'
	negated := false
	if !p.eof() && p.peek() == '^' {
		negated = true
		p.pos++
	}
	nameStart := p.pos
	for !p.eof() && p.peek() != ':' {
		p.pos++
	}
	name := p.src[nameStart:p.pos]
	if err := p.expect(':'); err != nil {
		return nil, err
	}
	if err := p.expect(']'); err != nil {
		return nil, err
	}
	return &ast.PosixClass{Name: name, Negated: negated, Pos: p.span(start)}, nil
}
