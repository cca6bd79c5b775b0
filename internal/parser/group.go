package parser

import (
	"strconv"
	"strings"

	"github.com/0x4d5352/regaudit/internal/ast"
)

func (p *parser) parseGroup() (ast.Node, error) {
	start := p.pos
	p.pos++ // '('
	if p.eof() {
		return nil, p.errorf("unterminated group")
	}

	if p.peek() == '*' {
		return p.parseVerb(start)
	}
	if p.peek() != '?' {
		return p.finishGroup(start, ast.GroupCapturing, "", "")
	}
	p.pos++ // '?'
	if p.eof() {
		return nil, p.errorf("unterminated group")
	}

	switch c := p.peek(); c {
	case ':':
		p.pos++
		return p.finishGroup(start, ast.GroupNonCapturing, "", "")
	case '>':
		p.pos++
		return p.finishGroup(start, ast.GroupAtomic, "", "")
	case '=':
		p.pos++
		return p.finishGroup(start, ast.GroupLookaheadPos, "", "")
	case '!':
		p.pos++
		return p.finishGroup(start, ast.GroupLookaheadNeg, "", "")
	case '|':
		p.pos++
		return p.finishGroup(start, ast.GroupBranchReset, "", "")
	case '#':
		p.pos++
		text, err := p.readUntil(')')
		if err != nil {
			return nil, err
		}
		return &ast.Comment{Text: text, Pos: p.span(start)}, nil
	case '(':
		return p.parseConditional(start)
	case 'C':
		return p.parseCallout(start)
	case '<':
		p.pos++
		switch p.peek() {
		case '=':
			p.pos++
			return p.finishGroup(start, ast.GroupLookbehindPos, "", "")
		case '!':
			p.pos++
			return p.finishGroup(start, ast.GroupLookbehindNeg, "", "")
		}
		name, err := p.readName('>')
		if err != nil {
			return nil, err
		}
		return p.finishGroup(start, ast.GroupNamed, name, "")
	case '\'':
		p.pos++
		name, err := p.readName('\'')
		if err != nil {
			return nil, err
		}
		return p.finishGroup(start, ast.GroupNamed, name, "")
	case 'P':
		p.pos++
		switch p.peek() {
		case '<':
			p.pos++
			name, err := p.readName('>')
			if err != nil {
				return nil, err
			}
			return p.finishGroup(start, ast.GroupNamed, name, "")
		case '=':
			p.pos++
			name, err := p.readName(')')
			if err != nil {
				return nil, err
			}
			return &ast.Backref{Ref: `\k<` + name + `>`, Pos: p.span(start)}, nil
		case '>':
			p.pos++
			name, err := p.readName(')')
			if err != nil {
				return nil, err
			}
			return &ast.Subroutine{Reference: name, Pos: p.span(start)}, nil
		}
		return nil, p.errorf("unrecognized (?P construct")
	case '&':
		p.pos++
		name, err := p.readName(')')
		if err != nil {
			return nil, err
		}
		return &ast.Subroutine{Reference: name, Pos: p.span(start)}, nil
	case 'R':
		if p.peekAt(1) == ')' {
			p.pos += 2
			return &ast.Subroutine{Reference: "R", Pos: p.span(start)}, nil
		}
		return nil, p.errorf("unrecognized (?R construct")
	}

	if p.peek() == '+' || p.peek() == '-' || isDigit(p.peek()) {
		if ref, ok := p.trySubroutineNumber(); ok {
			return &ast.Subroutine{Reference: ref, Pos: p.span(start)}, nil
		}
	}
	return p.parseInlineFlags(start)
}

// trySubroutineNumber reads (?1), (?+2), (?-2) bodies. (?-i) style flag
// groups also start with '-', so the cursor is restored on failure.
func (p *parser) trySubroutineNumber() (string, bool) {
	save := p.pos
	refStart := p.pos
	if p.peek() == '+' || p.peek() == '-' {
		p.pos++
	}
	digits := 0
	for !p.eof() && isDigit(p.peek()) {
		p.pos++
		digits++
	}
	if digits == 0 || p.eof() || p.peek() != ')' {
		p.pos = save
		return "", false
	}
	ref := p.src[refStart:p.pos]
	p.pos++
	return ref, true
}

func (p *parser) parseInlineFlags(start int) (ast.Node, error) {
	flagStart := p.pos
	for !p.eof() && (p.peek() == '-' || strings.IndexByte("imsuxUJnA", p.peek()) >= 0) {
		p.pos++
	}
	local := p.src[flagStart:p.pos]
	if local == "" {
		return nil, p.errorf("unrecognized group syntax")
	}
	switch {
	case p.eof():
		return nil, p.errorf("unterminated group")
	case p.peek() == ')':
		p.pos++
		return &ast.Group{
			Child:      &ast.Literal{Pos: p.span(start)},
			Kind:       ast.GroupInlineFlags,
			LocalFlags: local,
			Pos:        p.span(start),
		}, nil
	case p.peek() == ':':
		p.pos++
		return p.finishGroup(start, ast.GroupInlineFlags, "", local)
	}
	return nil, p.errorf("unrecognized flag %q", p.peek())
}

func (p *parser) finishGroup(start int, kind ast.GroupKind, name, local string) (ast.Node, error) {
	child, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	return &ast.Group{Child: child, Kind: kind, Name: name, LocalFlags: local, Pos: p.span(start)}, nil
}

// parseVerb handles (*VERB), (*VERB:arg), (*LIMIT_MATCH=n) and
// (*script_run:...). The cursor sits on '*'.
func (p *parser) parseVerb(start int) (ast.Node, error) {
	p.pos++ // '*'
	body, err := p.readUntilVerbEnd()
	if err != nil {
		return nil, err
	}
	if rest, ok := strings.CutPrefix(body, "script_run:"); ok {
		return &ast.ScriptRun{Script: rest, Pos: p.span(start)}, nil
	}
	if rest, ok := strings.CutPrefix(body, "sr:"); ok {
		return &ast.ScriptRun{Script: rest, Pos: p.span(start)}, nil
	}
	if rest, ok := strings.CutPrefix(body, "LIMIT_MATCH="); ok {
		limit, err := strconv.Atoi(rest)
		if err != nil {
			return nil, p.errorf("invalid LIMIT_MATCH value %q", rest)
		}
		return &ast.LimitMatch{Limit: limit, Pos: p.span(start)}, nil
	}
	return &ast.PcreVerb{Verb: body, Pos: p.span(start)}, nil
}

// readUntilVerbEnd reads up to the verb's closing paren, allowing nested
// parens inside (*script_run:...) bodies.
func (p *parser) readUntilVerbEnd() (string, error) {
	start := p.pos
	depth := 0
	for !p.eof() {
		switch p.peek() {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				body := p.src[start:p.pos]
				p.pos++
				return body, nil
			}
			depth--
		}
		p.pos++
	}
	return "", p.errorf("unterminated verb")
}

// parseConditional handles (?(cond)yes|no). The cursor sits on the inner '('.
func (p *parser) parseConditional(start int) (ast.Node, error) {
	p.pos++ // inner '('
	cond, isDefine, err := p.parseCondition(start)
	if err != nil {
		return nil, err
	}
	branches, err := p.parseAlternation()
	if err != nil {
		return nil, err
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}
	if isDefine {
		return &ast.Define{Content: branches, Pos: p.span(start)}, nil
	}
	yes, no := splitConditionalBranches(branches, p.span(start))
	return &ast.Conditional{Condition: cond, Yes: yes, No: no, Pos: p.span(start)}, nil
}

func splitConditionalBranches(branches ast.Node, pos ast.Position) (yes, no ast.Node) {
	if alt, ok := branches.(*ast.Alternation); ok && len(alt.Alternatives) == 2 {
		return alt.Alternatives[0], alt.Alternatives[1]
	}
	return branches, &ast.Literal{Pos: ast.Position{Start: pos.End, End: pos.End}}
}

func (p *parser) parseCondition(start int) (ast.Node, bool, error) {
	condStart := p.pos
	if p.peek() == '?' || p.peek() == '*' {
		// Lookaround assertion condition, e.g. (?(?=a)b|c).
		p.pos-- // back onto '(' so parseGroup sees the whole construct
		cond, err := p.parseGroup()
		return cond, false, err
	}
	body, err := p.readUntil(')')
	if err != nil {
		return nil, false, err
	}
	pos := ast.Position{Start: condStart + p.base, End: p.pos + p.base - 1}
	switch {
	case body == "DEFINE":
		return nil, true, nil
	case strings.HasPrefix(body, "VERSION"):
		return &ast.VersionCondition{Version: strings.TrimPrefix(body, "VERSION"), Pos: pos}, false, nil
	case body == "R":
		return &ast.Subroutine{Reference: "R", Pos: pos}, false, nil
	case strings.HasPrefix(body, "R&"):
		return &ast.Subroutine{Reference: body[2:], Pos: pos}, false, nil
	case strings.HasPrefix(body, "R") && allDigits(body[1:]):
		return &ast.Subroutine{Reference: body, Pos: pos}, false, nil
	case strings.HasPrefix(body, "<") && strings.HasSuffix(body, ">"):
		return &ast.Backref{Ref: `\k<` + body[1:len(body)-1] + `>`, Pos: pos}, false, nil
	case strings.HasPrefix(body, "'") && strings.HasSuffix(body, "'") && len(body) >= 2:
		return &ast.Backref{Ref: `\k'` + body[1:len(body)-1] + `'`, Pos: pos}, false, nil
	case allDigits(body) || ((strings.HasPrefix(body, "+") || strings.HasPrefix(body, "-")) && allDigits(body[1:])):
		return &ast.Backref{Ref: `\g{` + body + `}`, Pos: pos}, false, nil
	case body != "":
		return &ast.Backref{Ref: `\k<` + body + `>`, Pos: pos}, false, nil
	}
	return nil, false, &Error{Pos: pos.Start, Message: "empty conditional condition"}
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

// parseCallout handles (?C), (?Cn) and (?C"text"). The cursor sits on 'C'.
func (p *parser) parseCallout(start int) (ast.Node, error) {
	p.pos++ // 'C'
	if p.eof() {
		return nil, p.errorf("unterminated callout")
	}
	switch c := p.peek(); {
	case c == ')':
		p.pos++
		return &ast.Callout{Pos: p.span(start)}, nil
	case isDigit(c):
		numStart := p.pos
		for !p.eof() && isDigit(p.peek()) {
			p.pos++
		}
		n, _ := strconv.Atoi(p.src[numStart:p.pos])
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return &ast.Callout{Number: n, Pos: p.span(start)}, nil
	case c == '"' || c == '\'' || c == '`':
		p.pos++
		text, err := p.readUntil(c)
		if err != nil {
			return nil, err
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return &ast.Callout{Text: text, IsString: true, Pos: p.span(start)}, nil
	}
	return nil, p.errorf("invalid callout syntax")
}
