package service

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Filter is a parsed RFC 1960 filter expression. A nil Filter matches
// everything.
type Filter struct {
	raw  string
	root filterNode
}

// ParseFilter parses expr. An empty or blank expression yields a nil Filter.
func ParseFilter(expr string) (*Filter, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	p := &filterParser{src: expr}
	p.skipSpace()
	root, err := p.parseFilter()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, p.fail("unexpected characters after filter")
	}
	return &Filter{raw: expr, root: root}, nil
}

// MustParseFilter is like ParseFilter but panics on error. It is meant for
// filters that are constants.
func MustParseFilter(expr string) *Filter {
	f, err := ParseFilter(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the expression the filter was parsed from.
func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.raw
}

// Match evaluates the filter against a property dictionary.
func (f *Filter) Match(props Dictionary) bool {
	if f == nil {
		return true
	}
	return f.root.match(props)
}

// MatchProperties evaluates the filter against plain properties.
func (f *Filter) MatchProperties(props Properties) bool {
	return f.Match(props)
}

type filterNode interface {
	match(props Dictionary) bool
}

type andNode []filterNode

func (n andNode) match(props Dictionary) bool {
	for _, child := range n {
		if !child.match(props) {
			return false
		}
	}
	return true
}

type orNode []filterNode

func (n orNode) match(props Dictionary) bool {
	for _, child := range n {
		if child.match(props) {
			return true
		}
	}
	return false
}

type notNode struct {
	child filterNode
}

func (n notNode) match(props Dictionary) bool {
	return !n.child.match(props)
}

type presentNode struct {
	key string
}

func (n presentNode) match(props Dictionary) bool {
	v, ok := props.Get(n.key)
	return ok && v != nil
}

type compareOp int

const (
	opEqual compareOp = iota
	opApprox
	opGreaterEq
	opLessEq
)

type compareNode struct {
	key   string
	op    compareOp
	value string
}

func (n compareNode) match(props Dictionary) bool {
	v, ok := props.Get(n.key)
	if !ok || v == nil {
		return false
	}
	return compareValue(v, n.op, n.value)
}

// substringNode holds the pieces between '*' wildcards: parts[0] is the
// required prefix and parts[len-1] the required suffix, either may be empty.
type substringNode struct {
	key   string
	parts []string
}

func (n substringNode) match(props Dictionary) bool {
	v, ok := props.Get(n.key)
	if !ok || v == nil {
		return false
	}
	return anyElement(v, func(elem any) bool {
		s, ok := elem.(string)
		if !ok {
			s = fmt.Sprint(elem)
		}
		return matchSubstring(s, n.parts)
	})
}

func matchSubstring(s string, parts []string) bool {
	first, last := parts[0], parts[len(parts)-1]
	if !strings.HasPrefix(s, first) {
		return false
	}
	s = s[len(first):]
	for _, middle := range parts[1 : len(parts)-1] {
		i := strings.Index(s, middle)
		if i < 0 {
			return false
		}
		s = s[i+len(middle):]
	}
	return strings.HasSuffix(s, last)
}

// anyElement applies fn to v, or to each element when v is a slice or array.
func anyElement(v any, fn func(any) bool) bool {
	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
		for i := 0; i < rv.Len(); i++ {
			if fn(rv.Index(i).Interface()) {
				return true
			}
		}
		return false
	}
	return fn(v)
}

func compareValue(v any, op compareOp, operand string) bool {
	return anyElement(v, func(elem any) bool {
		return compareScalar(elem, op, operand)
	})
}

func compareScalar(v any, op compareOp, operand string) bool {
	switch x := v.(type) {
	case string:
		return compareStrings(x, op, operand)
	case bool:
		b, err := strconv.ParseBool(strings.TrimSpace(operand))
		return err == nil && (op == opEqual || op == opApprox) && b == x
	case int, int8, int16, int32, int64:
		want, err := strconv.ParseInt(strings.TrimSpace(operand), 10, 64)
		if err != nil {
			return false
		}
		return compareOrdered(reflect.ValueOf(x).Int(), want, op)
	case uint, uint8, uint16, uint32, uint64:
		want, err := strconv.ParseUint(strings.TrimSpace(operand), 10, 64)
		if err != nil {
			return false
		}
		return compareOrdered(reflect.ValueOf(x).Uint(), want, op)
	case float32, float64:
		want, err := strconv.ParseFloat(strings.TrimSpace(operand), 64)
		if err != nil {
			return false
		}
		return compareOrdered(reflect.ValueOf(x).Float(), want, op)
	case fmt.Stringer:
		return compareStrings(x.String(), op, operand)
	default:
		return compareStrings(fmt.Sprint(x), op, operand)
	}
}

func compareStrings(s string, op compareOp, operand string) bool {
	switch op {
	case opApprox:
		return normalizeApprox(s) == normalizeApprox(operand)
	case opGreaterEq:
		return s >= operand
	case opLessEq:
		return s <= operand
	default:
		return s == operand
	}
}

func compareOrdered[T int64 | uint64 | float64](have, want T, op compareOp) bool {
	switch op {
	case opGreaterEq:
		return have >= want
	case opLessEq:
		return have <= want
	default:
		return have == want
	}
}

func normalizeApprox(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

type filterParser struct {
	src string
	pos int
}

func (p *filterParser) fail(msg string) error {
	return &FilterError{Filter: p.src, Pos: p.pos, Msg: msg}
}

func (p *filterParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(rune(p.src[p.pos])) {
		p.pos++
	}
}

func (p *filterParser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *filterParser) parseFilter() (filterNode, error) {
	if p.peek() != '(' {
		return nil, p.fail("expected '('")
	}
	p.pos++
	p.skipSpace()

	var (
		node filterNode
		err  error
	)
	switch p.peek() {
	case '&':
		p.pos++
		var children []filterNode
		children, err = p.parseList()
		node = andNode(children)
	case '|':
		p.pos++
		var children []filterNode
		children, err = p.parseList()
		node = orNode(children)
	case '!':
		p.pos++
		p.skipSpace()
		var child filterNode
		child, err = p.parseFilter()
		node = notNode{child: child}
	default:
		node, err = p.parseItem()
	}
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if p.peek() != ')' {
		return nil, p.fail("expected ')'")
	}
	p.pos++
	return node, nil
}

func (p *filterParser) parseList() ([]filterNode, error) {
	p.skipSpace()
	var nodes []filterNode
	for p.peek() == '(' {
		node, err := p.parseFilter()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
		p.skipSpace()
	}
	if len(nodes) == 0 {
		return nil, p.fail("expected at least one operand")
	}
	return nodes, nil
}

func (p *filterParser) parseItem() (filterNode, error) {
	start := p.pos
	for p.pos < len(p.src) && !strings.ContainsRune("=<>~()", rune(p.src[p.pos])) {
		p.pos++
	}
	key := strings.ToLower(strings.TrimSpace(p.src[start:p.pos]))
	if key == "" {
		return nil, p.fail("missing attribute name")
	}

	var op compareOp
	rest := p.src[p.pos:]
	switch {
	case strings.HasPrefix(rest, "~="):
		op = opApprox
		p.pos += 2
	case strings.HasPrefix(rest, ">="):
		op = opGreaterEq
		p.pos += 2
	case strings.HasPrefix(rest, "<="):
		op = opLessEq
		p.pos += 2
	case strings.HasPrefix(rest, "="):
		op = opEqual
		p.pos++
	default:
		return nil, p.fail("expected '=', '~=', '>=' or '<='")
	}

	var (
		parts []string
		cur   strings.Builder
	)
	for {
		if p.pos >= len(p.src) {
			return nil, p.fail("unterminated value")
		}
		c := p.src[p.pos]
		if c == ')' {
			break
		}
		switch c {
		case '(':
			return nil, p.fail("unescaped '(' in value")
		case '\\':
			p.pos++
			if p.pos >= len(p.src) {
				return nil, p.fail("dangling escape")
			}
			cur.WriteByte(p.src[p.pos])
		case '*':
			parts = append(parts, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
		p.pos++
	}
	parts = append(parts, cur.String())

	if len(parts) == 1 {
		return compareNode{key: key, op: op, value: parts[0]}, nil
	}
	if op != opEqual {
		return nil, p.fail("wildcards are only allowed with '='")
	}
	if len(parts) == 2 && parts[0] == "" && parts[1] == "" {
		return presentNode{key: key}, nil
	}
	return substringNode{key: key, parts: parts}, nil
}
