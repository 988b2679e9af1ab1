package gen

import (
	"fmt"
	"sort"
	"strings"
)

// TypeKind
type TypeKind int

const (
	TypeKindUnit TypeKind = iota
	TypeKindInteger
	TypeKindFloat
	TypeKindString
	TypeKindLabel
	TypeKindProduct
	TypeKindSum
	TypeKindVector
	TypeKindTrait
)

func (k TypeKind) String() string {
	switch k {
	case TypeKindUnit:
		return "unit"
	case TypeKindInteger:
		return "integer"
	case TypeKindFloat:
		return "float"
	case TypeKindString:
		return "string"
	case TypeKindLabel:
		return "label"
	case TypeKindProduct:
		return "product"
	case TypeKindSum:
		return "sum"
	case TypeKindVector:
		return "vector"
	case TypeKindTrait:
		return "trait"
	}
	return fmt.Sprintf("kind#%d", int(k))
}

// Type is a type tag. It is comparable, so it can be used as a map key: the
// mailbox and the effect handlers are keyed by types. Nested types are kept in
// their canonical text form.
type Type struct {
	kind  TypeKind
	name  string
	items string
}

var (
	TypeUnit    = Type{kind: TypeKindUnit}
	TypeInteger = Type{kind: TypeKindInteger}
	TypeFloat   = Type{kind: TypeKindFloat}
	TypeString  = Type{kind: TypeKindString}
)

// LabelType returns the type labeled with the given name. Labels are the usual
// way to make message types distinct: @ping and @pong carry the same item but
// land in different mailbox queues.
// It panics if name is not a valid name, see NewLabelType.
func LabelType(name string, item Type) Type {
	t, err := NewLabelType(name, item)
	if err != nil {
		panic(err)
	}
	return t
}

// NewLabelType is LabelType for names coming from user input. It returns
// ErrIncorrect if name is not a valid name.
func NewLabelType(name string, item Type) (Type, error) {
	if IsName(name) == false {
		return Type{}, fmt.Errorf("%w: label name %q", ErrIncorrect, name)
	}
	return Type{kind: TypeKindLabel, name: name, items: item.String()}, nil
}

// IsName reports whether name can be used as a label or a trait name: a non
// empty string of letters, digits, '_', '.' and '-'.
func IsName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if isIdentChar(name[i]) == false {
			return false
		}
	}
	return true
}

// ProductType returns the product of the given types. Items are sorted and
// deduplicated. An empty product is the unit type.
func ProductType(items ...Type) Type {
	list := canonicalItems(items)
	if len(list) == 0 {
		return TypeUnit
	}
	return Type{kind: TypeKindProduct, items: strings.Join(list, ",")}
}

// SumType returns the sum of the given types. Items are sorted and deduplicated,
// a sum of one type is the type itself.
func SumType(items ...Type) Type {
	list := canonicalItems(items)
	switch len(list) {
	case 0:
		return Type{kind: TypeKindSum}
	case 1:
		t, _ := ParseType(list[0])
		return t
	}
	return Type{kind: TypeKindSum, items: strings.Join(list, ",")}
}

// VectorType
func VectorType(item Type) Type {
	return Type{kind: TypeKindVector, items: item.String()}
}

// TraitType panics if name is not a valid name, see NewTraitType.
func TraitType(name string) Type {
	t, err := NewTraitType(name)
	if err != nil {
		panic(err)
	}
	return t
}

// NewTraitType returns ErrIncorrect if name is not a valid name.
func NewTraitType(name string) (Type, error) {
	if IsName(name) == false {
		return Type{}, fmt.Errorf("%w: trait name %q", ErrIncorrect, name)
	}
	return Type{kind: TypeKindTrait, name: name}, nil
}

func (t Type) Kind() TypeKind {
	return t.kind
}

// Name returns the label or the trait name. Empty for other kinds.
func (t Type) Name() string {
	return t.name
}

// Items returns the nested types: the labeled item, the vector element, or the
// members of a product or a sum.
func (t Type) Items() []Type {
	if t.items == "" {
		return nil
	}
	items, err := parseTypeList(t.items)
	if err != nil {
		// items are always produced by String
		panic(fmt.Sprintf("malformed nested type %q: %s", t.items, err))
	}
	return items
}

func (t Type) String() string {
	switch t.kind {
	case TypeKindLabel:
		if t.items == TypeUnit.String() {
			return "@" + t.name
		}
		return "@" + t.name + "(" + t.items + ")"
	case TypeKindProduct, TypeKindSum, TypeKindVector:
		return t.kind.String() + "(" + t.items + ")"
	case TypeKindTrait:
		return "trait(" + t.name + ")"
	}
	return t.kind.String()
}

func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(data []byte) error {
	parsed, err := ParseType(string(data))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func canonicalItems(items []Type) []string {
	seen := make(map[string]bool, len(items))
	list := make([]string, 0, len(items))
	for _, item := range items {
		s := item.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		list = append(list, s)
	}
	sort.Strings(list)
	return list
}

// ParseType parses the canonical form produced by Type.String:
//
//	unit integer float string
//	@name  @name(T)
//	product(T, ...)  sum(T, ...)  vector(T)  trait(name)
func ParseType(s string) (Type, error) {
	p := typeParser{s: s}
	t, err := p.parseType()
	if err != nil {
		return Type{}, err
	}
	p.skipSpaces()
	if p.pos != len(p.s) {
		return Type{}, fmt.Errorf("%w: unexpected %q in type %q", ErrMalformed, p.s[p.pos:], s)
	}
	return t, nil
}

// MustParseType is like ParseType but panics on malformed input. Use it for
// package level type definitions only.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}

func parseTypeList(s string) ([]Type, error) {
	p := typeParser{s: s}
	list, err := p.parseList()
	if err != nil {
		return nil, err
	}
	p.skipSpaces()
	if p.pos != len(p.s) {
		return nil, fmt.Errorf("%w: unexpected %q in type list %q", ErrMalformed, p.s[p.pos:], s)
	}
	return list, nil
}

type typeParser struct {
	s   string
	pos int
}

func (p *typeParser) skipSpaces() {
	for p.pos < len(p.s) && (p.s[p.pos] == ' ' || p.s[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) peek() byte {
	p.skipSpaces()
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *typeParser) expect(c byte) error {
	if p.peek() != c {
		return fmt.Errorf("%w: expected %q at %d in type %q", ErrMalformed, c, p.pos, p.s)
	}
	p.pos++
	return nil
}

func isIdentChar(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case c == '_', c == '.', c == '-':
		return true
	}
	return false
}

func (p *typeParser) ident() (string, error) {
	p.skipSpaces()
	start := p.pos
	for p.pos < len(p.s) && isIdentChar(p.s[p.pos]) {
		p.pos++
	}
	if start == p.pos {
		return "", fmt.Errorf("%w: expected name at %d in type %q", ErrMalformed, start, p.s)
	}
	return p.s[start:p.pos], nil
}

func (p *typeParser) parseList() ([]Type, error) {
	var list []Type
	for {
		t, err := p.parseType()
		if err != nil {
			return nil, err
		}
		list = append(list, t)
		if p.peek() != ',' {
			return list, nil
		}
		p.pos++
	}
}

func (p *typeParser) parseType() (Type, error) {
	if p.peek() == '@' {
		p.pos++
		name, err := p.ident()
		if err != nil {
			return Type{}, err
		}
		item := TypeUnit
		if p.peek() == '(' {
			p.pos++
			if item, err = p.parseType(); err != nil {
				return Type{}, err
			}
			if err := p.expect(')'); err != nil {
				return Type{}, err
			}
		}
		return LabelType(name, item), nil
	}

	name, err := p.ident()
	if err != nil {
		return Type{}, err
	}

	switch name {
	case "unit":
		return TypeUnit, nil
	case "integer":
		return TypeInteger, nil
	case "float":
		return TypeFloat, nil
	case "string":
		return TypeString, nil

	case "product", "sum":
		if err := p.expect('('); err != nil {
			return Type{}, err
		}
		var items []Type
		if p.peek() != ')' {
			if items, err = p.parseList(); err != nil {
				return Type{}, err
			}
		}
		if err := p.expect(')'); err != nil {
			return Type{}, err
		}
		if name == "product" {
			return ProductType(items...), nil
		}
		return SumType(items...), nil

	case "vector":
		if err := p.expect('('); err != nil {
			return Type{}, err
		}
		item, err := p.parseType()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(')'); err != nil {
			return Type{}, err
		}
		return VectorType(item), nil

	case "trait":
		if err := p.expect('('); err != nil {
			return Type{}, err
		}
		trait, err := p.ident()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect(')'); err != nil {
			return Type{}, err
		}
		return TraitType(trait), nil
	}

	return Type{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, name)
}
