package sdf

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPath is returned when a string is not a well-formed scene path.
var ErrInvalidPath = errors.New("sdf: invalid path")

// Path is a scene namespace path. The zero value is the empty path. Paths are
// comparable and can be used as map keys.
//
// Supported forms: the absolute root "/", absolute and relative prim paths
// ("/A/B", "A/B", "../A"), variant selections ("/A{v=x}") and their children
// ("/A{v=x}B"), property paths ("/A.attr"), target paths ("/A.rel[/T]") and
// relational attribute paths ("/A.rel[/T].attr"). A child of a variant
// selection may also be written "/A{v=x}/B"; it normalises to "/A{v=x}B".
type Path struct {
	s string
}

var (
	EmptyPath             = Path{}
	AbsoluteRootPath      = Path{s: "/"}
	ReflexiveRelativePath = Path{s: "."}
)

// NewPath parses and normalises s.
func NewPath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return EmptyPath, nil
	}
	prim, prop := splitProperty(s)
	prim, err := normalizePrimPart(prim)
	if err != nil {
		return EmptyPath, fmt.Errorf("%w %q: %v", ErrInvalidPath, s, err)
	}
	if prop != "" {
		if prim == "/" || prim == "" {
			return EmptyPath, fmt.Errorf("%w %q: property without owning prim", ErrInvalidPath, s)
		}
		if err := validatePropertyPart(prop); err != nil {
			return EmptyPath, fmt.Errorf("%w %q: %v", ErrInvalidPath, s, err)
		}
	}
	return Path{s: prim + prop}, nil
}

// MustPath is NewPath that panics on malformed input. Intended for literals.
func MustPath(s string) Path {
	p, err := NewPath(s)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Path) String() string { return p.s }

func (p Path) IsEmpty() bool { return p.s == "" }

func (p Path) IsAbsolutePath() bool { return strings.HasPrefix(p.s, "/") }

// IsAbsoluteRootPath reports whether p is "/".
func (p Path) IsAbsoluteRootPath() bool { return p.s == "/" }

func (p Path) IsPropertyPath() bool {
	_, prop := splitProperty(p.s)
	return prop != ""
}

// IsPrimPath reports whether p names a prim (not the root, not a variant
// selection, not a property).
func (p Path) IsPrimPath() bool {
	if p.s == "" || p.s == "/" || p.s == "." || strings.HasSuffix(p.s, "..") {
		return false
	}
	prim, prop := splitProperty(p.s)
	return prop == "" && !strings.HasSuffix(prim, "}")
}

// IsRelationalAttributePath reports whether p is an attribute owned by a
// relationship target, e.g. "/A.rel[/B].attr".
func (p Path) IsRelationalAttributePath() bool {
	_, prop := splitProperty(p.s)
	end := strings.LastIndex(prop, "]")
	return end >= 0 && strings.HasPrefix(prop[end+1:], ".")
}

func (p Path) IsTargetPath() bool {
	_, prop := splitProperty(p.s)
	return strings.HasSuffix(prop, "]")
}

func (p Path) ContainsPrimVariantSelection() bool {
	prim, _ := splitProperty(p.s)
	return strings.Contains(prim, "{")
}

// HasPrefix reports whether prefix is p or a namespace ancestor of p.
func (p Path) HasPrefix(prefix Path) bool {
	if prefix.s == "" || p.s == "" {
		return false
	}
	if prefix.s == "/" {
		return p.IsAbsolutePath()
	}
	if p.s == prefix.s {
		return true
	}
	if !strings.HasPrefix(p.s, prefix.s) {
		return false
	}
	if strings.HasSuffix(prefix.s, "}") {
		return true
	}
	switch p.s[len(prefix.s)] {
	case '/', '.', '{', '[':
		return true
	}
	return false
}

// ReplacePrefix swaps oldPrefix for newPrefix when p has oldPrefix, and
// returns p unchanged otherwise.
func (p Path) ReplacePrefix(oldPrefix, newPrefix Path) Path {
	if !p.HasPrefix(oldPrefix) || newPrefix.s == "" {
		return p
	}
	if oldPrefix.s == "/" {
		if newPrefix.s == "/" {
			return p
		}
		rest := p.s[1:]
		if rest == "" {
			return newPrefix
		}
		return Path{s: joinChild(newPrefix.s, rest)}
	}
	rest := p.s[len(oldPrefix.s):]
	if newPrefix.s == "/" {
		switch {
		case rest == "":
			return newPrefix
		case rest[0] == '/':
			return Path{s: rest}
		case isNameChar(rest[0]):
			return Path{s: "/" + rest}
		default:
			return p
		}
	}
	switch {
	case rest == "":
		return newPrefix
	case isNameChar(rest[0]), rest[0] == '/':
		// rest starts a child prim, either after a variant selection or a
		// path separator.
		return Path{s: joinChild(newPrefix.s, strings.TrimPrefix(rest, "/"))}
	}
	return Path{s: newPrefix.s + rest}
}

// joinChild appends a child element to a prim path, omitting the separator
// after a variant selection.
func joinChild(parent, child string) string {
	if parent == "/" || strings.HasSuffix(parent, "}") {
		return parent + child
	}
	return parent + "/" + child
}

// ParentPath returns the namespace parent of p. The parent of a root prim is
// the absolute root; the absolute root and the empty path have no parent.
func (p Path) ParentPath() Path {
	switch p.s {
	case "", "/":
		return EmptyPath
	case ".":
		return Path{s: ".."}
	}
	prim, prop := splitProperty(p.s)
	if prop != "" {
		if strings.HasSuffix(prop, "]") {
			return Path{s: prim + prop[:strings.LastIndex(prop, "[")]}
		}
		if end := strings.LastIndex(prop, "]"); end >= 0 {
			return Path{s: prim + prop[:end+1]}
		}
		return Path{s: prim}
	}
	if strings.HasSuffix(prim, "..") {
		return Path{s: prim + "/.."}
	}
	if strings.HasSuffix(prim, "}") {
		return Path{s: prim[:strings.LastIndex(prim, "{")]}
	}
	if j := strings.LastIndex(prim, "}"); j > strings.LastIndex(prim, "/") {
		return Path{s: prim[:j+1]}
	}
	i := strings.LastIndex(prim, "/")
	switch {
	case i < 0:
		return ReflexiveRelativePath
	case i == 0:
		return AbsoluteRootPath
	default:
		return Path{s: prim[:i]}
	}
}

// Name returns the final element of p.
func (p Path) Name() string {
	if p.s == "" || p.s == "/" {
		return ""
	}
	prim, prop := splitProperty(p.s)
	if prop != "" {
		if end := strings.LastIndex(prop, "]"); end >= 0 && end+1 < len(prop) {
			return prop[end+2:]
		}
		if strings.HasSuffix(prop, "]") {
			return prop[strings.LastIndex(prop, "[")+1 : len(prop)-1]
		}
		return prop[1:]
	}
	i := strings.LastIndex(prim, "/")
	if j := strings.LastIndex(prim, "}"); j > i && j < len(prim)-1 {
		i = j
	}
	if i >= 0 {
		return prim[i+1:]
	}
	return prim
}

// AppendChild returns the child prim path named name.
func (p Path) AppendChild(name string) (Path, error) {
	if p.IsPropertyPath() || p.s == "" {
		return EmptyPath, fmt.Errorf("%w: cannot append child %q to %q", ErrInvalidPath, name, p.s)
	}
	return NewPath(joinChild(p.s, name))
}

// MakeAbsolute anchors a relative path at anchor, resolving "." and "..".
func (p Path) MakeAbsolute(anchor Path) (Path, error) {
	if p.IsAbsolutePath() || p.s == "" {
		return p, nil
	}
	if !anchor.IsAbsolutePath() || anchor.IsPropertyPath() {
		return EmptyPath, fmt.Errorf("%w: anchor %q must be an absolute prim path", ErrInvalidPath, anchor.s)
	}
	prim, prop := splitProperty(p.s)
	current := anchor
	for _, elem := range strings.Split(prim, "/") {
		switch elem {
		case "", ".":
			continue
		case "..":
			if current.s == "/" {
				return EmptyPath, fmt.Errorf("%w: %q escapes above %q", ErrInvalidPath, p.s, anchor.s)
			}
			current = current.ParentPath()
		default:
			next, err := current.AppendChild(elem)
			if err != nil {
				return EmptyPath, err
			}
			current = next
		}
	}
	if prop == "" {
		return current, nil
	}
	return NewPath(current.s + prop)
}

// Less orders paths so that ancestors sort before descendants.
func (p Path) Less(other Path) bool {
	return p.s < other.s
}

// splitProperty separates the prim portion from the property portion. The
// property portion starts at the first '.' that follows a name character or
// a closing variant brace, outside of any target brackets.
func splitProperty(s string) (string, string) {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '[':
			depth++
		case ']':
			depth--
		case '.':
			if depth > 0 || i == 0 {
				continue
			}
			prev := s[i-1]
			if prev == '}' || isNameChar(prev) {
				return s[:i], s[i:]
			}
		}
	}
	return s, ""
}

func normalizePrimPart(prim string) (string, error) {
	if prim == "/" {
		return prim, nil
	}
	absolute := strings.HasPrefix(prim, "/")
	body := strings.TrimSuffix(strings.TrimPrefix(prim, "/"), "/")
	if body == "" {
		if absolute {
			return "/", nil
		}
		return "", errors.New("empty prim path")
	}
	var out []string
	leading := true
	for _, elem := range strings.Split(body, "/") {
		switch elem {
		case "":
			return "", errors.New("empty path element")
		case ".":
			if absolute {
				return "", errors.New("'.' in absolute path")
			}
			continue
		case "..":
			if absolute || !leading {
				return "", errors.New("'..' only allowed at the start of a relative path")
			}
			out = append(out, elem)
			continue
		}
		leading = false
		if err := validatePrimElement(elem); err != nil {
			return "", err
		}
		out = append(out, elem)
	}
	if len(out) == 0 {
		return ".", nil
	}
	joined := ""
	if absolute {
		joined = "/"
	}
	for i, elem := range out {
		if i == 0 {
			joined += elem
			continue
		}
		joined = joinChild(joined, elem)
	}
	return joined, nil
}

// validatePrimElement accepts a prim name followed by variant selections,
// optionally followed by a child element ("A{v=x}B{w=y}C").
func validatePrimElement(elem string) error {
	rest := elem
	for rest != "" {
		name := rest
		i := strings.Index(rest, "{")
		if i >= 0 {
			name = rest[:i]
		}
		if !isIdentifier(name) {
			return fmt.Errorf("invalid prim name %q", name)
		}
		if i < 0 {
			return nil
		}
		rest = rest[i:]
		for strings.HasPrefix(rest, "{") {
			end := strings.Index(rest, "}")
			if end < 0 {
				return fmt.Errorf("unterminated variant selection in %q", elem)
			}
			set, _, ok := strings.Cut(rest[1:end], "=")
			if !ok || !isIdentifier(set) {
				return fmt.Errorf("malformed variant selection in %q", elem)
			}
			rest = rest[end+1:]
		}
	}
	return nil
}

func validatePropertyPart(prop string) error {
	if !strings.HasPrefix(prop, ".") {
		return fmt.Errorf("malformed property %q", prop)
	}
	name := prop[1:]
	var target, rest string
	if i := strings.Index(name, "["); i >= 0 {
		end := strings.LastIndex(name, "]")
		if end < i {
			return fmt.Errorf("unterminated target in %q", prop)
		}
		target = name[i+1 : end]
		rest = name[end+1:]
		name = name[:i]
	}
	if !isPropertyName(name) {
		return fmt.Errorf("invalid property name %q", name)
	}
	if target == "" && !strings.Contains(prop, "[") {
		return nil
	}
	tp, err := NewPath(target)
	if err != nil || tp.IsEmpty() {
		return fmt.Errorf("invalid target %q", target)
	}
	if rest == "" {
		return nil
	}
	if !strings.HasPrefix(rest, ".") || !isPropertyName(rest[1:]) {
		return fmt.Errorf("invalid relational attribute %q", rest)
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			continue
		}
		if i > 0 && c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}

func isPropertyName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ":") {
		if !isIdentifier(part) {
			return false
		}
	}
	return true
}

func isNameChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
