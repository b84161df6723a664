package filter

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/emenda-labs/apidelta/core/forest"
)

// AnnotatedConfig is the configuration surface of the annotation filter.
type AnnotatedConfig struct {
	Include []string `yaml:"include,omitempty" toml:"include" json:"include"`
	Exclude []string `yaml:"exclude,omitempty" toml:"exclude" json:"exclude"`
	Regex   bool     `yaml:"regex,omitempty" toml:"regex" json:"regex"`
}

// IsZero reports whether the configuration has no matchers.
func (c AnnotatedConfig) IsZero() bool {
	return len(c.Include) == 0 && len(c.Exclude) == 0
}

// Annotated includes or excludes elements based on their own annotations.
//
// An element matching any include matcher is included, whatever the exclude
// list says. Otherwise an element matching an exclude matcher is excluded.
// When the include list is non-empty, elements matching nothing are
// excluded; with an empty include list they are left undecided.
type Annotated struct {
	include []annotationMatcher
	exclude []annotationMatcher
}

var _ Filter = (*Annotated)(nil)

// annotationMatcher tests one annotation.
type annotationMatcher interface {
	matches(a *forest.AnnotationInfo) bool
}

// NewAnnotated compiles the matchers of cfg. Malformed patterns or
// annotation specifications yield a *ConfigurationError.
func NewAnnotated(cfg AnnotatedConfig) (*Annotated, error) {
	include, err := compileMatchers(cfg.Include, cfg.Regex)
	if err != nil {
		return nil, err
	}
	exclude, err := compileMatchers(cfg.Exclude, cfg.Regex)
	if err != nil {
		return nil, err
	}
	return &Annotated{include: include, exclude: exclude}, nil
}

// Name implements Filter.
func (a *Annotated) Name() string { return "annotated" }

// Test implements Filter.
func (a *Annotated) Test(f *forest.Forest, e *forest.Element) Decision {
	if len(a.include) == 0 && len(a.exclude) == 0 {
		return Undecided
	}

	anns := f.Annotations(e)
	if anyMatch(a.include, anns) {
		return Include
	}
	if anyMatch(a.exclude, anns) {
		return Exclude
	}
	if len(a.include) > 0 {
		return Exclude
	}
	return Undecided
}

func anyMatch(matchers []annotationMatcher, anns []*forest.Element) bool {
	for _, m := range matchers {
		for _, ann := range anns {
			if m.matches(ann.Annotation()) {
				return true
			}
		}
	}
	return false
}

func compileMatchers(specs []string, regex bool) ([]annotationMatcher, error) {
	out := make([]annotationMatcher, 0, len(specs))
	for _, s := range specs {
		if regex {
			re, err := regexp.Compile("^(?:" + s + ")$")
			if err != nil {
				return nil, configErr("annotated", s, err)
			}
			out = append(out, regexMatcher{re: re})
			continue
		}
		spec, err := ParseAnnotation(s)
		if err != nil {
			return nil, configErr("annotated", s, err)
		}
		out = append(out, exactMatcher{spec: spec})
	}
	return out, nil
}

// regexMatcher tests the canonical text form of an annotation.
type regexMatcher struct {
	re *regexp.Regexp
}

func (m regexMatcher) matches(a *forest.AnnotationInfo) bool {
	return m.re.MatchString(a.Canonical())
}

// exactMatcher requires the annotation type and every listed attribute to match.
type exactMatcher struct {
	spec *forest.AnnotationInfo
}

func (m exactMatcher) matches(a *forest.AnnotationInfo) bool {
	if !TypeNamesMatch(m.spec.Type, a.Type) {
		return false
	}
	for _, want := range m.spec.Attributes {
		got, ok := a.Attribute(want.Name)
		if !ok || forest.NormalizeValue(got) != forest.NormalizeValue(want.Value) {
			return false
		}
	}
	return true
}

// TypeNamesMatch compares annotation type names. Qualified names must be
// equal; when either side is unqualified, as source loaders produce for
// imported annotations, the simple names are compared.
func TypeNamesMatch(a, b string) bool {
	if a == b {
		return true
	}
	if strings.Contains(a, ".") && strings.Contains(b, ".") {
		return false
	}
	return simpleName(a) == simpleName(b)
}

func simpleName(s string) string {
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// ParseAnnotation parses an annotation specification of the form @Type,
// @Type(value) or @Type(name = value, ...).
func ParseAnnotation(s string) (*forest.AnnotationInfo, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "@") {
		return nil, errors.New("annotation must start with @")
	}
	s = s[1:]

	end := strings.IndexByte(s, '(')
	typ := s
	if end >= 0 {
		typ = s[:end]
	}
	typ = strings.TrimSpace(typ)
	if !validTypeName(typ) {
		return nil, fmt.Errorf("invalid annotation type %q", typ)
	}
	info := &forest.AnnotationInfo{Type: typ}
	if end < 0 {
		return info, nil
	}

	body := strings.TrimSpace(s[end:])
	if !strings.HasSuffix(body, ")") {
		return nil, errors.New("missing closing parenthesis")
	}
	body = strings.TrimSpace(body[1 : len(body)-1])
	if body == "" {
		return info, nil
	}

	args, err := splitTopLevel(body)
	if err != nil {
		return nil, err
	}
	for _, arg := range args {
		name, value, found := cutAssignment(arg)
		if !found {
			if len(args) > 1 {
				return nil, fmt.Errorf("attribute %q needs a name when several are given", arg)
			}
			name, value = "value", arg
		}
		if !validIdentifier(name) {
			return nil, fmt.Errorf("invalid attribute name %q", name)
		}
		if value == "" {
			return nil, fmt.Errorf("attribute %q has no value", name)
		}
		info.Attributes = append(info.Attributes, forest.Attribute{Name: name, Value: value})
	}
	return info, nil
}

// cutAssignment splits name = value at the first top-level '='.
func cutAssignment(arg string) (string, string, bool) {
	depth := 0
	var quote byte
	for i := 0; i < len(arg); i++ {
		c := arg[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '{':
			depth++
		case c == ')' || c == '}':
			depth--
		case c == '=' && depth == 0:
			return strings.TrimSpace(arg[:i]), strings.TrimSpace(arg[i+1:]), true
		}
	}
	return "", strings.TrimSpace(arg), false
}

// splitTopLevel splits on commas outside literals, braces and parentheses.
func splitTopLevel(s string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(' || c == '{':
			depth++
		case c == ')' || c == '}':
			depth--
			if depth < 0 {
				return nil, errors.New("unbalanced brackets")
			}
		case c == ',' && depth == 0:
			parts = append(parts, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if quote != 0 {
		return nil, errors.New("unterminated literal")
	}
	if depth != 0 {
		return nil, errors.New("unbalanced brackets")
	}
	return append(parts, strings.TrimSpace(s[start:])), nil
}

func validTypeName(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ".") {
		if !validIdentifier(part) {
			return false
		}
	}
	return true
}

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		letter := r == '_' || r == '$' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 0x7f
		if !letter && (i == 0 || r < '0' || r > '9') {
			return false
		}
	}
	return true
}
