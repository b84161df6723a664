package exports

import (
	"go/ast"
	"strings"

	"github.com/emenda-labs/apidelta/core/filter"
	"github.com/emenda-labs/apidelta/core/forest"
)

const (
	// DeprecatedAnnotation is attached to declarations whose doc comment
	// has a "Deprecated:" paragraph.
	DeprecatedAnnotation = "Deprecated"

	directivePrefix = "//api:"
)

// docAnnotations derives annotations from a doc comment. Directives of the
// form //api:Name or //api:Name(attr = "v") come first in source order,
// followed by the deprecation marker.
func docAnnotations(doc *ast.CommentGroup) (anns []*forest.AnnotationInfo, bad []string) {
	if doc == nil {
		return nil, nil
	}

	for _, c := range doc.List {
		rest, ok := strings.CutPrefix(c.Text, directivePrefix)
		if !ok {
			continue
		}
		ann, err := filter.ParseAnnotation("@" + strings.TrimSpace(rest))
		if err != nil {
			bad = append(bad, c.Text)
			continue
		}
		anns = append(anns, ann)
	}

	if deprecated(doc) {
		anns = append(anns, &forest.AnnotationInfo{Type: DeprecatedAnnotation})
	}
	return anns, bad
}

// deprecated reports whether a paragraph of the comment starts with
// "Deprecated:", the convention recognised by go doc and gopls.
func deprecated(doc *ast.CommentGroup) bool {
	for _, para := range strings.Split(doc.Text(), "\n\n") {
		if strings.HasPrefix(strings.TrimSpace(para), "Deprecated:") {
			return true
		}
	}
	return false
}

// specDoc returns the doc comment of a spec inside a declaration group.
// A lone spec in an unparenthesized declaration is documented on the
// declaration itself.
func specDoc(spec *ast.CommentGroup, group *ast.GenDecl) *ast.CommentGroup {
	if spec != nil {
		return spec
	}
	if !group.Lparen.IsValid() {
		return group.Doc
	}
	return nil
}
