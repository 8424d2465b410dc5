// Package gen emits Go source for descriptor registries from mapping
// documents. The generated file declares entity name constants, one
// descriptor constructor per entity, and a NewRegistry function that
// registers everything in document order. Identifier accessors stay with
// the caller, supplied as descriptor options at registration time, so
// the generated code never needs to know the application's struct types.
//
// This is an internal package used by the tether CLI; applications that
// prefer runtime mapping use the mapping package directly.
package gen

import (
	"bytes"
	"embed"
	"fmt"
	"go/format"
	"strings"
	"text/template"
	"unicode"

	"github.com/tetherhq/tether/mapping"
)

//go:embed templates/*.go.tpl
var templatesFS embed.FS

// templates holds the parsed Go source templates.
var templates *template.Template

func init() {
	var err error
	templates, err = template.ParseFS(templatesFS, "templates/*.go.tpl")
	if err != nil {
		panic(fmt.Sprintf("failed to parse registry templates: %v", err))
	}
}

type fileData struct {
	Package  string
	Entities []entityData
}

type entityData struct {
	Name  string
	Ident string
	Props []propData
}

type propData struct {
	Name string
	// Expr is the pre-rendered tether.PropertyType constructor call.
	Expr string
}

// Generate renders the registry source for a mapping document as a
// gofmt-formatted Go file in the given package.
func Generate(doc *mapping.Document, pkg string) ([]byte, error) {
	if pkg == "" {
		return nil, fmt.Errorf("gen: package name must not be empty")
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}

	data := fileData{Package: pkg}
	for _, e := range doc.Entities {
		ed := entityData{Name: e.Name, Ident: exportIdent(e.Name)}
		for _, p := range e.Properties {
			expr, err := typeExpr(doc, p, 2)
			if err != nil {
				return nil, fmt.Errorf("gen: entity %q property %q: %w", e.Name, p.Name, err)
			}
			ed.Props = append(ed.Props, propData{Name: p.Name, Expr: expr})
		}
		data.Entities = append(data.Entities, ed)
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, "registry.go.tpl", data); err != nil {
		return nil, fmt.Errorf("gen: executing template: %w", err)
	}
	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("gen: formatting output: %w", err)
	}
	return formatted, nil
}

// typeExpr renders the constructor call for a property type. Composite
// sub-properties are rendered one per line, indented one level past the
// enclosing expression.
func typeExpr(doc *mapping.Document, p mapping.Property, indent int) (string, error) {
	switch p.Kind {
	case mapping.KindScalar:
		return "tether.Scalar()", nil
	case mapping.KindManyToOne:
		return fmt.Sprintf("tether.ManyToOneRef(Entity%s)", exportIdent(p.Target)), nil
	case mapping.KindOneToOne:
		return fmt.Sprintf("tether.OneToOneRef(Entity%s)", exportIdent(p.Target)), nil
	case mapping.KindAny:
		return "tether.AnyRef()", nil
	case mapping.KindComposite:
		c, ok := doc.Composite(p.Composite)
		if !ok {
			return "", fmt.Errorf("unknown composite %q", p.Composite)
		}
		var b strings.Builder
		b.WriteString("tether.CompositeOf(\n")
		for _, sp := range c.Properties {
			expr, err := typeExpr(doc, sp, indent+1)
			if err != nil {
				return "", err
			}
			b.WriteString(strings.Repeat("\t", indent+1))
			fmt.Fprintf(&b, "tether.Property{Name: %q, Type: %s},\n", sp.Name, expr)
		}
		b.WriteString(strings.Repeat("\t", indent))
		b.WriteString(")")
		return b.String(), nil
	default:
		return "", fmt.Errorf("unknown property kind %q", p.Kind)
	}
}

// exportIdent converts an entity name to an exported Go identifier,
// title-casing segments split on non-alphanumeric runes.
func exportIdent(name string) string {
	var b strings.Builder
	upperNext := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upperNext = true
			continue
		}
		if upperNext {
			b.WriteRune(unicode.ToUpper(r))
			upperNext = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
