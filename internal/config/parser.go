package config

import (
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/gorilla/schema"
	"golang.org/x/tools/go/packages"
)

// Directive verbs that configure a whole package.
const (
	VerbPackage = "package"
	VerbOption  = "option"
)

// PackageAlias is declared with
//
//	//attrimap:package path=example.com/shared/types alias=shared
type PackageAlias struct {
	Path  string `schema:"path" validate:"required"`
	Alias string `schema:"alias" validate:"omitempty,goident"`
}

// PackageOptions is declared with
//
//	//attrimap:option output=mappers.gen.go prefix=Map pointers=true
type PackageOptions struct {
	Output   string `schema:"output" validate:"omitempty,gofile"`
	Prefix   string `schema:"prefix" validate:"omitempty,goident"`
	Pointers *bool  `schema:"pointers"`
}

// PackageDirectives are the package level directives of one package.
type PackageDirectives struct {
	Aliases []PackageAlias
	Options PackageOptions
}

// AliasMap returns the alias table declared by the package.
func (d *PackageDirectives) AliasMap() map[string]string {
	m := make(map[string]string, len(d.Aliases))
	for _, a := range d.Aliases {
		m[a.Alias] = a.Path
	}
	return m
}

// Parser decodes package level directives.
type Parser struct {
	decoder *schema.Decoder
}

// NewParser creates a new instance of a Parser.
func NewParser() *Parser {
	decoder := schema.NewDecoder()
	decoder.IgnoreUnknownKeys(false)
	return &Parser{decoder: decoder}
}

// SplitDirective splits "//attrimap:verb rest" into verb and rest. ok is
// false for comments that are not attrimap directives.
func SplitDirective(text string) (verb, rest string, ok bool) {
	if !strings.HasPrefix(text, DirectivePrefix) {
		return "", "", false
	}
	body := strings.TrimSpace(strings.TrimPrefix(text, DirectivePrefix))
	verb, rest, _ = strings.Cut(body, " ")
	return verb, strings.TrimSpace(rest), true
}

// ParsePackage collects the package and option directives of pkg. Member
// annotations share the prefix and are skipped here.
func (p *Parser) ParsePackage(pkg *packages.Package) (*PackageDirectives, error) {
	dirs := &PackageDirectives{}
	for _, file := range pkg.Syntax {
		for _, group := range file.Comments {
			for _, comment := range group.List {
				verb, rest, ok := SplitDirective(comment.Text)
				if !ok || (verb != VerbPackage && verb != VerbOption) {
					continue
				}
				pos := pkg.Fset.Position(comment.Pos())
				if err := p.apply(dirs, verb, rest); err != nil {
					return nil, fmt.Errorf("%s: %w", pos, err)
				}
				slog.Debug("Processed directive", "package", pkg.PkgPath, "verb", verb, "value", rest)
			}
		}
	}
	return dirs, nil
}

// ParseLine applies a single directive line to dirs.
func (p *Parser) ParseLine(dirs *PackageDirectives, text string) error {
	verb, rest, ok := SplitDirective(text)
	if !ok {
		return fmt.Errorf("not an attrimap directive: %q", text)
	}
	return p.apply(dirs, verb, rest)
}

func (p *Parser) apply(dirs *PackageDirectives, verb, rest string) error {
	values, err := parseValues(rest)
	if err != nil {
		return fmt.Errorf("invalid %s directive: %w", verb, err)
	}
	switch verb {
	case VerbPackage:
		var alias PackageAlias
		if err := p.decoder.Decode(&alias, values); err != nil {
			return fmt.Errorf("invalid package directive: %w", err)
		}
		if alias.Alias == "" {
			alias.Alias = path.Base(alias.Path)
		}
		if err := validate.Struct(alias); err != nil {
			return fmt.Errorf("invalid package directive: %w", err)
		}
		dirs.Aliases = append(dirs.Aliases, alias)
	case VerbOption:
		opts := dirs.Options
		if err := p.decoder.Decode(&opts, values); err != nil {
			return fmt.Errorf("invalid option directive: %w", err)
		}
		if err := validate.Struct(opts); err != nil {
			return fmt.Errorf("invalid option directive: %w", err)
		}
		dirs.Options = opts
	default:
		return fmt.Errorf("unknown directive %q", verb)
	}
	return nil
}

// parseValues reads whitespace separated key=value pairs. Commas are accepted
// as separators as well.
func parseValues(s string) (map[string][]string, error) {
	values := make(map[string][]string)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	for _, field := range fields {
		key, value, ok := strings.Cut(field, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", field)
		}
		values[key] = append(values[key], strings.Trim(value, `"`))
	}
	return values, nil
}
