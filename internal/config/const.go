// Package config holds the generator options and parses the package level
// attrimap directives.
package config

// Global constants for the application.
const (
	Application = "attrimap"
	Description = "Generate mapping functions from member annotations"
	WebSite     = "https://github.com/origadmin/attrimap"
	UI          = "attrimap"
)

// DirectivePrefix starts every attrimap comment directive.
const DirectivePrefix = "//attrimap:"

const (
	// DefaultOutput is the file written into each package that receives
	// generated functions.
	DefaultOutput = "attrimap.gen.go"
	// DefaultPrefix starts every generated function name.
	DefaultPrefix = "To"
	// DefaultBuildTag excludes generated files while the generator loads
	// packages, so stale output never breaks type checking.
	DefaultBuildTag = "attrimap"
	// DefaultConfigFile is looked up in the working directory.
	DefaultConfigFile = "attrimap.yaml"
)

// GeneratedHeader marks files owned by the generator. Only such files are
// removed when a package stops producing output.
const GeneratedHeader = "// Code generated by attrimap. DO NOT EDIT."
