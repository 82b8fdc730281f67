package diagnostic

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
	"sync"
)

// Severity of a diagnostic.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Code identifies a kind of diagnostic.
type Code string

const (
	DuplicatePropertyMapping Code = "ATMA100"
	UnresolvedType           Code = "ATMA101"
	MissingTransformer       Code = "ATMA102"
	UnknownMember            Code = "ATMA103"
	ReceiverTransformer      Code = "ATMA104"
	MalformedAnnotation      Code = "ATMA105"
	UnsupportedType          Code = "ATMA106"
)

// Rule describes a diagnostic code.
type Rule struct {
	Code     Code
	Title    string
	Format   string
	Category string
	Severity Severity
}

var rules = map[Code]Rule{
	DuplicatePropertyMapping: {
		Code:     DuplicatePropertyMapping,
		Title:    "Duplicate property mapping",
		Format:   "Found multiple mapping attributes for '%s.%s' to target '%s'",
		Category: "Correctness",
		Severity: SeverityWarning,
	},
	UnresolvedType: {
		Code:     UnresolvedType,
		Title:    "Unresolved counterpart type",
		Format:   "cannot resolve counterpart type %s: %s",
		Category: "Correctness",
		Severity: SeverityError,
	},
	MissingTransformer: {
		Code:     MissingTransformer,
		Title:    "Missing transformer",
		Format:   "no single-argument transformer %q found on '%s'",
		Category: "Correctness",
		Severity: SeverityError,
	},
	UnknownMember: {
		Code:     UnknownMember,
		Title:    "Unknown member",
		Format:   "'%s' has no usable member %q: %s",
		Category: "Correctness",
		Severity: SeverityError,
	},
	ReceiverTransformer: {
		Code:     ReceiverTransformer,
		Title:    "Transformer requires a receiver",
		Format:   "transformer '%s.%s' is a method and cannot be called without a '%s' value",
		Category: "Correctness",
		Severity: SeverityError,
	},
	MalformedAnnotation: {
		Code:     MalformedAnnotation,
		Title:    "Malformed annotation",
		Format:   "malformed annotation %q: %s",
		Category: "Usage",
		Severity: SeverityError,
	},
	UnsupportedType: {
		Code:     UnsupportedType,
		Title:    "Unsupported type",
		Format:   "'%s' cannot be used here: %s",
		Category: "Usage",
		Severity: SeverityError,
	},
}

// RuleFor returns the rule registered for code.
func RuleFor(code Code) (Rule, bool) {
	r, ok := rules[code]
	return r, ok
}

// Diagnostic is a single reported problem.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Pos      token.Position
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	if d.Pos.IsValid() {
		sb.WriteString(d.Pos.String())
		sb.WriteString(": ")
	}
	fmt.Fprintf(&sb, "%s %s: %s", d.Severity, d.Code, d.Message)
	return sb.String()
}

// Error is a diagnostic carried through an error return.
type Error struct {
	Code Code
	Pos  token.Position
	Msg  string
}

// Errorf formats the message of code's rule with args.
func Errorf(code Code, pos token.Position, args ...any) *Error {
	format := "%v"
	if r, ok := rules[code]; ok {
		format = r.Format
	}
	return &Error{Code: code, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	return e.Diagnostic().String()
}

// Diagnostic converts e using the severity of its rule.
func (e *Error) Diagnostic() Diagnostic {
	sev := SeverityError
	if r, ok := rules[e.Code]; ok {
		sev = r.Severity
	}
	return Diagnostic{Severity: sev, Code: e.Code, Message: e.Msg, Pos: e.Pos}
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(d Diagnostic)
	// ReportDuplicateMapping reports a second mapping of sourceMember onto a
	// target member that is already mapped.
	ReportDuplicateMapping(pos token.Position, sourceFullName, sourceMember, targetFullName string)
}

var _ Reporter = (*Collector)(nil)

// Collector is a Reporter that keeps diagnostics in report order. It is safe
// for concurrent use.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Report records d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, d)
}

// ReportError records err. Errors that are not *Error are recorded as
// malformed annotations at pos.
func (c *Collector) ReportError(pos token.Position, err error) {
	Report(c, pos, err)
}

// ReportDuplicateMapping records an ATMA100 warning.
func (c *Collector) ReportDuplicateMapping(pos token.Position, sourceFullName, sourceMember, targetFullName string) {
	c.Report(DuplicateMapping(pos, sourceFullName, sourceMember, targetFullName))
}

// Diagnostics returns a copy of everything reported so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Diagnostic(nil), c.items...)
}

// Errors returns the error diagnostics.
func (c *Collector) Errors() []Diagnostic {
	return c.filter(SeverityError)
}

// Warnings returns the warning diagnostics.
func (c *Collector) Warnings() []Diagnostic {
	return c.filter(SeverityWarning)
}

func (c *Collector) filter(sev Severity) []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Diagnostic
	for _, d := range c.items {
		if d.Severity == sev {
			out = append(out, d)
		}
	}
	return out
}

// HasErrors reports whether any error diagnostic was recorded.
func (c *Collector) HasErrors() bool {
	return len(c.Errors()) > 0
}

// Err joins all error diagnostics, or returns nil.
func (c *Collector) Err() error {
	var errs []error
	for _, d := range c.Errors() {
		errs = append(errs, &Error{Code: d.Code, Pos: d.Pos, Msg: d.Message})
	}
	return errors.Join(errs...)
}

// DuplicateMapping builds the ATMA100 warning for a source member mapped more
// than once onto the same target member.
func DuplicateMapping(pos token.Position, sourceFullName, sourceMember, targetFullName string) Diagnostic {
	return Errorf(DuplicatePropertyMapping, pos, sourceFullName, sourceMember, targetFullName).Diagnostic()
}

// Report sends err to r as a diagnostic.
func Report(r Reporter, pos token.Position, err error) {
	var de *Error
	if errors.As(err, &de) {
		r.Report(de.Diagnostic())
		return
	}
	r.Report(Diagnostic{Severity: SeverityError, Code: MalformedAnnotation, Message: err.Error(), Pos: pos})
}
