package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Options control how the functions of one package are emitted.
type Options struct {
	Output   string `yaml:"output" validate:"required,gofile"`
	Prefix   string `yaml:"prefix" validate:"required,goident"`
	Pointers bool   `yaml:"pointers"`
}

// Config is the run wide configuration.
type Config struct {
	Options `yaml:",inline"`
	// BuildTag is negated in the build constraint of generated files and set
	// while loading packages. Empty disables both.
	BuildTag string `yaml:"buildTag" validate:"omitempty,gotag"`
	// Aliases maps package aliases usable in every annotation to import paths.
	Aliases map[string]string `yaml:"aliases" validate:"dive,keys,goident,endkeys,required"`
}

// NewConfig returns the default configuration.
func NewConfig() *Config {
	return &Config{
		Options: Options{
			Output: DefaultOutput,
			Prefix: DefaultPrefix,
		},
		BuildTag: DefaultBuildTag,
		Aliases:  make(map[string]string),
	}
}

// Load reads a YAML configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := NewConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.Aliases == nil {
		cfg.Aliases = make(map[string]string)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadDir loads dir/attrimap.yaml when it exists and the defaults otherwise.
func LoadDir(dir string) (*Config, error) {
	path := filepath.Join(dir, DefaultConfigFile)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return NewConfig(), nil
		}
		return nil, err
	}
	return Load(path)
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	return validate.Struct(c)
}

// Validate checks the options of one package.
func (o Options) Validate() error {
	return validate.Struct(o)
}

// ForPackage applies the overrides of a package directive.
func (c *Config) ForPackage(o PackageOptions) Options {
	opts := c.Options
	if o.Output != "" {
		opts.Output = o.Output
	}
	if o.Prefix != "" {
		opts.Prefix = o.Prefix
	}
	if o.Pointers != nil {
		opts.Pointers = *o.Pointers
	}
	return opts
}

var (
	identRegexp = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	tagRegexp   = regexp.MustCompile(`^[A-Za-z0-9_.]+$`)
	validate    = newValidator()
)

func newValidator() *validator.Validate {
	v := validator.New()
	must := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	must("goident", func(fl validator.FieldLevel) bool {
		return identRegexp.MatchString(fl.Field().String())
	})
	must("gotag", func(fl validator.FieldLevel) bool {
		return tagRegexp.MatchString(fl.Field().String())
	})
	must("gofile", func(fl validator.FieldLevel) bool {
		name := fl.Field().String()
		return strings.HasSuffix(name, ".go") && len(name) > len(".go") &&
			!strings.ContainsAny(name, `/\`) && !strings.HasSuffix(name, "_test.go")
	})
	return v
}
