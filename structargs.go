// Package structargs converts a typed struct schema into a command-line
// argument parser and parses command-line input back into an instance of
// that struct. The struct is the single source of truth: field types and
// tags drive flag synthesis, nested structs expand into prefixed flags, and
// interface fields with registered variants become sub-commands.
//
// Recognized struct tags: help, short, default, env, metavar, layout,
// encoding, choices, parser, union, positional, required, negatable,
// ignore.
package structargs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/google/shlex"
	"github.com/joho/godotenv"

	"github.com/rogiervandergeer/structargs/internal/argparse"
	"github.com/rogiervandergeer/structargs/internal/convert"
	"github.com/rogiervandergeer/structargs/internal/fileconf"
	"github.com/rogiervandergeer/structargs/internal/reconcile"
	"github.com/rogiervandergeer/structargs/internal/schema"
	"github.com/rogiervandergeer/structargs/internal/synth"
)

// ErrHelp is returned by Parse when -h or --help was supplied; the help
// text has already been written to the configured output.
var ErrHelp = argparse.ErrHelp

// Defaulter is the optional default factory hook. When *T implements it,
// Parse invokes Defaults on a fresh instance before anything else is
// applied, once per parse.
type Defaulter interface {
	Defaults()
}

// Validator is the optional construction-time validation hook. Its error is
// propagated to the caller unmodified.
type Validator interface {
	Validate() error
}

type config struct {
	prog          string
	description   string
	addConfigFile bool
	exitOnError   bool
	allowAbbrev   bool
	out           io.Writer
	errOut        io.Writer
	envLookup     func(string) (string, bool)
	envFiles      []string
}

// Option configures a single Parse invocation.
type Option func(*config)

// WithProg overrides the program name shown in usage and error messages.
func WithProg(name string) Option { return func(c *config) { c.prog = name } }

// WithDescription sets the descriptive text of the help output.
func WithDescription(s string) Option { return func(c *config) { c.description = s } }

// WithConfigFileArgument adds a --config-file flag whose JSON or YAML
// contents provide defaults below environment variables and command-line
// values.
func WithConfigFileArgument() Option { return func(c *config) { c.addConfigFile = true } }

// WithAllowAbbrev toggles unique-prefix matching of long flags (on by
// default).
func WithAllowAbbrev(b bool) Option { return func(c *config) { c.allowAbbrev = b } }

// WithEnvLookup replaces the environment reader, primarily for tests.
func WithEnvLookup(fn func(string) (string, bool)) Option {
	return func(c *config) { c.envLookup = fn }
}

// WithEnvFile loads a dotenv file as an additional environment source;
// process environment variables take precedence over file entries.
func WithEnvFile(path string) Option {
	return func(c *config) { c.envFiles = append(c.envFiles, path) }
}

// WithOutput redirects help output (default os.Stdout).
func WithOutput(w io.Writer) Option { return func(c *config) { c.out = w } }

// WithErrorOutput redirects error output (default os.Stderr).
func WithErrorOutput(w io.Writer) Option { return func(c *config) { c.errOut = w } }

func withExitOnError() Option { return func(c *config) { c.exitOnError = true } }

// RegisterVariants declares the closed set of struct types selectable for
// fields declared with the interface type I. It panics on misuse, which is
// a declaration-time programming error.
func RegisterVariants[I any](variants ...I) {
	iface := reflect.TypeOf((*I)(nil)).Elem()
	types := make([]reflect.Type, len(variants))
	for i, v := range variants {
		types[i] = reflect.TypeOf(v)
	}
	if err := schema.RegisterVariants(iface, types); err != nil {
		panic(err)
	}
}

// RegisterParser installs a named conversion function usable from
// `parser:"name"` tags. It panics on misuse.
func RegisterParser(name string, fn func(string) (any, error)) {
	if err := schema.RegisterParser(name, fn); err != nil {
		panic(err)
	}
}

// Parse builds an argument parser from the fields of T, parses args, and
// reconstructs a T from the result. A nil args slice means the process's
// own arguments. Schema problems surface as errors before any token is
// read; user-input problems are returned as parse errors; a help request
// returns ErrHelp.
func Parse[T any](args []string, opts ...Option) (*T, error) {
	cfg := &config{
		allowAbbrev: true,
		out:         os.Stdout,
		errOut:      os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if args == nil {
		args = os.Args[1:]
	}

	rec, err := schema.Of(reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return nil, err
	}
	proto, err := rec.NewPrototype()
	if err != nil {
		return nil, err
	}

	p, err := newParser(cfg)
	if err != nil {
		return nil, err
	}
	if err := synth.AddArguments(p, rec, proto, "", ""); err != nil {
		return nil, err
	}

	ns, err := p.Parse(args)
	if err != nil {
		return nil, err
	}
	if cfg.addConfigFile {
		ns.Take(configFileKey)
	}

	v, err := reconcile.Build(rec, ns, "")
	if err != nil {
		return nil, err
	}
	if rem := ns.RemainingKeys(); len(rem) > 0 {
		return nil, argparse.Internalf(
			"unconsumed namespace keys after reconstruction: %s", strings.Join(rem, ", "))
	}

	t := v.Interface().(T)
	if validator, ok := any(&t).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}
	return &t, nil
}

// MustParse is Parse with the conventional process behavior: user-input
// errors print usage and exit with status 2, help requests print and exit
// with status 0, schema errors print and exit with status 2.
func MustParse[T any](args []string, opts ...Option) *T {
	t, err := Parse[T](args, append(opts, withExitOnError())...)
	if err != nil {
		// User-input errors and help requests have already exited inside the
		// parser; anything arriving here is a declaration-time problem.
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(2)
	}
	return t
}

// ParseString splits a shell-style command line and parses it. Useful for
// tests and for argument strings arriving through other channels.
func ParseString[T any](command string, opts ...Option) (*T, error) {
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("cannot split command line: %w", err)
	}
	return Parse[T](args, opts...)
}

const (
	configFileFlag = "--config-file"
	configFileKey  = "config_file"
)

func newParser(cfg *config) (*argparse.Parser, error) {
	prog := cfg.prog
	if prog == "" && len(os.Args) > 0 {
		prog = filepath.Base(os.Args[0])
	}
	p := argparse.New(prog)
	p.SetDescription(cfg.description)
	p.SetOutput(cfg.out)
	p.SetErrorOutput(cfg.errOut)
	p.SetAllowAbbrev(cfg.allowAbbrev)
	if cfg.exitOnError {
		p.SetErrorHandling(argparse.ExitOnError)
	}

	lookup, err := buildEnvLookup(cfg)
	if err != nil {
		return nil, err
	}
	p.SetEnvLookup(lookup)

	if cfg.addConfigFile {
		pathConv, err := convert.ForType(reflect.TypeOf(""))
		if err != nil {
			return nil, err
		}
		a := &argparse.Argument{
			Flag:    configFileFlag,
			Key:     configFileKey,
			Arity:   argparse.One,
			Convert: pathConv,
			Help:    "path to a JSON or YAML file providing default values",
			Metavar: "PATH",
		}
		if err := p.Add(nil, a); err != nil {
			return nil, err
		}
		p.SetFileLoader(configFileKey, fileconf.Load)
	}
	return p, nil
}

// buildEnvLookup composes the process environment with any dotenv files;
// the process environment wins.
func buildEnvLookup(cfg *config) (func(string) (string, bool), error) {
	base := cfg.envLookup
	if base == nil {
		base = os.LookupEnv
	}
	if len(cfg.envFiles) == 0 {
		return base, nil
	}
	fromFiles, err := godotenv.Read(cfg.envFiles...)
	if err != nil {
		return nil, fmt.Errorf("cannot read env file: %w", err)
	}
	return func(key string) (string, bool) {
		if v, ok := base(key); ok {
			return v, true
		}
		v, ok := fromFiles[key]
		return v, ok
	}, nil
}
