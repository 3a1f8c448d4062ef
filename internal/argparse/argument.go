package argparse

import (
	"errors"
	"fmt"

	"github.com/rogiervandergeer/structargs/internal/convert"
)

// Arity is the value count an argument accepts.
type Arity int

const (
	// One consumes exactly one value token.
	One Arity = iota
	// ZeroOrOne consumes at most one value token.
	ZeroOrOne
	// ZeroOrMore consumes any number of value tokens.
	ZeroOrMore
	// OneOrMore consumes at least one value token.
	OneOrMore
)

func (a Arity) multiple() bool { return a == ZeroOrMore || a == OneOrMore }

// Argument is one registered argument spec: either a long flag (with an
// optional single-letter alias) or a positional slot.
type Argument struct {
	Flag    string // "--sub-a"; empty for positionals
	Short   string // "-x"; only for flags
	Name    string // positional slot identifier, e.g. "sub_a"
	Key     string // namespace key
	Arity   Arity
	Convert convert.Converter
	Choices []string

	Required   bool
	HasDefault bool
	Default    any

	Help    string
	Metavar string
	EnvVar  string

	// IsSwitch marks a zero-arity argument that stores SwitchValue when
	// present; used for the boolean flag pairs.
	IsSwitch    bool
	SwitchValue any

	pair  *Argument // the other half of a --x/--no-x pair
	group *Group
}

func (a *Argument) positional() bool { return a.Flag == "" }

// displayName is how the argument is referred to in error messages.
func (a *Argument) displayName() string {
	if a.positional() {
		return a.Name
	}
	return a.Flag
}

// Group is a named help section; grouping only affects help output.
type Group struct {
	Title string
	args  []*Argument
}

// ErrorHandling defines how Parser.Parse reports user-input errors,
// mirroring the stdlib flag package.
type ErrorHandling int

const (
	// ContinueOnError returns a *ParseError (or ErrHelp) to the caller.
	ContinueOnError ErrorHandling = iota
	// ExitOnError prints the usage line and error and exits the process
	// with status 2 (0 for help requests).
	ExitOnError
)

// ErrHelp is returned when -h or --help was requested; the help text has
// already been written to the parser's output.
var ErrHelp = errors.New("help requested")

// ParseError is a user-facing input error: a bad value, a structural
// problem, or an unknown argument. It carries the short usage text so the
// caller can render the conventional two-line report.
type ParseError struct {
	Prog  string
	Usage string
	Msg   string
}

func (e *ParseError) Error() string { return e.Msg }

// Report renders the conventional usage-plus-error message.
func (e *ParseError) Report() string {
	return fmt.Sprintf("%s%s: error: %s\n", e.Usage, e.Prog, e.Msg)
}

// InternalError signals an inconsistency between synthesis and
// reconstruction, e.g. leftover namespace keys. It is never caused by user
// input.
type InternalError struct {
	Msg string
}

func (e *InternalError) Error() string { return "internal error: " + e.Msg }

// Internalf builds an InternalError.
func Internalf(format string, args ...any) *InternalError {
	return &InternalError{Msg: fmt.Sprintf(format, args...)}
}
