// Package argparse is the underlying command-line parsing engine: it owns
// tokenization, flag and positional matching, sub-parser dispatch, choice
// validation, usage text, and the conventional error-to-exit behavior. The
// schema-driven layers above it only register argument specs and read the
// resulting namespace.
package argparse

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/google/shlex"
)

// osExit is swapped out in tests.
var osExit = os.Exit

type valueSource int

const (
	srcNone valueSource = iota
	srcFile
	srcEnv
	srcCLI
)

// Parser accumulates argument specs and parses one token list into a flat
// namespace. A parser instance is used exactly once per parse.
type Parser struct {
	prog        string
	description string
	handling    ErrorHandling
	out         io.Writer
	errOut      io.Writer
	allowAbbrev bool

	envLookup func(string) (string, bool)
	loadFile  func(string) (map[string]any, error)
	fileKey   string

	args    []*Argument
	byFlag  map[string]*Argument
	byShort map[string]*Argument
	keys    map[string]bool
	groups  []*Group
	slots   []posSlot
	sub     *Subparsers
}

// posSlot is one entry in the positional matching order: either a
// positional argument or the sub-command dispatch point.
type posSlot struct {
	arg *Argument
	sub *Subparsers
}

// New creates a parser with the given program name.
func New(prog string) *Parser {
	return &Parser{
		prog:        prog,
		handling:    ContinueOnError,
		out:         os.Stdout,
		errOut:      os.Stderr,
		allowAbbrev: true,
		envLookup:   os.LookupEnv,
		byFlag:      map[string]*Argument{},
		byShort:     map[string]*Argument{},
		keys:        map[string]bool{},
	}
}

// Prog returns the program name.
func (p *Parser) Prog() string { return p.prog }

// SetDescription sets the text printed between the usage line and the
// argument sections of the help output.
func (p *Parser) SetDescription(s string) { p.description = s }

// SetErrorHandling selects what Parse does on user-input errors.
func (p *Parser) SetErrorHandling(h ErrorHandling) { p.handling = h }

// SetOutput redirects help output (default os.Stdout).
func (p *Parser) SetOutput(w io.Writer) { p.out = w }

// SetErrorOutput redirects error output (default os.Stderr).
func (p *Parser) SetErrorOutput(w io.Writer) { p.errOut = w }

// SetAllowAbbrev toggles unique-prefix matching of long flags.
func (p *Parser) SetAllowAbbrev(b bool) { p.allowAbbrev = b }

// SetEnvLookup replaces the environment reader (default os.LookupEnv).
func (p *Parser) SetEnvLookup(fn func(string) (string, bool)) { p.envLookup = fn }

// SetFileLoader wires the config-file default loader: when the namespace
// key holds a path after the token phase, the loader is called and its
// flattened keys are merged below environment and command-line values.
func (p *Parser) SetFileLoader(key string, fn func(string) (map[string]any, error)) {
	p.fileKey = key
	p.loadFile = fn
}

// Group opens a named help section.
func (p *Parser) Group(title string) *Group {
	g := &Group{Title: title}
	p.groups = append(p.groups, g)
	return g
}

// Add registers an argument spec, optionally into a help group.
func (p *Parser) Add(g *Group, a *Argument) error {
	if err := p.register(g, a, false); err != nil {
		return err
	}
	return nil
}

// AddPair registers a --x/--no-x switch pair sharing one namespace key.
// Required-ness, default, and env configuration live on the positive half.
func (p *Parser) AddPair(g *Group, pos, neg *Argument) error {
	pos.pair, neg.pair = neg, pos
	if err := p.register(g, pos, false); err != nil {
		return err
	}
	return p.register(g, neg, true)
}

func (p *Parser) register(g *Group, a *Argument, shareKey bool) error {
	if a.Key == "" {
		return fmt.Errorf("argument %s: missing internal key", a.displayName())
	}
	if !shareKey && p.keys[a.Key] {
		return fmt.Errorf("argument %s: conflicting internal key: %s", a.displayName(), a.Key)
	}
	if a.positional() {
		if a.IsSwitch {
			return fmt.Errorf("argument %s: a positional cannot be a switch", a.Name)
		}
		p.slots = append(p.slots, posSlot{arg: a})
	} else {
		if !strings.HasPrefix(a.Flag, "--") {
			return fmt.Errorf("argument %s: long flags must start with --", a.Flag)
		}
		if a.Flag == "--help" {
			return fmt.Errorf("argument %s: conflicting option string: --help", a.Flag)
		}
		if _, dup := p.byFlag[a.Flag]; dup {
			return fmt.Errorf("argument %s: conflicting option string: %s", a.Flag, a.Flag)
		}
		p.byFlag[a.Flag] = a
		if a.Short != "" {
			short := "-" + strings.TrimPrefix(a.Short, "-")
			if short == "-h" {
				return fmt.Errorf("argument %s: conflicting option string: -h", a.Flag)
			}
			if _, dup := p.byShort[short]; dup {
				return fmt.Errorf("argument %s: conflicting option string: %s", a.Flag, short)
			}
			p.byShort[short] = a
		}
	}
	p.keys[a.Key] = true
	p.args = append(p.args, a)
	a.group = g
	if g != nil {
		g.args = append(g.args, a)
	}
	return nil
}

// HasSubparsers reports whether a dispatch point has been registered.
func (p *Parser) HasSubparsers() bool { return p.sub != nil }

// Subparsers is the single sub-command dispatch point of a parser.
type Subparsers struct {
	Key         string
	DisplayName string
	Required    bool

	order   []string // names and aliases in registration order, for display
	parsers map[string]*Parser
	chosen  string
	marker  *Argument
}

// AddSubparsers registers the dispatch point. At most one may exist.
func (p *Parser) AddSubparsers(key, displayName string, required bool) (*Subparsers, error) {
	if p.sub != nil {
		return nil, errors.New("cannot have multiple subparser arguments")
	}
	if p.keys[key] {
		return nil, fmt.Errorf("argument %s: conflicting internal key: %s", displayName, key)
	}
	s := &Subparsers{
		Key:         key,
		DisplayName: displayName,
		Required:    required,
		parsers:     map[string]*Parser{},
	}
	// The marker participates in ordering for usage and required checks but
	// is never matched against tokens directly.
	s.marker = &Argument{Name: displayName, Key: key, Required: required}
	p.keys[key] = true
	p.args = append(p.args, s.marker)
	p.slots = append(p.slots, posSlot{sub: s})
	p.sub = s
	return s, nil
}

// AddParser allocates the sub-parser selected by the given name or any of
// the aliases. The child inherits the parent's settings.
func (s *Subparsers) AddParser(parent *Parser, name string, aliases ...string) *Parser {
	child := New(parent.prog + " " + name)
	child.handling = parent.handling
	child.out = parent.out
	child.errOut = parent.errOut
	child.allowAbbrev = parent.allowAbbrev
	child.envLookup = parent.envLookup
	s.parsers[name] = child
	s.order = append(s.order, name)
	for _, alias := range aliases {
		s.parsers[alias] = child
		s.order = append(s.order, alias)
	}
	return child
}

func (s *Subparsers) match(tok string) (*Parser, bool) {
	sp, ok := s.parsers[tok]
	return sp, ok
}

type parseState struct {
	ns     *Namespace
	source map[string]valueSource
	active []*Parser
	extras []string
}

func (st *parseState) setCLI(key string, v any) {
	st.ns.Set(key, v)
	st.source[key] = srcCLI
}

// Parse consumes one token list and produces the flat namespace, applying
// the override order: declared default < config file < environment <
// command line.
func (p *Parser) Parse(args []string) (*Namespace, error) {
	ns, err := p.run(args)
	if err == nil {
		return ns, nil
	}
	if errors.Is(err, ErrHelp) {
		if p.handling == ExitOnError {
			osExit(0)
		}
		return nil, err
	}
	var pe *ParseError
	if errors.As(err, &pe) && p.handling == ExitOnError {
		fmt.Fprint(p.errOut, pe.Report())
		osExit(2)
	}
	return nil, err
}

func (p *Parser) run(args []string) (*Namespace, error) {
	st := &parseState{
		ns:     NewNamespace(),
		source: map[string]valueSource{},
		active: []*Parser{p},
	}
	if err := p.consume(args, st); err != nil {
		return nil, err
	}
	if len(st.extras) > 0 {
		return nil, p.errf("unrecognized arguments: %s", strings.Join(st.extras, " "))
	}
	if err := applyEnv(st); err != nil {
		return nil, err
	}
	if err := p.applyFileDefaults(st); err != nil {
		return nil, err
	}
	applyDefaults(st)
	if err := checkRequired(st); err != nil {
		return nil, err
	}
	return st.ns, nil
}

// consume runs the token loop. Dispatching to a sub-command hands the whole
// remainder of the token list to the chosen sub-parser.
func (p *Parser) consume(args []string, st *parseState) error {
	slotIdx := 0
	onlyPos := false
	i := 0
	for i < len(args) {
		tok := args[i]
		if !onlyPos && tok == "--" {
			onlyPos = true
			i++
			continue
		}
		if !onlyPos && p.flagLike(tok) {
			next, err := p.consumeFlag(args, i, st)
			if err != nil {
				return err
			}
			i = next
			continue
		}

		// Positional token: match it against the next pending slot.
		if slotIdx >= len(p.slots) {
			st.extras = append(st.extras, tok)
			i++
			continue
		}
		slot := p.slots[slotIdx]
		if slot.sub != nil {
			sp, ok := slot.sub.match(tok)
			if !ok {
				return p.errf("argument %s: invalid choice: '%s' (choose from %s)",
					slot.sub.DisplayName, tok, quoteJoin(slot.sub.order))
			}
			st.setCLI(slot.sub.Key, tok)
			slot.sub.chosen = tok
			st.active = append(st.active, sp)
			return sp.consume(args[i+1:], st)
		}
		a := slot.arg
		if a.Arity.multiple() {
			var vals []any
			for i < len(args) && (onlyPos || !p.flagLike(args[i])) {
				v, err := p.convertValue(a, args[i])
				if err != nil {
					return err
				}
				vals = append(vals, v)
				i++
			}
			st.setCLI(a.Key, vals)
			slotIdx++
			continue
		}
		v, err := p.convertValue(a, tok)
		if err != nil {
			return err
		}
		st.setCLI(a.Key, v)
		slotIdx++
		i++
	}
	return nil
}

func (p *Parser) consumeFlag(args []string, i int, st *parseState) (int, error) {
	tok := args[i]
	name, inline, hasInline := strings.Cut(tok, "=")

	if name == "-h" || name == "--help" {
		fmt.Fprint(p.out, p.FullHelp())
		return 0, ErrHelp
	}

	var a *Argument
	if strings.HasPrefix(name, "--") {
		a = p.byFlag[name]
		if a == nil && p.allowAbbrev {
			match, err := p.abbrevMatch(name)
			if err != nil {
				return 0, err
			}
			if match == "--help" {
				fmt.Fprint(p.out, p.FullHelp())
				return 0, ErrHelp
			}
			a = p.byFlag[match]
		}
	} else {
		a = p.byShort[name]
	}
	if a == nil {
		st.extras = append(st.extras, tok)
		return i + 1, nil
	}

	if a.IsSwitch {
		if hasInline {
			return 0, p.errf("argument %s: ignored explicit argument '%s'", a.Flag, inline)
		}
		st.setCLI(a.Key, a.SwitchValue)
		return i + 1, nil
	}

	if a.Arity.multiple() {
		var vals []any
		if hasInline {
			v, err := p.convertValue(a, inline)
			if err != nil {
				return 0, err
			}
			vals = append(vals, v)
			i++
		} else {
			i++
			for i < len(args) && !p.flagLike(args[i]) {
				v, err := p.convertValue(a, args[i])
				if err != nil {
					return 0, err
				}
				vals = append(vals, v)
				i++
			}
		}
		if a.Arity == OneOrMore && len(vals) == 0 {
			return 0, p.errf("argument %s: expected at least one argument", a.Flag)
		}
		st.setCLI(a.Key, vals)
		return i, nil
	}

	if hasInline {
		v, err := p.convertValue(a, inline)
		if err != nil {
			return 0, err
		}
		st.setCLI(a.Key, v)
		return i + 1, nil
	}
	// The -- separator is never a value, so flagLike rejecting it is right.
	if i+1 >= len(args) || p.flagLike(args[i+1]) {
		return 0, p.errf("argument %s: expected one argument", a.Flag)
	}
	v, err := p.convertValue(a, args[i+1])
	if err != nil {
		return 0, err
	}
	st.setCLI(a.Key, v)
	return i + 2, nil
}

// abbrevMatch resolves a unique prefix of a long flag to the full flag
// string. The built-in --help counts as a candidate.
func (p *Parser) abbrevMatch(name string) (string, error) {
	var matches []string
	for flag := range p.byFlag {
		if strings.HasPrefix(flag, name) {
			matches = append(matches, flag)
		}
	}
	if strings.HasPrefix("--help", name) {
		matches = append(matches, "--help")
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", nil
	case 1:
		return matches[0], nil
	}
	return "", p.errf("ambiguous option: %s could match %s", name, strings.Join(matches, ", "))
}

// convertValue validates a raw token against the choice set and runs the
// converter. The choice set is compared verbatim against the token.
func (p *Parser) convertValue(a *Argument, raw string) (any, error) {
	if len(a.Choices) > 0 {
		found := false
		for _, c := range a.Choices {
			if raw == c {
				found = true
				break
			}
		}
		if !found {
			return nil, p.errf("argument %s: invalid choice: '%s' (choose from %s)",
				a.displayName(), raw, quoteJoin(a.Choices))
		}
	}
	v, err := a.Convert.Convert(raw)
	if err != nil {
		return nil, p.errf("argument %s: %v", a.displayName(), err)
	}
	return v, nil
}

func applyEnv(st *parseState) error {
	for _, ap := range st.active {
		for _, a := range ap.args {
			if a.EnvVar == "" || st.source[a.Key] != srcNone || ap.envLookup == nil {
				continue
			}
			raw, ok := ap.envLookup(a.EnvVar)
			if !ok {
				continue
			}
			v, err := ap.convertEnvValue(a, raw)
			if err != nil {
				return err
			}
			st.ns.Set(a.Key, v)
			st.source[a.Key] = srcEnv
		}
	}
	return nil
}

// convertEnvValue converts one environment variable value; list-shaped
// arguments accept multiple shell-style-quoted tokens in a single variable.
func (p *Parser) convertEnvValue(a *Argument, raw string) (any, error) {
	if a.Arity.multiple() {
		parts, err := shlex.Split(raw)
		if err != nil {
			return nil, p.errf("argument %s: invalid value in %s: %v", a.displayName(), a.EnvVar, err)
		}
		vals := make([]any, 0, len(parts))
		for _, part := range parts {
			v, err := p.convertValue(a, part)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	}
	return p.convertValue(a, raw)
}

// applyFileDefaults merges flattened config-file values below everything
// the command line or the environment already supplied. Keys that no
// registered argument consumes are reported, not fatal. File values never
// satisfy required arguments.
func (p *Parser) applyFileDefaults(st *parseState) error {
	if p.fileKey == "" || p.loadFile == nil {
		return nil
	}
	pathVal, ok := st.ns.Peek(p.fileKey)
	if !ok {
		return nil
	}
	path, _ := pathVal.(string)
	flat, err := p.loadFile(path)
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var unknown []string
	for _, k := range keys {
		a := findArgByKey(st.active, k)
		if a == nil {
			unknown = append(unknown, k)
			continue
		}
		if st.source[k] != srcNone {
			continue
		}
		val := flat[k]
		if s, isStr := val.(string); isStr && !a.Convert.IsZero() {
			v, err := p.convertValue(a, s)
			if err != nil {
				return err
			}
			val = v
		}
		st.ns.Set(k, val)
		st.source[k] = srcFile
	}
	if len(unknown) > 0 {
		slog.Warn("structargs: keys from the provided configuration file were not consumed",
			"keys", strings.Join(unknown, ", "))
	}
	return nil
}

func findArgByKey(parsers []*Parser, key string) *Argument {
	for _, p := range parsers {
		for _, a := range p.args {
			if a.Key == key {
				return a
			}
		}
	}
	return nil
}

func applyDefaults(st *parseState) {
	for _, ap := range st.active {
		for _, a := range ap.args {
			if !a.HasDefault || a.Default == nil || st.ns.Has(a.Key) {
				continue
			}
			st.ns.Set(a.Key, a.Default)
		}
	}
}

// checkRequired collects every unsatisfied required argument across the
// dispatched parser chain into one error, in registration order. Values
// that arrived from a config file do not count: the file provides defaults,
// not arguments.
func checkRequired(st *parseState) error {
	var missing []string
	seen := map[string]bool{}
	root := st.active[0]
	for _, ap := range st.active {
		for _, a := range ap.args {
			if !a.Required || seen[a.Key] {
				continue
			}
			seen[a.Key] = true
			if src := st.source[a.Key]; src == srcCLI || src == srcEnv {
				continue
			}
			missing = append(missing, a.displayName())
		}
	}
	if len(missing) > 0 {
		return root.errf("the following arguments are required: %s", strings.Join(missing, ", "))
	}
	return nil
}

var negNumber = regexp.MustCompile(`^-\d+(\.\d*)?$|^-\.\d+$`)

// flagLike reports whether a token should be matched as a flag. Tokens that
// look like negative numbers are values.
func (p *Parser) flagLike(tok string) bool {
	if len(tok) < 2 || tok[0] != '-' {
		return false
	}
	if negNumber.MatchString(tok) {
		return false
	}
	return true
}

func (p *Parser) errf(format string, args ...any) *ParseError {
	return &ParseError{
		Prog:  p.prog,
		Usage: p.UsageLine(),
		Msg:   fmt.Sprintf(format, args...),
	}
}

func quoteJoin(items []string) string {
	quoted := make([]string, len(items))
	for i, it := range items {
		quoted[i] = "'" + it + "'"
	}
	return strings.Join(quoted, ", ")
}
