package argparse

import (
	"fmt"
	"io"
	"strings"
)

// UsageLine renders the one-line usage summary, e.g.
// "usage: prog [-h] [--var VAR] [--flag | --no-flag] mode {Open,open} ...\n".
func (p *Parser) UsageLine() string {
	var parts []string
	parts = append(parts, "usage:", p.prog, "[-h]")
	for _, a := range p.args {
		if a.positional() || a.pairNegative() {
			continue
		}
		parts = append(parts, a.usageToken())
	}
	for _, slot := range p.slots {
		if slot.sub != nil {
			parts = append(parts, "{"+strings.Join(slot.sub.order, ",")+"} ...")
			continue
		}
		parts = append(parts, slot.arg.usageToken())
	}
	return strings.Join(parts, " ") + "\n"
}

// pairNegative reports whether this is the --no-x half of a pair, which is
// rendered together with its positive half.
func (a *Argument) pairNegative() bool {
	sv, ok := a.SwitchValue.(bool)
	return a.pair != nil && ok && !sv
}

// usageToken renders one argument for the usage line, bracketed when
// omitting it is allowed.
func (a *Argument) usageToken() string {
	if a.positional() {
		name := a.Metavar
		if name == "" {
			name = a.Name
		}
		switch {
		case a.Arity.multiple():
			return "[" + name + " ...]"
		case a.Required:
			return name
		default:
			return "[" + name + "]"
		}
	}
	var body string
	switch {
	case a.IsSwitch && a.pair != nil:
		body = a.Flag + " | " + a.pair.Flag
	case a.IsSwitch:
		body = a.Flag
	case a.Arity == OneOrMore:
		body = fmt.Sprintf("%s %s [%s ...]", a.Flag, a.valueDisplay(), a.valueDisplay())
	case a.Arity == ZeroOrMore:
		body = fmt.Sprintf("%s [%s ...]", a.Flag, a.valueDisplay())
	default:
		body = a.Flag + " " + a.valueDisplay()
	}
	if a.Required {
		return body
	}
	return "[" + body + "]"
}

// valueDisplay is the metavar, or the choice set when no metavar applies.
func (a *Argument) valueDisplay() string {
	if a.Metavar != "" {
		return a.Metavar
	}
	if len(a.Choices) > 0 {
		return "{" + strings.Join(a.Choices, ",") + "}"
	}
	return strings.ToUpper(a.Key)
}

// invocation is the left column of a help entry.
func (a *Argument) invocation() string {
	if a.positional() {
		if a.Metavar != "" {
			return a.Metavar
		}
		return a.Name
	}
	if a.IsSwitch && a.pair != nil {
		return a.Flag + ", " + a.pair.Flag
	}
	name := a.Flag
	if a.Short != "" {
		name = "-" + strings.TrimPrefix(a.Short, "-") + ", " + a.Flag
	}
	if a.IsSwitch {
		return name
	}
	return name + " " + a.valueDisplay()
}

// FullHelp renders the complete help text: usage line, description,
// positional arguments, options, and one section per group.
func (p *Parser) FullHelp() string {
	var sb strings.Builder
	sb.WriteString(p.UsageLine())
	if p.description != "" {
		sb.WriteString("\n" + p.description + "\n")
	}

	width := len("-h, --help")
	collect := func(args []*Argument) {
		for _, a := range args {
			if a.pairNegative() {
				continue
			}
			if w := len(a.invocation()); w > width {
				width = w
			}
		}
	}
	collect(p.args)

	var positionals, options []*Argument
	for _, a := range p.args {
		if p.sub != nil && a == p.sub.marker {
			continue
		}
		if a.group != nil || a.pairNegative() {
			continue
		}
		if a.positional() {
			positionals = append(positionals, a)
		} else {
			options = append(options, a)
		}
	}

	if len(positionals) > 0 || p.sub != nil {
		sb.WriteString("\npositional arguments:\n")
		for _, a := range positionals {
			writeEntry(&sb, width, a.invocation(), a.helpLine())
		}
		if p.sub != nil {
			writeEntry(&sb, width, "{"+strings.Join(p.sub.order, ",")+"}", "")
		}
	}

	sb.WriteString("\noptions:\n")
	writeEntry(&sb, width, "-h, --help", "show this help message and exit")
	for _, a := range options {
		writeEntry(&sb, width, a.invocation(), a.helpLine())
	}

	for _, g := range p.groups {
		if len(g.args) == 0 {
			continue
		}
		sb.WriteString("\n" + g.Title + ":\n")
		for _, a := range g.args {
			if a.pairNegative() {
				continue
			}
			writeEntry(&sb, width, a.invocation(), a.helpLine())
		}
	}
	return sb.String()
}

// helpLine is the argument's help text with the default appended, except
// for switch pairs whose pairing already conveys the default.
func (a *Argument) helpLine() string {
	help := a.Help
	if a.HasDefault && a.Default != nil && !a.IsSwitch {
		if help != "" {
			help += " "
		}
		help += fmt.Sprintf("(default: %v)", a.Default)
	}
	return help
}

func writeEntry(w io.Writer, width int, invocation, help string) {
	if help == "" {
		fmt.Fprintf(w, "  %s\n", invocation)
		return
	}
	fmt.Fprintf(w, "  %-*s  %s\n", width, invocation, help)
}
