// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Flag and positional parsing shared by the subcommands.

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits a subcommand's arguments into flags and positionals.
//
// Accepted forms are --name value, --name=value, -n value and a bare --name,
// which is boolean. A flag is only given the next word as its value when it
// is not listed as boolean and the word does not start with a dash, so
// "--analysis monthly sales" keeps "monthly sales" positional.
//
//	p := NewArgParser([]string{"export", "--kind", "analysis", "--format=json", "--confirm"}, "confirm")
//	p.Subcommand()        // "export"
//	p.Flag("kind")        // "analysis"
//	p.BoolFlag("confirm") // true
type ArgParser struct {
	values     map[string]string
	switches   map[string]bool
	positional []string
}

// NewArgParser parses raw. boolNames lists the flags that never take a value.
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		values:   make(map[string]string),
		switches: make(map[string]bool),
	}
	isBool := make(map[string]bool, len(boolNames))
	for _, name := range boolNames {
		isBool[flagName(name)] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") {
			p.positional = append(p.positional, arg)
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			name = flagName(name)
			switch value {
			case "true", "false":
				p.switches[name] = value == "true"
			default:
				p.values[name] = value
			}
			continue
		}

		name := flagName(arg)
		if !isBool[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.values[name] = raw[i+1]
			i++
			continue
		}
		p.switches[name] = true
	}
	return p
}

func flagName(s string) string {
	return strings.TrimLeft(s, "-")
}

// Subcommand returns the first positional argument, or "".
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns a value flag, or "" when it was not given.
func (p *ArgParser) Flag(name string) string {
	return p.values[flagName(name)]
}

// FlagOrDefault returns a value flag or def.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// FlagInt returns a value flag as an int.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag %s not found", name)
	}
	return strconv.Atoi(v)
}

// FlagIntOrDefault returns a value flag as an int, or def when it is missing
// or malformed.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	n, err := p.FlagInt(name)
	if err != nil {
		return def
	}
	return n
}

// BoolFlag reports whether a boolean flag was set (and not set to false).
func (p *ArgParser) BoolFlag(name string) bool {
	return p.switches[flagName(name)]
}

// HasFlag reports whether the flag was given in any form.
func (p *ArgParser) HasFlag(name string) bool {
	name = flagName(name)
	_, isValue := p.values[name]
	_, isSwitch := p.switches[name]
	return isValue || isSwitch
}

// Positional returns the positional argument at index, or "". Index 0 is the
// subcommand.
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments from index on, e.g. the
// words of a query.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}
