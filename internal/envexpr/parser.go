// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package envexpr

import (
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/alecthomas/participle/v2"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// MaxNestingDepth is the maximum allowed nesting of groups and negations.
const MaxNestingDepth = 32

// reservedWords cannot be used as descriptor keys.
var reservedWords = []string{"in", "matches", "satisfies"}

// parser is the singleton participle parser instance.
var parser *participle.Parser[Expression]

func init() {
	var err error
	parser, err = newParser()
	if err != nil {
		panic(fmt.Sprintf("failed to build envexpr parser: %v", err))
	}
}

// Parse parses an expression into its AST.
func Parse(text string) (*Expression, error) {
	expr, err := parser.ParseString("", text)
	if err != nil {
		return nil, oops.Code("EXPR_PARSE_FAILED").With("expression", text).Wrapf(err, "parsing environment expression")
	}
	if err := validateExpression(expr, 0); err != nil {
		return nil, oops.Code("EXPR_INVALID").With("expression", text).Wrap(err)
	}
	return expr, nil
}

func validateExpression(e *Expression, depth int) error {
	if depth > MaxNestingDepth {
		return fmt.Errorf("nesting depth exceeds maximum of %d", MaxNestingDepth)
	}
	for _, conj := range e.Or {
		for _, term := range conj.And {
			if err := validateTerm(term, depth); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTerm(t *Term, depth int) error {
	switch {
	case t.Not != nil:
		if depth+1 > MaxNestingDepth {
			return fmt.Errorf("nesting depth exceeds maximum of %d", MaxNestingDepth)
		}
		return validateTerm(t.Not, depth+1)
	case t.Group != nil:
		return validateExpression(t.Group, depth+1)
	case t.Test != nil:
		if slices.Contains(reservedWords, t.Test.Key) {
			return fmt.Errorf("reserved word %q cannot be used as a key", t.Test.Key)
		}
	}
	return nil
}

// Program is a compiled expression. Glob patterns and version constraints
// are compiled once, up front.
type Program struct {
	source      string
	expr        *Expression
	globs       map[string]glob.Glob
	constraints map[string]*semver.Constraints
}

// Compile parses text and precompiles its patterns and constraints.
func Compile(text string) (*Program, error) {
	expr, err := Parse(text)
	if err != nil {
		return nil, err
	}

	p := &Program{
		source:      text,
		expr:        expr,
		globs:       make(map[string]glob.Glob),
		constraints: make(map[string]*semver.Constraints),
	}
	if err := p.precompile(expr); err != nil {
		return nil, oops.With("expression", text).Wrap(err)
	}
	return p, nil
}

// MustCompile is like Compile but panics on error.
func MustCompile(text string) *Program {
	p, err := Compile(text)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source text.
func (p *Program) String() string { return p.source }

func (p *Program) precompile(e *Expression) error {
	for _, conj := range e.Or {
		for _, term := range conj.And {
			if err := p.precompileTerm(term); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *Program) precompileTerm(t *Term) error {
	switch {
	case t.Not != nil:
		return p.precompileTerm(t.Not)
	case t.Group != nil:
		return p.precompile(t.Group)
	case t.Test.Matches != nil:
		pattern := *t.Test.Matches
		if _, ok := p.globs[pattern]; ok {
			return nil
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return oops.Code("EXPR_INVALID_GLOB").With("pattern", pattern).Wrap(err)
		}
		p.globs[pattern] = g
	case t.Test.Satisfies != nil:
		constraint := *t.Test.Satisfies
		if _, ok := p.constraints[constraint]; ok {
			return nil
		}
		c, err := semver.NewConstraint(constraint)
		if err != nil {
			return oops.Code("EXPR_INVALID_CONSTRAINT").With("constraint", constraint).Wrap(err)
		}
		p.constraints[constraint] = c
	}
	return nil
}
