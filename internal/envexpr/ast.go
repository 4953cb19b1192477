// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package envexpr parses and evaluates environment predicates such as
//
//	platform == "node" && !(runtime in ["bun", "deno"])
//	os matches "linux*" || version satisfies ">= 1.22, < 2"
//
// Expressions are evaluated against a flat string map. A bare key tests
// that the key is present with a non-empty value.
package envexpr

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// exprLexer splits multi-character operators before the single-character
// negation so that "!=" is never read as "!" followed by "=".
var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "OpEq", Pattern: `==`},
	{Name: "OpNe", Pattern: `!=`},
	{Name: "OpAnd", Pattern: `&&`},
	{Name: "OpOr", Pattern: `\|\|`},
	{Name: "Not", Pattern: `!`},
	{Name: "Ident", Pattern: `[a-zA-Z_][\w.-]*`},
	{Name: "Punct", Pattern: `[()\[\],]`},
	{Name: "whitespace", Pattern: `\s+`},
})

// Expression is a disjunction of conjunctions.
//
// Grammar: conjunction { "||" conjunction }
type Expression struct {
	Pos lexer.Position `parser:""`
	Or  []*Conjunction `parser:"@@ ('||' @@)*"`
}

// Conjunction is one or more terms joined by "&&".
type Conjunction struct {
	Pos lexer.Position `parser:""`
	And []*Term        `parser:"@@ ('&&' @@)*"`
}

// Term is a negation, a parenthesized expression or a single test.
type Term struct {
	Pos   lexer.Position `parser:""`
	Not   *Term          `parser:"  '!' @@"`
	Group *Expression    `parser:"| '(' @@ ')'"`
	Test  *Test          `parser:"| @@"`
}

// Test compares one descriptor key. With no operator it is a presence test.
type Test struct {
	Pos       lexer.Position `parser:""`
	Key       string         `parser:"@Ident"`
	Eq        *string        `parser:"( '==' @String"`
	Ne        *string        `parser:"| '!=' @String"`
	In        []string       `parser:"| 'in' '[' @String (',' @String)* ']'"`
	Matches   *string        `parser:"| 'matches' @String"`
	Satisfies *string        `parser:"| 'satisfies' @String )?"`
}

// newParser constructs the participle parser for Expression.
func newParser() (*participle.Parser[Expression], error) {
	return participle.Build[Expression](
		participle.Lexer(exprLexer),
		participle.Unquote("String"),
	)
}
