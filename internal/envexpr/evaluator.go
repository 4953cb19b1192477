// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package envexpr

import (
	"slices"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
)

// Eval evaluates the program against env. A missing key never matches,
// except under "!=" where it always does. The only evaluation error is a
// "satisfies" test on a value that is not a semantic version.
func (p *Program) Eval(env map[string]string) (bool, error) {
	return p.evalExpression(p.expr, env)
}

func (p *Program) evalExpression(e *Expression, env map[string]string) (bool, error) {
	for _, conj := range e.Or {
		ok, err := p.evalConjunction(conj, env)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (p *Program) evalConjunction(c *Conjunction, env map[string]string) (bool, error) {
	for _, term := range c.And {
		ok, err := p.evalTerm(term, env)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (p *Program) evalTerm(t *Term, env map[string]string) (bool, error) {
	switch {
	case t.Not != nil:
		ok, err := p.evalTerm(t.Not, env)
		return !ok && err == nil, err
	case t.Group != nil:
		return p.evalExpression(t.Group, env)
	default:
		return p.evalTest(t.Test, env)
	}
}

func (p *Program) evalTest(t *Test, env map[string]string) (bool, error) {
	value, ok := env[t.Key]

	switch {
	case t.Eq != nil:
		return ok && value == *t.Eq, nil
	case t.Ne != nil:
		return !ok || value != *t.Ne, nil
	case t.In != nil:
		return ok && slices.Contains(t.In, value), nil
	case t.Matches != nil:
		return ok && p.globs[*t.Matches].Match(value), nil
	case t.Satisfies != nil:
		if !ok {
			return false, nil
		}
		v, err := semver.NewVersion(value)
		if err != nil {
			return false, oops.Code("EXPR_EVAL_FAILED").
				With("key", t.Key).
				With("value", value).
				Wrapf(err, "%s is not a semantic version", t.Key)
		}
		return p.constraints[*t.Satisfies].Check(v), nil
	default:
		return ok && value != "", nil
	}
}
