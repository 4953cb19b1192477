// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"fmt"
	"reflect"

	"github.com/samber/oops"

	"github.com/holomush/envsuite/internal/envexpr"
)

// Only decorates base so that every spec it registers runs only in
// environments matching pred. The predicate is evaluated once, when the
// spec is registered:
//
//   - match: the spec is registered unchanged.
//   - no match: the spec is registered with its body replaced by a call to
//     r.Skip, so it is reported as skipped and the body never runs.
//   - error or panic: the body is replaced by a call to r.Fail carrying the
//     error, so a broken predicate shows up as a failure.
//
// Decorators such as labels and offsets are passed through untouched.
func Only(r Runner, env Descriptor, base ItFunc, pred Predicate) ItFunc {
	return onlyWithMetrics(r, env, base, pred, nil)
}

func onlyWithMetrics(r Runner, env Descriptor, base ItFunc, pred Predicate, m *Metrics) ItFunc {
	r = r.withDefaults()
	return func(text string, args ...any) bool {
		decision, err := Decide(pred, env.Clone())
		if m != nil {
			m.observeDecision(decision)
		}

		switch decision {
		case DecisionSkip:
			msg := fmt.Sprintf("not applicable in environment %s", env.String())
			return base(text, replaceBodies(args, func() { r.Skip(msg) })...)
		case DecisionError:
			msg := fmt.Sprintf("environment predicate for %q failed: %v", text, err)
			return base(text, replaceBodies(args, func() { r.Fail(msg) })...)
		default:
			return base(text, args...)
		}
	}
}

// Only returns the harness' It decorated with pred.
func (h *Harness) Only(pred Predicate) ItFunc {
	return onlyWithMetrics(h.runner, h.env, h.runner.It, pred, h.metrics)
}

// OnlyExpr is Only with the predicate written as an envexpr expression,
// for example `platform in ["linux", "darwin"] && !ci`. An expression that
// does not compile fails every spec registered through it.
func (h *Harness) OnlyExpr(expr string) ItFunc {
	prog, err := envexpr.Compile(expr)
	if err != nil {
		compileErr := oops.With("expression", expr).Wrap(err)
		return h.Only(func(Descriptor) (bool, error) { return false, compileErr })
	}
	return h.Only(func(env Descriptor) (bool, error) { return prog.Eval(env) })
}

// replaceBodies swaps every function argument for one of the same type that
// calls fn instead. Keeping the type preserves context-accepting bodies,
// which Ginkgo requires for specs carrying timeouts.
func replaceBodies(args []any, fn func()) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		v := reflect.ValueOf(arg)
		if arg == nil || v.Kind() != reflect.Func {
			out[i] = arg
			continue
		}
		t := v.Type()
		out[i] = reflect.MakeFunc(t, func([]reflect.Value) []reflect.Value {
			fn()
			results := make([]reflect.Value, t.NumOut())
			for j := range results {
				results[j] = reflect.Zero(t.Out(j))
			}
			return results
		}).Interface()
	}
	return out
}
