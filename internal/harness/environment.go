// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Descriptor describes the environment the run executes in, for example
// {"platform": "linux", "runtime": "go"}. The harness only hands it to
// predicates and never interprets it.
//
// A nil Descriptor is an absent capability. An empty one is valid.
type Descriptor map[string]string

// Lookup returns the value stored under key.
func (d Descriptor) Lookup(key string) (string, bool) {
	v, ok := d[key]
	return v, ok
}

// Clone returns a copy that shares no storage with d.
func (d Descriptor) Clone() Descriptor {
	if d == nil {
		return nil
	}
	return maps.Clone(d)
}

// String renders the descriptor as sorted key=value pairs.
func (d Descriptor) String() string {
	keys := slices.Sorted(maps.Keys(d))
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+d[k])
	}
	return "{" + strings.Join(pairs, ", ") + "}"
}

// Predicate decides whether a spec applies to an environment. It must be
// pure. A returned error, or a panic, fails the spec it guards.
type Predicate func(env Descriptor) (bool, error)

// When adapts a plain boolean function to a Predicate.
func When(fn func(env Descriptor) bool) Predicate {
	return func(env Descriptor) (bool, error) {
		return fn(env), nil
	}
}

// Is matches environments where key equals one of values.
func Is(key string, values ...string) Predicate {
	return When(func(env Descriptor) bool {
		v, ok := env.Lookup(key)
		return ok && slices.Contains(values, v)
	})
}

// Platform is shorthand for Is("platform", names...).
func Platform(names ...string) Predicate {
	return Is("platform", names...)
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(env Descriptor) (bool, error) {
		ok, err := p(env)
		return !ok, err
	}
}

// AllOf matches when every predicate matches. Evaluation stops at the first
// error or non-match.
func AllOf(preds ...Predicate) Predicate {
	return func(env Descriptor) (bool, error) {
		for _, p := range preds {
			ok, err := p(env)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// AnyOf matches when at least one predicate matches.
func AnyOf(preds ...Predicate) Predicate {
	return func(env Descriptor) (bool, error) {
		for _, p := range preds {
			ok, err := p(env)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// Decision is the registration-time outcome of a predicate.
type Decision string

// Decision values.
const (
	DecisionRun   Decision = "run"
	DecisionSkip  Decision = "skip"
	DecisionError Decision = "error"
)

// Decide evaluates pred against env exactly once. A panic inside the
// predicate is recovered and returned as an error.
func Decide(pred Predicate, env Descriptor) (decision Decision, err error) {
	if pred == nil {
		return DecisionRun, nil
	}
	defer func() {
		if r := recover(); r != nil {
			decision = DecisionError
			err = fmt.Errorf("environment predicate panicked: %v", r)
		}
	}()

	ok, err := pred(env)
	switch {
	case err != nil:
		return DecisionError, err
	case ok:
		return DecisionRun, nil
	default:
		return DecisionSkip, nil
	}
}
