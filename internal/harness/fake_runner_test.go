// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/holomush/envsuite/internal/fsshim"
	"github.com/holomush/envsuite/internal/harness"
	"github.com/holomush/envsuite/internal/logging"
)

// registration is a spec recorded by fakeRunner.
type registration struct {
	path string
	args []any
}

// fakeRunner records registrations and replays them the way Ginkgo would:
// each spec body, then every after-each hook.
type fakeRunner struct {
	stack      []string
	containers []string
	specs      []registration
	hooks      []any

	current string
	skips   []string
	fails   []string
	aborts  []string
	aborted bool
}

func (f *fakeRunner) runner() harness.Runner {
	return harness.Runner{
		Describe: func(text string, args ...any) bool {
			f.stack = append(f.stack, text)
			f.containers = append(f.containers, strings.Join(f.stack, " "))
			for _, arg := range args {
				if body, ok := arg.(func()); ok {
					body()
				}
			}
			f.stack = f.stack[:len(f.stack)-1]
			return true
		},
		It: func(text string, args ...any) bool {
			path := strings.Join(append(append([]string{}, f.stack...), text), " ")
			f.specs = append(f.specs, registration{path: path, args: args})
			return true
		},
		AfterEach: func(args ...any) bool {
			f.hooks = append(f.hooks, args...)
			return true
		},
		Skip:       func(msg string, _ ...int) { f.skips = append(f.skips, msg) },
		Fail:       func(msg string, _ ...int) { f.fails = append(f.fails, msg) },
		AbortSuite: func(msg string, _ ...int) { f.aborts = append(f.aborts, msg); f.aborted = true },
		CurrentSpec: func() string {
			return f.current
		},
	}
}

// run executes every recorded spec and the hooks after it, stopping early
// once the suite is aborted.
func (f *fakeRunner) run(ctx context.Context) {
	for _, spec := range f.specs {
		if f.aborted {
			return
		}
		f.current = spec.path
		for _, arg := range spec.args {
			invoke(ctx, arg)
		}
		for _, hook := range f.hooks {
			invoke(ctx, hook)
		}
	}
}

func invoke(ctx context.Context, fn any) {
	switch body := fn.(type) {
	case func():
		body()
	case func(context.Context):
		body(ctx)
	}
}

func (f *fakeRunner) paths() []string {
	out := make([]string, len(f.specs))
	for i, s := range f.specs {
		out[i] = s.path
	}
	return out
}

// countingDB is a StateClearer that counts resets and tracks whether any
// state was persisted since the last one.
type countingDB struct {
	resets    int
	persisted []string
	err       error
}

func (d *countingDB) Persist(key string) { d.persisted = append(d.persisted, key) }

func (d *countingDB) ClearTestState(context.Context) error {
	d.resets++
	if d.err != nil {
		return d.err
	}
	d.persisted = nil
	return nil
}

var errClearFailed = errors.New("disk on fire")

func newFS(t *testing.T) *fsshim.Dir {
	t.Helper()
	fsys, err := fsshim.New(t.TempDir())
	require.NoError(t, err)
	return fsys
}

// validConfig returns a Config with every capability present, bound to f.
func validConfig(t *testing.T, f *fakeRunner, db harness.StateClearer) harness.Config {
	t.Helper()
	return harness.Config{
		Database:    db,
		Title:       "envsuite",
		FS:          newFS(t),
		Environment: harness.Descriptor{"platform": "node"},
		Runner:      f.runner(),
		Logger:      logging.Discard(),
		Registerer:  prometheus.NewRegistry(),
	}
}

func load(t *testing.T, f *fakeRunner, db harness.StateClearer) *harness.Harness {
	t.Helper()
	h, err := harness.Load(validConfig(t, f, db))
	require.NoError(t, err)
	return h
}
