// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/envsuite/internal/harness"
)

func TestDescriptor(t *testing.T) {
	d := harness.Descriptor{"runtime": "go", "platform": "linux"}

	v, ok := d.Lookup("platform")
	assert.True(t, ok)
	assert.Equal(t, "linux", v)
	_, ok = d.Lookup("arch")
	assert.False(t, ok)

	assert.Equal(t, "{platform=linux, runtime=go}", d.String())
	assert.Equal(t, "{}", harness.Descriptor{}.String())
	assert.Nil(t, harness.Descriptor(nil).Clone())
}

func TestPredicates(t *testing.T) {
	node := harness.Descriptor{"platform": "node", "runtime": "v20"}
	errBoom := errors.New("boom")
	failing := func(harness.Descriptor) (bool, error) { return false, errBoom }

	tests := []struct {
		name    string
		pred    harness.Predicate
		want    bool
		wantErr bool
	}{
		{"is match", harness.Is("platform", "browser", "node"), true, false},
		{"is no match", harness.Is("platform", "browser"), false, false},
		{"is missing key", harness.Is("arch", "amd64"), false, false},
		{"platform", harness.Platform("node"), true, false},
		{"not", harness.Not(harness.Platform("node")), false, false},
		{"all of", harness.AllOf(harness.Platform("node"), harness.Is("runtime", "v20")), true, false},
		{"all of short circuits", harness.AllOf(harness.Platform("browser"), failing), false, false},
		{"any of", harness.AnyOf(harness.Platform("browser"), harness.Platform("node")), true, false},
		{"any of none", harness.AnyOf(), false, false},
		{"any of error", harness.AnyOf(failing, harness.Platform("node")), false, true},
		{"not keeps error", harness.Not(failing), true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.pred(node)
			if tt.wantErr {
				require.ErrorIs(t, err, errBoom)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecide(t *testing.T) {
	env := harness.Descriptor{"platform": "node"}

	d, err := harness.Decide(nil, env)
	assert.Equal(t, harness.DecisionRun, d)
	assert.NoError(t, err)

	d, _ = harness.Decide(harness.Platform("node"), env)
	assert.Equal(t, harness.DecisionRun, d)

	d, _ = harness.Decide(harness.Platform("browser"), env)
	assert.Equal(t, harness.DecisionSkip, d)

	d, err = harness.Decide(func(harness.Descriptor) (bool, error) { return true, errors.New("bad") }, env)
	assert.Equal(t, harness.DecisionError, d)
	assert.EqualError(t, err, "bad")

	d, err = harness.Decide(func(harness.Descriptor) (bool, error) { panic("kaboom") }, env)
	assert.Equal(t, harness.DecisionError, d)
	assert.ErrorContains(t, err, "kaboom")
}

func TestDecide_EvaluatesOnce(t *testing.T) {
	calls := 0
	pred := harness.When(func(harness.Descriptor) bool {
		calls++
		return true
	})
	_, _ = harness.Decide(pred, harness.Descriptor{})
	assert.Equal(t, 1, calls)
}
