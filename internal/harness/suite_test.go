// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/envsuite/internal/harness"
	"github.com/holomush/envsuite/pkg/errutil"
)

func TestDeclare_NestsModulesUnderTitle(t *testing.T) {
	f := &fakeRunner{}
	h := load(t, f, &countingDB{})

	var got *harness.Harness
	h.Declare(
		harness.Module{Name: "realm constructor", Register: func(h *harness.Harness) {
			got = h
			f.runner().It("opens", func() {})
		}},
		harness.Module{Register: func(*harness.Harness) {
			f.runner().It("top level", func() {})
		}},
		harness.Module{Name: "empty"},
	)

	assert.Same(t, h, got)
	assert.Equal(t, []string{"envsuite", "envsuite realm constructor"}, f.containers)
	assert.Equal(t, []string{"envsuite realm constructor opens", "envsuite top level"}, f.paths())
}

func TestDeclare_OnlyOnce(t *testing.T) {
	f := &fakeRunner{}
	h := load(t, f, &countingDB{})

	h.Declare()
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		errutil.AssertErrorCode(t, err, "ROOT_SUITE_DECLARED")
	}()
	h.Declare()
}

// A spec skipped by its environment still gets exactly one reset.
func TestSkippedSpecIsReset(t *testing.T) {
	f := &fakeRunner{}
	db := &countingDB{}
	h := load(t, f, db)

	h.InstallResetHook()
	ran := false
	h.Declare(harness.Module{Name: "browser", Register: func(h *harness.Harness) {
		h.OnlyExpr(`platform == "browser"`)("needs a DOM", func() { ran = true })
	}})
	f.run(context.Background())

	assert.False(t, ran)
	assert.Len(t, f.skips, 1)
	assert.Equal(t, 1, db.resets)
	assert.Empty(t, f.fails)
}
