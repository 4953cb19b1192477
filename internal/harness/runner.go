// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"github.com/onsi/ginkgo/v2"
)

// ItFunc has the signature of a Ginkgo container or subject node
// constructor, such as ginkgo.It or ginkgo.Describe.
type ItFunc func(text string, args ...any) bool

// HookFunc has the signature of a Ginkgo setup node constructor, such as
// ginkgo.AfterEach.
type HookFunc func(args ...any) bool

// SignalFunc has the signature of ginkgo.Skip, ginkgo.Fail and
// ginkgo.AbortSuite.
type SignalFunc func(message string, callerSkip ...int)

// Runner is the test-registration surface the harness composes over.
type Runner struct {
	Describe    ItFunc
	It          ItFunc
	AfterEach   HookFunc
	Skip        SignalFunc
	Fail        SignalFunc
	AbortSuite  SignalFunc
	CurrentSpec func() string
}

// GinkgoRunner returns a Runner bound to the Ginkgo v2 DSL.
func GinkgoRunner() Runner {
	return Runner{
		Describe:   ginkgo.Describe,
		It:         ginkgo.It,
		AfterEach:  ginkgo.AfterEach,
		Skip:       ginkgo.Skip,
		Fail:       ginkgo.Fail,
		AbortSuite: ginkgo.AbortSuite,
		CurrentSpec: func() string {
			return ginkgo.CurrentSpecReport().FullText()
		},
	}
}

// withDefaults fills any unset entry from the Ginkgo binding.
func (r Runner) withDefaults() Runner {
	g := GinkgoRunner()
	if r.Describe == nil {
		r.Describe = g.Describe
	}
	if r.It == nil {
		r.It = g.It
	}
	if r.AfterEach == nil {
		r.AfterEach = g.AfterEach
	}
	if r.Skip == nil {
		r.Skip = g.Skip
	}
	if r.Fail == nil {
		r.Fail = g.Fail
	}
	if r.AbortSuite == nil {
		r.AbortSuite = g.AbortSuite
	}
	if r.CurrentSpec == nil {
		r.CurrentSpec = g.CurrentSpec
	}
	return r
}
