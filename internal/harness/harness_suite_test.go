// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness_test

import (
	"context"
	"os"
	"testing"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/onsi/ginkgo/v2/types"

	"github.com/holomush/envsuite/internal/fsshim"
	"github.com/holomush/envsuite/internal/harness"
	"github.com/holomush/envsuite/internal/logging"
)

// suiteDB backs the Ginkgo suite below; suiteSpecs counts its It nodes.
var (
	suiteDB    = &countingDB{}
	suiteSpecs = 4
)

func TestHarnessSuite(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Harness Suite")
}

var suiteHarness = func() *harness.Harness {
	dir, err := os.MkdirTemp("", "envsuite-harness-*")
	if err != nil {
		panic(err)
	}
	fsys, err := fsshim.New(dir)
	if err != nil {
		panic(err)
	}
	h := harness.MustLoad(harness.Config{
		Database:    suiteDB,
		Title:       "harness suite",
		FS:          fsys,
		Environment: harness.Descriptor{"platform": "node"},
		Logger:      logging.Discard(),
	})
	h.InstallResetHook()
	return h
}()

var _ = suiteHarness.Declare(
	harness.Module{Name: "first module", Register: func(h *harness.Harness) {
		It("persists", func() {
			suiteDB.Persist("first")
			Expect(suiteDB.persisted).To(HaveLen(1))
		})

		It("starts from a clean slate", func(ctx context.Context) {
			Expect(suiteDB.persisted).To(BeEmpty())
		})
	}},
	harness.Module{Name: "second module", Register: func(h *harness.Harness) {
		h.OnlyExpr(`platform == "browser"`)("needs a browser", func() {
			Fail("skipped spec body ran")
		})

		h.Only(harness.Platform("node"))("runs on node", func() {
			Expect(suiteDB.persisted).To(BeEmpty())
		})
	}},
)

var _ = AfterSuite(func() {
	_ = os.RemoveAll(suiteHarness.FS().Root())
})

var _ = ReportAfterSuite("every spec is reset exactly once", func(report Report) {
	specs := report.SpecReports.WithLeafNodeType(types.NodeTypeIt)
	Expect(specs).To(HaveLen(suiteSpecs))
	Expect(suiteDB.resets).To(Equal(suiteSpecs))

	skipped := 0
	for _, spec := range specs {
		if spec.State == types.SpecStateSkipped {
			skipped++
			Expect(spec.FullText()).To(Equal("harness suite second module needs a browser"))
		}
	}
	Expect(skipped).To(Equal(1))
})
