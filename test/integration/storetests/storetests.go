// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package storetests holds child modules declared under the integration
// root suite. Each one relies on the harness resetting persisted state
// between specs.
package storetests

import (
	"io/fs"
	"path"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/envsuite/internal/harness"
	"github.com/holomush/envsuite/internal/store"
)

// Persistence checks that fixtures written by one spec are gone in the next.
func Persistence(db store.Database) harness.Module {
	return harness.Module{
		Name: "persistence",
		Register: func(h *harness.Harness) {
			Describe("fixtures", Ordered, func() {
				It("starts from an empty database", func(ctx SpecContext) {
					Expect(db.Count(ctx)).To(BeZero())
				})

				It("writes a fixture", func(ctx SpecContext) {
					Expect(db.Put(ctx, "realm", "open")).To(Succeed())
					Expect(db.Count(ctx)).To(Equal(1))
				})

				It("does not see the previous spec's fixture", func(ctx SpecContext) {
					_, ok, err := db.Get(ctx, "realm")
					Expect(err).NotTo(HaveOccurred())
					Expect(ok).To(BeFalse())
				})
			})

			Describe("environment gating", func() {
				h.Only(harness.Not(harness.Platform("browser")))("runs outside browsers", func(ctx SpecContext) {
					Expect(db.Put(ctx, "gated", "yes")).To(Succeed())
				})

				h.OnlyExpr(`platform == "browser"`)("needs a browser", func(ctx SpecContext) {
					Fail("skipped spec body ran")
				})

				It("is unaffected by gated specs", func(ctx SpecContext) {
					Expect(db.Count(ctx)).To(BeZero())
				})
			})
		},
	}
}

// Files checks the SQLite file store: database files and files written to
// the scratch directory through the filesystem shim are removed between
// specs. It registers nothing when files is nil.
func Files(files *store.FileStore) harness.Module {
	m := harness.Module{Name: "database files"}
	if files == nil {
		return m
	}

	m.Register = func(h *harness.Harness) {
		Describe("default directory", Ordered, func() {
			It("creates one file per database", func(ctx SpecContext) {
				for _, name := range []string{"realm-a", "realm-b"} {
					db, err := files.Open(ctx, name)
					Expect(err).NotTo(HaveOccurred())
					Expect(db.Put(ctx, "k", name)).To(Succeed())
				}
				Expect(files.Files()).To(ConsistOf("realm-a", "realm-b"))
			})

			It("removes every database file", func() {
				Expect(files.Files()).To(BeEmpty())
			})

			It("writes a scratch file through the filesystem shim", func() {
				dir := files.ScratchDir()
				Expect(h.FS().MkdirAll(path.Join(dir, "realm"), 0o700)).To(Succeed())
				Expect(h.FS().WriteFile(path.Join(dir, "realm", "state.json"), []byte(`{}`), 0o600)).To(Succeed())
			})

			It("removes scratch files", func() {
				_, err := h.FS().Stat(files.ScratchDir())
				Expect(err).To(MatchError(fs.ErrNotExist))
			})
		})
	}
	return m
}
