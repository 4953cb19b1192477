// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package harness is the entry point of a cross-environment integration run.
//
// A run proceeds in four steps:
//
//  1. Load checks that the host supplied every required capability (a
//     database, a title, a filesystem shim and an environment descriptor)
//     and returns a *Harness. Nothing registers if a capability is missing.
//  2. InstallResetHook registers an after-each callback that clears all
//     persisted database state once every spec has finished.
//  3. Declare registers the single root container, named by the title, and
//     nests the child modules inside it.
//  4. Child modules register specs, optionally through Only or OnlyExpr so
//     that a spec is reported as skipped outside the environments it
//     supports.
//
// The harness never talks to Ginkgo directly. All registration goes through
// a Runner, and GinkgoRunner binds the Ginkgo v2 DSL.
//
//	h, err := harness.Load(harness.Config{
//	    Database:    db,
//	    Title:       "store integration",
//	    FS:          fsys,
//	    Environment: harness.Descriptor{"platform": "linux"},
//	})
//	if err != nil {
//	    t.Fatal(err)
//	}
//	h.InstallResetHook()
//	h.Declare(storetests.Persistence(db))
//	RunSpecs(t, h.Title())
package harness
