// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"github.com/samber/oops"
)

// Module is a child test module nested under the root suite.
type Module struct {
	// Name labels the module's container. An empty name registers the
	// module's specs directly under the root.
	Name string
	// Register declares the module's containers and specs.
	Register func(h *Harness)
}

// Declare registers the root container, named by the title, with every
// module nested inside it. It may be called once per harness.
func (h *Harness) Declare(modules ...Module) bool {
	if h.declared {
		panic(oops.Code("ROOT_SUITE_DECLARED").
			With("title", h.title).
			Errorf("root suite %q already declared", h.title))
	}
	h.declared = true

	h.logger.Debug("declaring root suite", "modules", len(modules))
	return h.runner.Describe(h.title, func() {
		for _, m := range modules {
			if m.Register == nil {
				continue
			}
			if m.Name == "" {
				m.Register(h)
				continue
			}
			h.runner.Describe(m.Name, func() {
				m.Register(h)
			})
		}
	})
}
