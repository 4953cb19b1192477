// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/holomush/envsuite/pkg/errutil"
)

// CodeStateResetFailed is the oops code attached to a failed reset.
const CodeStateResetFailed = "STATE_RESET_FAILED"

// InstallResetHook registers an after-each callback that clears all
// persisted database state. The callback runs after every spec in the run,
// whichever module declared it and whether it passed, failed, panicked or
// was skipped. It may be installed once per harness.
func (h *Harness) InstallResetHook() bool {
	if h.hookInstalled {
		panic(oops.Code("RESET_HOOK_INSTALLED").
			With("title", h.title).
			Errorf("state reset hook already installed"))
	}
	h.hookInstalled = true

	return h.runner.AfterEach(func(ctx context.Context) {
		if err := h.ResetState(ctx); err != nil {
			msg := fmt.Sprintf("state reset after %q failed: %v", h.runner.CurrentSpec(), err)
			if h.abortOnFail {
				h.runner.AbortSuite(msg)
				return
			}
			h.runner.Fail(msg)
		}
	})
}

// ResetState clears the database's test state and waits for it to finish.
func (h *Harness) ResetState(ctx context.Context) error {
	ctx, span := h.tracer.Start(ctx, "harness.state_reset")
	defer span.End()
	span.SetAttributes(attribute.String("envsuite.run_id", h.runID.String()))

	start := time.Now()
	err := h.db.ClearTestState(ctx)
	h.metrics.observeReset(time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "state reset failed")
		err = oops.Code(CodeStateResetFailed).
			With("run_id", h.runID.String()).
			Wrap(err)
		errutil.LogError(h.logger, "state reset failed", err)
		return err
	}

	h.logger.DebugContext(ctx, "state reset", "duration", time.Since(start))
	return nil
}
