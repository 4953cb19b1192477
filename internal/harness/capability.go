// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package harness

import (
	"context"
	"log/slog"
	"reflect"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/envsuite/internal/fsshim"
)

// Capability names, in the order they are checked and reported.
const (
	CapabilityDatabase    = "database"
	CapabilityTitle       = "title"
	CapabilityFS          = "fs"
	CapabilityEnvironment = "environment"
)

// CodeCapabilityMissing is the oops code of the error returned by Load when
// one or more capabilities are absent.
const CodeCapabilityMissing = "CAPABILITY_MISSING"

const tracerName = "github.com/holomush/envsuite/internal/harness"

// StateClearer is the database collaborator. ClearTestState removes every
// artifact persisted since the previous call and must be idempotent.
type StateClearer interface {
	ClearTestState(ctx context.Context) error
}

// Config carries the capabilities supplied by the host plus optional
// harness settings.
type Config struct {
	// Required capabilities.
	Database    StateClearer
	Title       string
	FS          fsshim.FS
	Environment Descriptor

	// Runner defaults to GinkgoRunner for every unset entry.
	Runner Runner
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Registerer receives the harness metrics. A private registry is used
	// when nil.
	Registerer prometheus.Registerer
	// AbortOnResetFailure aborts the remaining specs after a failed reset.
	AbortOnResetFailure bool
}

// MissingCapabilityError lists the capabilities absent at load time.
type MissingCapabilityError struct {
	Names []string
}

func (e *MissingCapabilityError) Error() string {
	return "missing required capabilities: " + strings.Join(e.Names, ", ")
}

// Harness is the validated harness context handed to child modules.
type Harness struct {
	title       string
	env         Descriptor
	fs          fsshim.FS
	db          StateClearer
	runner      Runner
	logger      *slog.Logger
	metrics     *Metrics
	gatherer    prometheus.Gatherer
	tracer      trace.Tracer
	runID       ulid.ULID
	abortOnFail bool

	declared      bool
	hookInstalled bool
}

// Load verifies the required capabilities and returns the harness context.
// If any capability is absent it returns an error with code
// CAPABILITY_MISSING naming every missing capability, and no harness.
func Load(cfg Config) (*Harness, error) {
	if missing := missingCapabilities(cfg); len(missing) > 0 {
		return nil, oops.
			Code(CodeCapabilityMissing).
			With("missing", missing).
			Wrap(&MissingCapabilityError{Names: missing})
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	reg := cfg.Registerer
	var gatherer prometheus.Gatherer
	if reg == nil {
		r := prometheus.NewRegistry()
		reg, gatherer = r, r
	} else if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	metrics, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}

	h := &Harness{
		title:       strings.TrimSpace(cfg.Title),
		env:         cfg.Environment.Clone(),
		fs:          cfg.FS,
		db:          cfg.Database,
		runner:      cfg.Runner.withDefaults(),
		metrics:     metrics,
		gatherer:    gatherer,
		tracer:      otel.Tracer(tracerName),
		runID:       NewRunID(),
		abortOnFail: cfg.AbortOnResetFailure,
	}
	h.logger = logger.With("run_id", h.runID.String(), "title", h.title)

	h.logger.Info("harness loaded",
		"environment", h.env.String(),
		"fs_root", h.fs.Root(),
	)
	return h, nil
}

// MustLoad is like Load but panics on a missing capability.
func MustLoad(cfg Config) *Harness {
	h, err := Load(cfg)
	if err != nil {
		panic(err)
	}
	return h
}

func missingCapabilities(cfg Config) []string {
	var missing []string
	if isNil(cfg.Database) {
		missing = append(missing, CapabilityDatabase)
	}
	if strings.TrimSpace(cfg.Title) == "" {
		missing = append(missing, CapabilityTitle)
	}
	if isNil(cfg.FS) {
		missing = append(missing, CapabilityFS)
	}
	if cfg.Environment == nil {
		missing = append(missing, CapabilityEnvironment)
	}
	return missing
}

// isNil reports whether v is nil or an interface wrapping a nil pointer.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

// Title returns the root suite name.
func (h *Harness) Title() string { return h.title }

// Environment returns a copy of the environment descriptor.
func (h *Harness) Environment() Descriptor { return h.env.Clone() }

// FS returns the filesystem shim.
func (h *Harness) FS() fsshim.FS { return h.fs }

// Database returns the database collaborator.
func (h *Harness) Database() StateClearer { return h.db }

// RunID identifies this harness run in logs.
func (h *Harness) RunID() ulid.ULID { return h.runID }

// Logger returns the harness logger, tagged with run_id and title.
func (h *Harness) Logger() *slog.Logger { return h.logger }

// Metrics returns the harness metrics.
func (h *Harness) Metrics() *Metrics { return h.metrics }
