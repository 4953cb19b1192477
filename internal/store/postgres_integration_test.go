// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/envsuite/internal/logging"
	"github.com/holomush/envsuite/internal/store"
)

var _ = Describe("PostgresStore", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		dsn       string
		pg        *store.PostgresStore
	)

	BeforeAll(func() {
		ctx = context.Background()

		var err error
		container, err = postgres.Run(ctx,
			"postgres:18-alpine",
			postgres.WithDatabase("envsuite_test"),
			postgres.WithUsername("envsuite"),
			postgres.WithPassword("envsuite"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		m, err := store.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())
		Expect(m.Up()).To(Succeed())
		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))
		Expect(dirty).To(BeFalse())
		Expect(m.Close()).To(Succeed())

		pg, err = store.NewPostgresStore(ctx, dsn, logging.Discard())
		Expect(err).NotTo(HaveOccurred())
		Expect(pg.WaitReady(ctx, 10, 200*time.Millisecond)).To(Succeed())
	})

	AfterAll(func() {
		if pg != nil {
			_ = pg.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("stores fixtures", func() {
		Expect(pg.Put(ctx, "k", "v")).To(Succeed())
		Expect(pg.Put(ctx, "k", "w")).To(Succeed())

		value, ok, err := pg.Get(ctx, "k")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal("w"))
	})

	It("clears every fixture but keeps the schema", func() {
		Expect(pg.Put(ctx, "a", "1")).To(Succeed())
		Expect(pg.ClearTestState(ctx)).To(Succeed())

		n, err := pg.Count(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(BeZero())

		m, err := store.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()
		version, _, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)), "migration bookkeeping survives a reset")
	})

	It("clears an already empty schema", func() {
		Expect(pg.ClearTestState(ctx)).To(Succeed())
		Expect(pg.ClearTestState(ctx)).To(Succeed())
	})
})
