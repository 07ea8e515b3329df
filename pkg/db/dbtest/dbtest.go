// Package dbtest opens an isolated in-memory SQLite database carrying the
// same tables, unique and partial indexes as the Postgres migrations.
//
// schema mirrors the Up sections of pkg/migrate/migrations:
//
//	20250910120000_create_orders.sql
//	20250910120100_create_order_statuses.sql
//	20250910120200_create_webhook_logs.sql
//	20250910120300_add_order_statuses_gateway_status.sql
//
// Postgres-only pieces (enum types, gen_random_uuid defaults, expression
// and descending indexes) are left out. dbtest_test.go fails when the column
// or unique index sets drift apart.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		school_id TEXT NOT NULL,
		trustee_id TEXT,
		student_name TEXT NOT NULL,
		student_id TEXT NOT NULL,
		student_email TEXT NOT NULL,
		gateway_name TEXT NOT NULL,
		custom_order_id TEXT NOT NULL,
		collect_request_id TEXT,
		amount NUMERIC NOT NULL CHECK (amount > 0),
		callback_url TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_orders_custom_order_id ON orders (custom_order_id)`,
	`CREATE UNIQUE INDEX ux_orders_collect_request_id ON orders (collect_request_id) WHERE collect_request_id IS NOT NULL`,
	`CREATE INDEX idx_orders_school_created ON orders (school_id, created_at)`,
	`CREATE TABLE order_statuses (
		id TEXT PRIMARY KEY,
		collect_id TEXT NOT NULL,
		collect_request_id TEXT,
		order_amount NUMERIC NOT NULL DEFAULT 0,
		transaction_amount NUMERIC NOT NULL DEFAULT 0,
		payment_mode TEXT NOT NULL DEFAULT '',
		payment_details TEXT,
		bank_reference TEXT NOT NULL DEFAULT '',
		payment_message TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		gateway_status TEXT NOT NULL DEFAULT '',
		payment_time DATETIME,
		gateway TEXT NOT NULL DEFAULT 'Edviron',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE UNIQUE INDEX ux_order_statuses_collect_id ON order_statuses (collect_id)`,
	`CREATE UNIQUE INDEX ux_order_statuses_collect_request_id ON order_statuses (collect_request_id) WHERE collect_request_id IS NOT NULL`,
	`CREATE TABLE webhook_logs (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		status INTEGER NOT NULL DEFAULT 0,
		payload TEXT NOT NULL,
		processed BOOLEAN NOT NULL DEFAULT false,
		error_message TEXT NOT NULL DEFAULT '',
		received_at DATETIME NOT NULL,
		processed_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE INDEX idx_webhook_logs_order_id ON webhook_logs (order_id)`,
}

// New returns a fresh database for the calling test. Each call gets its own
// named in-memory database so parallel tests never share rows.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v\n%s", err, stmt)
		}
	}
	return conn
}
