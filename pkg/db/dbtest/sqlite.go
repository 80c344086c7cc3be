// Package dbtest opens isolated in-memory sqlite databases carrying the
// marketplace schema for repository and service tests.
package dbtest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/fensho/marketplace-backend/pkg/db"
)

var seq atomic.Int64

var schema = []string{
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		payment_status TEXT NOT NULL,
		order_status TEXT NOT NULL,
		logistics_status TEXT,
		tracking_awb TEXT,
		buyer_state TEXT NOT NULL,
		seller_type_snapshot TEXT NOT NULL,
		risk_score_snapshot INTEGER NOT NULL DEFAULT 0,
		commission_amount TEXT,
		tds_amount TEXT,
		seller_earning TEXT,
		settlement_eligible_at DATETIME,
		settled NUMERIC NOT NULL DEFAULT 0,
		cod_reconciled NUMERIC NOT NULL DEFAULT 0,
		refund_amount TEXT NOT NULL DEFAULT '0',
		gateway_order_id TEXT,
		gateway_payment_id TEXT,
		gateway_signature TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		seller_id TEXT NOT NULL,
		seller_state TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		weight_grams INTEGER NOT NULL,
		volumetric_weight TEXT NOT NULL,
		shipping_class TEXT NOT NULL,
		is_fragile NUMERIC NOT NULL DEFAULT 0,
		commission_rate TEXT,
		tds_rate TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE shipments (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL UNIQUE,
		awb TEXT UNIQUE,
		courier_name TEXT,
		cost TEXT,
		priority INTEGER,
		status TEXT NOT NULL,
		origin_state TEXT NOT NULL,
		destination_state TEXT NOT NULL,
		failure_reason TEXT,
		last_event_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE courier_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		base_url TEXT,
		api_key TEXT,
		priority INTEGER NOT NULL,
		is_active NUMERIC NOT NULL DEFAULT 1,
		supports_cod NUMERIC NOT NULL DEFAULT 0,
		max_cod_amount TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE buyer_profiles (
		user_id TEXT PRIMARY KEY,
		risk_score INTEGER NOT NULL DEFAULT 0,
		cod_allowed NUMERIC NOT NULL DEFAULT 1,
		cod_limit_amount TEXT NOT NULL DEFAULT '5000',
		daily_cod_orders_limit INTEGER NOT NULL DEFAULT 3,
		delivered_orders INTEGER NOT NULL DEFAULT 0,
		cancelled_orders INTEGER NOT NULL DEFAULT 0,
		rto_orders INTEGER NOT NULL DEFAULT 0,
		lifetime_orders INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE risk_events (
		id TEXT PRIMARY KEY,
		buyer_id TEXT NOT NULL,
		order_id TEXT,
		type TEXT NOT NULL,
		points INTEGER NOT NULL,
		note TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE seller_wallets (
		seller_id TEXT PRIMARY KEY,
		available_balance TEXT NOT NULL DEFAULT '0',
		hold_balance TEXT NOT NULL DEFAULT '0',
		total_sales TEXT NOT NULL DEFAULT '0',
		total_commission TEXT NOT NULL DEFAULT '0',
		total_payout TEXT NOT NULL DEFAULT '0',
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE ledger_entries (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		order_id TEXT,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		note TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE idempotency_keys (
		id TEXT PRIMARY KEY,
		key TEXT NOT NULL,
		scope TEXT NOT NULL,
		created_at DATETIME,
		UNIQUE (key, scope)
	)`,
	`CREATE TABLE audit_logs (
		id TEXT PRIMARY KEY,
		actor_id TEXT,
		actor_role TEXT,
		action TEXT NOT NULL,
		target_id TEXT,
		metadata TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE payment_events (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		type TEXT NOT NULL,
		gateway_ref TEXT NOT NULL,
		raw_data TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE seller_profiles (
		user_id TEXT PRIMARY KEY,
		business_name TEXT NOT NULL,
		type TEXT NOT NULL,
		state TEXT NOT NULL,
		commission_rate TEXT,
		tds_rate TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE products (
		id TEXT PRIMARY KEY,
		seller_id TEXT NOT NULL,
		name TEXT NOT NULL,
		price TEXT NOT NULL,
		weight_grams INTEGER NOT NULL,
		length_cm TEXT NOT NULL,
		width_cm TEXT NOT NULL,
		height_cm TEXT NOT NULL,
		volumetric_weight TEXT,
		shipping_class TEXT,
		is_fragile NUMERIC NOT NULL DEFAULT 0,
		is_active NUMERIC NOT NULL DEFAULT 1,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
}

// Open returns a fresh database with every marketplace table created. The
// pool is pinned to one connection so the in-memory database outlives
// individual statements; code under test must route all work inside a
// transaction through that transaction's handle.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
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
			t.Fatalf("create schema: %v", err)
		}
	}
	return conn
}

// Client wraps Open in a db.Client for services that take a transaction runner.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.Wrap(Open(t))
}
