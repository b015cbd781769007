package mysql

import (
	"context"
	"fmt"
)

// schema creates every table the store needs. Nested values (schedule
// rules, limits, usage counters, metadata, date lists) live in JSON columns;
// the columns entitlements are filtered by are plain and indexed.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS classes (
		id VARCHAR(128) NOT NULL PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		instructor_name VARCHAR(255) NOT NULL DEFAULT '',
		location VARCHAR(255) NOT NULL DEFAULT '',
		start_time VARCHAR(5) NOT NULL DEFAULT '',
		end_time VARCHAR(5) NOT NULL DEFAULT '',
		recurrence JSON NOT NULL,
		capacity INT NOT NULL DEFAULT 0,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS children (
		id VARCHAR(128) NOT NULL PRIMARY KEY,
		parent_id VARCHAR(128) NOT NULL,
		first_name VARCHAR(255) NOT NULL DEFAULT '',
		last_name VARCHAR(255) NOT NULL DEFAULT '',
		KEY idx_children_parent (parent_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS plans (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		type VARCHAR(64) NOT NULL,
		name VARCHAR(255) NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL,
		currency CHAR(3) NOT NULL DEFAULT 'PLN',
		scope VARCHAR(16) NOT NULL DEFAULT 'child',
		limits JSON NOT NULL,
		validity JSON NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS entitlements (
		id VARCHAR(128) NOT NULL PRIMARY KEY,
		parent_id VARCHAR(128) NOT NULL,
		child_id VARCHAR(128) NOT NULL DEFAULT '',
		plan_id VARCHAR(64) NOT NULL,
		type VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		valid_from DATETIME(3) NOT NULL,
		valid_to DATETIME(3) NOT NULL,
		limits JSON NOT NULL,
		usage_counts JSON NOT NULL,
		created_from_intent_id VARCHAR(128) NOT NULL DEFAULT '',
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		KEY idx_entitlements_parent_status (parent_id, status),
		KEY idx_entitlements_parent_plan (parent_id, plan_id, status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id VARCHAR(400) NOT NULL PRIMARY KEY,
		parent_id VARCHAR(128) NOT NULL,
		child_id VARCHAR(128) NOT NULL,
		class_id VARCHAR(128) NOT NULL,
		date_ymd CHAR(10) NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_method VARCHAR(16) NOT NULL,
		entitlement_id VARCHAR(128) NOT NULL DEFAULT '',
		payment_intent_id VARCHAR(128) NOT NULL DEFAULT '',
		provider_transaction_id VARCHAR(128) NOT NULL DEFAULT '',
		created_at DATETIME(3) NOT NULL,
		UNIQUE KEY uq_reservations_natural (child_id, class_id, date_ymd),
		KEY idx_reservations_parent (parent_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS payment_intents (
		id VARCHAR(128) NOT NULL PRIMARY KEY,
		parent_id VARCHAR(128) NOT NULL,
		plan_id VARCHAR(64) NOT NULL,
		amount_cents BIGINT NOT NULL,
		currency CHAR(3) NOT NULL DEFAULT 'PLN',
		email VARCHAR(255) NOT NULL DEFAULT '',
		description VARCHAR(512) NOT NULL DEFAULT '',
		provider VARCHAR(32) NOT NULL DEFAULT '',
		provider_transaction_id VARCHAR(128) NOT NULL DEFAULT '',
		provider_title VARCHAR(128) NOT NULL DEFAULT '',
		status VARCHAR(16) NOT NULL,
		metadata JSON NOT NULL,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL,
		paid_at DATETIME(3) NULL,
		finalized_at DATETIME(3) NULL,
		processing_at DATETIME(3) NULL,
		KEY idx_payment_intents_parent (parent_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS enrollment_requests (
		id VARCHAR(260) NOT NULL PRIMARY KEY,
		parent_id VARCHAR(128) NOT NULL,
		child_id VARCHAR(128) NOT NULL,
		class_id VARCHAR(128) NOT NULL,
		status VARCHAR(16) NOT NULL,
		payment_method VARCHAR(16) NOT NULL DEFAULT '',
		payment_intent_id VARCHAR(128) NOT NULL DEFAULT '',
		provider_transaction_id VARCHAR(128) NOT NULL DEFAULT '',
		dates JSON NOT NULL,
		created_at DATETIME(3) NOT NULL,
		updated_at DATETIME(3) NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store/mysql: migrate: %w", err)
		}
	}
	return nil
}
