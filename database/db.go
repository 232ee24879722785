/*
Copyright 2025 Kolo Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/lib/pq"

	"github.com/kolofinance/kolo/config"
	"github.com/kolofinance/kolo/internal/cache"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		newCache, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("cache unavailable, reads fall through to postgres: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: newCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	if _, err := db.Exec(`CREATE SCHEMA IF NOT EXISTS kolo`); err != nil {
		return nil, err
	}
	for _, create := range []func(*sql.DB) error{
		createUserTable,
		createGroupTables,
		createPreferenceTables,
		createObligationTable,
		createAttemptTable,
		createWebhookEventTable,
		createWalletTable,
		createWithdrawalTables,
		createNotificationTable,
	} {
		if err := create(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

func createUserTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.users (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT,
			last_name TEXT,
			date_of_birth DATE,
			stripe_customer_id TEXT,
			paystack_customer_code TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func createGroupTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.groups (
			id SERIAL PRIMARY KEY,
			group_id TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			kind TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount BIGINT NOT NULL,
			admin_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			billing_interval TEXT,
			deadline_day INT,
			deadline_month INT,
			target_date DATE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			meta_data JSONB
		);
		CREATE TABLE IF NOT EXISTS kolo.group_members (
			id SERIAL PRIMARY KEY,
			group_id TEXT NOT NULL REFERENCES kolo.groups(group_id),
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			joined_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (group_id, user_id)
		);
	`)
	return err
}

func createPreferenceTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.payment_instruments (
			id SERIAL PRIMARY KEY,
			instrument_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			provider TEXT NOT NULL,
			token TEXT NOT NULL,
			last4 TEXT,
			exp_month INT,
			exp_year INT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS kolo.payment_preferences (
			id SERIAL PRIMARY KEY,
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			group_id TEXT NOT NULL REFERENCES kolo.groups(group_id),
			auto_pay BOOLEAN NOT NULL DEFAULT FALSE,
			instrument_id TEXT,
			charge_offset TEXT NOT NULL DEFAULT 'same_day',
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, group_id)
		);
	`)
	return err
}

func createObligationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.obligations (
			id SERIAL PRIMARY KEY,
			obligation_id TEXT NOT NULL UNIQUE,
			group_id TEXT NOT NULL REFERENCES kolo.groups(group_id),
			payer_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			recipient_id TEXT NOT NULL,
			period_key TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'not_paid',
			due_date DATE NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (group_id, payer_id, period_key)
		)
	`)
	return err
}

func createAttemptTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.payment_attempts (
			id SERIAL PRIMARY KEY,
			attempt_id TEXT NOT NULL UNIQUE,
			obligation_id TEXT NOT NULL REFERENCES kolo.obligations(obligation_id),
			payer_id TEXT NOT NULL,
			group_id TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			provider TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			retry_count INT NOT NULL DEFAULT 0,
			provider_txn_id TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_attempts_obligation_open
			ON kolo.payment_attempts (obligation_id) WHERE status IN ('pending', 'retry');
	`)
	return err
}

func createWebhookEventTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.webhook_events (
			id SERIAL PRIMARY KEY,
			event_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			received_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (event_id, provider)
		)
	`)
	return err
}

func createWalletTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.wallets (
			id SERIAL PRIMARY KEY,
			wallet_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			currency TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, currency)
		)
	`)
	return err
}

func createWithdrawalTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.bank_accounts (
			id SERIAL PRIMARY KEY,
			account_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			currency TEXT NOT NULL,
			bank_name TEXT,
			account_number TEXT,
			account_name TEXT,
			recipient_code TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (user_id, currency)
		);
		CREATE TABLE IF NOT EXISTS kolo.withdrawals (
			id SERIAL PRIMARY KEY,
			withdrawal_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			currency TEXT NOT NULL,
			amount BIGINT NOT NULL,
			fee BIGINT NOT NULL DEFAULT 0,
			net_amount BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			scheduled_at TIMESTAMP NOT NULL,
			provider_transfer_id TEXT,
			error_message TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

func createNotificationTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS kolo.notifications (
			id SERIAL PRIMARY KEY,
			notification_id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL REFERENCES kolo.users(user_id),
			kind TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT,
			read BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}
