// Companion Core
// Copyright (c) 2026 The Companion Core Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Companion Core.
//
// Companion Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Companion Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Companion Core.  If not, see <http://www.gnu.org/licenses/>.

package userdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/refugium/companion-core/pkg/database"
)

var ErrNullSQL = errors.New("UserDB is not connected")

const sqliteConnParams = "?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000"

type UserDB struct {
	sql    *sql.DB
	ctx    context.Context
	dbPath string
}

func OpenUserDB(ctx context.Context, dbPath string) (*UserDB, error) {
	db := &UserDB{sql: nil, ctx: ctx, dbPath: dbPath}
	err := db.Open()
	return db, err
}

func (db *UserDB) Open() error {
	exists := true
	dbPath := db.GetDBPath()
	_, err := os.Stat(dbPath)
	if err != nil {
		exists = false
		mkdirErr := os.MkdirAll(filepath.Dir(dbPath), 0o750)
		if mkdirErr != nil {
			return fmt.Errorf("failed to create directory for database: %w", mkdirErr)
		}
	}
	sqlInstance, err := sql.Open("sqlite3", dbPath+sqliteConnParams)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.sql = sqlInstance
	if !exists {
		return db.Allocate()
	}
	return db.MigrateUp()
}

func (db *UserDB) GetDBPath() string {
	return db.dbPath
}

func (db *UserDB) Truncate() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlTruncate(db.ctx, db.sql)
}

func (db *UserDB) Allocate() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlAllocate(db.sql)
}

func (db *UserDB) MigrateUp() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlMigrateUp(db.sql)
}

func (db *UserDB) Vacuum() error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlVacuum(db.ctx, db.sql)
}

func (db *UserDB) Close() error {
	if db.sql == nil {
		return nil
	}
	err := db.sql.Close()
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// SetSQLForTesting injects a sql.DB and allocates the schema. Only for
// tests.
func (db *UserDB) SetSQLForTesting(ctx context.Context, sqlDB *sql.DB) error {
	db.sql = sqlDB
	db.ctx = ctx
	return db.Allocate()
}

func (db *UserDB) GetProfile(userID string) (database.Profile, error) {
	if db.sql == nil {
		return database.Profile{}, ErrNullSQL
	}
	return sqlGetProfile(db.ctx, db.sql, userID)
}

func (db *UserDB) CreateProfile(p *database.Profile) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlCreateProfile(db.ctx, db.sql, p)
}

func (db *UserDB) UpdateProfile(userID string, patch database.ProfilePatch) (database.Profile, error) {
	if db.sql == nil {
		return database.Profile{}, ErrNullSQL
	}
	return sqlUpdateProfile(db.ctx, db.sql, userID, patch)
}

func (db *UserDB) GetChatHistory(userID string) ([]database.ChatMessage, error) {
	if db.sql == nil {
		return nil, ErrNullSQL
	}
	return sqlGetChatHistory(db.ctx, db.sql, userID)
}

func (db *UserDB) ReplaceChatHistory(userID string, msgs []database.ChatMessage) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlReplaceChatHistory(db.ctx, db.sql, userID, msgs)
}

func (db *UserDB) ClearChatHistory(userID string) error {
	if db.sql == nil {
		return ErrNullSQL
	}
	return sqlClearChatHistory(db.ctx, db.sql, userID)
}
