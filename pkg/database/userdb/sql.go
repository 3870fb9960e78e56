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
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/refugium/companion-core/pkg/database"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

func sqlMigrateUp(db *sql.DB) error {
	if err := database.MigrateUp(db, migrationFiles, "migrations"); err != nil {
		return fmt.Errorf("failed to run user database migrations: %w", err)
	}
	return nil
}

func sqlAllocate(db *sql.DB) error {
	return sqlMigrateUp(db)
}

//goland:noinspection SqlWithoutWhere
func sqlTruncate(ctx context.Context, db *sql.DB) error {
	sqlStmt := `
	delete from ChatMessages;
	delete from Profiles;
	vacuum;
	`
	_, err := db.ExecContext(ctx, sqlStmt)
	if err != nil {
		return fmt.Errorf("failed to truncate database: %w", err)
	}
	return nil
}

func sqlVacuum(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `vacuum;`)
	if err != nil {
		return fmt.Errorf("failed to vacuum database: %w", err)
	}
	return nil
}

func closeStmt(stmt *sql.Stmt) {
	if closeErr := stmt.Close(); closeErr != nil {
		log.Warn().Err(closeErr).Msg("failed to close sql statement")
	}
}

func unixOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func boolOrNil(b *bool) any {
	if b == nil {
		return nil
	}
	return *b
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

const selectProfile = `
	select UserID, Name, Trait, IsPremium, TrialStartedAt,
		TokenBalance, ImageGenerationCount, CreatedAt, UpdatedAt
	from Profiles
	where UserID = ?;
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (database.Profile, error) {
	var (
		p         database.Profile
		trial     sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&p.UserID,
		&p.Name,
		&p.Trait,
		&p.IsPremium,
		&trial,
		&p.TokenBalance,
		&p.ImageGenerationCount,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return p, database.ErrNotFound
	} else if err != nil {
		return p, fmt.Errorf("failed to scan profile: %w", err)
	}
	if trial.Valid {
		t := time.Unix(trial.Int64, 0)
		p.TrialStartedAt = &t
	}
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return p, nil
}

func sqlGetProfile(ctx context.Context, db *sql.DB, userID string) (database.Profile, error) {
	stmt, err := db.PrepareContext(ctx, selectProfile)
	if err != nil {
		return database.Profile{}, fmt.Errorf("failed to prepare profile select statement: %w", err)
	}
	defer closeStmt(stmt)

	return scanProfile(stmt.QueryRowContext(ctx, userID))
}

func sqlCreateProfile(ctx context.Context, db *sql.DB, p *database.Profile) error {
	stmt, err := db.PrepareContext(ctx, `
		insert into Profiles(
			UserID, Name, Trait, IsPremium, TrialStartedAt,
			TokenBalance, ImageGenerationCount, CreatedAt, UpdatedAt
		) values (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare profile insert statement: %w", err)
	}
	defer closeStmt(stmt)

	_, err = stmt.ExecContext(ctx,
		p.UserID,
		p.Name,
		p.Trait,
		p.IsPremium,
		unixOrNil(p.TrialStartedAt),
		max(0, p.TokenBalance),
		p.ImageGenerationCount,
		p.CreatedAt.Unix(),
		p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to execute profile insert: %w", err)
	}
	return nil
}

// sqlUpdateProfile applies a patch and returns the stored result. Token and
// image count deltas are computed by SQLite so they never race with
// another writer.
func sqlUpdateProfile(
	ctx context.Context,
	db *sql.DB,
	userID string,
	patch database.ProfilePatch,
) (database.Profile, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return database.Profile{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("failed to rollback profile update")
		}
	}()

	res, err := tx.ExecContext(ctx, `
		update Profiles set
			IsPremium = coalesce(?, IsPremium),
			Name = coalesce(?, Name),
			Trait = coalesce(?, Trait),
			TrialStartedAt = coalesce(?, TrialStartedAt),
			TokenBalance = max(0, TokenBalance + ?),
			ImageGenerationCount = max(0, ImageGenerationCount + ?),
			UpdatedAt = ?
		where UserID = ?;
	`,
		boolOrNil(patch.IsPremium),
		stringOrNil(patch.Name),
		stringOrNil(patch.Trait),
		unixOrNil(patch.TrialStartedAt),
		patch.TokenDelta,
		patch.ImageCountDelta,
		time.Now().Unix(),
		userID,
	)
	if err != nil {
		return database.Profile{}, fmt.Errorf("failed to execute profile update: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return database.Profile{}, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return database.Profile{}, database.ErrNotFound
	}

	p, err := scanProfile(tx.QueryRowContext(ctx, selectProfile, userID))
	if err != nil {
		return database.Profile{}, err
	}

	if err := tx.Commit(); err != nil {
		return database.Profile{}, fmt.Errorf("failed to commit profile update: %w", err)
	}
	return p, nil
}

func sqlGetChatHistory(ctx context.Context, db *sql.DB, userID string) ([]database.ChatMessage, error) {
	list := make([]database.ChatMessage, 0, 32)

	stmt, err := db.PrepareContext(ctx, `
		select DBID, Role, Content, Emotion, Sensory, Time
		from ChatMessages
		where UserID = ?
		order by Position asc;
	`)
	if err != nil {
		return list, fmt.Errorf("failed to prepare chat history statement: %w", err)
	}
	defer closeStmt(stmt)

	rows, err := stmt.QueryContext(ctx, userID)
	if err != nil {
		return list, fmt.Errorf("failed to query chat history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close sql rows")
		}
	}()

	for rows.Next() {
		var (
			m  database.ChatMessage
			ts int64
		)
		if err := rows.Scan(&m.DBID, &m.Role, &m.Content, &m.Emotion, &m.Sensory, &ts); err != nil {
			return list, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Time = time.Unix(ts, 0)
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return list, fmt.Errorf("chat history rows error: %w", err)
	}
	return list, nil
}

// sqlReplaceChatHistory swaps the stored conversation for msgs in one
// transaction.
func sqlReplaceChatHistory(ctx context.Context, db *sql.DB, userID string, msgs []database.ChatMessage) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Warn().Err(rbErr).Msg("failed to rollback chat history replace")
		}
	}()

	if _, err := tx.ExecContext(ctx, `delete from ChatMessages where UserID = ?;`, userID); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}

	if len(msgs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			insert into ChatMessages(
				UserID, Position, Role, Content, Emotion, Sensory, Time
			) values (?, ?, ?, ?, ?, ?, ?);
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare chat message insert: %w", err)
		}
		defer closeStmt(stmt)

		for i, m := range msgs {
			ts := m.Time
			if ts.IsZero() {
				ts = time.Now()
			}
			_, err := stmt.ExecContext(ctx, userID, i, m.Role, m.Content, m.Emotion, m.Sensory, ts.Unix())
			if err != nil {
				return fmt.Errorf("failed to insert chat message: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chat history: %w", err)
	}
	return nil
}

func sqlClearChatHistory(ctx context.Context, db *sql.DB, userID string) error {
	stmt, err := db.PrepareContext(ctx, `delete from ChatMessages where UserID = ?;`)
	if err != nil {
		return fmt.Errorf("failed to prepare chat history delete: %w", err)
	}
	defer closeStmt(stmt)

	if _, err := stmt.ExecContext(ctx, userID); err != nil {
		return fmt.Errorf("failed to execute chat history delete: %w", err)
	}
	return nil
}
