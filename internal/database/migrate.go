package database

import (
	"fmt"

	"github.com/zhaobenny/voltbill/internal/accounts"
	"github.com/zhaobenny/voltbill/internal/auth"
	"github.com/zhaobenny/voltbill/internal/parser"
)

// MigrateCredentials copies entries into the users table in one transaction.
// salt|hash values are copied as they are; legacy plaintext values are hashed
// with a fresh salt first. It returns the number of rows upserted.
func MigrateCredentials(db *DB, entries []parser.Credential, h auth.Hasher) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin migration: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(db.rebind(upsertCredentialSQL))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	migrated := 0
	for _, c := range entries {
		value := c.Value
		if !accounts.IsHashed(value) {
			salt, err := auth.GenerateSalt()
			if err != nil {
				return 0, err
			}
			hash, err := h.Hash(value, salt)
			if err != nil {
				return 0, err
			}
			value = salt + "|" + hash
		}
		if _, err := stmt.Exec(c.Username, value); err != nil {
			return 0, fmt.Errorf("failed to migrate %s: %w", c.Username, err)
		}
		migrated++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit migration: %w", err)
	}
	return migrated, nil
}
