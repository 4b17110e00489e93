package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// NextSequence increments and returns the next sequence number for the given table within tx.
//
// Sequence numbers provide human-readable ordering for entities (e.g., user #42, city #15).
// They are NOT exposed in CLI output but used internally for sorting and debugging.
func NextSequence(ctx context.Context, tx *sqlx.Tx, table string) (int, error) {
	sequenceTable := table + "_sequence"

	_, err := tx.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET value = value + 1 WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to increment sequence: %w", err)
	}

	var sequence int
	err = tx.GetContext(ctx, &sequence, fmt.Sprintf("SELECT value FROM %s WHERE id = 1", sequenceTable))
	if err != nil {
		return 0, fmt.Errorf("failed to get sequence value: %w", err)
	}

	return sequence, nil
}
