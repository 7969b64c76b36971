package s0_data

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/wonny/kabu/internal/contracts"
)

// SaveStatements upserts disclosures keyed by disclosure number.
// The full record is kept as JSONB; the key columns are duplicated for indexing.
func (r *Repository) SaveStatements(ctx context.Context, records []contracts.StatementRecord) error {
	if len(records) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.statements (
			disclosure_number, local_code, disclosed_at, type_of_period, payload, updated_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (disclosure_number) DO UPDATE SET
			local_code = EXCLUDED.local_code,
			disclosed_at = EXCLUDED.disclosed_at,
			type_of_period = EXCLUDED.type_of_period,
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rec := range records {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal statement %s: %w", rec.DisclosureNumber, err)
		}
		_, err = tx.Exec(ctx, query,
			rec.DisclosureNumber, rec.LocalCode, rec.DisclosedAt(), rec.TypeOfCurrentPeriod, payload,
		)
		if err != nil {
			return fmt.Errorf("insert statement %s: %w", rec.DisclosureNumber, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// StatementHistory returns a code's disclosures, oldest first
func (r *Repository) StatementHistory(ctx context.Context, code string) ([]contracts.StatementRecord, error) {
	query := `
		SELECT payload
		FROM data.statements
		WHERE local_code = $1
		ORDER BY disclosed_at ASC, disclosure_number ASC
	`

	rows, err := r.db.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("query statements for %s: %w", code, err)
	}
	defer rows.Close()

	var out []contracts.StatementRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan statement: %w", err)
		}
		var rec contracts.StatementRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal statement: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// StatementCodes returns every code with at least one disclosure
func (r *Repository) StatementCodes(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `SELECT DISTINCT local_code FROM data.statements ORDER BY local_code`)
}
