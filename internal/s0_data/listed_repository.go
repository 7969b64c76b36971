package s0_data

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/kabu/internal/contracts"
)

// ListedInfo retrieves the issue master row for a code; nil when unknown
func (r *Repository) ListedInfo(ctx context.Context, code string) (*contracts.ListedInfo, error) {
	query := `
		SELECT code, COALESCE(info_date, '0001-01-01'::date), COALESCE(company_name, ''), COALESCE(company_name_en, ''),
		       COALESCE(sector17_code, ''), COALESCE(sector17_name, ''), COALESCE(sector33_code, ''), COALESCE(sector33_name, ''),
		       COALESCE(scale_category, ''), COALESCE(market_code, ''), COALESCE(market_name, ''), deleted
		FROM data.listed_info
		WHERE code = $1
	`

	var info contracts.ListedInfo
	err := r.db.QueryRow(ctx, query, code).Scan(
		&info.Code, &info.Date, &info.CompanyName, &info.CompanyNameEnglish,
		&info.Sector17Code, &info.Sector17Name, &info.Sector33Code, &info.Sector33Name,
		&info.ScaleCategory, &info.MarketCode, &info.MarketName, &info.Deleted,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query listed info for %s: %w", code, err)
	}
	return &info, nil
}

// ActiveCodes returns listed equities: not deleted and not in the "other" market segment
func (r *Repository) ActiveCodes(ctx context.Context) ([]string, error) {
	return r.queryStrings(ctx, `
		SELECT code
		FROM data.listed_info
		WHERE NOT deleted AND COALESCE(market_code, '') <> $1
		ORDER BY code
	`, contracts.MarketCodeOther)
}

// SaveListedInfo upserts the latest listing and flags every code absent from it as deleted.
// An empty listing is ignored rather than treated as a universe wipe.
func (r *Repository) SaveListedInfo(ctx context.Context, rows []contracts.ListedInfo) error {
	if len(rows) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.listed_info (
			code, info_date, company_name, company_name_en,
			sector17_code, sector17_name, sector33_code, sector33_name,
			scale_category, market_code, market_name, deleted, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, FALSE, NOW())
		ON CONFLICT (code) DO UPDATE SET
			info_date = EXCLUDED.info_date,
			company_name = EXCLUDED.company_name,
			company_name_en = EXCLUDED.company_name_en,
			sector17_code = EXCLUDED.sector17_code,
			sector17_name = EXCLUDED.sector17_name,
			sector33_code = EXCLUDED.sector33_code,
			sector33_name = EXCLUDED.sector33_name,
			scale_category = EXCLUDED.scale_category,
			market_code = EXCLUDED.market_code,
			market_name = EXCLUDED.market_name,
			deleted = FALSE,
			updated_at = NOW()
	`

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	codes := make([]string, 0, len(rows))
	for _, info := range rows {
		_, err := tx.Exec(ctx, query,
			info.Code, contracts.TruncateDay(info.Date), info.CompanyName, info.CompanyNameEnglish,
			info.Sector17Code, info.Sector17Name, info.Sector33Code, info.Sector33Name,
			info.ScaleCategory, info.MarketCode, info.MarketName,
		)
		if err != nil {
			return fmt.Errorf("insert listed info for %s: %w", info.Code, err)
		}
		codes = append(codes, info.Code)
	}

	_, err = tx.Exec(ctx, `
		UPDATE data.listed_info
		SET deleted = TRUE, updated_at = NOW()
		WHERE NOT deleted AND code <> ALL($1)
	`, codes)
	if err != nil {
		return fmt.Errorf("mark delisted codes: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
