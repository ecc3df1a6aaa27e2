package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/addrlens/internal/types"
)

// Import stores records as one batch in a single transaction and notifies
// listeners on ChannelTagsChanged when it commits.
func (db *DB) Import(ctx context.Context, records []types.TagRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batchID := uuid.New()
	_, err = tx.Exec(ctx,
		`INSERT INTO import_batches (id, source, record_count) VALUES ($1, $2, $3)`,
		batchID, batchSource(records), len(records),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create import batch: %w", err)
	}

	batch := &pgx.Batch{}
	for _, rec := range records {
		batch.Queue(
			`INSERT INTO tag_records (batch_id, address, name, entity, source)
			 VALUES ($1, $2, $3, $4, $5)`,
			batchID, rec.Address.String(), rec.Name, nullIfEmpty(rec.Entity), rec.Source,
		)
	}
	results := tx.SendBatch(ctx, batch)
	for i := range records {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return 0, fmt.Errorf("failed to insert tag record %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("failed to insert tag records: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, ChannelTagsChanged, batchID.String()); err != nil {
		return 0, fmt.Errorf("failed to notify tag change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	db.log.Info().
		Str("batch_id", batchID.String()).
		Int("records", len(records)).
		Msg("tag records imported")
	return len(records), nil
}

// Records returns every record for addr in import order.
func (db *DB) Records(ctx context.Context, addr types.Address) ([]types.TagRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT address, name, entity, source FROM tag_records
		 WHERE address = $1
		 ORDER BY id`,
		addr.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag records: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tag records: %w", err)
	}
	return records, nil
}

// AllResolved resolves the headline tag of every stored address.
func (db *DB) AllResolved(ctx context.Context) (map[types.Address]types.ResolvedTag, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT address, name, entity, source FROM tag_records ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query tag records: %w", err)
	}
	records, err := pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("failed to scan tag records: %w", err)
	}
	return db.resolver.ResolveAll(records), nil
}

// ListBatches returns the most recent import batches, newest first.
func (db *DB) ListBatches(ctx context.Context, limit int) ([]Batch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT id, source, record_count, created_at FROM import_batches
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query import batches: %w", err)
	}
	batches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Batch, error) {
		var b Batch
		err := row.Scan(&b.ID, &b.Source, &b.RecordCount, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan import batches: %w", err)
	}
	return batches, nil
}

func scanRecord(row pgx.CollectableRow) (types.TagRecord, error) {
	var (
		rec    types.TagRecord
		addr   string
		entity *string
	)
	if err := row.Scan(&addr, &rec.Name, &entity, &rec.Source); err != nil {
		return rec, err
	}
	rec.Address = types.Address(addr)
	if entity != nil {
		rec.Entity = *entity
	}
	return rec, nil
}

// batchSource names the batch after its records' source, or "mixed".
func batchSource(records []types.TagRecord) string {
	source := records[0].Source
	for _, r := range records[1:] {
		if r.Source != source {
			return "mixed"
		}
	}
	return source
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
