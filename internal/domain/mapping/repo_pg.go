package mapping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fhirbridge/fhirbridge/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

// NewRepoPG creates the Postgres-backed definition repository.
func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

// ============================================================================
// Mappings
// ============================================================================

const mappingCols = `id, mapping_id, name, version, direction, source_type, target_type,
	enabled, document, created_at, updated_at`

func scanMapping(row pgx.Row) (*Definition, error) {
	var def Definition
	var doc []byte
	err := row.Scan(&def.ID, &def.MappingID, &def.Name, &def.Version, &def.Direction,
		&def.SourceType, &def.TargetType, &def.Enabled, &doc, &def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(doc, &def.Document); err != nil {
		return nil, fmt.Errorf("mapping %s: decode document: %w", def.MappingID, err)
	}
	return &def, nil
}

func (r *repoPG) CreateMapping(ctx context.Context, def *Definition) error {
	def.ID = uuid.New()
	doc, err := json.Marshal(def.Document)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO mapping_definition (id, mapping_id, name, version, direction,
			source_type, target_type, enabled, document)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		def.ID, def.MappingID, def.Name, def.Version, def.Direction,
		def.SourceType, def.TargetType, def.Enabled, doc)
	return err
}

func (r *repoPG) GetMapping(ctx context.Context, id uuid.UUID) (*Definition, error) {
	return scanMapping(r.conn(ctx).QueryRow(ctx,
		`SELECT `+mappingCols+` FROM mapping_definition WHERE id = $1`, id))
}

func (r *repoPG) GetMappingByMappingID(ctx context.Context, mappingID string) (*Definition, error) {
	return scanMapping(r.conn(ctx).QueryRow(ctx,
		`SELECT `+mappingCols+` FROM mapping_definition WHERE mapping_id = $1`, mappingID))
}

func (r *repoPG) ListMappings(ctx context.Context, limit, offset int) ([]*Definition, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM mapping_definition`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+mappingCols+` FROM mapping_definition
		ORDER BY mapping_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanMapping(rows)
		if err != nil {
			return nil, 0, err
		}
		defs = append(defs, def)
	}
	return defs, total, rows.Err()
}

func (r *repoPG) ListEnabledMappings(ctx context.Context) ([]*Definition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+mappingCols+` FROM mapping_definition
		WHERE enabled ORDER BY mapping_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*Definition
	for rows.Next() {
		def, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *repoPG) UpdateMapping(ctx context.Context, def *Definition) error {
	doc, err := json.Marshal(def.Document)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE mapping_definition
		SET mapping_id = $2, name = $3, version = $4, direction = $5,
			source_type = $6, target_type = $7, enabled = $8, document = $9,
			updated_at = NOW()
		WHERE id = $1`,
		def.ID, def.MappingID, def.Name, def.Version, def.Direction,
		def.SourceType, def.TargetType, def.Enabled, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteMapping(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM mapping_definition WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ============================================================================
// Lookup tables
// ============================================================================

const lookupCols = `id, table_id, name, enabled, document, created_at, updated_at`

func scanLookup(row pgx.Row) (*LookupDefinition, error) {
	var def LookupDefinition
	var doc []byte
	err := row.Scan(&def.ID, &def.TableID, &def.Name, &def.Enabled, &doc,
		&def.CreatedAt, &def.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := json.Unmarshal(doc, &def.Document); err != nil {
		return nil, fmt.Errorf("lookup table %s: decode document: %w", def.TableID, err)
	}
	return &def, nil
}

func (r *repoPG) CreateLookup(ctx context.Context, def *LookupDefinition) error {
	def.ID = uuid.New()
	doc, err := json.Marshal(def.Document)
	if err != nil {
		return err
	}
	_, err = r.conn(ctx).Exec(ctx, `
		INSERT INTO lookup_table_definition (id, table_id, name, enabled, document)
		VALUES ($1,$2,$3,$4,$5)`,
		def.ID, def.TableID, def.Name, def.Enabled, doc)
	return err
}

func (r *repoPG) GetLookup(ctx context.Context, id uuid.UUID) (*LookupDefinition, error) {
	return scanLookup(r.conn(ctx).QueryRow(ctx,
		`SELECT `+lookupCols+` FROM lookup_table_definition WHERE id = $1`, id))
}

func (r *repoPG) GetLookupByTableID(ctx context.Context, tableID string) (*LookupDefinition, error) {
	return scanLookup(r.conn(ctx).QueryRow(ctx,
		`SELECT `+lookupCols+` FROM lookup_table_definition WHERE table_id = $1`, tableID))
}

func (r *repoPG) ListLookups(ctx context.Context, limit, offset int) ([]*LookupDefinition, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM lookup_table_definition`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+lookupCols+` FROM lookup_table_definition
		ORDER BY table_id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var defs []*LookupDefinition
	for rows.Next() {
		def, err := scanLookup(rows)
		if err != nil {
			return nil, 0, err
		}
		defs = append(defs, def)
	}
	return defs, total, rows.Err()
}

func (r *repoPG) ListEnabledLookups(ctx context.Context) ([]*LookupDefinition, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+lookupCols+` FROM lookup_table_definition
		WHERE enabled ORDER BY table_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []*LookupDefinition
	for rows.Next() {
		def, err := scanLookup(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (r *repoPG) UpdateLookup(ctx context.Context, def *LookupDefinition) error {
	doc, err := json.Marshal(def.Document)
	if err != nil {
		return err
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE lookup_table_definition
		SET table_id = $2, name = $3, enabled = $4, document = $5, updated_at = NOW()
		WHERE id = $1`,
		def.ID, def.TableID, def.Name, def.Enabled, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repoPG) DeleteLookup(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM lookup_table_definition WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
