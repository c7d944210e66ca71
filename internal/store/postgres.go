package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/provenance/internal/model"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore is a Store backed by PostgreSQL.
// Asset critical sections hold a transaction-scoped advisory lock keyed by entity.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func notFound(err error, what, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("postgres: load %s %s: %w", what, id, err)
}

// withTx runs fn inside a transaction, committing only when fn succeeds
func (p *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Entities

const entityColumns = `id, slug, kind, name, created_at`

func scanEntity(row pgx.Row) (*model.Entity, error) {
	var e model.Entity
	if err := row.Scan(&e.ID, &e.Slug, &e.Kind, &e.Name, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

func (p *PostgresStore) PutEntity(ctx context.Context, e *model.Entity) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	const query = `
		INSERT INTO entities (id, slug, kind, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, kind = EXCLUDED.kind, name = EXCLUDED.name`
	if _, err := p.pool.Exec(ctx, query, e.ID, e.Slug, e.Kind, e.Name, e.CreatedAt); err != nil {
		return fmt.Errorf("postgres: put entity: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	e, err := scanEntity(p.pool.QueryRow(ctx, `SELECT `+entityColumns+` FROM entities WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "entity", id)
	}
	return e, nil
}

func (p *PostgresStore) FindEntity(ctx context.Context, idOrSlug string) (*model.Entity, error) {
	e, err := scanEntity(p.pool.QueryRow(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 OR slug = $1 ORDER BY (id = $1) DESC LIMIT 1`, idOrSlug))
	if err != nil {
		return nil, notFound(err, "entity", idOrSlug)
	}
	return e, nil
}

func (p *PostgresStore) ListEntities(ctx context.Context) ([]model.Entity, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+entityColumns+` FROM entities ORDER BY slug`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list entities: %w", err)
	}
	defer rows.Close()

	var out []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan entity: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Documents

const documentColumns = `id, url, domain, content, fetched_at, entity_ids`

func scanDocument(row pgx.Row) (*model.RawDocument, error) {
	var d model.RawDocument
	if err := row.Scan(&d.ID, &d.URL, &d.Domain, &d.Content, &d.FetchedAt, &d.EntityIDs); err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *PostgresStore) PutDocument(ctx context.Context, d *model.RawDocument) error {
	entityIDs := d.EntityIDs
	if entityIDs == nil {
		entityIDs = []string{}
	}
	const query = `
		INSERT INTO documents (id, url, domain, content, fetched_at, entity_ids)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`
	if _, err := p.pool.Exec(ctx, query, d.ID, d.URL, d.Domain, d.Content, d.FetchedAt, entityIDs); err != nil {
		return fmt.Errorf("postgres: put document: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetDocument(ctx context.Context, id string) (*model.RawDocument, error) {
	d, err := scanDocument(p.pool.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "document", id)
	}
	return d, nil
}

func (p *PostgresStore) ListDocuments(ctx context.Context) ([]model.RawDocument, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+documentColumns+` FROM documents ORDER BY fetched_at, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list documents: %w", err)
	}
	defer rows.Close()

	var out []model.RawDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan document: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Claims and sources

const claimColumns = `id, entity_id, document_id, type, text, value, confidence, status, created_at`
const sourceColumns = `id, claim_id, document_id, url, domain, quote, quality, fetched_at`

func scanClaim(row pgx.Row) (*model.Claim, error) {
	var c model.Claim
	var value []byte
	if err := row.Scan(&c.ID, &c.EntityID, &c.DocumentID, &c.Type, &c.Text, &value, &c.Confidence, &c.Status, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(value) > 0 {
		c.Value = value
	}
	return &c, nil
}

func scanSource(row pgx.Row) (*model.Source, error) {
	var s model.Source
	if err := row.Scan(&s.ID, &s.ClaimID, &s.DocumentID, &s.URL, &s.Domain, &s.Quote, &s.Quality, &s.FetchedAt); err != nil {
		return nil, err
	}
	return &s, nil
}

type pgClaimTx struct {
	q querier
}

func (t *pgClaimTx) InsertClaim(ctx context.Context, c *model.Claim) error {
	var value []byte
	if len(c.Value) > 0 {
		value = c.Value
	}
	const query = `
		INSERT INTO claims (id, entity_id, document_id, type, text, value, confidence, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := t.q.Exec(ctx, query, c.ID, c.EntityID, c.DocumentID, c.Type, c.Text, value, c.Confidence, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert claim: %w", err)
	}
	return nil
}

func (t *pgClaimTx) InsertSource(ctx context.Context, s *model.Source) error {
	const query = `
		INSERT INTO sources (id, claim_id, document_id, url, domain, quote, quality, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := t.q.Exec(ctx, query, s.ID, s.ClaimID, s.DocumentID, s.URL, s.Domain, s.Quote, s.Quality, s.FetchedAt)
	if err != nil {
		return fmt.Errorf("postgres: insert source: %w", err)
	}
	return nil
}

func (p *PostgresStore) WithClaimTx(ctx context.Context, fn func(tx ClaimTx) error) error {
	return p.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgClaimTx{q: tx})
	})
}

func (p *PostgresStore) HasSources(ctx context.Context, documentID, entityID string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM sources s JOIN claims c ON c.id = s.claim_id
			WHERE s.document_id = $1 AND c.entity_id = $2
		)`
	var exists bool
	if err := p.pool.QueryRow(ctx, query, documentID, entityID).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: check sources: %w", err)
	}
	return exists, nil
}

func (p *PostgresStore) GetClaim(ctx context.Context, id string) (*model.Claim, error) {
	c, err := scanClaim(p.pool.QueryRow(ctx, `SELECT `+claimColumns+` FROM claims WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "claim", id)
	}
	return c, nil
}

func (p *PostgresStore) ClaimsFor(ctx context.Context, entityID string, predicate model.ClaimType) ([]model.ClaimWithSources, error) {
	return p.claimsWithSources(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE entity_id = $1 AND type = $2 ORDER BY created_at, id`,
		entityID, predicate)
}

func (p *PostgresStore) ClaimsForEntity(ctx context.Context, entityID string) ([]model.ClaimWithSources, error) {
	return p.claimsWithSources(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE entity_id = $1 ORDER BY created_at, id`,
		entityID)
}

func (p *PostgresStore) claimsWithSources(ctx context.Context, query string, args ...any) ([]model.ClaimWithSources, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query claims: %w", err)
	}

	var out []model.ClaimWithSources
	var ids []string
	index := make(map[string]int)
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("postgres: scan claim: %w", err)
		}
		index[c.ID] = len(out)
		ids = append(ids, c.ID)
		out = append(out, model.ClaimWithSources{Claim: *c})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query claims: %w", err)
	}
	if len(ids) == 0 {
		return out, nil
	}

	srcRows, err := p.pool.Query(ctx,
		`SELECT `+sourceColumns+` FROM sources WHERE claim_id = ANY($1) ORDER BY seq`, ids)
	if err != nil {
		return nil, fmt.Errorf("postgres: query sources: %w", err)
	}
	defer srcRows.Close()
	for srcRows.Next() {
		s, err := scanSource(srcRows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		i := index[s.ClaimID]
		out[i].Sources = append(out[i].Sources, *s)
	}
	return out, srcRows.Err()
}

func (p *PostgresStore) listSources(ctx context.Context, query string, args ...any) ([]model.Source, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query sources: %w", err)
	}
	defer rows.Close()

	var out []model.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan source: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SourcesFor(ctx context.Context, claimID string) ([]model.Source, error) {
	return p.listSources(ctx, `SELECT `+sourceColumns+` FROM sources WHERE claim_id = $1 ORDER BY seq`, claimID)
}

func (p *PostgresStore) ListSources(ctx context.Context) ([]model.Source, error) {
	return p.listSources(ctx, `SELECT `+sourceColumns+` FROM sources ORDER BY id`)
}

func (p *PostgresStore) GetSource(ctx context.Context, id string) (*model.Source, error) {
	s, err := scanSource(p.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "source", id)
	}
	return s, nil
}

func (p *PostgresStore) UpdateSourceQuality(ctx context.Context, sourceID string, quality float64) error {
	tag, err := p.pool.Exec(ctx, `UPDATE sources SET quality = $2 WHERE id = $1`, sourceID, quality)
	if err != nil {
		return fmt.Errorf("postgres: update source quality: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("source %s: %w", sourceID, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) SetClaimStatus(ctx context.Context, status model.ClaimStatus, claimIDs ...string) error {
	if len(claimIDs) == 0 {
		return nil
	}
	tag, err := p.pool.Exec(ctx, `UPDATE claims SET status = $1 WHERE id = ANY($2)`, status, claimIDs)
	if err != nil {
		return fmt.Errorf("postgres: set claim status: %w", err)
	}
	if int(tag.RowsAffected()) != len(claimIDs) {
		return fmt.Errorf("set status on %d claims, %d found: %w", len(claimIDs), tag.RowsAffected(), ErrNotFound)
	}
	return nil
}

// Assets

const assetColumns = `id, entity_kind, entity_id, source_url, storage_url, alt_text, match_score, quality_score,
	copyright_risk, license_status, status, reject_reason, selected, created_at, updated_at`

func scanAsset(row pgx.Row) (*model.MediaAsset, error) {
	var a model.MediaAsset
	err := row.Scan(&a.ID, &a.Entity.Kind, &a.Entity.ID, &a.SourceURL, &a.StorageURL, &a.AltText,
		&a.MatchScore, &a.QualityScore, &a.CopyrightRisk, &a.License, &a.Status, &a.RejectReason,
		&a.Selected, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func listAssets(ctx context.Context, q querier, ref model.EntityRef) ([]model.MediaAsset, error) {
	rows, err := q.Query(ctx,
		`SELECT `+assetColumns+` FROM media_assets WHERE entity_kind = $1 AND entity_id = $2 ORDER BY created_at, id`,
		ref.Kind, ref.ID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list assets: %w", err)
	}
	defer rows.Close()

	var out []model.MediaAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan asset: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AddAsset(ctx context.Context, a *model.MediaAsset) error {
	if a.Status == "" {
		a.Status = model.AssetCandidate
	}
	if a.CopyrightRisk == "" {
		a.CopyrightRisk = model.CopyrightMedium
	}
	if a.License == "" {
		a.License = model.LicenseUnknown
	}
	a.Selected = false

	// Re-adding a known source URL returns the stored asset unchanged
	const query = `
		INSERT INTO media_assets (id, entity_kind, entity_id, source_url, alt_text, match_score, quality_score,
			copyright_risk, license_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (entity_kind, entity_id, source_url) DO UPDATE SET source_url = EXCLUDED.source_url
		RETURNING ` + assetColumns
	stored, err := scanAsset(p.pool.QueryRow(ctx, query, a.ID, a.Entity.Kind, a.Entity.ID, a.SourceURL, a.AltText,
		a.MatchScore, a.QualityScore, a.CopyrightRisk, a.License, a.Status))
	if err != nil {
		return fmt.Errorf("postgres: add asset: %w", err)
	}
	*a = *stored
	return nil
}

func (p *PostgresStore) GetAsset(ctx context.Context, id string) (*model.MediaAsset, error) {
	a, err := scanAsset(p.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM media_assets WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "asset", id)
	}
	return a, nil
}

func (p *PostgresStore) ListAssets(ctx context.Context, ref model.EntityRef) ([]model.MediaAsset, error) {
	return listAssets(ctx, p.pool, ref)
}

func (p *PostgresStore) UpdateScores(ctx context.Context, id string, scores model.AssetScores) error {
	const query = `
		UPDATE media_assets
		SET match_score = $2, quality_score = $3, copyright_risk = $4, license_status = $5,
			status = CASE WHEN status = 'rejected' THEN status ELSE 'scored' END,
			updated_at = now()
		WHERE id = $1`
	tag, err := p.pool.Exec(ctx, query, id, scores.MatchScore, scores.QualityScore, scores.CopyrightRisk, scores.License)
	if err != nil {
		return fmt.Errorf("postgres: update scores: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) SetStorageURL(ctx context.Context, id, storageURL string) error {
	tag, err := p.pool.Exec(ctx, `UPDATE media_assets SET storage_url = $2, updated_at = now() WHERE id = $1`, id, storageURL)
	if err != nil {
		return fmt.Errorf("postgres: set storage url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return nil
}

func (p *PostgresStore) WithEntityLock(ctx context.Context, ref model.EntityRef, fn func(tx AssetTx) error) error {
	return p.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ref.String()); err != nil {
			return fmt.Errorf("postgres: lock %s: %w", ref, err)
		}
		return fn(&pgAssetTx{tx: tx, ref: ref})
	})
}

type pgAssetTx struct {
	tx  pgx.Tx
	ref model.EntityRef
}

func (t *pgAssetTx) Assets(ctx context.Context) ([]model.MediaAsset, error) {
	return listAssets(ctx, t.tx, t.ref)
}

func (t *pgAssetTx) SelectOnly(ctx context.Context, assetID string) error {
	// Clear first: the partial unique index is checked per row
	if err := t.ClearSelection(ctx); err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx,
		`UPDATE media_assets SET selected = true, updated_at = now()
		 WHERE id = $1 AND entity_kind = $2 AND entity_id = $3`,
		assetID, t.ref.Kind, t.ref.ID)
	if err != nil {
		return fmt.Errorf("postgres: select asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s of %s: %w", assetID, t.ref, ErrNotFound)
	}
	return nil
}

func (t *pgAssetTx) ClearSelection(ctx context.Context) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE media_assets SET selected = false, updated_at = now()
		 WHERE entity_kind = $1 AND entity_id = $2 AND selected`,
		t.ref.Kind, t.ref.ID)
	if err != nil {
		return fmt.Errorf("postgres: clear selection: %w", err)
	}
	return nil
}

func (t *pgAssetTx) Reject(ctx context.Context, assetID, reason string) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE media_assets SET status = 'rejected', reject_reason = $4, selected = false, updated_at = now()
		 WHERE id = $1 AND entity_kind = $2 AND entity_id = $3`,
		assetID, t.ref.Kind, t.ref.ID, reason)
	if err != nil {
		return fmt.Errorf("postgres: reject asset: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("asset %s of %s: %w", assetID, t.ref, ErrNotFound)
	}
	return nil
}
