package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

// RecordStore implements port.RecordStore using pgxpool for PostgreSQL.
// Uniqueness is decided by primary keys; id counters are row locked inside
// the inserting transaction.
type RecordStore struct {
	pool *pgxpool.Pool
}

// NewRecordStore returns a new store over an already migrated database.
func NewRecordStore(pool *pgxpool.Pool) *RecordStore {
	return &RecordStore{pool: pool}
}

// Amounts travel as text so no precision is lost on the way to NUMERIC.
const (
	creativeColumns  = `id, name, content, nft_reference, owner`
	adSpotColumns    = `id, owner, price::text, name, publisher_earn, show_kind`
	agreementColumns = `id, spot_id, creative_id, advertiser_cost::text, start_time, end_time, settled,
        advertiser, publisher, spot_name, publisher_earn, show_kind, platform, platform_fee::text, status`
	transferColumns = `transfer_key, agreement_id, recipient, amount::text, status, attempts, created_at, sent_at`
)

func (r *RecordStore) Initialize(ctx context.Context, state domain.ContractState) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO contract_state (id, platform, initialized_at) VALUES (1, $1, $2) ON CONFLICT DO NOTHING`,
		state.Platform, state.InitializedAt)
	if err != nil {
		return errs.Wrap(err, "insert contract state")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

func (r *RecordStore) ContractState(ctx context.Context) (domain.ContractState, error) {
	var st domain.ContractState
	err := r.pool.QueryRow(ctx, `SELECT platform, initialized_at FROM contract_state WHERE id = 1`).
		Scan(&st.Platform, &st.InitializedAt)
	if errs.Is(err, pgx.ErrNoRows) {
		return domain.ContractState{}, domain.ErrContractNotFound
	}
	if err != nil {
		return domain.ContractState{}, errs.Wrap(err, "select contract state")
	}
	return st, nil
}

func (r *RecordStore) InsertCreative(ctx context.Context, c domain.Creative) (domain.Creative, error) {
	err := r.insert(ctx, domain.KindCreative, &c.ID, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, `INSERT INTO creatives (`+creativeColumns+`) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`, c.ID, c.Name, c.Content, c.NFTReference, c.Owner)
	})
	if err != nil {
		return domain.Creative{}, err
	}
	return c.Clone(), nil
}

func (r *RecordStore) GetCreative(ctx context.Context, id int64) (domain.Creative, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+creativeColumns+` FROM creatives WHERE id = $1`, id)
	c, err := scanCreative(row)
	return c, notFound(err, domain.ErrCreativeNotFound, id)
}

func (r *RecordStore) ListCreatives(ctx context.Context) (map[int64]domain.Creative, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+creativeColumns+` FROM creatives`)
	if err != nil {
		return nil, errs.Wrap(err, "list creatives")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Creative, error) {
		return scanCreative(row)
	})
	if err != nil {
		return nil, errs.Wrap(err, "scan creatives")
	}
	return byID(list, func(c domain.Creative) int64 { return c.ID }), nil
}

func (r *RecordStore) InsertAdSpot(ctx context.Context, s domain.AdSpot) (domain.AdSpot, error) {
	err := r.insert(ctx, domain.KindAdSpot, &s.ID, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, `INSERT INTO adspots (id, owner, price, name, publisher_earn, show_kind)
VALUES ($1, $2, $3::text::numeric, $4, $5, $6)
ON CONFLICT (id) DO NOTHING`, s.ID, s.Owner, s.Price.String(), s.Name, s.PublisherEarn, s.ShowKind)
	})
	if err != nil {
		return domain.AdSpot{}, err
	}
	return s.Clone(), nil
}

func (r *RecordStore) GetAdSpot(ctx context.Context, id int64) (domain.AdSpot, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+adSpotColumns+` FROM adspots WHERE id = $1`, id)
	s, err := scanAdSpot(row)
	return s, notFound(err, domain.ErrAdSpotNotFound, id)
}

func (r *RecordStore) ListAdSpots(ctx context.Context) (map[int64]domain.AdSpot, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+adSpotColumns+` FROM adspots`)
	if err != nil {
		return nil, errs.Wrap(err, "list ad spots")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.AdSpot, error) {
		return scanAdSpot(row)
	})
	if err != nil {
		return nil, errs.Wrap(err, "scan ad spots")
	}
	return byID(list, func(s domain.AdSpot) int64 { return s.ID }), nil
}

func (r *RecordStore) InsertAgreement(ctx context.Context, a domain.Agreement) (domain.Agreement, error) {
	err := r.insert(ctx, domain.KindAgreement, &a.ID, func(tx pgx.Tx) (pgconn.CommandTag, error) {
		return tx.Exec(ctx, `INSERT INTO agreements (id, spot_id, creative_id, advertiser_cost, start_time, end_time,
        settled, advertiser, publisher, spot_name, publisher_earn, show_kind, platform, platform_fee, status)
VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14::text::numeric, $15)
ON CONFLICT (id) DO NOTHING`,
			a.ID, a.SpotID, a.CreativeID, a.AdvertiserCost.String(), a.StartTime, a.EndTime,
			a.Settled, a.Advertiser, a.Publisher, a.SpotName, a.PublisherEarn, a.ShowKind,
			a.Platform, a.PlatformFee.String(), string(a.Status))
	})
	if err != nil {
		return domain.Agreement{}, err
	}
	return a.Clone(), nil
}

func (r *RecordStore) GetAgreement(ctx context.Context, id int64) (domain.Agreement, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE id = $1`, id)
	a, err := scanAgreement(row)
	return a, notFound(err, domain.ErrAgreementNotFound, id)
}

func (r *RecordStore) ListAgreements(ctx context.Context) (map[int64]domain.Agreement, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+agreementColumns+` FROM agreements`)
	if err != nil {
		return nil, errs.Wrap(err, "list agreements")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Agreement, error) {
		return scanAgreement(row)
	})
	if err != nil {
		return nil, errs.Wrap(err, "scan agreements")
	}
	return byID(list, func(a domain.Agreement) int64 { return a.ID }), nil
}

// CommitSettlement flips the settled flag only if it is still false and
// writes the outbox row in the same transaction.
func (r *RecordStore) CommitSettlement(ctx context.Context, settled domain.Agreement, t domain.Transfer) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Wrap(err, "begin settlement")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	tag, err := tx.Exec(ctx, `UPDATE agreements SET settled = TRUE, status = $2 WHERE id = $1 AND NOT settled`,
		settled.ID, string(settled.Status))
	if err != nil {
		return errs.Wrap(err, "update agreement")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM agreements WHERE id = $1)`, settled.ID).Scan(&exists); err != nil {
			return errs.Wrap(err, "check agreement")
		}
		if !exists {
			return errs.Wrapf(domain.ErrAgreementNotFound, "id %d", settled.ID)
		}
		return errs.Wrapf(domain.ErrAlreadySettled, "agreement %d", settled.ID)
	}

	tag, err = tx.Exec(ctx, `INSERT INTO transfers (transfer_key, agreement_id, recipient, amount, status, attempts, created_at)
VALUES ($1, $2, $3, $4::text::numeric, $5, $6, $7)
ON CONFLICT DO NOTHING`,
		t.Key, t.AgreementID, t.Recipient, t.Amount.String(), string(t.Status), t.Attempts, t.CreatedAt)
	if err != nil {
		return wrapDB(err, "insert transfer")
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(domain.ErrAlreadySettled, "transfer %s exists", t.Key)
	}
	return nil
}

// DueAgreements is served by agreements_unsettled_end_idx.
func (r *RecordStore) DueAgreements(ctx context.Context, now int64, limit int) ([]domain.Agreement, error) {
	query := `SELECT ` + agreementColumns + ` FROM agreements WHERE NOT settled AND end_time <= $1 ORDER BY end_time, id`
	args := []any{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list due agreements")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Agreement, error) {
		return scanAgreement(row)
	})
	if err != nil {
		return nil, errs.Wrap(err, "scan agreements")
	}
	return list, nil
}

func (r *RecordStore) PendingTransfers(ctx context.Context, limit int) ([]domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE status = $1 ORDER BY created_at, agreement_id`
	args := []any{string(domain.TransferPending)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(err, "list pending transfers")
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Transfer, error) {
		return scanTransfer(row)
	})
	if err != nil {
		return nil, errs.Wrap(err, "scan transfers")
	}
	return list, nil
}

func (r *RecordStore) GetTransfer(ctx context.Context, key string) (domain.Transfer, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE transfer_key = $1`, key)
	t, err := scanTransfer(row)
	if errs.Is(err, pgx.ErrNoRows) {
		return domain.Transfer{}, errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	if err != nil {
		return domain.Transfer{}, errs.Wrapf(err, "select transfer %s", key)
	}
	return t, nil
}

func (r *RecordStore) MarkTransferSent(ctx context.Context, key string, at int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE transfers SET status = $2, sent_at = $3 WHERE transfer_key = $1`,
		key, string(domain.TransferSent), at)
	if err != nil {
		return errs.Wrapf(err, "mark transfer %s", key)
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	return nil
}

func (r *RecordStore) RecordTransferAttempt(ctx context.Context, key string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE transfers SET attempts = attempts + 1 WHERE transfer_key = $1`, key)
	if err != nil {
		return errs.Wrapf(err, "count transfer attempt %s", key)
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	return nil
}

// Close is a no-op; the pool belongs to the caller.
func (r *RecordStore) Close() error { return nil }

// insert runs exec inside a transaction that first claims the id. A zero
// *id is replaced with the next counter value; an explicit id raises the
// counter to at least that value. A conflict rolls the counter back too.
func (r *RecordStore) insert(ctx context.Context, kind domain.Kind, id *int64, exec func(tx pgx.Tx) (pgconn.CommandTag, error)) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return errs.Wrapf(err, "begin %s insert", kind)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	if *id == 0 {
		err = tx.QueryRow(ctx, `UPDATE id_counters SET value = value + 1 WHERE kind = $1 RETURNING value`, string(kind)).Scan(id)
	} else {
		_, err = tx.Exec(ctx, `UPDATE id_counters SET value = GREATEST(value, $2) WHERE kind = $1`, string(kind), *id)
	}
	if err != nil {
		return errs.Wrapf(err, "claim %s id", kind)
	}

	tag, err := exec(tx)
	if err != nil {
		return wrapDB(err, "insert %s", kind)
	}
	if tag.RowsAffected() == 0 {
		return errs.Wrapf(domain.ErrConflict, "%s %d", kind, *id)
	}
	return nil
}

// wrapDB wraps a driver error and marks the SQLSTATEs a client can cause
// with the matching domain kind.
func wrapDB(err error, format string, args ...any) error {
	var pgErr *pgconn.PgError
	if errs.As(err, &pgErr) {
		switch pgErr.Code {
		case "22003": // numeric_value_out_of_range
			err = errs.Mark(err, domain.ErrInvalidInput)
		case "23505": // unique_violation
			err = errs.Mark(err, domain.ErrConflict)
		}
	}
	return errs.Wrapf(err, format, args...)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCreative(row rowScanner) (domain.Creative, error) {
	var c domain.Creative
	err := row.Scan(&c.ID, &c.Name, &c.Content, &c.NFTReference, &c.Owner)
	return c, err
}

func scanAdSpot(row rowScanner) (domain.AdSpot, error) {
	var s domain.AdSpot
	err := row.Scan(&s.ID, &s.Owner, &s.Price, &s.Name, &s.PublisherEarn, &s.ShowKind)
	return s, err
}

func scanAgreement(row rowScanner) (domain.Agreement, error) {
	var (
		a      domain.Agreement
		status string
	)
	err := row.Scan(
		&a.ID,
		&a.SpotID,
		&a.CreativeID,
		&a.AdvertiserCost,
		&a.StartTime,
		&a.EndTime,
		&a.Settled,
		&a.Advertiser,
		&a.Publisher,
		&a.SpotName,
		&a.PublisherEarn,
		&a.ShowKind,
		&a.Platform,
		&a.PlatformFee,
		&status,
	)
	a.Status = domain.AgreementStatus(status)
	return a, err
}

func scanTransfer(row rowScanner) (domain.Transfer, error) {
	var (
		t      domain.Transfer
		status string
	)
	err := row.Scan(&t.Key, &t.AgreementID, &t.Recipient, &t.Amount, &status, &t.Attempts, &t.CreatedAt, &t.SentAt)
	t.Status = domain.TransferStatus(status)
	return t, err
}

func notFound(err error, kind error, id int64) error {
	if errs.Is(err, pgx.ErrNoRows) {
		return errs.Wrapf(kind, "id %d", id)
	}
	if err != nil {
		return errs.Wrapf(err, "select id %d", id)
	}
	return nil
}

func byID[T any](list []T, id func(T) int64) map[int64]T {
	out := make(map[int64]T, len(list))
	for _, v := range list {
		out[id(v)] = v
	}
	return out
}
