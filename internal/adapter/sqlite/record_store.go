// Package sqlite implements the record store over a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"

	"meta-ads/internal/core/domain"
	"meta-ads/internal/pkg/errs"
)

// RecordStore implements port.RecordStore over database/sql with the
// modernc driver. Amounts are stored as decimal strings.
type RecordStore struct {
	db *sql.DB
}

// NewRecordStore wraps a handle opened by db.NewSQLite. Close closes it.
func NewRecordStore(db *sql.DB) *RecordStore {
	return &RecordStore{db: db}
}

const (
	creativeColumns  = `id, name, content, nft_reference, owner`
	adSpotColumns    = `id, owner, price, name, publisher_earn, show_kind`
	agreementColumns = `id, spot_id, creative_id, advertiser_cost, start_time, end_time, settled,
        advertiser, publisher, spot_name, publisher_earn, show_kind, platform, platform_fee, status`
	transferColumns = `transfer_key, agreement_id, recipient, amount, status, attempts, created_at, sent_at`
)

func (s *RecordStore) Initialize(ctx context.Context, state domain.ContractState) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO contract_state (id, platform, initialized_at) VALUES (1, ?, ?) ON CONFLICT DO NOTHING`,
		state.Platform, state.InitializedAt)
	if err != nil {
		return errs.Wrap(err, "insert contract state")
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return domain.ErrAlreadyInitialized
	}
	return nil
}

func (s *RecordStore) ContractState(ctx context.Context) (domain.ContractState, error) {
	var st domain.ContractState
	err := s.db.QueryRowContext(ctx, `SELECT platform, initialized_at FROM contract_state WHERE id = 1`).
		Scan(&st.Platform, &st.InitializedAt)
	if errs.Is(err, sql.ErrNoRows) {
		return domain.ContractState{}, domain.ErrContractNotFound
	}
	if err != nil {
		return domain.ContractState{}, errs.Wrap(err, "select contract state")
	}
	return st, nil
}

func (s *RecordStore) InsertCreative(ctx context.Context, c domain.Creative) (domain.Creative, error) {
	err := s.insert(ctx, domain.KindCreative, &c.ID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `INSERT INTO creatives (`+creativeColumns+`) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`, c.ID, c.Name, c.Content, c.NFTReference, c.Owner)
	})
	if err != nil {
		return domain.Creative{}, err
	}
	return c.Clone(), nil
}

func (s *RecordStore) GetCreative(ctx context.Context, id int64) (domain.Creative, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+creativeColumns+` FROM creatives WHERE id = ?`, id)
	c, err := scanCreative(row)
	return c, notFound(err, domain.ErrCreativeNotFound, id)
}

func (s *RecordStore) ListCreatives(ctx context.Context) (map[int64]domain.Creative, error) {
	return list(ctx, s.db, `SELECT `+creativeColumns+` FROM creatives`, scanCreative,
		func(c domain.Creative) int64 { return c.ID })
}

func (s *RecordStore) InsertAdSpot(ctx context.Context, sp domain.AdSpot) (domain.AdSpot, error) {
	err := s.insert(ctx, domain.KindAdSpot, &sp.ID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `INSERT INTO adspots (`+adSpotColumns+`) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO NOTHING`, sp.ID, sp.Owner, sp.Price.String(), sp.Name, sp.PublisherEarn, sp.ShowKind)
	})
	if err != nil {
		return domain.AdSpot{}, err
	}
	return sp.Clone(), nil
}

func (s *RecordStore) GetAdSpot(ctx context.Context, id int64) (domain.AdSpot, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+adSpotColumns+` FROM adspots WHERE id = ?`, id)
	sp, err := scanAdSpot(row)
	return sp, notFound(err, domain.ErrAdSpotNotFound, id)
}

func (s *RecordStore) ListAdSpots(ctx context.Context) (map[int64]domain.AdSpot, error) {
	return list(ctx, s.db, `SELECT `+adSpotColumns+` FROM adspots`, scanAdSpot,
		func(sp domain.AdSpot) int64 { return sp.ID })
}

func (s *RecordStore) InsertAgreement(ctx context.Context, a domain.Agreement) (domain.Agreement, error) {
	err := s.insert(ctx, domain.KindAgreement, &a.ID, func(tx *sql.Tx) (sql.Result, error) {
		return tx.ExecContext(ctx, `INSERT INTO agreements (`+agreementColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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

func (s *RecordStore) GetAgreement(ctx context.Context, id int64) (domain.Agreement, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE id = ?`, id)
	a, err := scanAgreement(row)
	return a, notFound(err, domain.ErrAgreementNotFound, id)
}

func (s *RecordStore) ListAgreements(ctx context.Context) (map[int64]domain.Agreement, error) {
	return list(ctx, s.db, `SELECT `+agreementColumns+` FROM agreements`, scanAgreement,
		func(a domain.Agreement) int64 { return a.ID })
}

// CommitSettlement flips the settled flag only if it is still false and
// writes the outbox row in the same transaction.
func (s *RecordStore) CommitSettlement(ctx context.Context, settled domain.Agreement, t domain.Transfer) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE agreements SET settled = 1, status = ? WHERE id = ? AND settled = 0`,
			string(settled.Status), settled.ID)
		if err != nil {
			return errs.Wrap(err, "update agreement")
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			var exists bool
			if err = tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM agreements WHERE id = ?)`, settled.ID).Scan(&exists); err != nil {
				return errs.Wrap(err, "check agreement")
			}
			if !exists {
				return errs.Wrapf(domain.ErrAgreementNotFound, "id %d", settled.ID)
			}
			return errs.Wrapf(domain.ErrAlreadySettled, "agreement %d", settled.ID)
		}

		res, err = tx.ExecContext(ctx, `INSERT INTO transfers (`+transferColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, NULL)
ON CONFLICT DO NOTHING`,
			t.Key, t.AgreementID, t.Recipient, t.Amount.String(), string(t.Status), t.Attempts, t.CreatedAt)
		if err != nil {
			return errs.Wrap(err, "insert transfer")
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return errs.Wrapf(domain.ErrAlreadySettled, "transfer %s exists", t.Key)
		}
		return nil
	})
}

// DueAgreements is served by agreements_unsettled_end_idx.
func (s *RecordStore) DueAgreements(ctx context.Context, now int64, limit int) ([]domain.Agreement, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+agreementColumns+` FROM agreements
WHERE settled = 0 AND end_time <= ? ORDER BY end_time, id LIMIT ?`, now, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list due agreements")
	}
	defer rows.Close()

	var out []domain.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan agreement")
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *RecordStore) PendingTransfers(ctx context.Context, limit int) ([]domain.Transfer, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+transferColumns+` FROM transfers
WHERE status = ? ORDER BY created_at, agreement_id LIMIT ?`, string(domain.TransferPending), limit)
	if err != nil {
		return nil, errs.Wrap(err, "list pending transfers")
	}
	defer rows.Close()

	var out []domain.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan transfer")
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *RecordStore) GetTransfer(ctx context.Context, key string) (domain.Transfer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE transfer_key = ?`, key)
	t, err := scanTransfer(row)
	if errs.Is(err, sql.ErrNoRows) {
		return domain.Transfer{}, errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	if err != nil {
		return domain.Transfer{}, errs.Wrapf(err, "select transfer %s", key)
	}
	return t, nil
}

func (s *RecordStore) MarkTransferSent(ctx context.Context, key string, at int64) error {
	return s.updateTransfer(ctx, key, `UPDATE transfers SET status = ?, sent_at = ? WHERE transfer_key = ?`,
		string(domain.TransferSent), at, key)
}

func (s *RecordStore) RecordTransferAttempt(ctx context.Context, key string) error {
	return s.updateTransfer(ctx, key, `UPDATE transfers SET attempts = attempts + 1 WHERE transfer_key = ?`, key)
}

func (s *RecordStore) Close() error {
	return s.db.Close()
}

func (s *RecordStore) updateTransfer(ctx context.Context, key, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errs.Wrapf(err, "update transfer %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errs.Wrapf(domain.ErrNotFound, "transfer %s", key)
	}
	return nil
}

// insert claims the id and runs exec in one transaction. See the postgres
// store for the counter rules.
func (s *RecordStore) insert(ctx context.Context, kind domain.Kind, id *int64, exec func(tx *sql.Tx) (sql.Result, error)) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		if *id == 0 {
			err = tx.QueryRowContext(ctx, `UPDATE id_counters SET value = value + 1 WHERE kind = ? RETURNING value`, string(kind)).Scan(id)
		} else {
			_, err = tx.ExecContext(ctx, `UPDATE id_counters SET value = MAX(value, ?) WHERE kind = ?`, *id, string(kind))
		}
		if err != nil {
			return errs.Wrapf(err, "claim %s id", kind)
		}

		res, err := exec(tx)
		if err != nil {
			return errs.Wrapf(err, "insert %s", kind)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errs.Wrapf(domain.ErrConflict, "%s %d", kind, *id)
		}
		return nil
	})
}

func (s *RecordStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
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
	var sp domain.AdSpot
	err := row.Scan(&sp.ID, &sp.Owner, &sp.Price, &sp.Name, &sp.PublisherEarn, &sp.ShowKind)
	return sp, err
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
	if errs.Is(err, sql.ErrNoRows) {
		return errs.Wrapf(kind, "id %d", id)
	}
	if err != nil {
		return errs.Wrapf(err, "select id %d", id)
	}
	return nil
}

func list[T any](ctx context.Context, db *sql.DB, query string, scan func(rowScanner) (T, error), id func(T) int64) (map[int64]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, errs.Wrap(err, "list records")
	}
	defer rows.Close()

	out := make(map[int64]T)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, errs.Wrap(err, "scan record")
		}
		out[id(v)] = v
	}
	return out, rows.Err()
}
