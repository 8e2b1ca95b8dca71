package pg

import (
	"context"

	"bybit_bot/internal/models"
	"bybit_bot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// Store — постгрес-бэкенд снапшота. Торговое состояние лежит jsonb-блобом,
// цели — плоской таблицей (user_id, symbol, price). Upsert даёт атомарный
// replace-on-write на уровне строки.
type Store struct {
	db *db.PgTxManager
}

func NewStore(txm *db.PgTxManager) *Store {
	return &Store{db: txm}
}

// EnsureSchema создаёт таблицы при старте модуля.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS bot_trading_state (
				user_id    BIGINT PRIMARY KEY,
				state      JSONB NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
			)`)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctxTx, `
			CREATE TABLE IF NOT EXISTS bot_targets (
				user_id    BIGINT NOT NULL,
				symbol     TEXT NOT NULL,
				price      DOUBLE PRECISION NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (user_id, symbol)
			)`)
		return err
	})
}

func (s *Store) SaveTradingState(ctx context.Context, userID int64, st *models.UserTradingState) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.SaveTradingState")
		}
	}()

	data, err := sonic.Marshal(st)
	if err != nil {
		return err
	}
	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO bot_trading_state (user_id, state, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (user_id) DO UPDATE SET state = $2, updated_at = now()`,
			userID, data)
		return err
	})
}

func (s *Store) TradingState(ctx context.Context, userID int64) (st *models.UserTradingState, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.TradingState")
		}
	}()

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		var data []byte
		row := tx.QueryRow(ctxTx, `SELECT state FROM bot_trading_state WHERE user_id = $1`, userID)
		if err := row.Scan(&data); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		st = &models.UserTradingState{}
		return sonic.Unmarshal(data, st)
	})
	return st, err
}

func (s *Store) TradingStates(ctx context.Context) (out map[int64]*models.UserTradingState, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.TradingStates")
		}
	}()

	out = make(map[int64]*models.UserTradingState)
	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `SELECT user_id, state FROM bot_trading_state`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var data []byte
			if err := rows.Scan(&id, &data); err != nil {
				return err
			}
			st := &models.UserTradingState{}
			if err := sonic.Unmarshal(data, st); err != nil {
				return err
			}
			out[id] = st
		}
		return rows.Err()
	})
	return out, err
}

func (s *Store) SaveTarget(ctx context.Context, userID int64, symbol string, price float64) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.SaveTarget")
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			INSERT INTO bot_targets (user_id, symbol, price, updated_at)
			VALUES ($1, $2, $3, now())
			ON CONFLICT (user_id, symbol) DO UPDATE SET price = $3, updated_at = now()`,
			userID, symbol, price)
		return err
	})
}

func (s *Store) Target(ctx context.Context, userID int64, symbol string) (price float64, ok bool, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.Target")
		}
	}()

	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctxTx, `SELECT price FROM bot_targets WHERE user_id = $1 AND symbol = $2`, userID, symbol)
		if err := row.Scan(&price); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		ok = true
		return nil
	})
	return price, ok, err
}

func (s *Store) DeleteTarget(ctx context.Context, userID int64, symbol string) (err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.DeleteTarget")
		}
	}()

	return s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `DELETE FROM bot_targets WHERE user_id = $1 AND symbol = $2`, userID, symbol)
		return err
	})
}

func (s *Store) Targets(ctx context.Context) (out map[int64]map[string]float64, err error) {
	defer func() {
		if err != nil {
			err = errors.Wrap(err, "pg.Targets")
		}
	}()

	out = make(map[int64]map[string]float64)
	err = s.db.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctxTx, `SELECT user_id, symbol, price FROM bot_targets`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var id int64
			var symbol string
			var price float64
			if err := rows.Scan(&id, &symbol, &price); err != nil {
				return err
			}
			if out[id] == nil {
				out[id] = make(map[string]float64)
			}
			out[id][symbol] = price
		}
		return rows.Err()
	})
	return out, err
}
