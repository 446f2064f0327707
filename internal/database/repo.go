package database

import (
	"context"

	"tradesim/internal/auth"
	"tradesim/internal/ledger"
	"tradesim/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// StartingCash is credited to every newly registered user.
var StartingCash = decimal.NewFromInt(10000)

type Repo struct {
	db  *sqlx.DB
	log *logrus.Logger
}

func New(db *sqlx.DB, log *logrus.Logger) *Repo {
	return &Repo{db: db, log: log}
}

func (r *Repo) CreateUser(ctx context.Context, username, passwordHash string) (models.User, error) {
	var u models.User
	q := `INSERT INTO users (username, password_hash, cash) VALUES ($1, $2, $3::numeric) RETURNING id, username, password_hash, cash`
	if err := r.db.GetContext(ctx, &u, q, username, passwordHash, StartingCash.String()); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return models.User{}, auth.ErrUsernameTaken
		}
		return models.User{}, err
	}
	return u, nil
}

func (r *Repo) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, password_hash, cash FROM users WHERE id = $1`, id)
	return u, err
}

func (r *Repo) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	var u models.User
	err := r.db.GetContext(ctx, &u, `SELECT id, username, password_hash, cash FROM users WHERE username = $1`, username)
	return u, err
}

// ExecuteBuy runs the affordability check, the ledger insert and the
// cash debit in one transaction. The user row is locked first so two
// concurrent trades cannot both pass the check against the same cash.
func (r *Repo) ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cash decimal.Decimal
	if err := tx.GetContext(ctx, &cash, `SELECT cash FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return err
	}

	cost := price.Mul(decimal.NewFromInt(shares))
	if cost.GreaterThan(cash) {
		return ledger.ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (user_id, symbol, shares, price) VALUES ($1, $2, $3, $4::numeric)`, userID, symbol, shares, price.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET cash = cash - $1::numeric WHERE id = $2`, cost.String(), userID); err != nil {
		return err
	}
	return tx.Commit()
}

// ExecuteSell checks the net holding under the same user-row lock, then
// appends the negative ledger row and credits the proceeds.
func (r *Repo) ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var cash decimal.Decimal
	if err := tx.GetContext(ctx, &cash, `SELECT cash FROM users WHERE id = $1 FOR UPDATE`, userID); err != nil {
		return err
	}

	var held int64
	if err := tx.GetContext(ctx, &held, `SELECT COALESCE(SUM(shares), 0)::bigint FROM transactions WHERE user_id = $1 AND symbol = $2`, userID, symbol); err != nil {
		return err
	}
	if held < shares {
		return ledger.ErrInsufficientShares
	}

	proceeds := price.Mul(decimal.NewFromInt(shares))
	if _, err := tx.ExecContext(ctx, `INSERT INTO transactions (user_id, symbol, shares, price) VALUES ($1, $2, $3, $4::numeric)`, userID, symbol, -shares, price.String()); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE users SET cash = cash + $1::numeric WHERE id = $2`, proceeds.String(), userID); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *Repo) GetHoldings(ctx context.Context, userID int64) ([]models.Holding, error) {
	q := `SELECT symbol, SUM(shares)::bigint AS shares FROM transactions WHERE user_id = $1 GROUP BY symbol HAVING SUM(shares) > 0 ORDER BY symbol`
	rows, err := r.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Holding{}
	for rows.Next() {
		var h models.Holding
		if err := rows.StructScan(&h); err != nil {
			r.log.Warnf("scan holding failed: %v", err)
			continue
		}
		res = append(res, h)
	}
	return res, rows.Err()
}

func (r *Repo) GetTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	q := `SELECT id, user_id, symbol, shares, price, transacted_at FROM transactions WHERE user_id = $1 ORDER BY transacted_at DESC, id DESC`
	rows, err := r.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.StructScan(&t); err != nil {
			r.log.Warnf("scan transaction failed: %v", err)
			continue
		}
		res = append(res, t)
	}
	return res, rows.Err()
}
