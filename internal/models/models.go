package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID           int64           `db:"id" json:"id"`
	Username     string          `db:"username" json:"username"`
	PasswordHash string          `db:"password_hash" json:"-"`
	Cash         decimal.Decimal `db:"cash" json:"cash"`
}

// Transaction is one append-only ledger row. Shares is signed:
// positive for a buy, negative for a sell.
type Transaction struct {
	ID           int64           `db:"id" json:"id"`
	UserID       int64           `db:"user_id" json:"user_id"`
	Symbol       string          `db:"symbol" json:"symbol"`
	Shares       int64           `db:"shares" json:"shares"`
	Price        decimal.Decimal `db:"price" json:"price"`
	TransactedAt time.Time       `db:"transacted_at" json:"transacted_at"`
}

// Holding is the net position for one symbol, derived from the ledger.
type Holding struct {
	Symbol string `db:"symbol" json:"symbol"`
	Shares int64  `db:"shares" json:"shares"`
}

type Quote struct {
	Name   string          `json:"name"`
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

type PortfolioItem struct {
	Symbol       string          `json:"symbol"`
	Name         string          `json:"name"`
	Shares       int64           `json:"shares"`
	CurrentPrice decimal.Decimal `json:"current_price"`
	MarketValue  decimal.Decimal `json:"market_value"`
}
