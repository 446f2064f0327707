package ledger

import (
	"context"
	"errors"

	"tradesim/internal/models"
	"tradesim/internal/quote"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrInvalidShareCount  = errors.New("ledger: share count must be a positive integer")
	ErrInsufficientFunds  = errors.New("ledger: insufficient funds")
	ErrInsufficientShares = errors.New("ledger: insufficient shares")
)

// Store is the persistence surface the ledger needs. ExecuteBuy and
// ExecuteSell must run their balance check and both writes in a single
// store transaction; two concurrent trades for the same user must not
// both pass the check before either commits.
type Store interface {
	GetUser(ctx context.Context, id int64) (models.User, error)
	ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error
	ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error
	GetHoldings(ctx context.Context, userID int64) ([]models.Holding, error)
	GetTransactions(ctx context.Context, userID int64) ([]models.Transaction, error)
}

type Portfolio struct {
	Cash       decimal.Decimal
	Items      []models.PortfolioItem
	TotalValue decimal.Decimal
}

type Service struct {
	store  Store
	quotes quote.Provider
	log    *logrus.Logger
}

func New(store Store, quotes quote.Provider, log *logrus.Logger) *Service {
	return &Service{store: store, quotes: quotes, log: log}
}

// Buy purchases shares at the current quoted price. The price always
// comes from a fresh lookup, never from the caller.
func (s *Service) Buy(ctx context.Context, userID int64, symbol string, shares int64) error {
	if shares <= 0 {
		return ErrInvalidShareCount
	}
	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return err
	}
	if err := s.store.ExecuteBuy(ctx, userID, q.Symbol, shares, q.Price); err != nil {
		return err
	}
	s.log.Infof("user %d bought %d %s at %s", userID, shares, q.Symbol, q.Price.StringFixed(4))
	return nil
}

// Sell disposes of shares at the current quoted price. A symbol the
// user never bought simply counts as a holding of zero.
func (s *Service) Sell(ctx context.Context, userID int64, symbol string, shares int64) error {
	if shares <= 0 {
		return ErrInvalidShareCount
	}
	q, err := s.quotes.Lookup(ctx, symbol)
	if err != nil {
		return err
	}
	if err := s.store.ExecuteSell(ctx, userID, q.Symbol, shares, q.Price); err != nil {
		return err
	}
	s.log.Infof("user %d sold %d %s at %s", userID, shares, q.Symbol, q.Price.StringFixed(4))
	return nil
}

// Portfolio aggregates the user's nonzero holdings at current prices.
// A user with no transactions has a total value equal to their cash.
func (s *Service) Portfolio(ctx context.Context, userID int64) (Portfolio, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return Portfolio{}, err
	}
	holdings, err := s.store.GetHoldings(ctx, userID)
	if err != nil {
		return Portfolio{}, err
	}

	items := []models.PortfolioItem{}
	total := user.Cash
	for _, h := range holdings {
		q, err := s.quotes.Lookup(ctx, h.Symbol)
		if err != nil {
			return Portfolio{}, err
		}
		value := q.Price.Mul(decimal.NewFromInt(h.Shares))
		items = append(items, models.PortfolioItem{
			Symbol:       h.Symbol,
			Name:         q.Name,
			Shares:       h.Shares,
			CurrentPrice: q.Price,
			MarketValue:  value,
		})
		total = total.Add(value)
	}
	return Portfolio{Cash: user.Cash, Items: items, TotalValue: total}, nil
}

func (s *Service) Holdings(ctx context.Context, userID int64) ([]models.Holding, error) {
	return s.store.GetHoldings(ctx, userID)
}

// History returns the user's full ledger, newest first.
func (s *Service) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	return s.store.GetTransactions(ctx, userID)
}

func (s *Service) Quote(ctx context.Context, symbol string) (models.Quote, error) {
	return s.quotes.Lookup(ctx, symbol)
}
