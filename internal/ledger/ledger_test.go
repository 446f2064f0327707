package ledger

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"testing"

	"tradesim/internal/models"
	"tradesim/internal/quote"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore mirrors the repo's transactional semantics in memory:
// checks and writes happen together or not at all.
type memStore struct {
	users    map[int64]*models.User
	txs      []models.Transaction
	nextID   int64
	nextTxID int64
}

func newMemStore() *memStore {
	return &memStore{users: map[int64]*models.User{}}
}

func (m *memStore) addUser(cash string) int64 {
	m.nextID++
	c, _ := decimal.NewFromString(cash)
	m.users[m.nextID] = &models.User{ID: m.nextID, Username: "u", Cash: c}
	return m.nextID
}

func (m *memStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return *u, nil
}

func (m *memStore) held(userID int64, symbol string) int64 {
	var n int64
	for _, t := range m.txs {
		if t.UserID == userID && t.Symbol == symbol {
			n += t.Shares
		}
	}
	return n
}

func (m *memStore) append(userID int64, symbol string, shares int64, price decimal.Decimal) {
	m.nextTxID++
	m.txs = append(m.txs, models.Transaction{
		ID: m.nextTxID, UserID: userID, Symbol: symbol, Shares: shares, Price: price,
	})
}

func (m *memStore) ExecuteBuy(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	u, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	cost := price.Mul(decimal.NewFromInt(shares))
	if cost.GreaterThan(u.Cash) {
		return ErrInsufficientFunds
	}
	m.append(userID, symbol, shares, price)
	u.Cash = u.Cash.Sub(cost)
	return nil
}

func (m *memStore) ExecuteSell(ctx context.Context, userID int64, symbol string, shares int64, price decimal.Decimal) error {
	u, ok := m.users[userID]
	if !ok {
		return sql.ErrNoRows
	}
	if m.held(userID, symbol) < shares {
		return ErrInsufficientShares
	}
	m.append(userID, symbol, -shares, price)
	u.Cash = u.Cash.Add(price.Mul(decimal.NewFromInt(shares)))
	return nil
}

func (m *memStore) GetHoldings(ctx context.Context, userID int64) ([]models.Holding, error) {
	sums := map[string]int64{}
	for _, t := range m.txs {
		if t.UserID == userID {
			sums[t.Symbol] += t.Shares
		}
	}
	res := []models.Holding{}
	for sym, n := range sums {
		if n > 0 {
			res = append(res, models.Holding{Symbol: sym, Shares: n})
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Symbol < res[j].Symbol })
	return res, nil
}

func (m *memStore) GetTransactions(ctx context.Context, userID int64) ([]models.Transaction, error) {
	res := []models.Transaction{}
	for i := len(m.txs) - 1; i >= 0; i-- {
		if m.txs[i].UserID == userID {
			res = append(res, m.txs[i])
		}
	}
	return res, nil
}

type stubQuotes struct {
	prices map[string]decimal.Decimal
	err    error
}

func (s *stubQuotes) Lookup(ctx context.Context, symbol string) (models.Quote, error) {
	if s.err != nil {
		return models.Quote{}, s.err
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	p, ok := s.prices[symbol]
	if !ok {
		return models.Quote{}, quote.ErrSymbolNotFound
	}
	return models.Quote{Name: symbol + " Inc", Symbol: symbol, Price: p}, nil
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func price(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestBuyDebitsCashAndAppendsLedger(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())

	require.NoError(t, svc.Buy(context.Background(), uid, "aapl", 10))

	u, _ := store.GetUser(context.Background(), uid)
	assert.True(t, u.Cash.Equal(price("8500")), "cash = %s", u.Cash)

	txs, _ := store.GetTransactions(context.Background(), uid)
	require.Len(t, txs, 1)
	assert.Equal(t, "AAPL", txs[0].Symbol)
	assert.Equal(t, int64(10), txs[0].Shares)
	assert.True(t, txs[0].Price.Equal(price("150.00")))
}

func TestBuyThenSellScenario(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Buy(ctx, uid, "AAPL", 10))

	quotes.prices["AAPL"] = price("160.00")
	require.NoError(t, svc.Sell(ctx, uid, "AAPL", 5))

	u, _ := store.GetUser(ctx, uid)
	assert.True(t, u.Cash.Equal(price("9300")), "cash = %s", u.Cash)

	holdings, _ := store.GetHoldings(ctx, uid)
	require.Len(t, holdings, 1)
	assert.Equal(t, "AAPL", holdings[0].Symbol)
	assert.Equal(t, int64(5), holdings[0].Shares)
}

func TestBuyInsufficientFundsLeavesStateUnchanged(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("100")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())

	err := svc.Buy(context.Background(), uid, "AAPL", 10)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	u, _ := store.GetUser(context.Background(), uid)
	assert.True(t, u.Cash.Equal(price("100")))
	txs, _ := store.GetTransactions(context.Background(), uid)
	assert.Empty(t, txs)
}

func TestBuyInvalidShareCount(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())

	for _, shares := range []int64{0, -5} {
		err := svc.Buy(context.Background(), uid, "AAPL", shares)
		require.ErrorIs(t, err, ErrInvalidShareCount)
	}
	txs, _ := store.GetTransactions(context.Background(), uid)
	assert.Empty(t, txs)
}

func TestBuyUnknownSymbol(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	svc := New(store, &stubQuotes{prices: map[string]decimal.Decimal{}}, testLogger())

	err := svc.Buy(context.Background(), uid, "NOPE", 1)
	require.ErrorIs(t, err, quote.ErrSymbolNotFound)
}

func TestBuyQuoteUnavailable(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	svc := New(store, &stubQuotes{err: quote.ErrUnavailable}, testLogger())

	err := svc.Buy(context.Background(), uid, "AAPL", 1)
	require.ErrorIs(t, err, quote.ErrUnavailable)

	u, _ := store.GetUser(context.Background(), uid)
	assert.True(t, u.Cash.Equal(price("10000")))
}

func TestSellNeverBoughtSymbol(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())

	err := svc.Sell(context.Background(), uid, "AAPL", 100)
	require.ErrorIs(t, err, ErrInsufficientShares)

	u, _ := store.GetUser(context.Background(), uid)
	assert.True(t, u.Cash.Equal(price("10000")))
	txs, _ := store.GetTransactions(context.Background(), uid)
	assert.Empty(t, txs)
}

func TestSellMoreThanHeld(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Buy(ctx, uid, "AAPL", 3))
	err := svc.Sell(ctx, uid, "AAPL", 4)
	require.ErrorIs(t, err, ErrInsufficientShares)

	u, _ := store.GetUser(ctx, uid)
	assert.True(t, u.Cash.Equal(price("9550")), "cash = %s", u.Cash)
}

func TestPortfolioWithNoTransactions(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	svc := New(store, &stubQuotes{prices: map[string]decimal.Decimal{}}, testLogger())

	p, err := svc.Portfolio(context.Background(), uid)
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.True(t, p.TotalValue.Equal(p.Cash))
}

func TestPortfolioAggregation(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{
		"AAPL": price("150.00"),
		"MSFT": price("300.00"),
	}}
	svc := New(store, quotes, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Buy(ctx, uid, "AAPL", 10))
	require.NoError(t, svc.Buy(ctx, uid, "MSFT", 2))

	p, err := svc.Portfolio(ctx, uid)
	require.NoError(t, err)
	require.Len(t, p.Items, 2)

	// cash 10000 - 1500 - 600 = 7900; value 1500 + 600 = 2100
	assert.True(t, p.Cash.Equal(price("7900")), "cash = %s", p.Cash)
	assert.True(t, p.TotalValue.Equal(price("10000")), "total = %s", p.TotalValue)

	// Reads are idempotent: the same call again yields identical totals.
	p2, err := svc.Portfolio(ctx, uid)
	require.NoError(t, err)
	assert.True(t, p.TotalValue.Equal(p2.TotalValue))
	assert.True(t, p.Cash.Equal(p2.Cash))
}

func TestPortfolioExcludesZeroNetHoldings(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Buy(ctx, uid, "AAPL", 5))
	require.NoError(t, svc.Sell(ctx, uid, "AAPL", 5))

	p, err := svc.Portfolio(ctx, uid)
	require.NoError(t, err)
	assert.Empty(t, p.Items)
	assert.True(t, p.TotalValue.Equal(p.Cash))
}

func TestHistoryNewestFirst(t *testing.T) {
	store := newMemStore()
	uid := store.addUser("10000")
	quotes := &stubQuotes{prices: map[string]decimal.Decimal{"AAPL": price("150.00")}}
	svc := New(store, quotes, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.Buy(ctx, uid, "AAPL", 2))
	require.NoError(t, svc.Sell(ctx, uid, "AAPL", 1))

	txs, err := svc.History(ctx, uid)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, int64(-1), txs[0].Shares)
	assert.Equal(t, int64(2), txs[1].Shares)
}
