package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"tradesim/internal/auth"
	"tradesim/internal/ledger"
	"tradesim/internal/quote"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/sessions"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	ledger   *ledger.Service
	auth     *auth.Service
	sessions sessions.Store
	log      *logrus.Logger
}

func New(l *ledger.Service, a *auth.Service, store sessions.Store, log *logrus.Logger) *Handler {
	return &Handler{ledger: l, auth: a, sessions: store, log: log}
}

func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.GET("/register", h.RegisterPage)
	r.POST("/register", h.RegisterUser)
	r.GET("/login", h.LoginPage)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)

	authed := r.Group("/", h.RequireUser())
	authed.GET("/", h.Index)
	authed.GET("/quote", h.QuotePage)
	authed.POST("/quote", h.Quote)
	authed.GET("/buy", h.BuyPage)
	authed.POST("/buy", h.Buy)
	authed.GET("/sell", h.SellPage)
	authed.POST("/sell", h.Sell)
	authed.GET("/history", h.History)

	r.NoRoute(func(c *gin.Context) {
		h.apology(c, http.StatusNotFound, "not found")
	})
}

// usd formats a stored numeric amount for display. Values are never
// persisted in this form.
func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func (h *Handler) apology(c *gin.Context, status int, msg string) {
	c.HTML(status, "apology.html", gin.H{"Code": status, "Message": msg})
	c.Abort()
}

// renderError maps a domain error onto the apology page. Everything in
// the taxonomy is a 403 except unknown routes (404) and the fallback 500.
func (h *Handler) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidShareCount):
		h.apology(c, http.StatusForbidden, "invalid number of shares")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		h.apology(c, http.StatusForbidden, "can't afford")
	case errors.Is(err, ledger.ErrInsufficientShares):
		h.apology(c, http.StatusForbidden, "not enough shares")
	case errors.Is(err, quote.ErrSymbolNotFound):
		h.apology(c, http.StatusForbidden, "invalid symbol")
	case errors.Is(err, quote.ErrUnavailable):
		h.apology(c, http.StatusForbidden, "quote service unavailable")
	case errors.Is(err, auth.ErrUsernameTaken):
		h.apology(c, http.StatusForbidden, "username already exists")
	case errors.Is(err, auth.ErrPasswordPolicy):
		h.apology(c, http.StatusForbidden, "password must be 6-20 characters with a lowercase letter, an uppercase letter, a digit and a symbol")
	case errors.Is(err, auth.ErrPasswordMismatch):
		h.apology(c, http.StatusForbidden, "passwords must match")
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.apology(c, http.StatusForbidden, "invalid username and/or password")
	default:
		h.log.Errorf("request failed: %v", err)
		h.apology(c, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) Index(c *gin.Context) {
	p, err := h.ledger.Portfolio(c.Request.Context(), userID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	rows := make([]gin.H, 0, len(p.Items))
	for _, it := range p.Items {
		rows = append(rows, gin.H{
			"Symbol": it.Symbol,
			"Name":   it.Name,
			"Shares": it.Shares,
			"Price":  usd(it.CurrentPrice),
			"Value":  usd(it.MarketValue),
		})
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Rows":  rows,
		"Cash":  usd(p.Cash),
		"Total": usd(p.TotalValue),
	})
}

func (h *Handler) QuotePage(c *gin.Context) {
	c.HTML(http.StatusOK, "quote.html", nil)
}

func (h *Handler) Quote(c *gin.Context) {
	symbol := c.PostForm("symbol")
	if strings.TrimSpace(symbol) == "" {
		h.apology(c, http.StatusForbidden, "must provide symbol")
		return
	}
	q, err := h.ledger.Quote(c.Request.Context(), symbol)
	if err != nil {
		h.renderError(c, err)
		return
	}
	c.HTML(http.StatusOK, "quoted.html", gin.H{
		"Name":   q.Name,
		"Symbol": q.Symbol,
		"Price":  usd(q.Price),
	})
}

func (h *Handler) BuyPage(c *gin.Context) {
	c.HTML(http.StatusOK, "buy.html", nil)
}

func (h *Handler) Buy(c *gin.Context) {
	symbol, shares, ok := h.tradeForm(c)
	if !ok {
		return
	}
	if err := h.ledger.Buy(c.Request.Context(), userID(c), symbol, shares); err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) SellPage(c *gin.Context) {
	holdings, err := h.ledger.Holdings(c.Request.Context(), userID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	symbols := make([]string, 0, len(holdings))
	for _, hd := range holdings {
		symbols = append(symbols, hd.Symbol)
	}
	c.HTML(http.StatusOK, "sell.html", gin.H{"Symbols": symbols})
}

func (h *Handler) Sell(c *gin.Context) {
	symbol, shares, ok := h.tradeForm(c)
	if !ok {
		return
	}
	if err := h.ledger.Sell(c.Request.Context(), userID(c), symbol, shares); err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// tradeForm validates the shared symbol/shares fields of the buy and
// sell forms. Non-integer share input is an invalid share count, not a
// server error.
func (h *Handler) tradeForm(c *gin.Context) (string, int64, bool) {
	symbol := c.PostForm("symbol")
	if strings.TrimSpace(symbol) == "" {
		h.apology(c, http.StatusForbidden, "must provide symbol")
		return "", 0, false
	}
	shares, err := strconv.ParseInt(strings.TrimSpace(c.PostForm("shares")), 10, 64)
	if err != nil || shares <= 0 {
		h.renderError(c, ledger.ErrInvalidShareCount)
		return "", 0, false
	}
	return symbol, shares, true
}

func (h *Handler) History(c *gin.Context) {
	txs, err := h.ledger.History(c.Request.Context(), userID(c))
	if err != nil {
		h.renderError(c, err)
		return
	}
	rows := make([]gin.H, 0, len(txs))
	for _, t := range txs {
		rows = append(rows, gin.H{
			"Symbol":       t.Symbol,
			"Shares":       t.Shares,
			"Price":        usd(t.Price),
			"TransactedAt": t.TransactedAt.Format("2006-01-02 15:04:05"),
		})
	}
	c.HTML(http.StatusOK, "history.html", gin.H{"Rows": rows})
}

func (h *Handler) RegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", nil)
}

func (h *Handler) RegisterUser(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if strings.TrimSpace(username) == "" {
		h.apology(c, http.StatusForbidden, "must provide username")
		return
	}
	if password == "" {
		h.apology(c, http.StatusForbidden, "must provide password")
		return
	}
	if _, err := h.auth.Register(c.Request.Context(), username, password, c.PostForm("confirmation")); err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/login")
}

func (h *Handler) LoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", nil)
}

func (h *Handler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if strings.TrimSpace(username) == "" {
		h.apology(c, http.StatusForbidden, "must provide username")
		return
	}
	if password == "" {
		h.apology(c, http.StatusForbidden, "must provide password")
		return
	}
	user, err := h.auth.Authenticate(c.Request.Context(), username, password)
	if err != nil {
		h.renderError(c, err)
		return
	}
	if err := h.saveUserSession(c, user.ID); err != nil {
		h.renderError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (h *Handler) Logout(c *gin.Context) {
	h.clearSession(c)
	c.Redirect(http.StatusSeeOther, "/login")
}
