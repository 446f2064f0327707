package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"tradesim/internal/database"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a demo account with a few trades so the portfolio and history
// pages have something to show. Log in as demo / Demo123!.
func main() {
	godotenv.Load()
	dbURL := os.Getenv("POSTGRES_URL")
	if dbURL == "" {
		log.Fatal("POSTGRES_URL is required")
	}

	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	hash, err := bcrypt.GenerateFromPassword([]byte("Demo123!"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	var userID int64
	err = db.GetContext(ctx, &userID, `
		INSERT INTO users (username, password_hash, cash)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (username) DO UPDATE SET username = users.username
		RETURNING id`,
		"demo", string(hash), database.StartingCash.String())
	if err != nil {
		log.Fatalf("could not upsert demo user: %v", err)
	}

	var existing int
	if err := db.GetContext(ctx, &existing, `SELECT COUNT(*) FROM transactions WHERE user_id = $1`, userID); err != nil {
		log.Fatalf("count transactions: %v", err)
	}
	if existing > 0 {
		fmt.Println("demo user already has transactions, nothing to do")
		return
	}

	trades := []struct {
		symbol string
		shares int64
		price  string
	}{
		{"AAPL", 10, "150.0000"},
		{"MSFT", 5, "310.5000"},
		{"AAPL", -3, "162.2500"},
	}

	for _, tr := range trades {
		_, err := db.ExecContext(ctx, `INSERT INTO transactions (user_id, symbol, shares, price) VALUES ($1, $2, $3, $4::numeric)`,
			userID, tr.symbol, tr.shares, tr.price)
		if err != nil {
			fmt.Printf("Warning: could not insert trade %s: %v\n", tr.symbol, err)
			continue
		}
		// Mirror the trade in the cash balance the way a real buy/sell would.
		_, err = db.ExecContext(ctx, `UPDATE users SET cash = cash - ($1::numeric * $2) WHERE id = $3`,
			tr.price, tr.shares, userID)
		if err != nil {
			fmt.Printf("Warning: could not adjust cash for %s: %v\n", tr.symbol, err)
		}
	}

	fmt.Println("Successfully seeded demo user!")
	fmt.Println("Log in with demo / Demo123!")
}
