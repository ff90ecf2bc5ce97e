// Command seed-feedback fills a PostgreSQL feedback table with synthetic
// records so the postgres source has something to serve in development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vocsync/vocsync/internal/source"
)

const createTable = `
CREATE TABLE IF NOT EXISTS feedback (
	id           TEXT PRIMARY KEY,
	body         TEXT NOT NULL,
	nps          INTEGER NOT NULL,
	username     TEXT NOT NULL,
	submitted_at TIMESTAMPTZ NOT NULL
)`

const insertRecord = `
INSERT INTO feedback (id, body, nps, username, submitted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO NOTHING`

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		pageSize    = flag.Int("page-size", 200, "Records fetched from the fake source per page")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect database:", err)
		os.Exit(1)
	}
	defer pool.Close()

	if _, err := pool.Exec(ctx, createTable); err != nil {
		fmt.Fprintln(os.Stderr, "create feedback table:", err)
		os.Exit(1)
	}

	fake := source.NewFake()
	fake.SetPageSize(*pageSize)

	inserted := 0
	for page := 0; ; page++ {
		records, err := fake.NewerThan(ctx, time.Unix(0, 0).UTC(), page)
		if err != nil {
			fmt.Fprintln(os.Stderr, "fetch fake records:", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			break
		}
		for _, r := range records {
			if _, err := pool.Exec(ctx, insertRecord, r.ID, r.Text, r.NPS, r.Username, r.Timestamp); err != nil {
				fmt.Fprintln(os.Stderr, "insert record:", err)
				os.Exit(1)
			}
			inserted++
		}
	}

	fmt.Printf("seeded %d feedback records\n", inserted)
}
