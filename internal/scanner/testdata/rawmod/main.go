package main

import (
	"context"
	"database/sql"
	"fmt"
)

func rawRead(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.QueryContext(ctx, "SELECT id, data FROM campaigns WHERE id = $1", id)
	return err
}

func splicedQuery(schema string) string {
	return fmt.Sprintf("SELECT id FROM %s.listings", schema)
}

func sharedRead(ctx context.Context, db *sql.DB) error {
	_, err := db.QueryContext(ctx, "SELECT code FROM currencies")
	return err
}

func main() {}
