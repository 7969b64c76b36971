package database_test

import (
	"context"
	"fmt"
	"log"

	"github.com/wonny/kabu/pkg/database"
)

// Example demonstrates opening the local sqlite store
func Example() {
	db, err := database.OpenSQLite("db/stock.db")
	if err != nil {
		log.Fatalf("Failed to open sqlite: %v", err)
	}
	defer db.Close()

	if err := db.Ping(context.Background()); err != nil {
		log.Fatalf("Failed to ping sqlite: %v", err)
	}
	fmt.Printf("Opened %s\n", db.Path)
}
