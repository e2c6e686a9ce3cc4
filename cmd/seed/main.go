package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"seatbook/internal/seats"
	"seatbook/internal/shared/config"
	"seatbook/internal/shared/database"
	"seatbook/internal/shared/errs"

	"github.com/joho/godotenv"
)

// demoEvents are small venues with mixed seat types
var demoEvents = []struct {
	eventID string
	rows    []seats.RowLayout
	prices  map[string]float64
}{
	{
		eventID: "evt-arena-opening",
		rows: []seats.RowLayout{
			{Row: "A", Seats: 10, SeatType: "vip"},
			{Row: "B", Seats: 12, SeatType: "premium"},
			{Row: "C", Seats: 14, SeatType: "standard"},
			{Row: "D", Seats: 14, SeatType: "standard"},
		},
		prices: map[string]float64{"vip": 150, "premium": 90, "standard": 45},
	},
	{
		eventID: "evt-club-night",
		rows: []seats.RowLayout{
			{Row: "A", Seats: 8, SeatType: "standard"},
			{Row: "B", Seats: 8, SeatType: "standard"},
		},
		prices: map[string]float64{"standard": 25},
	},
}

func main() {
	flushRedis := flag.Bool("flush-redis", false, "flush the Redis database before seeding")
	flag.Parse()

	fmt.Println("🌱 Starting Seatbook Ledger Seeder...")
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	if cfg.Ledger.Backend == config.LedgerBackendMemory {
		log.Fatalf("LEDGER_BACKEND=memory keeps nothing between processes; seed a postgres or redis ledger")
	}

	// Initialize database
	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if *flushRedis {
		fmt.Println("\n🧹 Flushing Redis...")
		if err := db.GetRedis().FlushDB(ctx).Err(); err != nil {
			log.Fatalf("Failed to flush Redis: %v", err)
		}
	}

	store, err := db.NewLedgerStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize seat ledger: %v", err)
	}
	seatService := seats.NewService(store, nil)

	fmt.Printf("\n🌱 Seeding %s ledger...\n", cfg.Ledger.Backend)
	for _, ev := range demoEvents {
		created, err := seatService.CreateEventSeats(ctx, ev.eventID, ev.rows, ev.prices)
		switch {
		case errors.Is(err, errs.ErrEventExists):
			fmt.Printf("  ⏭️  %s already seeded\n", ev.eventID)
		case err != nil:
			log.Fatalf("Failed to seed %s: %v", ev.eventID, err)
		default:
			fmt.Printf("  🎟️  %s: %d seats %v\n", created.EventID, created.TotalSeats, created.BySeatType)
		}
	}

	fmt.Println("\n🎉 Seeding completed! Ledger is ready for testing.")
}
