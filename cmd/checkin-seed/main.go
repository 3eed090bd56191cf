// checkin-seed resets the check-in schema and loads a demo event.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"ms-checkin/internal/codes"
	"ms-checkin/internal/config"
	"ms-checkin/internal/database"
	"ms-checkin/internal/models"
	seatingdb "ms-checkin/internal/seating/db"
)

var firstNames = []string{"Noa", "Eitan", "Maya", "Omer", "Tamar", "Yoni", "Shira", "Ido", "Lior", "Roni", "Gal", "Adi"}

func open(ctx context.Context, cfg config.DatabaseConfig) *bun.DB {
	if cfg.Driver == "sqlite" {
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("Failed to open sqlite: %v", err)
		}
		return db
	}

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN))
	sqldb := sql.OpenDB(connector)
	if err := sqldb.PingContext(ctx); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	return bun.NewDB(sqldb, pgdialect.New())
}

func seed(ctx context.Context, store *seatingdb.DB, tablesPerHall, seatsPerTable int) (*models.Event, int64, error) {
	event := &models.Event{Name: "Demo Gala", StartDate: time.Now().AddDate(0, 0, 7)}
	if err := store.CreateEvent(ctx, event); err != nil {
		return nil, 0, err
	}

	var firstGuest int64
	guestNo := 0
	for _, hall := range []string{models.HallA, models.HallB} {
		for i := 1; i <= tablesPerHall; i++ {
			table := &models.Table{
				EventID:     event.ID,
				TableNumber: guestTableNumber(hall, i),
				Size:        seatsPerTable,
				Shape:       "round",
				X:           float64(i * 120),
				Y:           hallY(hall),
				HallType:    hall,
			}
			if err := store.CreateTable(ctx, table); err != nil {
				return nil, 0, err
			}
			for seat := 1; seat <= seatsPerTable; seat++ {
				guestNo++
				g := &models.Guest{
					EventID:   event.ID,
					FirstName: firstNames[guestNo%len(firstNames)],
					LastName:  fmt.Sprintf("Guest%03d", guestNo),
					Gender:    []string{"female", "male"}[guestNo%2],
					Phone:     fmt.Sprintf("05%08d", guestNo),
					QRCode:    fmt.Sprintf("DEMO-%04d", guestNo),
				}
				if err := store.CreateGuest(ctx, g); err != nil {
					return nil, 0, err
				}
				gid := g.ID
				if firstGuest == 0 {
					firstGuest = gid
				}
				if err := store.CreateSeating(ctx, &models.Seating{EventID: event.ID, TableID: table.ID, GuestID: &gid, SeatNumber: seat}); err != nil {
					return nil, 0, err
				}
			}
		}
	}

	// Walk-ins without a seat.
	for i := 0; i < 3; i++ {
		guestNo++
		g := &models.Guest{EventID: event.ID, FirstName: "Walk", LastName: fmt.Sprintf("In%d", i+1), QRCode: fmt.Sprintf("DEMO-%04d", guestNo)}
		if err := store.CreateGuest(ctx, g); err != nil {
			return nil, 0, err
		}
	}
	return event, firstGuest, nil
}

func guestTableNumber(hall string, i int) int {
	if hall == models.HallB {
		return 100 + i
	}
	return i
}

func hallY(hall string) float64 {
	if hall == models.HallB {
		return 400
	}
	return 100
}

func main() {
	godotenv.Load()
	cfg := config.Load()

	reset := flag.Bool("reset", true, "drop and recreate the schema")
	tables := flag.Int("tables", 4, "tables per hall")
	seats := flag.Int("seats", 10, "seats per table")
	flag.Parse()

	ctx := context.Background()
	db := open(ctx, cfg.Database)
	defer db.Close()

	if *reset {
		log.Println("Dropping tables...")
		if err := database.DropSchema(ctx, db); err != nil {
			log.Fatalf("❌ Failed to drop schema: %v", err)
		}
	}
	log.Println("Creating tables...")
	if err := database.CreateSchema(ctx, db); err != nil {
		log.Fatalf("❌ Failed to create schema: %v", err)
	}

	log.Println("Seeding sample data...")
	event, firstGuest, err := seed(ctx, seatingdb.New(db), *tables, *seats)
	if err != nil {
		log.Fatalf("❌ Failed to seed: %v", err)
	}

	fmt.Fprintf(os.Stdout, "event %d: %d tables, try code %s\n", event.ID, 2**tables, codes.Format(firstGuest, event.ID))
	log.Println("✅ Done.")
}
