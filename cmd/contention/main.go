package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/inventory-reservation/internal/bootstrap"
	"github.com/rl1809/inventory-reservation/internal/config"
	"github.com/rl1809/inventory-reservation/internal/core/domain"
	"github.com/rl1809/inventory-reservation/internal/observability"
)

func main() {
	initialStock := flag.Int("stock", 20, "units created before the run")
	totalRequests := flag.Int("requests", 50, "concurrent single-unit reservations")
	flag.Parse()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg.Payment.FailureRate = 0
	cfg.Payment.Latency = 0
	cfg.Seed.Enabled = false

	ctx := context.Background()
	logger := observability.MustNewLogger(cfg.Service.Name, cfg.Service.Env, "warn")
	defer logger.Sync()

	app, err := bootstrap.New(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("failed to build app: %v", err)
	}
	defer app.Close()

	key := domain.StockKey{ProductID: "contention-" + uuid.NewString()[:8], LocationID: "S001"}
	if _, err := app.Adjustments.Adjust(ctx, domain.AdjustmentRequest{
		ProductID:  key.ProductID,
		LocationID: key.LocationID,
		Delta:      *initialStock,
	}); err != nil {
		log.Fatalf("failed to create stock: %v", err)
	}

	var successCount, insufficientCount, otherCount atomic.Int32

	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := app.Reservations.Reserve(ctx, domain.ReservationRequest{
				TransactionID: uuid.NewString(),
				ProductID:     key.ProductID,
				LocationID:    key.LocationID,
				Quantity:      1,
			})
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficientCount.Add(1)
			default:
				otherCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	success := int(successCount.Load())
	insufficient := int(insufficientCount.Load())

	fmt.Println("========== CONTENTION RESULTS ==========")
	fmt.Printf("Key:              %s\n", key)
	fmt.Printf("Initial Stock:    %d\n", *initialStock)
	fmt.Printf("Total Requests:   %d\n", *totalRequests)
	fmt.Printf("Reserved:         %d\n", success)
	fmt.Printf("Insufficient:     %d\n", insufficient)
	fmt.Printf("Other Errors:     %d\n", otherCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("========================================")

	want := min(*initialStock, *totalRequests)
	failed := false
	if success != want {
		fmt.Printf("FAIL: expected %d reservations, got %d\n", want, success)
		failed = true
	}

	rec, err := app.Query.GetStock(ctx, key.ProductID, key.LocationID)
	if err != nil {
		log.Fatalf("failed to read final stock: %v", err)
	}
	fmt.Printf("Final Stock: %d (version %d)\n", rec.Quantity, rec.Version)
	if rec.Quantity != *initialStock-success || rec.Quantity < 0 {
		fmt.Printf("FAIL: expected stock %d, got %d\n", *initialStock-success, rec.Quantity)
		failed = true
	}

	if failed {
		os.Exit(1)
	}
	fmt.Println("PASS: no unit sold twice")
}
