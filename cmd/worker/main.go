package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"qrattend/internal/attendance"
	"qrattend/internal/config"
	"qrattend/internal/export"
	"qrattend/internal/queue"
	"qrattend/internal/store"
)

// Worker consumes check-in events and keeps a dated XLSX attendance snapshot
// on disk, one file per calendar day, rebuilt after every event.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	var st store.Store
	if cfg.StoreBackend == "memory" {
		log.Fatal("worker needs a shared store backend; set STORE_BACKEND=postgres")
	}
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer db.Close()
	st = store.NewPostgres(db.Client)

	redisClient := store.NewRedis(cfg.RedisAddr)

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(64)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, "qrattend:checkins")
	}

	stats := attendance.NewStats(st)

	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		log.Fatalf("export dir: %v", err)
	}

	messages, err := q.Consume(ctx)
	if err != nil {
		log.Fatalf("queue consume init failed: %v", err)
	}

	log.Println("worker started, waiting for check-ins...")
	for msg := range messages {
		if msg.Type != queue.TypeCheckIn {
			continue
		}
		id := string(msg.Body)
		log.Printf("check-in %s recorded, refreshing snapshot", id)

		if err := writeSnapshot(ctx, stats, cfg.ExportDir); err != nil {
			log.Printf("snapshot refresh failed: %v", err)
		}
	}

	log.Println("worker stopped")
}

// writeSnapshot rebuilds today's attendance workbook from a fresh read of the
// store. Rebuilding the whole day keeps the file correct even when events are
// replayed out of order.
func writeSnapshot(ctx context.Context, stats *attendance.Stats, dir string) error {
	records, err := stats.Records(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var today []attendance.Record
	for _, rec := range records {
		local := rec.Timestamp.In(now.Location())
		if !local.Before(dayStart) && local.Before(dayStart.AddDate(0, 0, 1)) {
			today = append(today, rec)
		}
	}

	path := filepath.Join(dir, export.Filename(now))
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := export.Write(f, today); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
