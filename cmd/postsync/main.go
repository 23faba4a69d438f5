package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rahul/postsync/internal/gateway"
	"github.com/rahul/postsync/internal/observability"
	"github.com/rahul/postsync/internal/pipeline"
	"github.com/rahul/postsync/internal/runner"
	"github.com/rahul/postsync/internal/source"
	"github.com/rahul/postsync/pkg/config"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	// .env.local may point at an alternate config file
	_ = godotenv.Load(".env.local")

	cfgPath := os.Getenv("POSTSYNC_CONFIG")
	if cfgPath == "" {
		cfgPath = "config.json"
	}
	cfg := config.LoadConfig(cfgPath)

	logger := observability.NewLogger()

	// Outbound alert gateways (all optional)
	var notifiers []gateway.Notifier

	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramNotifier(tgCfg.Token, tgCfg.ChatID)
		if err != nil {
			log.Printf("Warning: Failed to initialize telegram gateway: %v", err)
		} else {
			notifiers = append(notifiers, tg)
		}
	}

	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordNotifier(dcCfg.Token, dcCfg.ChatID)
		if err != nil {
			log.Printf("Warning: Failed to initialize discord gateway: %v", err)
		} else {
			notifiers = append(notifiers, dc)
		}
	}

	client := source.NewClient(cfg.Source.URL, cfg.Source.Timeout())

	pipe := pipeline.New(client, cfg.Store.Path)
	pipe.TickEvery = cfg.Sync.ProgressTick()

	run := runner.New(pipe, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// UI-side consumer: drain the notification channel, feed the
	// dashboard, fan failures out to the gateways.
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-run.Events():
				switch ev.Type {
				case runner.EventProgress:
					observability.SetProgress(ev.Progress)
				case runner.EventStatus:
					observability.SetMessage(ev.Status, ev.StatusDisplay)
				case runner.EventData:
					observability.SetRowCount(len(ev.Posts))
					observability.RenderTable(ev.Posts)
					log.Printf("Sync run %s delivered %d posts", ev.RunID, len(ev.Posts))
					if cfg.Sync.NotifyOnSuccess {
						gateway.NotifyAll(notifiers, fmt.Sprintf("✅ Synced %d posts", len(ev.Posts)))
					}
				case runner.EventFailed:
					log.Printf("Sync run %s failed: %v", ev.RunID, ev.Err)
					gateway.NotifyAll(notifiers, fmt.Sprintf("⚠️ *Sync failed*\n\n%v", ev.Err))
				}
			}
		}
	}()

	// Periodic re-sync, same admission rules as a manual run
	scheduler := runner.NewScheduler(run, cfg.Sync.Interval())
	go scheduler.Start(ctx)

	// Live dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
			}
		}
	}()

	// Initial run, the equivalent of pressing the load button
	if _, err := run.Submit(ctx, "manual"); err != nil {
		log.Printf("Error starting initial sync: %v", err)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Reset terminal aesthetics
	observability.CleanupTerminal()

	// Let an in-flight NotifyAll finish before the gateways close
	<-drained

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)

	for _, n := range notifiers {
		_ = n.Close()
	}
	log.Println("\033[95m[ EXIT ] POSTSYNC DE-INITIALIZED. GOODBYE.\033[0m")
}
