// checkin-monitor is a terminal dashboard for one event's check-in stream.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"ms-checkin/internal/config"
	"ms-checkin/internal/kafka"
	"ms-checkin/internal/logger"
	"ms-checkin/internal/viewer"
)

type screen struct {
	mu      sync.Mutex
	eventID int64
	feed    *viewer.Feed
	source  string
}

func severityColor(sev string) *color.Color {
	switch sev {
	case "error":
		return color.New(color.FgRed, color.Bold)
	case "warning":
		return color.New(color.FgYellow)
	case "success":
		return color.New(color.FgGreen)
	default:
		return color.New(color.FgCyan)
	}
}

func (s *screen) render() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString("\033[H\033[2J")
	color.New(color.Bold).Fprintf(&b, "Event %d check-ins (%s)  %s\n\n", s.eventID, s.source, time.Now().Format("15:04:05"))

	entries := s.feed.Entries()
	if len(entries) == 0 {
		b.WriteString("  no notifications\n")
	}
	for _, e := range entries {
		marker := " "
		if e.Persistent {
			marker = fmt.Sprintf("#%d", e.NotificationID)
		}
		severityColor(e.Severity).Fprintf(&b, "  %-6s %s  %s\n", marker, e.At.Local().Format("15:04:05"), e.Message)
	}
	fmt.Fprint(os.Stdout, b.String())
}

func main() {
	godotenv.Load()
	cfg := config.Load()

	eventID := flag.Int64("event", 0, "event id to watch")
	source := flag.String("source", "ws", "ws to follow the service, kafka to follow the event topic")
	baseURL := flag.String("url", cfg.Viewer.BaseURL, "check-in service base URL")
	token := flag.String("token", os.Getenv("CHECKIN_TOKEN"), "bearer token for the service")
	ack := flag.Int64("ack", 0, "mark one notification read and exit")
	flag.Parse()

	log, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Name: "monitor", Level: logger.WARN, Terminal: os.Stderr})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := viewer.NewClient(*baseURL, log)
	client.Token = *token
	client.PollInterval = cfg.Viewer.PollInterval

	if *ack > 0 {
		if err := client.MarkRead(ctx, *ack); err != nil {
			log.Fatal("VIEWER", fmt.Sprintf("mark %d read: %v", *ack, err))
		}
		fmt.Printf("notification %d marked read\n", *ack)
		return
	}
	if *eventID <= 0 {
		fmt.Fprintln(os.Stderr, "usage: checkin-monitor -event <id> [-source ws|kafka]")
		os.Exit(2)
	}

	s := &screen{eventID: *eventID, feed: viewer.NewFeed(), source: *source}
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.render()
			case <-ctx.Done():
				return
			}
		}
	}()

	switch *source {
	case "kafka":
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, fmt.Sprintf("checkin-monitor-%d", os.Getpid()), log)
		defer consumer.Close()
		if list, err := client.ListUnread(ctx, *eventID); err == nil {
			s.feed.Reconcile(list)
		}
		err = consumer.Start(ctx, *eventID, s.feed.Push)
	default:
		err = client.Run(ctx, *eventID, s.feed, s.render)
	}
	if err != nil && ctx.Err() == nil {
		log.Fatal("VIEWER", err.Error())
	}
}
