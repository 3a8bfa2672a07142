package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/aretw0/orbit"
	"github.com/aretw0/orbit/pkg/core"
)

func main() {
	count := flag.Int("count", 1000, "Number of dweets served by the stub content service")
	rounds := flag.Int("rounds", 20, "Number of timeline fetches to time")
	verbose := flag.Bool("verbose", false, "Log every request")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// 1. Stub content service holding anonymous dweets
	payload := buildPayload(*count)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(payload)
	}))
	defer srv.Close()
	fmt.Printf("Serving %d dweets (%s) from %s\n", *count, humanize.Bytes(uint64(len(payload))), srv.URL)

	// 2. Client with a simulated session, so every fetch also normalizes
	cfg := orbit.DefaultConfig()
	cfg.ContentURL = srv.URL
	cfg.SessionBackend = "memory"
	cfg.RateLimit = 0
	client, err := orbit.New(orbit.WithConfig(cfg), orbit.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	defer client.Close()

	ctx := context.Background()
	if _, err := client.Identity.Login(ctx); err != nil {
		panic(err)
	}
	if _, err := client.Identity.Select(ctx, "alice-1"); err != nil {
		panic(err)
	}

	// 3. Cold fetch, then repeated warm fetches
	start := time.Now()
	list, err := client.Timeline.FetchTimeline(ctx)
	if err != nil {
		panic(err)
	}
	cold := time.Since(start)

	var total time.Duration
	for i := 0; i < *rounds; i++ {
		start := time.Now()
		if _, err := client.Timeline.FetchTimeline(ctx); err != nil {
			panic(err)
		}
		total += time.Since(start)
	}

	owned := 0
	for _, d := range client.Timeline.Timeline() {
		if client.Timeline.Owns(d) {
			owned++
		}
	}

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d dweets, %d owned after normalization):\n", len(list), owned)
	fmt.Printf("  Cold: %v\n", cold)
	if *rounds > 0 {
		fmt.Printf("  Warm: %v avg over %d rounds\n", total/time.Duration(*rounds), *rounds)
	}
	fmt.Printf("--------------------------------------------------\n")
}

type wireDweet struct {
	ID        uint64 `json:"id"`
	Author    string `json:"author"`
	Message   string `json:"message"`
	CreatedAt int64  `json:"createdAt"`
}

func buildPayload(n int) []byte {
	dweets := make([]wireDweet, n)
	base := time.Now().Add(-time.Duration(n) * time.Minute)
	for i := range dweets {
		author := core.AnonymousHandle
		if i%3 == 0 {
			author = "bob-2"
		}
		dweets[i] = wireDweet{
			ID:        uint64(i),
			Author:    author,
			Message:   fmt.Sprintf("benchmark dweet %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute).UnixNano(),
		}
	}
	data, err := json.Marshal(map[string]any{"Ok": dweets})
	if err != nil {
		panic(err)
	}
	return data
}
