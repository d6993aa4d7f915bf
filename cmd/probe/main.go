// probe walks every backend endpoint once and prints what comes back.
// Usage: go run ./cmd/probe --url http://localhost:8000 --symbol AAPL
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/model"
	"github.com/rickgao/quantpulse-monitor/internal/poller"
	"github.com/rickgao/quantpulse-monitor/internal/render"
	"github.com/rickgao/quantpulse-monitor/internal/snapshot"
	"github.com/rickgao/quantpulse-monitor/internal/subscription"
)

func main() {
	baseURL := flag.String("url", "http://localhost:8000", "backend base URL")
	symbol := flag.String("symbol", "AAPL", "symbol to probe")
	entry := flag.Float64("entry", 100, "entry price used when loading the symbol")
	qty := flag.Int("qty", 1, "quantity used when loading the symbol")
	mode := flag.String("mode", string(subscription.ModeSimulation), "feed mode")
	csvFile := flag.String("csv", "", "csv file for csv mode")
	wait := flag.Duration("wait", 3*time.Second, "time to let the feed produce data")
	unsubscribe := flag.Bool("unsubscribe", true, "unsubscribe when done")
	flag.Parse()

	client := api.NewClient(*baseURL, api.WithTimeout(10*time.Second))
	subs := subscription.New(client, nil)
	out := render.New(os.Stdout)

	ctx, cancel := context.WithTimeout(context.Background(), *wait+60*time.Second)
	defer cancel()

	// Test 1: Load
	fmt.Println("=== Testing POST /instruments/load ===")
	loaded, err := subs.RegisterInstruments(ctx, []model.Instrument{{Symbol: *symbol, EntryPrice: *entry, Quantity: *qty}})
	if err != nil {
		log.Fatalf("RegisterInstruments failed: %v", err)
	}
	fmt.Printf("Confirmed: %v\n", loaded)

	// Test 2: List
	fmt.Println("\n=== Testing GET /instruments/list ===")
	instruments, err := subs.Loaded(ctx)
	if err != nil {
		log.Fatalf("Loaded failed: %v", err)
	}
	symbols := make([]string, 0, len(instruments))
	for s := range instruments {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	for i, s := range symbols {
		fmt.Printf("  %d. %s entry %s qty %d\n", i+1, s, render.Price(instruments[s].EntryPrice), instruments[s].Quantity)
	}

	// Test 3: Subscribe
	fmt.Println("\n=== Testing POST /subscribe ===")
	results, err := subs.Subscribe(ctx, []string{*symbol}, subscription.Mode(*mode), *csvFile)
	if err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}
	for _, r := range results {
		fmt.Printf("  %s: %s %s %s\n", r.Symbol, r.Status, r.Mode, r.Message)
	}

	fmt.Printf("\nWaiting %s for data...\n", *wait)
	time.Sleep(*wait)

	// Test 4: Price, P&L and indicators as one tick
	fmt.Println("\n=== Testing price / pnl / indicators ===")
	snap, err := poller.NewAggregator(client).Tick(ctx, *symbol)
	if err != nil {
		log.Fatalf("Tick failed: %v", err)
	}
	out.HandleSnapshot(snap)

	// Test 5: Snapshot, latest and one interval back
	fmt.Println("\n=== Testing GET /snapshot ===")
	snaps := snapshot.New(client, nil, nil)
	latest, err := snaps.FetchSymbol(ctx, *symbol, time.Time{})
	if err != nil {
		log.Fatalf("FetchSymbol failed: %v", err)
	}
	out.Point(latest)

	if !latest.Timestamp.IsZero() {
		earlier, err := snaps.FetchSymbol(ctx, *symbol, latest.Timestamp.Add(-time.Second))
		if err != nil {
			fmt.Printf("  snapshot at %s: %v\n", out.Timestamp(latest.Timestamp.Add(-time.Second)), err)
		} else {
			out.Point(earlier)
		}
	}

	if *unsubscribe {
		fmt.Println("\n=== Testing POST /unsubscribe ===")
		msg, err := subs.Unsubscribe(ctx, *symbol)
		if err != nil {
			log.Fatalf("Unsubscribe failed: %v", err)
		}
		fmt.Println(msg)
	}

	fmt.Println("\n=== All endpoints responded! ===")
}
