package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"priceoracle/internal/aggregate"
	"priceoracle/internal/app"
	"priceoracle/internal/config"
)

func main() {
	var symbolsCSV string
	var configPath string
	var canonical bool
	var timeout int

	flag.StringVar(&symbolsCSV, "symbols", getenv("SYMBOLS", ""), "comma-separated symbols or aliases; empty prints the whole table")
	flag.StringVar(&configPath, "config", getenv("CONFIG_FILE", ""), "path to config.json or config.yaml (optional)")
	flag.BoolVar(&canonical, "canonical", true, "omit alias keys from the full table")
	flag.IntVar(&timeout, "timeout", 15, "overall timeout seconds")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fatal("load .env", err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("config", err)
	}
	log := cfg.Log.NewLogger(os.Stderr)

	a, err := app.New(cfg, log, nil)
	if err != nil {
		fatal("build app", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeout)*time.Second)
	defer cancel()

	out := struct {
		Prices  aggregate.Table `json:"prices"`
		Missing []string        `json:"missing,omitempty"`
	}{}

	if symbols := splitCSV(symbolsCSV); len(symbols) > 0 {
		snap := a.Service.GetPrices(ctx)
		out.Prices = aggregate.Table{}
		for _, s := range symbols {
			q, ok := a.Service.Resolve(snap, s)
			if !ok {
				out.Missing = append(out.Missing, s)
				continue
			}
			out.Prices[s] = q
		}
		sort.Strings(out.Missing)
	} else {
		out.Prices = a.Service.RefreshPrices(ctx)
		if canonical {
			out.Prices = out.Prices.Canonical()
		}
	}

	for src, n := range out.Prices.CountBySource() {
		log.Info("quotes", "source", src, "count", n)
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
	if len(out.Missing) > 0 {
		os.Exit(2)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "err", err)
	os.Exit(1)
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
