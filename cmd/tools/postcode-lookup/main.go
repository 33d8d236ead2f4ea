// cmd/tools/postcode-lookup/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"postcode-workers/internal/app"
	"postcode-workers/internal/common/config"
	"postcode-workers/internal/common/logger"
	"postcode-workers/internal/models"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("postcode-lookup", flag.ContinueOnError)
	fs.SetOutput(stderr)

	postcode := fs.String("postcode", "", "UK postcode to resolve (e.g., \"SW1A 1AA\")")
	override := fs.Bool("override", false, "Skip the cache read and always call the address service")
	configPath := fs.String("config", "", "Path to a config file (default: configs/config.yaml lookup)")
	backend := fs.String("backend", "", "Override cache.backend (postgres, redis, elasticsearch, memcached, memory, none)")
	cutoff := fs.String("cutoff", "", "Override cache.freshness_cutoff")
	timeout := fs.Duration("timeout", 15*time.Second, "Overall deadline for the lookup")
	verbose := fs.Bool("v", false, "Log to stderr at debug level")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *postcode == "" {
		fmt.Fprintln(stderr, "Error: -postcode is required.")
		fs.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return 1
	}
	if *backend != "" {
		cfg.Cache.Backend = *backend
	}
	if *cutoff != "" {
		cfg.Cache.FreshnessCutoff = *cutoff
	}

	log := logger.NewNoOpLogger()
	if *verbose {
		log = logger.NewStructured("debug", "console", "stderr")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	l, err := app.NewLookup(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = l.Close() }()

	result, err := l.Service.Get(ctx, *postcode, l.Credentials, *override)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	out, err := models.ToJSON(result)
	if err != nil {
		fmt.Fprintf(stderr, "Error encoding result: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, out)

	if result.Failed() {
		return 3
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}
