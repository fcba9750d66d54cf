package main

import (
	"context"
	"fmt"
	"os"

	"backend-eventmap/internal/config"
	"backend-eventmap/internal/db"
	"backend-eventmap/internal/geocode"
	"backend-eventmap/internal/stream"

	"golang.org/x/term"
)

type notifier interface {
	Notify(collection, action string, eventID int64)
}

// session bundles what a subcommand needs to talk to the deployment.
type session struct {
	cfg      config.Config
	db       db.Querier
	geocoder geocode.Resolver
	notifier notifier
	close    func()
}

var openSession = func(ctx context.Context) (*session, error) {
	cfg := config.Load()
	pool, err := db.ConnectPostgres(cfg)
	if err != nil {
		return nil, err
	}
	rdb := db.ConnectRedis(cfg)

	// Changes made here reach connected map clients through the Redis fan-out.
	hub := stream.NewHub(rdb)
	geocoder := geocode.NewCached(
		geocode.NewNominatim(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.UpstreamTimeout),
		rdb,
		cfg.GeocodeCacheTTL,
	)
	return &session{
		cfg:      cfg,
		db:       pool,
		geocoder: geocoder,
		notifier: hub,
		close: func() {
			_ = hub.Close()
			if rdb != nil {
				_ = rdb.Close()
			}
			pool.Close()
		},
	}, nil
}

var readPassword = func(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
