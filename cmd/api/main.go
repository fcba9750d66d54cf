// Command api serves the event map HTTP and websocket API.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-eventmap/internal/config"
	"backend-eventmap/internal/db"
	"backend-eventmap/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownGrace = 5 * time.Second

type ListenFunc func(app *fiber.App, addr string) error

// backends are the long-lived connections a server instance runs on.
type backends struct {
	pg  *pgxpool.Pool
	rdb *redis.Client
}

func (b backends) close() {
	if b.pg != nil {
		b.pg.Close()
	}
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
}

var (
	loadConfigFn = config.Load
	connectFn    = connect
	shutdownFn   = func(app *fiber.App, ctx context.Context) error { return app.ShutdownWithContext(ctx) }
	migrateFn    = func(ctx context.Context, pg *pgxpool.Pool) error { return db.Migrate(ctx, pg) }
)

var listenFn ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := start(ctx); err != nil {
		log.Fatalf("api: %v", err)
	}
}

// connect opens Postgres and Redis. A Postgres failure is logged and the
// server still starts so /health stays reachable; Redis is optional.
func connect(cfg config.Config) backends {
	pg, err := db.ConnectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed: %v", err)
		pg = nil
	}
	return backends{pg: pg, rdb: db.ConnectRedis(cfg)}
}

func start(ctx context.Context) error {
	cfg := loadConfigFn()
	b := connectFn(cfg)
	defer b.close()

	if b.pg != nil {
		if err := migrateFn(ctx, b.pg); err != nil {
			log.Printf("schema migration failed: %v", err)
		}
	}
	return Run(ctx, cfg, b.pg, b.rdb, listenFn)
}

// Run serves until ctx is cancelled or the listener fails, then drains
// in-flight requests and stops the change feed. It does not close pg or rdb.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb)
	defer func() {
		if err := srv.Stream.Close(); err != nil {
			log.Printf("stream hub close: %v", err)
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	return shutdownFn(srv.App, shutdownCtx)
}
