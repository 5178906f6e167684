// Package main provides the lobby server binary: the websocket session
// coordination endpoint plus an HTTP bootstrap/health surface.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ridgeline-games/lobby/internal/config"
	"github.com/ridgeline-games/lobby/internal/identity"
	"github.com/ridgeline-games/lobby/internal/match"
	"github.com/ridgeline-games/lobby/internal/observability"
	"github.com/ridgeline-games/lobby/internal/room"
	"github.com/ridgeline-games/lobby/internal/router"
	"github.com/ridgeline-games/lobby/internal/server"
	"github.com/ridgeline-games/lobby/internal/transport"
)

func main() {
	configPath := flag.String("config", "", "path to YAML configuration file (optional)")
	flag.Parse()

	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	names := identity.NewDirectory(logger)
	queue := match.NewQueue(logger)
	rooms := room.NewRegistry(names, logger)

	// The hub needs the router as its handler and the router needs the
	// hub as its sender; the hub is constructed second against a small
	// indirection.
	var hub *transport.Hub
	rt := router.New(senderFunc{
		send:      func(id, ev string, data any) { hub.Send(id, ev, data) },
		broadcast: func(ev string, data any) { hub.Broadcast(ev, data) },
	}, queue, rooms, names, cfg.Matchmaking.QueueTimeout, cfg.Matchmaking.MatchTTL, logger)

	hub = transport.NewHub(rt, transport.Options{
		SendBuffer:     cfg.Transport.SendBuffer,
		WriteTimeout:   cfg.Transport.WriteTimeout,
		PongTimeout:    cfg.Transport.PongTimeout,
		PingInterval:   cfg.Transport.PingInterval,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("lobby server is running"))
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":      "ok",
			"connections": hub.ConnectionCount(),
			"queueLength": queue.Len(),
			"rooms":       rooms.RoomCount(),
		})
	})
	mux.HandleFunc("/ws", hub.ServeWS)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		logger.Fatal("creating scheduler", zap.Error(err))
	}
	if _, err := sched.NewJob(
		gocron.DurationJob(cfg.Matchmaking.SweepInterval),
		gocron.NewTask(func() { rt.Tick(time.Now()) }),
	); err != nil {
		logger.Fatal("scheduling queue sweep", zap.Error(err))
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("http server listening", zap.String("addr", cfg.Server.Addr()))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = httpServer.Shutdown(ctx)
			hub.Close()
		},
	})

	sweepDone := make(chan struct{})
	lifecycle.Add("sweep", &server.FuncService{
		StartFn: func() error {
			sched.Start()
			logger.Info("queue sweep scheduled",
				zap.Duration("interval", cfg.Matchmaking.SweepInterval),
			)
			<-sweepDone
			return nil
		},
		StopFn: func() {
			if err := sched.Shutdown(); err != nil {
				logger.Warn("scheduler shutdown", zap.Error(err))
			}
			close(sweepDone)
		},
	})

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// senderFunc adapts two closures to the router.Sender interface,
// breaking the hub/router construction cycle.
type senderFunc struct {
	send      func(connID, name string, data any)
	broadcast func(name string, data any)
}

func (s senderFunc) Send(connID, name string, data any) { s.send(connID, name, data) }
func (s senderFunc) Broadcast(name string, data any)    { s.broadcast(name, data) }
