package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"blockregen.dev/internal/kvstore"
	"blockregen.dev/internal/persistence/audit"
	"blockregen.dev/internal/protocol"
	"blockregen.dev/internal/regen"
	"blockregen.dev/internal/sim/catalogs"
	"blockregen.dev/internal/sim/tuning"
	"blockregen.dev/internal/sim/world"
	"blockregen.dev/internal/transport/ws"
)

// envDefaults are the BR_* environment overrides; flags take precedence
// over them, they take precedence over the built-in defaults.
type envDefaults struct {
	Addr      string `env:"BR_ADDR" envDefault:":8080"`
	WorldID   string `env:"BR_WORLD" envDefault:"world_1"`
	ConfigDir string `env:"BR_CONFIGS" envDefault:"./configs"`
	DataDir   string `env:"BR_DATA" envDefault:"./data"`
	Tuning    string `env:"BR_TUNING" envDefault:""`
	Store     string `env:"BR_STORE" envDefault:"sqlite"`
	Seed      int64  `env:"BR_SEED" envDefault:"0"`
}

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	var defaults envDefaults
	if err := env.Parse(&defaults); err != nil {
		logger.Fatalf("parse env: %v", err)
	}

	var (
		addr       = flag.String("addr", defaults.Addr, "http listen address")
		worldID    = flag.String("world", defaults.WorldID, "world id")
		configDir  = flag.String("configs", defaults.ConfigDir, "config directory")
		dataDir    = flag.String("data", defaults.DataDir, "runtime data directory")
		tuningPath = flag.String("tuning", defaults.Tuning, "path to tuning.yaml (default: <configs>/tuning.yaml)")
		storeKind  = flag.String("store", defaults.Store, "kv store backend: sqlite|memory")
		seed       = flag.Int64("seed", defaults.Seed, "world seed (0: use tuning seed)")
	)
	flag.Parse()

	cats, err := catalogs.Load(filepath.Join(*configDir, "catalogs"))
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if tune.ProtocolVersion != "" && tune.ProtocolVersion != protocol.Version {
		logger.Fatalf("tuning protocol_version %q does not match server %q", tune.ProtocolVersion, protocol.Version)
	}
	if *seed != 0 {
		tune.Seed = *seed
	}

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	if err := os.MkdirAll(worldDir, 0o755); err != nil {
		logger.Fatalf("mkdir %s: %v", worldDir, err)
	}

	storeLogger := log.New(os.Stdout, "[kvstore] ", log.LstdFlags|log.Lmicroseconds)
	var backend kvstore.Backend
	switch *storeKind {
	case "sqlite":
		backend, err = kvstore.OpenSQLite(filepath.Join(worldDir, "kv.db"))
		if err != nil {
			logger.Fatalf("open sqlite store: %v", err)
		}
	case "memory":
		backend = kvstore.NewMemory()
	default:
		logger.Fatalf("unknown store backend %q", *storeKind)
	}
	defer backend.Close()
	store := kvstore.New(backend, storeLogger)

	engineLogger := log.New(os.Stdout, "[regen] ", log.LstdFlags|log.Lmicroseconds)
	w, err := world.New(world.Config{
		ID:             *worldID,
		Dimension:      tune.Dimension,
		TickRateHz:     tune.TickRateHz,
		Height:         tune.Height,
		BoundaryR:      tune.WorldBoundaryR,
		Seed:           tune.Seed,
		TriggerItem:    tune.TriggerItem,
		ElevatedAgents: tune.ElevatedAgents,
	}, cats, store, engineLogger)
	if err != nil {
		logger.Fatalf("world: %v", err)
	}

	tickLog := audit.NewTickLogger(worldDir)
	auditLog := audit.NewLogger(worldDir)
	defer tickLog.Close()
	defer auditLog.Close()
	w.SetTickLogger(tickLog)
	w.SetAuditLogger(auditLog)

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		if err := w.Run(ctx); err != nil && err != context.Canceled {
			logger.Printf("world stopped: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(*worldID, w))
	mux.HandleFunc("/admin/v1/records", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		var recs []regen.Record
		for _, key := range store.Keys() {
			if !strings.HasPrefix(key, regen.RecordKeyPrefix) {
				continue
			}
			var rec regen.Record
			if store.Get(key, &rec) {
				recs = append(recs, rec)
			}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"world_id": *worldID,
			"tick":     w.CurrentTick(),
			"records":  recs,
		})
	})
	mux.HandleFunc("/admin/v1/config", func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		cfg, ok := w.Engine().LoadConfig()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{
			"configured": ok,
			"config":     cfg,
		})
	})
	mux.HandleFunc("/ws", ws.NewServer(w, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("world=%s store=%s listening on %s", *worldID, *storeKind, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func metricsHandler(worldID string, w *world.World) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		m := w.Metrics()
		tick := w.CurrentTick()
		if m.Tick != 0 {
			tick = m.Tick
		}

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP blockregen_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE blockregen_world_tick gauge\n")
		fmt.Fprintf(rw, "blockregen_world_tick{world=%q} %d\n", worldID, tick)

		fmt.Fprintf(rw, "# HELP blockregen_world_agents Current number of agents in the world.\n")
		fmt.Fprintf(rw, "# TYPE blockregen_world_agents gauge\n")
		fmt.Fprintf(rw, "blockregen_world_agents{world=%q} %d\n", worldID, m.Agents)

		fmt.Fprintf(rw, "# HELP blockregen_world_clients Current number of connected clients.\n")
		fmt.Fprintf(rw, "# TYPE blockregen_world_clients gauge\n")
		fmt.Fprintf(rw, "blockregen_world_clients{world=%q} %d\n", worldID, m.Clients)

		fmt.Fprintf(rw, "# HELP blockregen_world_loaded_chunks Loaded chunk count.\n")
		fmt.Fprintf(rw, "# TYPE blockregen_world_loaded_chunks gauge\n")
		fmt.Fprintf(rw, "blockregen_world_loaded_chunks{world=%q} %d\n", worldID, m.LoadedChunks)

		fmt.Fprintf(rw, "# HELP blockregen_world_inbox_depth Pending action backlog.\n")
		fmt.Fprintf(rw, "# TYPE blockregen_world_inbox_depth gauge\n")
		fmt.Fprintf(rw, "blockregen_world_inbox_depth{world=%q} %d\n", worldID, m.InboxDepth)

		fmt.Fprintf(rw, "# HELP blockregen_engine_records Records seen by the last scan, by state.\n")
		fmt.Fprintf(rw, "# TYPE blockregen_engine_records gauge\n")
		fmt.Fprintf(rw, "blockregen_engine_records{world=%q,state=%q} %d\n", worldID, "scanned", m.Engine.Scanned)
		fmt.Fprintf(rw, "blockregen_engine_records{world=%q,state=%q} %d\n", worldID, "initialized", m.Engine.Initialized)
		fmt.Fprintf(rw, "blockregen_engine_records{world=%q,state=%q} %d\n", worldID, "counting", m.Engine.Counting)
		fmt.Fprintf(rw, "blockregen_engine_records{world=%q,state=%q} %d\n", worldID, "restored", m.Engine.Restored)
		fmt.Fprintf(rw, "blockregen_engine_records{world=%q,state=%q} %d\n", worldID, "idle", m.Engine.Idle)
		fmt.Fprintf(rw, "blockregen_engine_records{world=%q,state=%q} %d\n", worldID, "deleted", m.Engine.Deleted)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
