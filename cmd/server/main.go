package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"xcombat.dev/internal/observerproto"
	persistlog "xcombat.dev/internal/persistence/log"
	"xcombat.dev/internal/persistence/objstore"
	"xcombat.dev/internal/persistence/snapshot"
	"xcombat.dev/internal/sim/catalogs"
	"xcombat.dev/internal/sim/engine"
	"xcombat.dev/internal/sim/hitbox"
	"xcombat.dev/internal/sim/host"
	"xcombat.dev/internal/sim/host/memhost"
	"xcombat.dev/internal/sim/tuning"
	"xcombat.dev/internal/sim/vehicle"
	"xcombat.dev/internal/sim/voxel"
	"xcombat.dev/internal/telemetry"
	"xcombat.dev/internal/transport/observer"
	"xcombat.dev/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		worldID    = flag.String("world", "world", "world id (also the name of the simulated level)")
		seed       = flag.Int64("seed", 1337, "terrain and spread seed")
		configDir  = flag.String("configs", "./configs", "config directory")
		schemaDir  = flag.String("schemas", "./schemas", "json schema directory for catalog validation")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model (deaths + saves)")
		radius     = flag.Int("radius_chunks", 8, "terrain radius in chunks")
		groundY    = flag.Int("ground_y", 64, "terrain surface height")

		savePath   = flag.String("save", "", "vehicle save to load (optional)")
		loadLatest = flag.Bool("load_latest_save", true, "load the latest vehicle save from the data dir if present (when -save is empty)")
		keepSaves  = flag.Int("keep_saves", 10, "vehicle saves kept in the data dir (0 keeps all)")
		keepBackup = flag.Int("keep_backups", 20, "vehicle backups kept (0 keeps all)")
		otelOut    = flag.String("otel_metrics", os.Getenv("XC_OTEL_METRICS"), "write OpenTelemetry metrics as JSON to this file, - for stdout (empty disables)")
		otelEvery  = flag.Duration("otel_interval", 30*time.Second, "OpenTelemetry metric export interval")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)
	engineLog := log.New(os.Stdout, "[engine] ", log.LstdFlags|log.Lmicroseconds)

	// Installed before the engine so its instruments bind to the SDK.
	tel, closeTel := openTelemetry(*otelOut, *worldID, *otelEvery, logger)
	defer closeTel()

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	saveDir := filepath.Join(worldDir, "saves")
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		logger.Fatalf("data dir: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	// A missing file yields the defaults.
	tune, err := tuning.Load(tp)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}

	cats, err := catalogs.Load(*configDir, *schemaDir, logger)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}
	for _, w := range cats.Warnings {
		logger.Printf("WARN catalogs: %s", w)
	}
	protos, err := vehicle.LoadPrototypes(filepath.Join(*configDir, "vehicles"), logger)
	if err != nil {
		logger.Fatalf("load vehicle prototypes: %v", err)
	}

	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		logger.Fatalf("open index backend: %v", err)
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertMeta(*worldID, cats, tune); err != nil {
			logger.Printf("index backend: upsert meta: %v", err)
		}
	}

	h := memhost.New()
	blocks := voxel.NewStore(voxel.Gen{Seed: *seed, GroundY: *groundY, RadiusChunks: *radius, ObstacleChance: 0.02})
	h.AttachWorld(*worldID, blocks)
	reg := hitbox.NewRegistry(tune.Sizes(engineLog))
	vm := vehicle.NewManager(tune.MaxVehicles, tune.MaxVehicleElements, vehicle.NewEnv(h, reg), protos, engineLog)

	saveToLoad := strings.TrimSpace(*savePath)
	if saveToLoad == "" && *loadLatest {
		if p, err := snapshot.LatestSave(saveDir); err == nil {
			saveToLoad = p
		}
	}
	if saveToLoad != "" {
		restoreVehicles(saveToLoad, *worldID, vm, logger)
	}

	var eng *engine.Engine
	tickLog := persistlog.NewTickLogger(worldDir, func() engine.EngineMetrics { return eng.Metrics() })
	deathLog := persistlog.NewDeathLogger(worldDir)
	defer tickLog.Close()
	defer deathLog.Close()

	deaths := engine.DeathSinks{deathLog}
	if idx != nil {
		deaths = append(deaths, idx)
	}

	// The hub needs the engine and the engine needs the hub as its sink.
	var hub *ws.Server
	saveCh := make(chan engine.SaveRequest, 2)
	eng = engine.New(engine.Config{
		WorldID:   *worldID,
		Tuning:    tune,
		Catalogs:  cats,
		Host:      h,
		Vehicles:  vm,
		Hitboxes:  reg,
		Sink:      engine.Sinks{engine.SinkFunc(func(b *engine.Batch) { hub.Emit(b) }), tickLog},
		DeathSink: deaths,
		SaveSink:  saveCh,
		Seed:      *seed,
		Logger:    engineLog,
	})
	eng.AddWorld(*worldID, blocks)

	lob := &lobby{host: h, cats: cats, spawn: host.Location{World: *worldID, X: 0.5, Y: float64(*groundY), Z: 0.5}}
	hub = ws.NewServer(eng, ws.Config{
		WorldID:    *worldID,
		TickRateHz: tune.TickRateHz,
		Join:       lob.join,
		Leave:      lob.leave,
		Logger:     log.New(os.Stdout, "[ws] ", log.LstdFlags|log.Lmicroseconds),
	})

	sw := &saveWriter{dir: saveDir, keepSaves: *keepSaves, keepBackup: *keepBackup, log: logger}
	if idx != nil {
		sw.index = idx
	}
	mirror := openMirror(*dataDir, logger)
	if mirror != nil {
		sw.mirror = mirror
	}
	saveDone := make(chan struct{})
	go func() {
		defer close(saveDone)
		sw.run(saveCh)
	}()

	hubStats := func() observerproto.HubStats {
		return observerproto.HubStats{Clients: hub.Clients(), Dropped: hub.Dropped(), Inputs: hub.Inputs()}
	}
	var indexStats func() observerproto.IndexStats
	if idx != nil {
		indexStats = func() observerproto.IndexStats {
			st := idx.Stats()
			return observerproto.IndexStats{
				QueueDepth: st.QueueDepth,
				Dropped:    st.DropDeathTotal + st.DropSaveTotal,
				Errors:     st.WriteErrorTotal,
			}
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		hs := hubStats()
		var is *observerproto.IndexStats
		if indexStats != nil {
			s := indexStats()
			is = &s
		}
		writeMetrics(rw, *worldID, eng.Metrics(), &hs, is)
		if mirror != nil {
			writeMirrorMetrics(rw, *worldID, mirror.Stats())
		}
	})

	enableAdminHTTP := envBool("XC_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP())
	enablePprofHTTP := envBool("XC_ENABLE_PPROF_HTTP", false)
	if enableAdminHTTP {
		mux.HandleFunc("/admin/v1/state", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				WorldID string                 `json:"world_id"`
				Metrics engine.EngineMetrics   `json:"metrics"`
				Hub     observerproto.HubStats `json:"hub"`
			}{
				WorldID: *worldID,
				Metrics: eng.Metrics(),
				Hub:     hubStats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
		if idx != nil {
			mux.HandleFunc("/admin/v1/kills", func(rw http.ResponseWriter, r *http.Request) {
				if !isLoopbackRemote(r.RemoteAddr) {
					http.Error(rw, "forbidden", http.StatusForbidden)
					return
				}
				killer, err := uuid.Parse(r.URL.Query().Get("killer"))
				if err != nil {
					http.Error(rw, "bad killer", http.StatusBadRequest)
					return
				}
				limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
				recs, err := idx.DeathsByKiller(r.Context(), killer, limit)
				if err != nil {
					http.Error(rw, err.Error(), http.StatusInternalServerError)
					return
				}
				rw.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(rw).Encode(recs)
			})
			mux.HandleFunc("/admin/v1/leaderboard", func(rw http.ResponseWriter, r *http.Request) {
				if !isLoopbackRemote(r.RemoteAddr) {
					http.Error(rw, "forbidden", http.StatusForbidden)
					return
				}
				limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
				top, err := idx.TopKillers(r.Context(), limit)
				if err != nil {
					http.Error(rw, err.Error(), http.StatusInternalServerError)
					return
				}
				rw.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(rw).Encode(top)
			})
		}

		obsSrv := observer.NewServer(eng, observer.Config{
			WorldID:    *worldID,
			TickRateHz: tune.TickRateHz,
			Catalogs:   cats,
			Hub:        hubStats,
			Index:      indexStats,
			Logger:     logger,
		})
		mux.HandleFunc("/admin/v1/observer/bootstrap", obsSrv.BootstrapHandler())
		mux.HandleFunc("/admin/v1/observer/ws", obsSrv.WSHandler())
	} else {
		logger.Printf("admin endpoints disabled (XC_ENABLE_ADMIN_HTTP=false)")
	}
	if enablePprofHTTP {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	} else {
		logger.Printf("pprof endpoints disabled (XC_ENABLE_PPROF_HTTP=false)")
	}
	mux.HandleFunc("/v1/ws", hub.Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()

	go func() {
		logger.Printf("listening on %s", *addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("SEVERE ListenAndServe: %v", err)
			cancel()
		}
	}()

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Printf("engine stopped: %v", err)
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)

	// The tick loop has stopped, so the engine can be read directly.
	final := eng.SaveAll()
	eng.Close()
	close(saveCh)
	<-saveDone
	sw.write(engine.SaveRequest{Save: final})
	logger.Printf("saved %d vehicles at tick %d", final.Header.Vehicles, final.Header.Tick)
	mirror.Close()
	if err := tel.Shutdown(context.Background()); err != nil {
		logger.Printf("WARN %v", err)
	}
}

// restoreVehicles respawns the vehicles of a save. Vehicles of other worlds
// and ones that no longer fit are skipped.
func restoreVehicles(path, worldID string, vm *vehicle.Manager, logger *log.Logger) {
	save, err := snapshot.ReadSave(path)
	if err != nil {
		logger.Fatalf("read save: %v", err)
	}
	if save.Header.WorldID != "" && save.Header.WorldID != worldID {
		logger.Fatalf("save world id mismatch: flag=%s save=%s", worldID, save.Header.WorldID)
	}
	n := 0
	for _, pv := range save.Vehicles {
		if _, err := vm.Restore(pv); err != nil {
			logger.Printf("WARN restore vehicle %s (%s): %v", pv.UUID, pv.Prototype, err)
			continue
		}
		n++
	}
	logger.Printf("restored %d/%d vehicles from %s", n, len(save.Vehicles), filepath.Base(path))
}

// openMirror returns nil unless XC_MIRROR_ENDPOINT is set.
func openMirror(dataDir string, logger *log.Logger) *objstore.Mirror {
	cfg, ok := objstore.ConfigFromEnv()
	if !ok {
		return nil
	}
	c, err := objstore.New(cfg)
	if err != nil {
		logger.Fatalf("save mirror: %v", err)
	}
	logger.Printf("mirroring saves to bucket %s", cfg.Bucket)
	return objstore.NewMirror(c, objstore.MirrorConfig{
		DataDir: dataDir,
		Prefix:  os.Getenv("XC_MIRROR_PREFIX"),
		Workers: 2,
		Backoff: 200 * time.Millisecond,
		Logger:  log.New(os.Stdout, "[mirror] ", log.LstdFlags|log.Lmicroseconds),
	})
}

// openTelemetry installs the metric provider when out is set. The returned
// func closes the output file.
func openTelemetry(out, worldID string, every time.Duration, logger *log.Logger) (*telemetry.Provider, func()) {
	out = strings.TrimSpace(out)
	cfg := telemetry.Config{Enabled: out != "", ServiceName: "xcombat-server", WorldID: worldID, Interval: every}
	closeOut := func() {}
	switch out {
	case "":
	case "-":
		cfg.Writer = os.Stdout
	default:
		if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
			logger.Fatalf("otel metrics: %v", err)
		}
		f, err := os.OpenFile(out, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			logger.Fatalf("otel metrics: %v", err)
		}
		cfg.Writer = f
		closeOut = func() { _ = f.Close() }
	}
	p, err := telemetry.New(cfg)
	if err != nil {
		logger.Fatalf("otel metrics: %v", err)
	}
	if p.Enabled() {
		logger.Printf("exporting otel metrics to %s every %s", out, every)
	}
	return p, closeOut
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

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
