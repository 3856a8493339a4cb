package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/ledsmooth/internal/config"
	"github.com/coreman2200/ledsmooth/internal/effect"
	"github.com/coreman2200/ledsmooth/internal/layout"
	"github.com/coreman2200/ledsmooth/internal/led"
	"github.com/coreman2200/ledsmooth/internal/smoothing"
	"github.com/coreman2200/ledsmooth/internal/ws"
)

// profiles are registered after the default (0) and pause (1) configs.
const firstProfileID = smoothing.PauseConfigID + 1

func main() {
	// ---- Flags (remain usable; config.yaml overrides them) ----
	var (
		x          = flag.Int("x", 0, "LEDs per row (X)")
		y          = flag.Int("y", 0, "LED rows per panel (Y)")
		z          = flag.Int("z", 0, "Panels/depth (Z)")
		driver     = flag.String("driver", "", "driver: sim | spi | serial")
		colorOrder = flag.String("color", "", "LED color order (e.g. GRB, RGB)")
		addr       = flag.String("addr", "", "HTTP listen address")
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		effectName = flag.String("effect", "", "startup effect: rainbow | index_sweep | rgb_channels | plane_z | none")
		simOnly    = flag.Bool("sim-only", false, "force simulation (no hardware output)")
		debug      = flag.Bool("debug", false, "debug logging with periodic engine stats")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Load config.yaml (optional) ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with defaults and flags")
		cfg = config.Default()
	}
	applyFlags(cfg, *x, *y, *z, *driver, *colorOrder, *addr, *effectName)
	if *simOnly {
		cfg.Driver = "sim"
	}

	l := layout.FromConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Sink: hardware driver plus the websocket preview ----
	hw, selected := openDriver(cfg, l.Count())
	hub := ws.NewServer(nil, nil, l, log.Logger)
	hub.Driver = selected
	sink := led.NewTee(hw, log.Logger, hub.Preview(50*time.Millisecond))

	// ---- Engine ----
	opts := []smoothing.Option{smoothing.WithDiagnostics(hub.Diagnostics)}
	if *debug {
		opts = append(opts, smoothing.WithDebugEvery(250))
	}
	eng, err := smoothing.New(sink, cfg.Smoothing.Settings(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("smoothing engine")
	}
	registerProfiles(eng, cfg.Profiles)

	player := effect.NewPlayer(l, cfg.Effect.FPS, eng, log.Logger)
	player.Diag = hub.Diagnostics
	hub.Engine = eng
	hub.Player = player
	hub.Reload = func() error { return reload(*configPath, eng) }

	if kind, ok := effect.ParseKind(cfg.Effect.Name); ok && kind != effect.None {
		_ = player.Start(effect.Plan{Kind: kind, Speed: cfg.Effect.Speed})
	} else if !ok {
		log.Warn().Str("effect", cfg.Effect.Name).Msg("unknown effect; waiting for frames")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      withCORS(hub.Handler()),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// ---- Run engine, producers & server ----
	go func() { _ = eng.Run(ctx) }()
	go func() { _ = player.Run(ctx) }()
	go func() { _ = hub.Run(ctx) }()
	go func() {
		log.Info().Str("addr", srv.Addr).Str("driver", selected).Int("leds", l.Count()).Msg("HTTP server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server crashed")
		}
	}()

	// ---- Signals: SIGHUP reloads, SIGINT/SIGTERM shut down ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for s := range ch {
		if s == syscall.SIGHUP {
			if err := reload(*configPath, eng); err != nil {
				log.Warn().Err(err).Str("path", *configPath).Msg("reload failed; keeping current settings")
			}
			continue
		}
		log.Info().Str("signal", s.String()).Msg("shutting down")
		break
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
	defer done()
	_ = srv.Shutdown(shutdownCtx)
	player.Stop()
	eng.ComponentStateChange(smoothing.ComponentLedDevice, false)
	cancel()
	if err := sink.Close(); err != nil {
		log.Warn().Err(err).Msg("closing LED driver")
	}
}

func applyFlags(cfg *config.Config, x, y, z int, driver, colorOrder, addr, effectName string) {
	if x > 0 {
		cfg.Dim.X = x
	}
	if y > 0 {
		cfg.Dim.Y = y
	}
	if z > 0 {
		cfg.Dim.Z = z
	}
	if driver != "" {
		cfg.Driver = driver
	}
	if colorOrder != "" {
		cfg.ColorOrder = colorOrder
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if effectName != "" {
		cfg.Effect.Name = effectName
	}
}

// openDriver opens the configured driver, falling back to SIM when the
// hardware is unavailable.
func openDriver(cfg *config.Config, count int) (led.Driver, string) {
	switch cfg.Driver {
	case "sim":
		return led.NewSim(count, log.Logger), "sim"

	case "spi":
		freq := physic.Frequency(cfg.SPI.SpeedHz) * physic.Hertz
		drv, err := led.OpenSPI(cfg.SPI.Dev, count, cfg.ColorOrder, freq)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "spi").
				Str("dev", cfg.SPI.Dev).
				Int("speed_hz", cfg.SPI.SpeedHz).
				Msg("SPI init failed; falling back to SIM")
			return led.NewSim(count, log.Logger), "sim"
		}
		log.Info().Str("dev", drv.String()).Msg("SPI driver ready")
		return drv, "spi"

	case "serial":
		drv, err := led.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud, count)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "serial").
				Str("port", cfg.Serial.Port).
				Int("baud", cfg.Serial.Baud).
				Msg("serial init failed; falling back to SIM")
			return led.NewSim(count, log.Logger), "sim"
		}
		return drv, "serial"

	default:
		log.Warn().Str("driver", cfg.Driver).Msg("unknown driver; using SIM")
		return led.NewSim(count, log.Logger), "sim"
	}
}

func registerProfiles(eng *smoothing.Engine, profiles []config.Profile) {
	for i, p := range profiles {
		id := eng.UpdateConfigFull(firstProfileID+smoothing.ConfigID(i), p.Config())
		log.Info().Str("profile", p.Name).Uint32("cfg", uint32(id)).Msg("smoothing profile registered")
	}
}

// reload applies the smoothing section and profiles of the config file.
// Layout and driver changes need a restart.
func reload(path string, eng *smoothing.Engine) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	eng.HandleSettingsUpdate(cfg.Smoothing.Settings())
	registerProfiles(eng, cfg.Profiles)
	log.Info().Str("path", path).Msg("config reloaded")
	return nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
