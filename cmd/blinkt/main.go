// Command blinkt sets the pixels of an APA102 strip from the command line,
// or runs an effect loop with a websocket control server.
//
//	blinkt [flags] set <index> <r> <g> <b> [brightness]
//	blinkt [flags] fill <r> <g> <b> [brightness]
//	blinkt [flags] clear
//	blinkt [flags] run
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/funtimes-blinkt/blinkt"
	"github.com/coreman2200/funtimes-blinkt/internal/config"
	"github.com/coreman2200/funtimes-blinkt/internal/effect"
	"github.com/coreman2200/funtimes-blinkt/internal/mirror"
	"github.com/coreman2200/funtimes-blinkt/internal/server"
	"github.com/coreman2200/funtimes-blinkt/model"
)

var (
	configPath  string
	driver      string
	dataPin     int
	clockPin    int
	brightness  float64
	clearOnExit bool
	fps         int
	effectName  string
	addr        string
	console     bool
	verbose     bool
)

func init() {
	registerFlags(pflag.CommandLine)
}

// registerFlags binds the command line flags to fs and resets them to their
// defaults.
func registerFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&configPath, "config", "c", "blinkt.yaml", "path to config file")
	fs.StringVar(&driver, "driver", "", "output driver: gpio | sim")
	fs.IntVar(&dataPin, "data-pin", blinkt.DefaultDataPin, "data (DAT) pin, BCM number")
	fs.IntVar(&clockPin, "clock-pin", blinkt.DefaultClockPin, "clock (CLK) pin, BCM number")
	fs.Float64VarP(&brightness, "brightness", "b", model.DefaultBrightness, "brightness 0..1 for run")
	fs.BoolVar(&clearOnExit, "clear-on-exit", false, "turn the strip off on exit")
	fs.IntVar(&fps, "fps", 30, "frames per second for run")
	fs.StringVarP(&effectName, "effect", "e", "rainbow", "effect for run: "+fmt.Sprint(effect.Names()))
	fs.StringVarP(&addr, "addr", "a", "127.0.0.1:8080", "control server address for run, empty to disable")
	fs.BoolVar(&console, "console", false, "mirror the strip to the console")
	fs.BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
}

func main() {
	pflag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, pflag.Args()); err != nil {
		log.Fatal().Err(err).Msg("blinkt")
	}
}

func run(ctx context.Context, args []string) (err error) {
	if len(args) == 0 {
		return errors.New("missing command: set | fill | clear | run")
	}
	cfg, err := loadConfig(pflag.CommandLine)
	if err != nil {
		return err
	}

	mirrors, closePorts, err := mirror.Open(cfg.Mirrors, model.NumPixels, log.Logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closePorts()) }()

	var pins blinkt.PinProvider = &blinkt.HostPins{}
	if cfg.Driver == config.DriverSim {
		pins = &blinkt.SimPins{}
	}
	opts := []blinkt.Option{
		blinkt.WithLogger(log.Logger.With().Str("component", "driver").Logger()),
		blinkt.WithClearOnExit(cfg.ClearOnExit),
	}
	for _, m := range mirrors {
		opts = append(opts, blinkt.WithMirror(m))
	}

	return blinkt.Run(pins, func(d *blinkt.Driver) error {
		if err := d.Setup(cfg.DataPin, cfg.ClockPin); err != nil {
			return err
		}
		switch args[0] {
		case "set":
			return oneShot(d, args[1:], 4, func(v []int, b *float64) error {
				if b != nil {
					return d.SetPixelRGBB(v[0], v[1], v[2], v[3], *b)
				}
				return d.SetPixel(v[0], v[1], v[2], v[3])
			})
		case "fill":
			return oneShot(d, args[1:], 3, func(v []int, b *float64) error {
				if b != nil {
					return d.SetPixelsRGBB(v[0], v[1], v[2], *b)
				}
				return d.SetPixels(v[0], v[1], v[2])
			})
		case "clear":
			d.Clear()
			return d.Show()
		case "run":
			return runLoop(ctx, d, cfg)
		}
		return fmt.Errorf("unknown command %q", args[0])
	}, opts...)
}

// oneShot parses n integers and an optional brightness from args, applies
// them with set and shows the result.
func oneShot(d *blinkt.Driver, args []string, n int, set func(v []int, b *float64) error) error {
	if len(args) != n && len(args) != n+1 {
		return fmt.Errorf("want %d or %d arguments, got %d", n, n+1, len(args))
	}
	v := make([]int, n)
	for i := range v {
		x, err := strconv.Atoi(args[i])
		if err != nil {
			return fmt.Errorf("argument %d: %w", i+1, err)
		}
		v[i] = x
	}
	var b *float64
	if len(args) == n+1 {
		f, err := strconv.ParseFloat(args[n], 64)
		if err != nil {
			return fmt.Errorf("brightness: %w", err)
		}
		b = &f
	}
	if err := set(v, b); err != nil {
		return err
	}
	return d.Show()
}

func runLoop(ctx context.Context, d *blinkt.Driver, cfg *config.Config) error {
	e, err := effect.Lookup(cfg.Effect)
	if err != nil {
		return err
	}
	if err := d.SetBrightness(cfg.Brightness); err != nil {
		return err
	}

	mu := &sync.Mutex{}
	loop := effect.NewLoop(d, mu, cfg.FPS, e)
	loop.Log = log.Logger.With().Str("component", "effect").Logger()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(ctx)
	})

	if cfg.Addr != "" {
		ctl := server.New(d, mu, loop, log.Logger.With().Str("component", "server").Logger())
		srv := &http.Server{
			Addr:         cfg.Addr,
			Handler:      ctl.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Addr).Str("driver", cfg.Driver).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			// Close leaves hijacked websocket connections open.
			return errors.Join(srv.Close(), ctl.Close())
		})
	}

	log.Info().Str("effect", e.Name()).Int("fps", cfg.FPS).Msg("running")
	err = g.Wait()
	log.Info().Msg("shutting down")

	// The loop and every control client have stopped. Close here, under the
	// lock, so the deferred Close in blinkt.Run finds the driver closed.
	mu.Lock()
	defer mu.Unlock()
	return errors.Join(err, d.Close())
}

// loadConfig layers defaults, the config file and flags changed in flags,
// in that order.
func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || flags.Changed("config") {
			return nil, err
		}
		log.Warn().Str("path", configPath).Msg("no config file; using defaults and flags")
		c := config.Default()
		cfg = &c
	}

	if flags.Changed("driver") {
		cfg.Driver = driver
	}
	if flags.Changed("data-pin") {
		cfg.DataPin = dataPin
	}
	if flags.Changed("clock-pin") {
		cfg.ClockPin = clockPin
	}
	if flags.Changed("brightness") {
		cfg.Brightness = brightness
	}
	if flags.Changed("clear-on-exit") {
		cfg.ClearOnExit = clearOnExit
	}
	if flags.Changed("fps") {
		cfg.FPS = fps
	}
	if flags.Changed("effect") {
		cfg.Effect = effectName
	}
	if flags.Changed("addr") {
		cfg.Addr = addr
	}
	if flags.Changed("console") {
		cfg.Mirrors.Console = console
	}
	return cfg, cfg.Validate()
}
