package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"

	"github.com/coreman2200/keyglow/internal/actions"
	"github.com/coreman2200/keyglow/internal/board"
	"github.com/coreman2200/keyglow/internal/capability"
	"github.com/coreman2200/keyglow/internal/cli"
	"github.com/coreman2200/keyglow/internal/config"
	diag "github.com/coreman2200/keyglow/internal/diagnostics"
	"github.com/coreman2200/keyglow/internal/led"
	"github.com/coreman2200/keyglow/internal/ws"
)

func main() {
	// ---- Flags (config.yaml fills in what is not given) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		driver     = flag.String("driver", "", "driver: i2c | nrz | console | sim")
		addr       = flag.String("addr", "", "HTTP listen address (\"-\" disables)")
		serialPort = flag.String("serial", "", "debug console serial port (default stdin)")
		budget     = flag.Uint("budget-ma", 0, "initial current budget in mA (0 = from config)")
		noConsole  = flag.Bool("no-console", false, "do not read console commands")
		watch      = flag.Bool("watch", true, "reload the keymap when config.yaml changes")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	hub := diag.NewHub()
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).Hook(hub.Hook())

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; using defaults")
		cfg = config.Default()
	}
	if *driver != "" {
		cfg.Driver = *driver
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *serialPort != "" {
		cfg.Serial.Port = *serialPort
	}
	if *budget != 0 {
		cfg.Power.BudgetMA = *budget
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// ---- Console I/O ----
	var consoleIn io.Reader = os.Stdin
	var consoleOut io.Writer = os.Stdout
	var closeConsole func() error
	if cfg.Serial.Port != "" {
		p, err := cli.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			log.Fatal().Err(err).Msg("serial console")
		}
		consoleIn, consoleOut, closeConsole = p, p, p.Close
	}

	// ---- Driver selection ----
	drv, selected := openDriver(cfg)

	newBoard := func(drv led.Driver) (*board.Board, error) {
		b, err := board.New(cfg, board.Options{
			Driver:  drv,
			Console: io.MultiWriter(consoleOut, hub.Writer("CONSOLE")),
			Output: actions.OutputFunc(func(ev capability.KeyEvent) {
				log.Debug().Stringer("event", ev).Msg("usb code")
			}),
			Log: log.Logger,
		})
		if err != nil {
			return nil, err
		}
		return b, b.Setup()
	}
	b, err := newBoard(drv)
	if err != nil && selected != "console" && selected != "sim" {
		log.Warn().Err(err).Str("driver", selected).Msg("driver setup failed; falling back to console")
		_ = drv.Close()
		drv, selected = led.NewConsole(), "console"
		b, err = newBoard(drv)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("setup")
	}

	state := ws.NewState(b.Layout, nil, hub, selected)
	b.LEDs.OnSent = state.PublishPage

	shell := cli.New(cli.Env{
		Loop:       b.Loop,
		Dispatcher: b.Dispatcher,
		Matrix:     b.Matrix,
		LEDs:       b.LEDs,
		Engine:     b.Engine,
		Lum:        b.Lum,
		Actions:    b.Actions,
		Layout:     b.Layout,
		Clock:      b.Clock,
	}, log.Logger)
	state.Console = shell

	// ---- Run ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(b.Loop.Run(ctx, b.Period())) })
	g.Go(func() error { return state.RunBroadcast(ctx) })

	if cfg.Addr != "-" {
		srv := &http.Server{
			Addr:         cfg.Addr,
			Handler:      state.Handler(),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", cfg.Addr).Str("driver", selected).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	if *watch {
		g.Go(func() error {
			return config.Watch(ctx, *configPath, log.Logger, b.Reload)
		})
	}

	if !*noConsole {
		// Reads block; a stdin console is left running when the group ends.
		go func() {
			if err := shell.Serve(ctx, consoleIn, consoleOut); err != nil {
				log.Warn().Err(err).Msg("console stopped")
			}
		}()
	}
	if closeConsole != nil {
		g.Go(func() error {
			<-ctx.Done()
			return closeConsole()
		})
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("stopped")
	}
	log.Info().Msg("shutting down")
	if err := b.LEDs.Close(); err != nil {
		log.Warn().Err(err).Msg("driver close")
	}
}

// openDriver builds the configured LED driver, falling back to the console
// renderer when the hardware cannot be opened.
func openDriver(cfg *config.Config) (led.Driver, string) {
	switch cfg.Driver {
	case "i2c", "nrz":
		if _, err := host.Init(); err != nil {
			log.Warn().Err(err).Msg("periph host init failed; falling back to console")
			return led.NewConsole(), "console"
		}
	}

	switch cfg.Driver {
	case "i2c":
		bus, err := i2creg.Open(cfg.I2C.Bus)
		if err != nil {
			log.Warn().Err(err).Str("bus", cfg.I2C.Bus).Msg("I2C open failed; falling back to console")
			return led.NewConsole(), "console"
		}
		chip := led.NewISSI(bus, cfg.I2C.ChipAddr)
		chip.PWMRegister = cfg.I2C.Register
		return &busDriver{ISSI: chip, bus: bus}, "i2c"

	case "nrz":
		d, err := led.NewNRZ(cfg.SPI.Port, physic.Frequency(cfg.SPI.FreqKHz)*physic.KiloHertz)
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "nrz").
				Str("port", cfg.SPI.Port).
				Int("freq_khz", cfg.SPI.FreqKHz).
				Msg("SPI init failed; falling back to console")
			return led.NewConsole(), "console"
		}
		return d, "nrz"

	case "console":
		return led.NewConsole(), "console"
	}
	return &led.Recorder{Max: 1}, "sim"
}

// busDriver closes the I2C bus together with the chip.
type busDriver struct {
	*led.ISSI
	bus io.Closer
}

func (d *busDriver) Close() error {
	return errors.Join(d.ISSI.Close(), d.bus.Close())
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
