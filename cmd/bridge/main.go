// cmd/bridge/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/acquire"
	"github.com/tamzrod/pressure-bridge/internal/bus"
	"github.com/tamzrod/pressure-bridge/internal/config"
	"github.com/tamzrod/pressure-bridge/internal/fieldbus"
	"github.com/tamzrod/pressure-bridge/internal/metrics"
	"github.com/tamzrod/pressure-bridge/internal/reading"
	"github.com/tamzrod/pressure-bridge/internal/regmap"
	"github.com/tamzrod/pressure-bridge/internal/sensor"
	"github.com/tamzrod/pressure-bridge/internal/telemetry"
)

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func fatal(log *slog.Logger, msg string, args ...any) {
	log.Error(msg, args...)
	os.Exit(1)
}

func main() {
	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))
	if len(os.Args) < 2 {
		fatal(boot, "usage: bridge <config.yaml>")
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(os.Args[1])
	if err != nil {
		fatal(boot, "config load failed", "err", err)
	}
	if err := config.Validate(cfg); err != nil {
		fatal(boot, "config validation failed", "err", err)
	}
	config.Normalize(cfg)
	b := cfg.Bridge

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: b.Log.LogLevel()}))
	slog.SetDefault(log)

	if err := run(b, log); err != nil {
		fatal(log, "bridge failed", "err", err)
	}
}

// run owns every resource it opens; each is released by its defer on any return.
func run(b config.BridgeConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --------------------
	// Bus + sensor
	// --------------------

	i2cBus, err := bus.OpenLinux(b.Bus.Device)
	if err != nil {
		return fmt.Errorf("open bus %q: %w", b.Bus.Device, err)
	}
	defer i2cBus.Close()

	tr, err := bus.New(i2cBus, bus.Config{Addr: b.Bus.Address, Timeout: ms(b.Bus.TimeoutMs)})
	if err != nil {
		return fmt.Errorf("bus transport: %w", err)
	}

	store := reading.New()
	collector := metrics.New(store)

	acq, err := acquire.New(
		acquire.Config{Interval: ms(b.Acquisition.IntervalMs), StartCommand: b.Bus.StartCommand},
		tr, store, collector, log,
	)
	if err != nil {
		return fmt.Errorf("acquisition: %w", err)
	}

	// --------------------
	// Register map + fieldbus server
	// --------------------

	regScale := sensor.RegisterScale{
		PressureDivisor:    b.Registers.PressureDivisor,
		TemperatureDivisor: b.Registers.TemperatureDivisor,
	}

	image := regmap.NewImage(int(b.Registers.Count))
	exp, err := regmap.NewExposer(regmap.Config{
		Interval:    ms(b.Exposition.IntervalMs),
		Scale:       regScale,
		StatusBlock: b.Registers.StatusBlock,
		StaleAfter:  ms(b.Registers.StaleAfterMs),
	}, store, image, log)
	if err != nil {
		return fmt.Errorf("exposition: %w", err)
	}

	srv, err := fieldbus.New(fieldbus.Config{Listen: b.Fieldbus.Listen, UnitID: b.Fieldbus.UnitID}, image, collector, log)
	if err != nil {
		return fmt.Errorf("fieldbus: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("fieldbus listen %s: %w", b.Fieldbus.Listen, err)
	}
	defer srv.Close()

	// --------------------
	// Telemetry sinks
	// --------------------

	t := b.Telemetry
	var (
		sinks  []telemetry.Sink
		broker metrics.Probe
	)

	if t.Broker != "" {
		client, err := telemetry.Connect(ctx, telemetry.MQTTConfig{
			Broker:            t.Broker,
			ClientID:          t.ClientID,
			Username:          t.Username,
			Password:          t.Password,
			ConnectMaxElapsed: time.Minute,
		}, log)
		if err != nil {
			return fmt.Errorf("mqtt connect: %w", err)
		}
		sink, err := telemetry.NewMQTTSink(client, telemetry.MQTTTopics{
			Pressure:    t.PressureTopic,
			Temperature: t.TemperatureTopic,
		}, *t.QoS)
		if err != nil {
			return fmt.Errorf("mqtt sink: %w", err)
		}
		sinks = append(sinks, sink)
		broker = sink
	}

	influxCfg := telemetry.InfluxConfig{
		URL:         t.Influx.URL,
		Token:       t.Influx.Token,
		Org:         t.Influx.Org,
		Bucket:      t.Influx.Bucket,
		Measurement: t.Influx.Measurement,
		Device:      b.Bus.Device,
		Scale:       sensor.Scale{Pressure: b.Sensor.PressureScale, Temperature: b.Sensor.TemperatureScale},
	}
	if influxCfg.Enabled() {
		sink, err := telemetry.NewInfluxSink(influxCfg)
		if err != nil {
			return fmt.Errorf("influx sink: %w", err)
		}
		sinks = append(sinks, sink)
	}

	pub, err := telemetry.NewPublisher(telemetry.Config{
		Interval:         ms(t.IntervalMs),
		Scale:            regScale,
		PublishTimeout:   ms(t.PublishTimeoutMs),
		PublishUnchanged: *t.PublishUnchanged,
	}, store, sinks, collector, log)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer pub.Close()

	// --------------------
	// Metrics + health HTTP
	// --------------------

	var httpSrv *http.Server
	if b.Metrics.Listen != "" {
		stale := ms(b.Registers.StaleAfterMs)
		if stale == 0 {
			stale = ms(config.StaleAfterMs(b.Acquisition.IntervalMs))
		}
		httpSrv = &http.Server{
			Addr: b.Metrics.Listen,
			Handler: metrics.NewMux(collector, &metrics.Health{
				Source:     store,
				Broker:     broker,
				StaleAfter: stale,
			}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("metrics server stopped", "listen", b.Metrics.Listen, "err", err)
			}
		}()
	}

	// --------------------
	// Tasks
	// --------------------

	log.Info("bridge started",
		"bus", b.Bus.Device,
		"addr", tr.Addr(),
		"fieldbus", b.Fieldbus.Listen,
		"unit_id", b.Fieldbus.UnitID,
		"sinks", len(sinks),
	)

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){acq.Run, exp.Run, pub.Run} {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(ctx)
		}(run)
	}

	<-ctx.Done()
	log.Info("shutting down")
	wg.Wait()

	// Acquisition has stopped; wait out any abandoned transaction before the stop command.
	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := tr.Drain(stopCtx); err != nil {
		log.Warn("bus still busy, skipping sensor stop command", "err", err)
	} else if err := tr.Command(stopCtx, sensor.CmdStop); err != nil {
		log.Warn("sensor stop command failed", "err", err)
	}

	if httpSrv != nil {
		_ = httpSrv.Shutdown(stopCtx)
	}
	return nil
}
