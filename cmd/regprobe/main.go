// cmd/regprobe/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tamzrod/pressure-bridge/internal/poller"
	"github.com/tamzrod/pressure-bridge/internal/regmap"
)

func main() {
	endpoint := flag.String("endpoint", "127.0.0.1:502", "bridge Modbus-TCP endpoint")
	unitID := flag.Uint("unit", 1, "Modbus unit id")
	fc := flag.Uint("fc", 3, "read function code (3 holding, 4 input)")
	words := flag.Uint("words", regmap.DefaultWords, "number of registers to read")
	status := flag.Bool("status", false, "decode the status block in words 2..4")
	interval := flag.Duration("interval", time.Second, "poll interval")
	timeout := flag.Duration("timeout", 2*time.Second, "request timeout")
	once := flag.Bool("once", false, "poll once and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	p, closeClient, err := poller.Build(poller.Target{
		Endpoint:    *endpoint,
		UnitID:      uint8(*unitID),
		Timeout:     *timeout,
		Interval:    *interval,
		FC:          uint8(*fc),
		Words:       uint16(*words),
		StatusBlock: *status,
	})
	if err != nil {
		log.Error("probe setup failed", "endpoint", *endpoint, "err", err)
		os.Exit(1)
	}
	defer closeClient()

	if *once {
		s := p.PollOnce()
		if s.Err != nil {
			log.Error("poll failed", "err", s.Err)
			os.Exit(1)
		}
		printSnapshot(s)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := make(chan poller.Snapshot)
	go p.Run(ctx, out)

	var failing bool
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-out:
			if s.Err != nil {
				// state changes only
				if !failing {
					log.Warn("poll failed", "endpoint", *endpoint, "err", s.Err)
					failing = true
				}
				continue
			}
			if failing {
				log.Info("poll recovered", "endpoint", *endpoint)
				failing = false
			}
			printSnapshot(s)
		}
	}
}

func printSnapshot(s poller.Snapshot) {
	line := fmt.Sprintf("%s pressure=%.1f temperature=%.1f",
		s.At.Format(time.RFC3339), float64(s.Pressure)/10, float64(s.Temperature)/10)
	if s.Status != nil {
		line += fmt.Sprintf(" health=%s age=%ds seq=%d",
			healthName(s.Status.Health), s.Status.SecondsSinceSample, s.Status.Seq)
	}
	fmt.Println(line)
}

func healthName(h uint16) string {
	switch h {
	case regmap.HealthUnknown:
		return "unknown"
	case regmap.HealthOK:
		return "ok"
	case regmap.HealthStale:
		return "stale"
	default:
		return fmt.Sprintf("0x%04X", h)
	}
}
