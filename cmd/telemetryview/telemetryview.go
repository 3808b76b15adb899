package main

import (
	"context"
	"flag"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/telemetry"
)

var (
	addr    = flag.String("addr", "192.168.4.1:4242", "Robot telemetry address")
	retry   = flag.Duration("retry", 2*time.Second, "Delay before reconnecting after a dropped connection")
	verbose = flag.Bool("v", false, "Debug logging")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	fmt.Println("---- Telemetry ----")
	for ctx.Err() == nil {
		err := telemetry.Watch(ctx, *addr, func(f telemetry.Frame) {
			fmt.Printf("%s  %-10s %4d cm/s\n", time.Now().Format("15:04:05.000"), f.Direction, f.Speed)
		})
		if ctx.Err() != nil {
			break
		}
		log.WithError(err).WithField("addr", *addr).Warn("Lost connection, retrying")
		select {
		case <-ctx.Done():
		case <-time.After(*retry):
		}
	}
}
