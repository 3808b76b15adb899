package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/calibration"
	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/config"
	"github.com/firdauzbk/RoboticCarP3E/pkg/hardware"
)

var (
	configFile = flag.String("config", config.DefaultPath, "Configuration file")
	plotFile   = flag.String("plot", "duty-calibration.png", "Where to write the fit plot; empty to skip")
	settle     = flag.Duration("settle", time.Second, "Time to let the wheel settle at each duty")
	measure    = flag.Duration("measure", 2*time.Second, "Time to measure at each duty")
	verbose    = flag.Bool("v", false, "Debug logging")
	simulate   = flag.Bool("sim", false, "Calibrate the simulated robot")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	fmt.Println("---- Duty Calibration ----")
	fmt.Println("Lift the robot so the right wheel spins freely, or put it on a long clear run.")

	if err := run(); err != nil {
		log.WithError(err).Error("Calibration failed")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var hw hardware.Interface
	if *simulate {
		hw = hardware.NewSimulated(cfg, hardware.DefaultSimConfig(), clock.New())
	} else {
		h, err := hardware.New(cfg)
		if err != nil {
			return err
		}
		hw = h
	}
	defer func() {
		cancel()
		hw.Shutdown()
	}()
	hw.Start(ctx)

	sweep := calibration.DefaultSweep()
	sweep.Settle = *settle
	sweep.Measure = *measure

	samples, err := calibration.Sweep(ctx, sweep, hw.Motors(), chassis.Right, hw.Encoders()[chassis.Right], hw.Clock())
	if err != nil {
		return err
	}
	for _, s := range samples {
		fmt.Printf("duty %.2f: %6.1f cm/s\n", s.Duty, s.SpeedCMPerSec)
	}

	result, err := calibration.Fit(samples)
	if err != nil {
		return err
	}
	fmt.Println("Fit:", result)

	snippet, err := calibration.Snippet(result)
	if err != nil {
		return err
	}
	fmt.Println("Paste into the config file:")
	fmt.Println(snippet)

	if *plotFile != "" {
		if err := calibration.SavePlot(*plotFile, samples, result); err != nil {
			return err
		}
		log.WithField("file", *plotFile).Info("Wrote plot")
	}
	return nil
}
