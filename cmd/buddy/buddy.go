package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/config"
	"github.com/firdauzbk/RoboticCarP3E/pkg/hardware"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/odometry"
	"github.com/firdauzbk/RoboticCarP3E/pkg/telemetry"
)

var (
	configFile = flag.String("config", config.DefaultPath, "Configuration file")
	verbose    = flag.Bool("v", false, "Log PID detail every control cycle")
	simulate   = flag.Bool("sim", false, "Drive a simulated robot instead of the GPIO hardware")
)

func main() {
	flag.Parse()
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("---- Buddy ----")
	log.WithField("GOMAXPROCS", runtime.GOMAXPROCS(0)).Info("Starting")

	if err := run(); err != nil {
		log.WithError(err).Error("Controller failed")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(*configFile)
	if err != nil {
		return err
	}

	// Our global context, we cancel it to trigger shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	registerSignalHandlers(cancel)

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
		log.Info("Zeroing motors for shut down")
		cancel()
		hw.Shutdown()
		time.Sleep(100 * time.Millisecond)
	}()
	hw.Start(ctx)

	m := motion.New(cfg.MotionConfig(), hardware.Sensors(hw), hw.Motors(), hw.Clock())
	m.SetAlerter(hw.Alerter())
	odo := odometry.New(cfg.Chassis)
	m.SetOdometer(odo)

	var wg sync.WaitGroup
	closeSinks := func() {}
	defer func() {
		cancel()
		wg.Wait()
		closeSinks()
	}()
	sinks, closer, err := openSinks(ctx, cfg.Telemetry, &wg)
	if err != nil {
		return err
	}
	closeSinks = closer
	wg.Add(1)
	go telemetry.NewPublisher(m, cfg.Telemetry.Interval, sinks...).Loop(ctx, &wg)

	err = m.Run(ctx)
	st := m.Status()
	log.WithFields(log.Fields{
		"reason":    st.StopReason,
		"distance":  st.PhaseDistanceCM,
		"pose":      st.Pose,
		"fromStart": odo.DistanceFromStartCM(),
	}).Info("Mission over")
	return err
}

func openSinks(ctx context.Context, cfg config.TelemetryConfig, wg *sync.WaitGroup) ([]telemetry.Sink, func(), error) {
	var sinks []telemetry.Sink
	var closers []func() error
	closeAll := func() {
		for _, c := range closers {
			_ = c()
		}
	}

	if cfg.ListenAddr != "" {
		srv, err := telemetry.Listen(cfg.ListenAddr)
		if err != nil {
			return nil, nil, err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Serve(ctx); err != nil {
				log.WithError(err).Warn("Telemetry server stopped")
			}
		}()
		sinks = append(sinks, srv)
		closers = append(closers, srv.Close)
	}
	if cfg.SerialPort != "" {
		s, err := telemetry.OpenSerial(cfg.SerialPort, cfg.BaudRate)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
		closers = append(closers, s.Close)
	}
	return sinks, closeAll, nil
}

func registerSignalHandlers(cancelFunc context.CancelFunc) {
	// Hook Ctrl-C to cause shut down.
	signals := make(chan os.Signal, 2)
	signal.Notify(signals, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		s := <-signals
		log.WithField("signal", s).Info("Signal received")
		cancelFunc()
		time.Sleep(2 * time.Second)
		os.Exit(0)
	}()
}
