// Package config loads the robot's tunables from a YAML file.
//
// Every field has a default, so the file only needs to list what differs.
// The effective configuration is written back next to the file as
// <name>-in-use.yaml so that what the robot actually ran with is on record.
package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/kalman"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
	"github.com/firdauzbk/RoboticCarP3E/pkg/pid"
	"github.com/firdauzbk/RoboticCarP3E/pkg/telemetry"
	"github.com/firdauzbk/RoboticCarP3E/pkg/ultrasonic"
)

const DefaultPath = "/cfg/buddy.yaml"

const (
	DriverGPIO    = "gpio"
	DriverPCA9685 = "pca9685"
	DriverDummy   = "dummy"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Ranger    RangerConfig     `yaml:"ranger"`
	Kalman    KalmanConfig     `yaml:"kalman"`
	Chassis   chassis.Geometry `yaml:"chassis"`
	Encoders  EncoderConfig    `yaml:"encoders"`
	PID       PIDConfig        `yaml:"pid"`
	Motion    MotionConfig     `yaml:"motion"`
	Safety    SafetyConfig     `yaml:"safety"`
	Motors    MotorsConfig     `yaml:"motors"`
	Telemetry TelemetryConfig  `yaml:"telemetry"`
	Alert     AlertConfig      `yaml:"alert"`
}

type RangerConfig struct {
	TriggerPin  string        `yaml:"trigger_pin"`
	EchoPin     string        `yaml:"echo_pin"`
	EchoTimeout time.Duration `yaml:"echo_timeout"`
}

type KalmanConfig struct {
	ProcessNoise      float64 `yaml:"process_noise"`
	MeasurementNoise  float64 `yaml:"measurement_noise"`
	InitialCovariance float64 `yaml:"initial_covariance"`
	InitialEstimateCM float64 `yaml:"initial_estimate_cm"`
}

type EncoderConfig struct {
	LeftPin  string `yaml:"left_pin"`
	RightPin string `yaml:"right_pin"`
}

type PIDConfig struct {
	pid.Gains   `yaml:",inline"`
	MaxIntegral float64          `yaml:"max_integral"`
	Fallback    pid.TargetPolicy `yaml:"fallback"`
}

type MotionConfig struct {
	ObstacleThresholdCM       float64                `yaml:"obstacle_threshold_cm"`
	TargetDistanceCM          float64                `yaml:"target_distance_cm"`
	LeftInitialDuty           float64                `yaml:"left_initial_duty"`
	RightInitialDuty          float64                `yaml:"right_initial_duty"`
	TurnDuration              time.Duration          `yaml:"turn_duration"`
	TurnDutyCycle             float64                `yaml:"turn_duty_cycle"`
	DistanceMeasure           motion.DistanceMeasure `yaml:"distance_measure"`
	SpeedMatchInDistancePhase bool                   `yaml:"speed_match_in_distance_phase"`
	LoopInterval              time.Duration          `yaml:"loop_interval"`
	StatusLogInterval         time.Duration          `yaml:"status_log_interval"`
}

type SafetyConfig struct {
	RangerSilenceTimeout time.Duration `yaml:"ranger_silence_timeout"`
	EncoderStallTimeout  time.Duration `yaml:"encoder_stall_timeout"`
}

// MotorPins wires one wheel.  The GPIO driver uses the pin names, the
// PCA9685 driver the channel numbers.
type MotorPins struct {
	PWMPin     string `yaml:"pwm_pin"`
	In1Pin     string `yaml:"in1_pin"`
	In2Pin     string `yaml:"in2_pin"`
	PWMChannel int    `yaml:"pwm_channel"`
	In1Channel int    `yaml:"in1_channel"`
	In2Channel int    `yaml:"in2_channel"`
}

type MotorsConfig struct {
	Driver         string    `yaml:"driver"`
	PWMFrequencyHz float64   `yaml:"pwm_frequency_hz"`
	Left           MotorPins `yaml:"left"`
	Right          MotorPins `yaml:"right"`
	I2CDevice      string    `yaml:"i2c_device"`
	I2CAddr        int       `yaml:"i2c_addr"`
}

type TelemetryConfig struct {
	ListenAddr string        `yaml:"listen_addr"`
	SerialPort string        `yaml:"serial_port"`
	BaudRate   int           `yaml:"baud_rate"`
	Interval   time.Duration `yaml:"interval"`
}

type AlertConfig struct {
	BuzzerPin string        `yaml:"buzzer_pin"`
	Duration  time.Duration `yaml:"duration"`
	// SoundFile, if set, is a WAV played through the speaker instead of
	// pulsing the buzzer.
	SoundFile string `yaml:"sound_file"`
}

func Default() Config {
	mc := motion.DefaultConfig()
	return Config{
		Ranger: RangerConfig{
			TriggerPin:  "GPIO23",
			EchoPin:     "GPIO24",
			EchoTimeout: ultrasonic.DefaultEchoTimeout,
		},
		Kalman: KalmanConfig{
			ProcessNoise:      kalman.DefaultProcessNoise,
			MeasurementNoise:  kalman.DefaultMeasurementNoise,
			InitialCovariance: kalman.DefaultErrorCovariance,
			InitialEstimateCM: kalman.DefaultInitialEstimateCM,
		},
		Chassis: chassis.DefaultGeometry(),
		Encoders: EncoderConfig{
			LeftPin:  "GPIO5",
			RightPin: "GPIO6",
		},
		PID: PIDConfig{
			Gains:       mc.Gains,
			MaxIntegral: mc.MaxIntegral,
			Fallback:    mc.LeftTarget,
		},
		Motion: MotionConfig{
			ObstacleThresholdCM:       mc.ObstacleThresholdCM,
			TargetDistanceCM:          mc.TargetDistanceCM,
			LeftInitialDuty:           mc.InitialDuty[chassis.Left],
			RightInitialDuty:          mc.InitialDuty[chassis.Right],
			TurnDuration:              mc.TurnDuration,
			TurnDutyCycle:             mc.TurnDutyCycle,
			DistanceMeasure:           mc.DistanceMeasure,
			SpeedMatchInDistancePhase: mc.SpeedMatchInDistancePhase,
			LoopInterval:              mc.LoopInterval,
			StatusLogInterval:         mc.StatusLogInterval,
		},
		Safety: SafetyConfig{
			RangerSilenceTimeout: mc.RangerSilenceTimeout,
			EncoderStallTimeout:  mc.EncoderStallTimeout,
		},
		Motors: MotorsConfig{
			Driver:         DriverGPIO,
			PWMFrequencyHz: 100,
			Left: MotorPins{
				PWMPin: "GPIO12", In1Pin: "GPIO17", In2Pin: "GPIO27",
				PWMChannel: 0, In1Channel: 1, In2Channel: 2,
			},
			Right: MotorPins{
				PWMPin: "GPIO13", In1Pin: "GPIO22", In2Pin: "GPIO16",
				PWMChannel: 3, In1Channel: 4, In2Channel: 5,
			},
			I2CDevice: "/dev/i2c-1",
			I2CAddr:   0x40,
		},
		Telemetry: TelemetryConfig{
			ListenAddr: telemetry.DefaultListenAddr,
			BaudRate:   telemetry.DefaultBaudRate,
			Interval:   telemetry.DefaultPublishInterval,
		},
		Alert: AlertConfig{
			BuzzerPin: "GPIO18",
			Duration:  200 * time.Millisecond,
		},
	}
}

// Load reads path over the defaults.  A missing file is not an error.
func Load(path string) (Config, error) {
	c := Default()
	logCtx := log.WithField("path", path)

	raw, err := ioutil.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logCtx.Info("No config file, using defaults")
	case err != nil:
		return c, errors.Wrapf(err, "failed to read %s", path)
	default:
		if err := yaml.UnmarshalStrict(raw, &c); err != nil {
			return c, errors.Wrapf(err, "failed to parse %s", path)
		}
	}
	if err := c.Validate(); err != nil {
		return c, err
	}

	// Write out the config that we are using.
	if out, err := yaml.Marshal(&c); err != nil {
		logCtx.WithError(err).Warn("Failed to marshal config in use")
	} else if err := ioutil.WriteFile(InUsePath(path), out, 0666); err != nil {
		logCtx.WithError(err).Warn("Failed to write config in use")
	}
	return c, nil
}

// InUsePath maps /cfg/buddy.yaml to /cfg/buddy-in-use.yaml.
func InUsePath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "-in-use" + ext
}

func (c Config) Validate() error {
	var problems []string
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(c.Chassis.WheelDiameterCM > 0, "chassis.wheel_diameter_cm must be positive")
	check(c.Chassis.SlotsPerRevolution > 0, "chassis.slots_per_revolution must be positive")
	check(c.Chassis.TrackWidthCM > 0, "chassis.track_width_cm must be positive")

	check(c.Kalman.InitialEstimateCM >= kalman.MinDistanceCM && c.Kalman.InitialEstimateCM <= kalman.MaxDistanceCM,
		"kalman.initial_estimate_cm must be within [%v, %v]", kalman.MinDistanceCM, kalman.MaxDistanceCM)
	check(c.Ranger.EchoTimeout > 0 && c.Ranger.EchoTimeout <= ultrasonic.MeasurementTimeout,
		"ranger.echo_timeout must be in (0, %v]", ultrasonic.MeasurementTimeout)

	check(c.PID.MaxIntegral > 0, "pid.max_integral must be positive")
	check(c.PID.Fallback.Strategy.Valid(), "pid.fallback.strategy %q unknown", c.PID.Fallback.Strategy)
	check(c.PID.Fallback.Strategy != pid.FallbackFixed || c.PID.Fallback.FixedCMPerSec > 0,
		"pid.fallback.fixed_cm_per_sec must be positive")

	m := c.Motion
	check(m.ObstacleThresholdCM >= kalman.MinDistanceCM, "motion.obstacle_threshold_cm below sensor minimum")
	check(m.TargetDistanceCM >= 0, "motion.target_distance_cm must not be negative")
	for name, d := range map[string]float64{
		"left_initial_duty":  m.LeftInitialDuty,
		"right_initial_duty": m.RightInitialDuty,
		"turn_duty_cycle":    m.TurnDutyCycle,
	} {
		check(d >= 0 && d <= 1, "motion.%s must be within [0, 1]", name)
	}
	check(m.TurnDuration > 0, "motion.turn_duration must be positive")
	check(m.DistanceMeasure.Valid(), "motion.distance_measure %q unknown", m.DistanceMeasure)
	check(m.LoopInterval > 0, "motion.loop_interval must be positive")

	check(c.Safety.RangerSilenceTimeout >= 0, "safety.ranger_silence_timeout must not be negative")
	check(c.Safety.EncoderStallTimeout >= 0, "safety.encoder_stall_timeout must not be negative")

	switch c.Motors.Driver {
	case DriverGPIO, DriverPCA9685, DriverDummy:
	default:
		problems = append(problems, fmt.Sprintf("motors.driver %q unknown", c.Motors.Driver))
	}
	check(c.Motors.PWMFrequencyHz > 0, "motors.pwm_frequency_hz must be positive")

	if len(problems) == 0 {
		return nil
	}
	// Map iteration order is random.
	sort.Strings(problems)
	return errors.Wrap(ErrInvalid, strings.Join(problems, "; "))
}

// MotionConfig builds the state machine's configuration.
func (c Config) MotionConfig() motion.Config {
	return motion.Config{
		ObstacleThresholdCM:       c.Motion.ObstacleThresholdCM,
		TargetDistanceCM:          c.Motion.TargetDistanceCM,
		InitialDuty:               chassis.PerWheel[float64]{c.Motion.LeftInitialDuty, c.Motion.RightInitialDuty},
		TurnDuration:              c.Motion.TurnDuration,
		TurnDutyCycle:             c.Motion.TurnDutyCycle,
		DistanceMeasure:           c.Motion.DistanceMeasure,
		SpeedMatchInDistancePhase: c.Motion.SpeedMatchInDistancePhase,
		Gains:                     c.PID.Gains,
		MaxIntegral:               c.PID.MaxIntegral,
		LeftTarget:                c.PID.Fallback,
		LoopInterval:              c.Motion.LoopInterval,
		StatusLogInterval:         c.Motion.StatusLogInterval,
		RangerSilenceTimeout:      c.Safety.RangerSilenceTimeout,
		EncoderStallTimeout:       c.Safety.EncoderStallTimeout,
	}
}

func (c Config) NewKalmanFilter() *kalman.Filter {
	k := c.Kalman
	return kalman.New(k.ProcessNoise, k.MeasurementNoise, k.InitialCovariance, k.InitialEstimateCM)
}
