// Package motion is the robot's behaviour: drive forward with the left wheel
// speed-matched to the right, pivot right on meeting an obstacle, then drive a
// fixed distance and stop.
package motion

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clamp"
	"github.com/firdauzbk/RoboticCarP3E/pkg/clock"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motor"
	"github.com/firdauzbk/RoboticCarP3E/pkg/odometry"
	"github.com/firdauzbk/RoboticCarP3E/pkg/pid"
	"github.com/firdauzbk/RoboticCarP3E/pkg/ultrasonic"
)

type Ranger interface {
	Measure() ultrasonic.Reading
	SilentFor() time.Duration
}

type Odometer interface {
	Snapshot() encoder.State
	ResetCounters()
	SinceLastPulse(nowMicros uint64) (time.Duration, bool)
}

type Sensors struct {
	Ranger Ranger
	Wheels chassis.PerWheel[Odometer]
}

// Alerter is told when an obstacle is detected.  It must not block.
type Alerter interface {
	Alert()
}

// Status is a snapshot of the machine for logging and telemetry.
type Status struct {
	State      State
	StopReason StopReason
	DistanceCM float64
	Wheels     chassis.PerWheel[encoder.State]
	Duty       chassis.PerWheel[float64]
	Forward    chassis.PerWheel[bool]
	// LeftTargetCMPerSec is the speed-match target from the last PID step.
	LeftTargetCMPerSec float64
	// PhaseDistanceCM is the distance counted towards the target in
	// MovingForwardDistance.
	PhaseDistanceCM float64
	Pose            odometry.Pose
}

type Machine struct {
	cfg     Config
	sensors Sensors
	motors  motor.Actuator
	clock   clock.Clock
	pid     *pid.Controller
	alerter Alerter
	odo     *odometry.Odometer
	log     *log.Entry

	// Owned by the goroutine calling Step.
	state            State
	stopReason       StopReason
	started          bool
	phaseStartMicros uint64
	lastStatusLog    uint64
	duty             chassis.PerWheel[float64]
	forward          chassis.PerWheel[bool]
	distanceCM       float64
	leftTarget       float64
	phaseDistance    float64

	lock   sync.Mutex
	status Status
}

func New(cfg Config, sensors Sensors, motors motor.Actuator, clk clock.Clock) *Machine {
	return &Machine{
		cfg:     cfg,
		sensors: sensors,
		motors:  motors,
		clock:   clk,
		pid:     pid.New(cfg.Gains, cfg.MaxIntegral),
		log:     log.WithField("component", "motion"),
		forward: chassis.PerWheel[bool]{true, true},
	}
}

func (m *Machine) SetAlerter(a Alerter) {
	m.alerter = a
}

// SetOdometer enables pose tracking.
func (m *Machine) SetOdometer(o *odometry.Odometer) {
	m.odo = o
}

func (m *Machine) PID() *pid.Controller {
	return m.pid
}

// Start puts both wheels forward at their initial duty cycles and enters
// MovingForward.  Step calls it if it has not been called.
func (m *Machine) Start() error {
	m.started = true
	m.pid.Reset()
	m.phaseStartMicros = m.clock.NowMicros()
	m.lastStatusLog = m.phaseStartMicros
	m.state = MovingForward
	m.stopReason = NotStopped
	m.log.WithFields(log.Fields{
		"leftDuty":  m.cfg.InitialDuty[chassis.Left],
		"rightDuty": m.cfg.InitialDuty[chassis.Right],
	}).Info("Starting forward")
	if err := m.driveForward(); err != nil {
		return m.failActuator(err)
	}
	m.publish()
	return nil
}

// Step runs one control cycle.  The only errors are actuator failures, after
// which the machine is Stopped.
func (m *Machine) Step() error {
	if !m.started {
		if err := m.Start(); err != nil {
			return err
		}
	}
	now := m.clock.NowMicros()
	m.updatePose()
	// The ranger is polled every cycle; only MovingForward acts on it.
	m.distanceCM = m.sensors.Ranger.Measure().FilteredCM

	var err error
	switch m.state {
	case MovingForward:
		err = m.stepForward(now)
	case TurningRight:
		err = m.stepTurning(now)
	case MovingForwardDistance:
		err = m.stepDistance(now)
	case Stopped:
		err = m.zeroWheels()
	}
	if err != nil {
		return m.failActuator(err)
	}

	m.publish()
	m.maybeLogStatus(now)
	return nil
}

// Run drives the machine until ctx is cancelled or an actuator fails.  The
// wheels are zeroed on the way out.
func (m *Machine) Run(ctx context.Context) error {
	defer func() {
		if err := motor.Stop(m.motors); err != nil {
			m.log.WithError(err).Error("Failed to stop motors on exit")
		}
	}()

	if !m.started {
		if err := m.Start(); err != nil {
			return err
		}
	}
	for {
		select {
		case <-ctx.Done():
			if m.state != Stopped {
				m.enterStopped(Cancelled)
				m.publish()
			}
			return nil
		default:
		}
		if err := m.Step(); err != nil {
			return err
		}
		m.clock.Sleep(m.cfg.LoopInterval)
	}
}

func (m *Machine) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.status.State
}

func (m *Machine) Status() Status {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.status
}

func (m *Machine) stepForward(now uint64) error {
	if t := m.cfg.RangerSilenceTimeout; t > 0 {
		if silent := m.sensors.Ranger.SilentFor(); silent >= t {
			m.log.WithField("silentFor", silent).Warn("Ultrasonic ranger silent, stopping")
			m.enterStopped(RangerSilent)
			return m.zeroWheels()
		}
	}

	if m.distanceCM <= m.cfg.ObstacleThresholdCM {
		m.log.WithField("distance", m.distanceCM).Info("Obstacle detected, turning right")
		if err := m.zeroWheels(); err != nil {
			return err
		}
		m.pid.Reset()
		if m.alerter != nil {
			m.alerter.Alert()
		}
		return m.startTurn(now)
	}

	if m.stalled(now) {
		m.enterStopped(EncoderStalled)
		return m.zeroWheels()
	}
	return m.matchSpeed()
}

func (m *Machine) stepTurning(now uint64) error {
	elapsed := clock.Elapsed(m.phaseStartMicros, now)
	if elapsed < m.cfg.TurnDuration {
		return nil
	}
	m.log.WithField("elapsed", elapsed).Info("Turn complete, driving fixed distance")
	if err := m.zeroWheels(); err != nil {
		return err
	}
	for _, w := range chassis.Wheels {
		m.sensors.Wheels[w].ResetCounters()
	}
	m.pid.Reset()
	m.phaseDistance = 0
	m.phaseStartMicros = now
	m.state = MovingForwardDistance
	return m.driveForward()
}

func (m *Machine) stepDistance(now uint64) error {
	m.phaseDistance = m.travelled()
	if m.phaseDistance >= m.cfg.TargetDistanceCM {
		m.log.WithFields(log.Fields{
			"travelled": m.phaseDistance,
			"target":    m.cfg.TargetDistanceCM,
		}).Info("Target distance reached, stopping")
		m.enterStopped(TargetReached)
		return m.zeroWheels()
	}
	if m.stalled(now) {
		m.enterStopped(EncoderStalled)
		return m.zeroWheels()
	}
	if m.cfg.SpeedMatchInDistancePhase {
		return m.matchSpeed()
	}
	return nil
}

func (m *Machine) travelled() float64 {
	right := m.sensors.Wheels[chassis.Right].Snapshot().IncrementalDistanceCM
	if m.cfg.DistanceMeasure == MeasureAverage {
		left := m.sensors.Wheels[chassis.Left].Snapshot().IncrementalDistanceCM
		return (left + right) / 2
	}
	return right
}

// matchSpeed drives the left wheel's duty cycle towards the right wheel's
// speed.
func (m *Machine) matchSpeed() error {
	right := m.sensors.Wheels[chassis.Right].Snapshot()
	left := m.sensors.Wheels[chassis.Left].Snapshot()

	m.leftTarget = m.cfg.LeftTarget.LeftTarget(right.SpeedCMPerSec, right.SpeedValid, m.duty[chassis.Right])
	current := 0.0
	if left.SpeedValid {
		current = left.SpeedCMPerSec
	}
	duty := m.pid.Update(m.leftTarget, current)
	m.log.WithFields(log.Fields{
		"target":   m.leftTarget,
		"current":  current,
		"integral": m.pid.Integral(),
		"duty":     duty,
	}).Debug("Left wheel speed match")
	return m.setDuty(chassis.Left, duty)
}

// stalled reports whether the right wheel has stopped producing pulses while
// being driven.  The stall clock starts no earlier than the current phase.
func (m *Machine) stalled(now uint64) bool {
	limit := m.cfg.EncoderStallTimeout
	if limit <= 0 || !m.state.Driving() || m.duty[chassis.Right] <= 0 {
		return false
	}
	quiet := clock.Elapsed(m.phaseStartMicros, now)
	if sincePulse, ok := m.sensors.Wheels[chassis.Right].SinceLastPulse(now); ok && sincePulse < quiet {
		quiet = sincePulse
	}
	if quiet < limit {
		return false
	}
	m.log.WithField("quietFor", quiet).Warn("Right encoder stalled, stopping")
	return true
}

// startTurn begins an open-loop pivot: left wheel forward, right wheel
// reverse.
func (m *Machine) startTurn(now uint64) error {
	m.state = TurningRight
	m.phaseStartMicros = now
	for _, c := range []motor.Command{
		{Wheel: chassis.Left, Forward: true, DutyCycle: m.cfg.TurnDutyCycle},
		{Wheel: chassis.Right, Forward: false, DutyCycle: m.cfg.TurnDutyCycle},
	} {
		if err := m.apply(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) driveForward() error {
	for _, w := range chassis.Wheels {
		c := motor.Command{Wheel: w, Forward: true, DutyCycle: m.cfg.InitialDuty[w]}
		if err := m.apply(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) enterStopped(reason StopReason) {
	if m.state != Stopped {
		m.log.WithField("reason", reason).Info("Stopped")
	}
	m.state = Stopped
	m.stopReason = reason
}

func (m *Machine) failActuator(err error) error {
	m.log.WithError(err).Error("Motor actuator failed, stopping")
	m.enterStopped(ActuatorFailed)
	// Best effort; the actuator has already failed once.
	_ = motor.Stop(m.motors)
	m.duty = chassis.PerWheel[float64]{}
	m.publish()
	return errors.Wrap(err, "motor actuator failed")
}

func (m *Machine) apply(c motor.Command) error {
	if err := c.Apply(m.motors); err != nil {
		return err
	}
	m.forward[c.Wheel] = c.Forward
	m.duty[c.Wheel] = clamp.Value(c.DutyCycle, 0, 1)
	if m.odo != nil {
		m.odo.SetDirection(c.Wheel, c.Forward)
	}
	return nil
}

func (m *Machine) setDuty(w chassis.Wheel, duty float64) error {
	if err := m.motors.SetDutyCycle(w, duty); err != nil {
		return err
	}
	m.duty[w] = duty
	return nil
}

func (m *Machine) zeroWheels() error {
	for _, w := range chassis.Wheels {
		if err := m.setDuty(w, 0); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) updatePose() {
	if m.odo == nil {
		return
	}
	var totals chassis.PerWheel[float64]
	for _, w := range chassis.Wheels {
		totals[w] = m.sensors.Wheels[w].Snapshot().TotalDistanceCM
	}
	m.odo.Update(totals)
}

func (m *Machine) publish() {
	s := Status{
		State:              m.state,
		StopReason:         m.stopReason,
		DistanceCM:         m.distanceCM,
		Duty:               m.duty,
		Forward:            m.forward,
		LeftTargetCMPerSec: m.leftTarget,
		PhaseDistanceCM:    m.phaseDistance,
	}
	for _, w := range chassis.Wheels {
		s.Wheels[w] = m.sensors.Wheels[w].Snapshot()
	}
	if m.odo != nil {
		s.Pose = m.odo.Pose()
	}
	m.lock.Lock()
	m.status = s
	m.lock.Unlock()
}

func (m *Machine) maybeLogStatus(now uint64) {
	if m.cfg.StatusLogInterval <= 0 || clock.Elapsed(m.lastStatusLog, now) < m.cfg.StatusLogInterval {
		return
	}
	m.lastStatusLog = now
	s := m.Status()
	fields := log.Fields{
		"state":      s.State,
		"distance":   s.DistanceCM,
		"leftSpeed":  s.Wheels[chassis.Left].SpeedCMPerSec,
		"rightSpeed": s.Wheels[chassis.Right].SpeedCMPerSec,
		"leftDuty":   s.Duty[chassis.Left],
		"rightDuty":  s.Duty[chassis.Right],
	}
	if tc, ok := m.sensors.Ranger.(interface{ ConsecutiveTimeouts() int }); ok {
		fields["rangerTimeouts"] = tc.ConsecutiveTimeouts()
	}
	m.log.WithFields(fields).Info("Status")
}
