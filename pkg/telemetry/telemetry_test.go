package telemetry

import (
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firdauzbk/RoboticCarP3E/pkg/chassis"
	"github.com/firdauzbk/RoboticCarP3E/pkg/encoder"
	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
)

func TestFrameString(t *testing.T) {
	assert.Equal(t, "Direction: Forward; Speed: 42", Frame{Direction: "Forward", Speed: 42}.String())
}

func TestParse(t *testing.T) {
	for _, tc := range []struct {
		line    string
		want    Frame
		wantErr bool
	}{
		{line: "Direction: Forward; Speed: 42", want: Frame{"Forward", 42}},
		{line: "Direction: Right; Speed: 0\r\n", want: Frame{"Right", 0}},
		{line: "Direction: Turning Left; Speed: -3", want: Frame{"Turning Left", -3}},
		{line: "Direction: Stop", wantErr: true},
		{line: "Speed: 10", wantErr: true},
		{line: "Direction: ; Speed: 10", wantErr: true},
		{line: "Direction: Forward; Speed: fast", wantErr: true},
		{line: "Direction: " + string(bytes.Repeat([]byte("x"), 40)) + "; Speed: 1", wantErr: true},
	} {
		t.Run(tc.line, func(t *testing.T) {
			f, err := Parse(tc.line)
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, ErrMalformedFrame, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestParseRoundTripsLongestDirection(t *testing.T) {
	dir := string(bytes.Repeat([]byte("d"), MaxDirectionLen))
	f, err := Parse(Frame{Direction: dir, Speed: 7}.String())
	require.NoError(t, err)
	assert.Equal(t, dir, f.Direction)
}

func status(state motion.State, left, right float64) motion.Status {
	return motion.Status{
		State: state,
		Wheels: chassis.PerWheel[encoder.State]{
			{SpeedCMPerSec: left, SpeedValid: true},
			{SpeedCMPerSec: right, SpeedValid: true},
		},
	}
}

func TestFromStatus(t *testing.T) {
	assert.Equal(t, Frame{"Forward", 41}, FromStatus(status(motion.MovingForward, 40, 43)))
	assert.Equal(t, Frame{"Forward", 20}, FromStatus(status(motion.MovingForwardDistance, 20.9, 20.9)))
	assert.Equal(t, Frame{"Right", 30}, FromStatus(status(motion.TurningRight, 30, 30)))
	assert.Equal(t, Frame{"Stop", 0}, FromStatus(status(motion.Stopped, 30, 30)))

	s := status(motion.MovingForward, 0, 50)
	s.Wheels[chassis.Left].SpeedValid = false
	assert.Equal(t, 25, FromStatus(s).Speed)
}

type recordingSink struct {
	frames []Frame
	err    error
}

func (s *recordingSink) Send(f Frame) error {
	s.frames = append(s.frames, f)
	return s.err
}

type fixedSource motion.Status

func (s fixedSource) Status() motion.Status { return motion.Status(s) }

func TestPublishOnceFansOut(t *testing.T) {
	failing := &recordingSink{err: errors.New("unplugged")}
	ok := &recordingSink{}
	p := NewPublisher(fixedSource(status(motion.TurningRight, 10, 12)), 0, failing, ok)

	assert.Equal(t, DefaultPublishInterval, p.interval)
	f := p.PublishOnce()
	assert.Equal(t, Frame{"Right", 11}, f)
	assert.Equal(t, []Frame{f}, failing.frames)
	assert.Equal(t, []Frame{f}, ok.frames)
}

type bufferPort struct {
	bytes.Buffer
	closed bool
}

func (b *bufferPort) Close() error {
	b.closed = true
	return nil
}

func TestSerialSink(t *testing.T) {
	port := &bufferPort{}
	s := NewSerialSink(port)
	require.NoError(t, s.Send(Frame{"Forward", 12}))
	require.NoError(t, s.Send(Frame{"Stop", 0}))
	require.NoError(t, s.Close())

	assert.Equal(t, "Direction: Forward; Speed: 12\nDirection: Stop; Speed: 0\n", port.String())
	assert.True(t, port.closed)
}

func TestServerBroadcastsToWatcher(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	frames := make(chan Frame, 10)
	watchDone := make(chan error, 1)
	go func() {
		watchDone <- Watch(ctx, srv.Addr().String(), func(f Frame) { frames <- f })
	}()

	require.Eventually(t, func() bool { return srv.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)

	sent := []Frame{{"Forward", 40}, {"Right", 30}, {"Stop", 0}}
	for _, f := range sent {
		require.NoError(t, srv.Send(f))
	}
	for _, want := range sent {
		select {
		case got := <-frames:
			assert.Equal(t, want, got)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %v", want)
		}
	}

	cancel()
	select {
	case err := <-watchDone:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Eventually(t, func() bool { return srv.ClientCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestSendWithoutClients(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()
	assert.NoError(t, srv.Send(Frame{"Forward", 1}))
}

func TestSlowClientConnectionClosed(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer srv.Close()

	// Nobody reads the far end, so the writer blocks on its first frame.
	near, far := net.Pipe()
	defer far.Close()
	srv.addClient(near)
	require.Equal(t, 1, srv.ClientCount())

	for i := 0; i < clientQueueLen+2; i++ {
		require.NoError(t, srv.Send(Frame{"Forward", i}))
	}
	assert.Zero(t, srv.ClientCount())

	assert.ErrorIs(t, readUntilClosed(t, far), io.EOF)
}

func TestCloseReleasesBlockedClient(t *testing.T) {
	srv, err := Listen("127.0.0.1:0")
	require.NoError(t, err)

	near, far := net.Pipe()
	defer far.Close()
	srv.addClient(near)
	require.NoError(t, srv.Send(Frame{"Forward", 1}))

	require.NoError(t, srv.Close())
	assert.ErrorIs(t, readUntilClosed(t, far), io.EOF)
}

// readUntilClosed drains conn until the server side goes away.  Frames the
// writer had in flight may still arrive first.
func readUntilClosed(t *testing.T, conn net.Conn) error {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 64)
	for {
		if _, err := conn.Read(buf); err != nil {
			return err
		}
	}
}
