// Package sound plays the obstacle alert through the speaker.
package sound

import (
	"os"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
	log "github.com/sirupsen/logrus"
)

// Player plays WAV files on a background goroutine.  A new sound interrupts
// the one playing.
type Player struct {
	soundsToPlay chan string
	alertPath    string
}

// NewPlayer opens the speaker.  alertPath is the file Alert plays.
func NewPlayer(alertPath string) *Player {
	p := &Player{
		soundsToPlay: make(chan string, 1),
		alertPath:    alertPath,
	}
	go p.loop()
	return p
}

// Alert queues the alert sound.  It never blocks; if a sound is already
// queued the request is dropped.
func (p *Player) Alert() {
	p.Play(p.alertPath)
}

func (p *Player) Play(path string) {
	select {
	case p.soundsToPlay <- path:
	default:
		log.WithField("sound", path).Debug("Sound already queued, dropping")
	}
}

func (p *Player) loop() {
	logCtx := log.WithField("component", "sound")
	defer func() {
		if r := recover(); r != nil {
			logCtx.WithField("panic", r).Error("Sound player crashed")
		}
		for s := range p.soundsToPlay {
			logCtx.WithField("sound", s).Warn("Unable to play")
		}
	}()

	sampleRate := beep.SampleRate(44100)
	err := speaker.Init(sampleRate, sampleRate.N(time.Second/5))
	if err != nil {
		logCtx.WithError(err).Error("Failed to open speaker")
		return
	}

	var ctrl *beep.Ctrl
	var s beep.StreamSeekCloser
	for soundToPlay := range p.soundsToPlay {
		if ctrl != nil {
			speaker.Lock()
			ctrl.Paused = true
			ctrl.Streamer = nil
			speaker.Unlock()
			ctrl = nil
		}
		if s != nil {
			s.Close()
			s = nil
		}

		f, err := os.Open(soundToPlay)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to open sound")
			continue
		}
		s, _, err = wav.Decode(f)
		if err != nil {
			logCtx.WithError(err).Warn("Failed to decode sound")
			f.Close()
			s = nil
			continue
		}
		ctrl = &beep.Ctrl{Streamer: s}
		speaker.Play(ctrl)
	}
}
