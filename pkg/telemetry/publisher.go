package telemetry

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/firdauzbk/RoboticCarP3E/pkg/motion"
)

const DefaultPublishInterval = 500 * time.Millisecond

type Sink interface {
	Send(Frame) error
}

type StatusSource interface {
	Status() motion.Status
}

// Publisher periodically turns the machine status into a frame and hands it
// to every sink.
type Publisher struct {
	source   StatusSource
	sinks    []Sink
	interval time.Duration
	log      *log.Entry
}

func NewPublisher(source StatusSource, interval time.Duration, sinks ...Sink) *Publisher {
	if interval <= 0 {
		interval = DefaultPublishInterval
	}
	return &Publisher{
		source:   source,
		sinks:    sinks,
		interval: interval,
		log:      log.WithField("component", "telemetry"),
	}
}

// PublishOnce sends the current status to all sinks.  A failing sink doesn't
// stop the others.
func (p *Publisher) PublishOnce() Frame {
	f := FromStatus(p.source.Status())
	for _, s := range p.sinks {
		if err := s.Send(f); err != nil {
			p.log.WithError(err).Warn("Telemetry send failed")
		}
	}
	return f
}

func (p *Publisher) Loop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f := p.PublishOnce()
			p.log.WithField("frame", f.String()).Debug("Published")
		}
	}
}
