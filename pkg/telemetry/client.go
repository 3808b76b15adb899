package telemetry

import (
	"bufio"
	"context"
	"net"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Watch connects to a telemetry server and calls fn for every frame until ctx
// is cancelled or the server closes the connection.  Malformed lines are
// logged and skipped.
func Watch(ctx context.Context, addr string, fn func(Frame)) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to connect to %s", addr)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		f, err := Parse(scanner.Text())
		if err != nil {
			log.WithError(err).Warn("Skipping telemetry line")
			continue
		}
		fn(f)
	}
	if ctx.Err() != nil {
		return nil
	}
	return errors.Wrap(scanner.Err(), "telemetry stream failed")
}
