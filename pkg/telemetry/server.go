package telemetry

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultListenAddr = ":4242"

	clientQueueLen = 8
	writeTimeout   = 2 * time.Second
)

type client struct {
	queue chan string
	conn  net.Conn
}

// drop closes the queue and the connection, which unblocks a pending write.
func (c client) drop() {
	close(c.queue)
	c.conn.Close()
}

// Server accepts TCP clients and sends every frame to all of them.  A client
// that falls behind by more than a few frames is dropped.
type Server struct {
	listener net.Listener
	log      *log.Entry

	lock    sync.Mutex
	clients map[uuid.UUID]client
	closed  bool
}

func Listen(addr string) (*Server, error) {
	if addr == "" {
		addr = DefaultListenAddr
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return &Server{
		listener: l,
		log:      log.WithField("component", "telemetry-server"),
		clients:  map[uuid.UUID]client{},
	}, nil
}

func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Serve accepts clients until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	s.log.WithField("addr", s.Addr()).Info("Telemetry server listening")
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return nil
			}
			return errors.Wrap(err, "accept failed")
		}
		s.addClient(conn)
	}
}

func (s *Server) addClient(conn net.Conn) {
	id := uuid.New()
	queue := make(chan string, clientQueueLen)

	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		conn.Close()
		return
	}
	s.clients[id] = client{queue: queue, conn: conn}
	s.lock.Unlock()

	clog := s.log.WithFields(log.Fields{"client": id, "remote": conn.RemoteAddr()})
	clog.Info("Telemetry client connected")

	go func() {
		defer conn.Close()
		for line := range queue {
			if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				clog.WithError(err).Info("Telemetry client disconnected")
				s.removeClient(id)
				return
			}
			if _, err := conn.Write([]byte(line)); err != nil {
				clog.WithError(err).Info("Telemetry client disconnected")
				s.removeClient(id)
				return
			}
		}
	}()
}

func (s *Server) removeClient(id uuid.UUID) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if c, ok := s.clients[id]; ok {
		c.drop()
		delete(s.clients, id)
	}
}

var _ Sink = (*Server)(nil)

// Send queues a frame for every connected client.
func (s *Server) Send(f Frame) error {
	line := f.String() + "\n"
	s.lock.Lock()
	defer s.lock.Unlock()
	for id, c := range s.clients {
		select {
		case c.queue <- line:
		default:
			s.log.WithField("client", id).Warn("Telemetry client too slow, dropping")
			c.drop()
			delete(s.clients, id)
		}
	}
	return nil
}

func (s *Server) ClientCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.clients)
}

func (s *Server) isClosed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.closed
}

// Close stops accepting and disconnects all clients.
func (s *Server) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	for id, c := range s.clients {
		c.drop()
		delete(s.clients, id)
	}
	s.lock.Unlock()
	return s.listener.Close()
}
