package eventloop

import (
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/sirupsen/logrus"

	"github.com/tieugene/darkhttpd/internal/accesslog"
	"github.com/tieugene/darkhttpd/internal/connstate"
	"github.com/tieugene/darkhttpd/internal/mimemap"
)

// Dispatcher owns the listening socket, the live connection set, and
// the Poller they are all registered with. One tick of Run corresponds
// to one pass of the original's httpd_poll: refresh readiness
// registrations, wait, accept at most one new connection, then drive
// whichever connections were reported ready.
type Dispatcher struct {
	listenFd int
	poller   Poller

	conns      map[int]*connstate.Connection
	registered map[int]Interest

	root      string
	indexName string
	mime      *mimemap.Map
	log       *accesslog.Logger
}

// New constructs a Dispatcher around an already-listening, non-blocking
// socket (see Listen).
func New(listenFd int, root, indexName string, mime *mimemap.Map, log *accesslog.Logger) (*Dispatcher, error) {
	poller, err := NewPoller()
	if err != nil {
		return nil, err
	}
	if err := poller.Add(listenFd, Readable); err != nil {
		poller.Close()
		return nil, err
	}
	return &Dispatcher{
		listenFd:   listenFd,
		poller:     poller,
		conns:      make(map[int]*connstate.Connection),
		registered: make(map[int]Interest),
		root:       root,
		indexName:  indexName,
		mime:       mime,
		log:        log,
	}, nil
}

// Addr returns the actual address the listening socket is bound to,
// useful when the configured port was 0 (bind to an ephemeral port).
func (d *Dispatcher) Addr() (string, error) {
	sa, err := unix.Getsockname(d.listenFd)
	if err != nil {
		return "", err
	}
	return formatSockaddr(sa), nil
}

// Close shuts down every live connection, the listening socket, and the
// poller itself.
func (d *Dispatcher) Close() error {
	for fd, c := range d.conns {
		c.Close()
		delete(d.conns, fd)
	}
	unix.Close(d.listenFd)
	return d.poller.Close()
}

// Run drives the dispatcher, one Tick per readiness wait, until stop is
// closed. stop is checked only between ticks, so a closed stop is
// noticed once the current readiness wait returns; while there are no
// live connections that wait has no timeout and lasts until a new
// connection arrives.
func (d *Dispatcher) Run(stop <-chan struct{}) error {
	for {
		select {
		case <-stop:
			return nil
		default:
		}
		if err := d.Tick(); err != nil {
			return err
		}
	}
}

// Tick runs exactly one iteration of the dispatcher: timeout sweep,
// registration refresh, a single readiness wait, accept, and poll.
func (d *Dispatcher) Tick() error {
	now := time.Now()

	for fd, c := range d.conns {
		if c.State != connstate.Done && c.IdleFor(now) >= connstate.IdleTimeout {
			c.State = connstate.Done
		}
		if c.State == connstate.Done {
			d.retire(fd, c)
			continue
		}
		d.refreshRegistration(fd, c)
	}

	timeout := connstate.IdleTimeout
	if len(d.conns) == 0 {
		timeout = -1 // nothing cares about the idle timeout; block indefinitely
	}

	events, err := d.poller.Wait(timeout)
	if err != nil {
		return err
	}

	acceptedAlready := false
	for _, ev := range events {
		if ev.Fd == d.listenFd {
			if !acceptedAlready {
				d.accept(now)
				acceptedAlready = true
			}
			continue
		}
		c, ok := d.conns[ev.Fd]
		if !ok {
			continue
		}
		switch c.State {
		case connstate.RecvRequest:
			if ev.Readable {
				c.PollRecvRequest(time.Now(), d.root, d.indexName, d.mime)
			}
		case connstate.SendHeader:
			if ev.Writable {
				c.PollSendHeader(time.Now())
			}
		case connstate.SendReply:
			if ev.Writable {
				c.PollSendReply(time.Now())
			}
		}
	}
	return nil
}

// accept admits at most one new connection per tick, matching the
// original's "if the listening socket is readable, accept one new
// connection" step.
func (d *Dispatcher) accept(now time.Time) {
	fd, remoteAddr, err := AcceptNonblock(d.listenFd)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return
		}
		logrus.WithError(err).Warn("accept failed")
		return
	}
	c := connstate.New(fd, remoteAddr, now)
	d.conns[fd] = c
	if err := d.poller.Add(fd, Readable); err != nil {
		logrus.WithError(err).Warn("failed to register accepted connection")
		c.Close()
		delete(d.conns, fd)
		return
	}
	d.registered[fd] = Readable
}

// refreshRegistration updates the poller's interest for c's fd if its
// state has moved to one that wants a different readiness direction.
func (d *Dispatcher) refreshRegistration(fd int, c *connstate.Connection) {
	want := interestFor(c.State)
	if d.registered[fd] == want {
		return
	}
	if err := d.poller.Modify(fd, want); err != nil {
		logrus.WithError(err).Warn("failed to update readiness registration")
		return
	}
	d.registered[fd] = want
}

func interestFor(state connstate.State) Interest {
	switch state {
	case connstate.RecvRequest:
		return Readable
	case connstate.SendHeader, connstate.SendReply:
		return Writable
	default:
		return 0
	}
}

// retire logs and releases a connection that has reached DONE.
func (d *Dispatcher) retire(fd int, c *connstate.Connection) {
	d.poller.Remove(fd)
	delete(d.registered, fd)
	delete(d.conns, fd)

	// A connection that never got a reply (e.g. the peer closed mid
	// RECV_REQUEST) has nothing worth logging - HTTPCode is only ever
	// set once a reply is built.
	if d.log != nil && c.HTTPCode != 0 {
		d.log.Log(accesslog.Record{
			UnixTime:   time.Now().Unix(),
			ClientAddr: clientIP(c.RemoteAddr),
			Method:     c.Method,
			URI:        c.Target,
			HTTPCode:   c.HTTPCode,
			BytesSent:  c.TotalSent,
			Referer:    c.Referer,
			UserAgent:  c.UserAgent,
		})
	}
	c.Close()
}

// clientIP strips the port from a "host:port" remote address, leaving
// the bare IP the access log's client_ip field expects. If addr isn't
// in host:port form it is returned unchanged.
func clientIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
