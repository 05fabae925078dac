package eventloop

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Listen constructs a non-blocking listening socket bound to addr:port.
// It is built directly on golang.org/x/sys/unix, rather than net.Listen,
// because net.Listen does not expose the listen(2) backlog argument and
// --maxconn is specified to be exactly that backlog (the original's
// kern.ipc.somaxconn-style parameter), not an application-level cap on
// concurrent connections. backlog <= 0 maps to unix.SOMAXCONN, matching
// the original's -1 sentinel for "use the system default".
func Listen(addr string, port int, backlog int) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("eventloop: socket: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			unix.Close(fd)
		}
	}()

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return -1, fmt.Errorf("eventloop: setsockopt(SO_REUSEADDR): %w", err)
	}

	sa, err := sockaddr(addr, port)
	if err != nil {
		return -1, err
	}
	if err := unix.Bind(fd, sa); err != nil {
		return -1, fmt.Errorf("eventloop: bind: %w", err)
	}

	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return -1, fmt.Errorf("eventloop: listen: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return -1, fmt.Errorf("eventloop: set listening socket non-blocking: %w", err)
	}

	ok = true
	return fd, nil
}

// sockaddr resolves addr (an IP, hostname, or "" for all interfaces) and
// port into the raw sockaddr unix.Bind/Connect expect.
func sockaddr(addr string, port int) (unix.Sockaddr, error) {
	ip := net.IPv4zero
	if addr != "" {
		ips, err := net.LookupIP(addr)
		if err != nil {
			return nil, fmt.Errorf("eventloop: resolve %q: %w", addr, err)
		}
		ip = ips[0]
	}
	v4 := ip.To4()
	if v4 == nil {
		return nil, fmt.Errorf("eventloop: %q does not resolve to an IPv4 address", addr)
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], v4)
	return sa, nil
}

// AcceptNonblock accepts one pending connection on a non-blocking
// listening socket and returns it already set non-blocking, plus the
// peer's address for logging. Returns unix.EAGAIN if nothing is
// pending.
func AcceptNonblock(listenFd int) (fd int, remoteAddr string, err error) {
	connFd, sa, err := unix.Accept(listenFd)
	if err != nil {
		return -1, "", err
	}
	if err := unix.SetNonblock(connFd, true); err != nil {
		unix.Close(connFd)
		return -1, "", fmt.Errorf("eventloop: set accepted socket non-blocking: %w", err)
	}
	return connFd, formatSockaddr(sa), nil
}

func formatSockaddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		ip := net.IP(a.Addr[:])
		return fmt.Sprintf("%s:%d", ip.String(), a.Port)
	case *unix.SockaddrInet6:
		ip := net.IP(a.Addr[:])
		return fmt.Sprintf("[%s]:%d", ip.String(), a.Port)
	default:
		return "unknown"
	}
}
