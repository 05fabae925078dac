package eventloop

import (
	"net"
	"testing"

	"golang.org/x/sys/unix"
)

func TestListenAndAccept(t *testing.T) {
	fd, err := Listen("127.0.0.1", 0, 5)
	if err != nil {
		t.Fatal(err)
	}
	defer unix.Close(fd)

	sa, err := unix.Getsockname(fd)
	if err != nil {
		t.Fatal(err)
	}
	v4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		t.Fatalf("unexpected sockaddr type %T", sa)
	}

	addr := net.JoinHostPort("127.0.0.1", itoa(v4.Port))
	client, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	deadlineWait(t, func() (int, string, error) { return AcceptNonblock(fd) })
}

func deadlineWait(t *testing.T, accept func() (int, string, error)) {
	t.Helper()
	for i := 0; i < 1000; i++ {
		connFd, remoteAddr, err := accept()
		if err == nil {
			if remoteAddr == "" {
				t.Error("expected non-empty remote address")
			}
			unix.Close(connFd)
			return
		}
		if err != unix.EAGAIN && err != unix.EWOULDBLOCK {
			t.Fatalf("AcceptNonblock: %v", err)
		}
	}
	t.Fatal("AcceptNonblock never reported the pending connection")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [6]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
