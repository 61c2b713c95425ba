// Package rfcomm implements transport.Transport over a Bluetooth Classic
// RFCOMM channel. The Go ecosystem has no maintained cross-platform RFCOMM
// client (see DESIGN.md), so this talks to the kernel's AF_BLUETOOTH socket
// family directly through golang.org/x/sys/unix, the same low-level syscall
// package several GNSS/telemetry repos in this corpus already pull in
// transitively.
package rfcomm

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/relabs-tech/rtkctl/internal/transport"
)

// btprotoRFCOMM is BTPROTO_RFCOMM from <linux/bluetooth/rfcomm.h>; the
// constant is not exported by golang.org/x/sys/unix.
const btprotoRFCOMM = 3

// sockaddrRC mirrors struct sockaddr_rc from <linux/bluetooth/rfcomm.h>.
type sockaddrRC struct {
	family  uint16
	bdaddr  [6]byte
	channel uint8
	_       [1]byte // align to the kernel struct's size
}

// Transport is a transport.Transport backed by an RFCOMM socket.
type Transport struct {
	Addr    string // "AA:BB:CC:DD:EE:FF"
	Channel uint8

	fd int
}

// New returns an RFCOMM transport to addr (colon-separated hex octets) on
// channel.
func New(addr string, channel uint8) *Transport {
	return &Transport{Addr: addr, Channel: channel}
}

func parseBDAddr(addr string) ([6]byte, error) {
	var out [6]byte
	parts := strings.Split(addr, ":")
	if len(parts) != 6 {
		return out, fmt.Errorf("malformed Bluetooth address %q", addr)
	}
	// The wire/struct order is reversed relative to the human-readable form.
	for i := 0; i < 6; i++ {
		b, err := hex.DecodeString(parts[5-i])
		if err != nil || len(b) != 1 {
			return out, fmt.Errorf("malformed Bluetooth address octet %q: %w", parts[5-i], err)
		}
		out[i] = b[0]
	}
	return out, nil
}

// Open connects to Addr/Channel.
func (t *Transport) Open() error {
	bdaddr, err := parseBDAddr(t.Addr)
	if err != nil {
		return err
	}

	fd, err := unix.Socket(unix.AF_BLUETOOTH, unix.SOCK_STREAM, btprotoRFCOMM)
	if err != nil {
		return fmt.Errorf("open rfcomm socket: %w", err)
	}

	sa := sockaddrRC{
		family:  unix.AF_BLUETOOTH,
		bdaddr:  bdaddr,
		channel: t.Channel,
	}
	_, _, errno := unix.Syscall(unix.SYS_CONNECT, uintptr(fd),
		uintptr(unsafe.Pointer(&sa)), unsafe.Sizeof(sa))
	if errno != 0 {
		unix.Close(fd)
		return fmt.Errorf("connect to %s channel %d: %w", t.Addr, t.Channel, errno)
	}

	t.fd = fd
	return nil
}

// Write sends p verbatim.
func (t *Transport) Write(p []byte) (int, error) {
	n, err := unix.Write(t.fd, p)
	if err != nil {
		return n, fmt.Errorf("rfcomm write: %w", err)
	}
	return n, nil
}

// Read blocks up to timeout for data via SO_RCVTIMEO, matching the
// transport contract's (0, nil)-on-timeout semantics.
func (t *Transport) Read(buf []byte, timeout time.Duration) (int, error) {
	tv := unix.NsecToTimeval(timeout.Nanoseconds())
	if err := unix.SetsockoptTimeval(t.fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return 0, fmt.Errorf("set rfcomm read timeout: %w", err)
	}

	n, err := unix.Read(t.fd, buf)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return 0, nil
		}
		return 0, fmt.Errorf("rfcomm read: %w", err)
	}
	return n, nil
}

// Close releases the socket.
func (t *Transport) Close() error {
	if t.fd == 0 {
		return nil
	}
	err := unix.Close(t.fd)
	t.fd = 0
	if err != nil {
		return fmt.Errorf("close rfcomm socket: %w", err)
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
