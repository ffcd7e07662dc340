// Package notify publishes key=value state messages through the process
// readiness-notification socket (NOTIFY_SOCKET), the channel a supervising
// manager watches for X_IMPORT_PROGRESS updates.
package notify

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
)

// Notifier delivers one state message.
type Notifier interface {
	Notify(ctx context.Context, state string) error
}

// Progress formats the import-progress message for a combined percentage.
func Progress(percent int) string {
	return fmt.Sprintf("X_IMPORT_PROGRESS=%d", percent)
}

// NewSocket returns a Notifier bound to $NOTIFY_SOCKET, or Nop when the
// process runs unsupervised.
func NewSocket() Notifier {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return Nop
	}
	// Abstract-namespace sockets are announced with a leading '@'.
	if strings.HasPrefix(addr, "@") {
		addr = "\x00" + addr[1:]
	}
	return &socketNotifier{addr: addr}
}

type socketNotifier struct {
	addr string
}

// Notify sends state as a single datagram. A fresh connection per message
// keeps the notifier stateless and safe for concurrent use.
func (n *socketNotifier) Notify(_ context.Context, state string) error {
	conn, err := net.Dial("unixgram", n.addr)
	if err != nil {
		return fmt.Errorf("dial notify socket: %w", err)
	}
	defer conn.Close() //nolint:errcheck

	if _, err := conn.Write([]byte(state)); err != nil {
		return fmt.Errorf("write notify socket: %w", err)
	}
	return nil
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string) error { return nil }

// Nop discards all messages.
var Nop Notifier = nopNotifier{}
