package ports

import (
	"context"
	"time"
)

// Advertisement is one device seen during a short-range scan.
type Advertisement struct {
	Name    string
	Address string
}

// Scanner discovers advertising devices on the short-range radio.
type Scanner interface {
	Scan(ctx context.Context, timeout time.Duration) ([]Advertisement, error)
}

// DeviceSession is one live connection to a device on the short-range
// transport. Notification handlers may be invoked from a driver-owned
// goroutine; callers redispatch onto their own scheduling context before
// touching shared state.
type DeviceSession interface {
	Connected() bool
	Subscribe(handler func(payload []byte)) error
	ReadConfig(ctx context.Context) ([]byte, error)
	WriteConfig(ctx context.Context, payload []byte) error
	Disconnect() error
}

// Dialer opens device sessions.
type Dialer interface {
	Dial(ctx context.Context, adv Advertisement) (DeviceSession, error)
}

// Transport bundles scanning and dialing for one short-range radio stack.
type Transport interface {
	Scanner
	Dialer
}
