// Package listener builds the proxy's listening socket. spec.md §1
// marks "the listening-socket factory" out of scope, specified only
// at its interface; this implements that interface on top of
// cloudflare/tableflip instead of a bare net.Listen, mirroring the
// teacher's own graceful-restart wiring in main.go. Listener exposes
// no way to start an upgrade, and nothing in this tree triggers one
// (SIGHUP is taken by the config reloader).
package listener

import (
	"fmt"
	"net"
	"time"

	"github.com/cloudflare/tableflip"
)

// Listener owns the tableflip upgrader and the accept socket it
// produced.
type Listener struct {
	upg *tableflip.Upgrader
}

// New creates the upgrader, rooted at pidFile (empty disables the PID
// file), and listens on "tcp" addr (e.g. ":8080").
func New(addr, pidFile string, upgradeTimeout time.Duration) (*Listener, net.Listener, error) {
	upg, err := tableflip.New(tableflip.Options{
		PIDFile:        pidFile,
		UpgradeTimeout: upgradeTimeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating upgrader: %w", err)
	}

	ln, err := upg.Listen("tcp", addr)
	if err != nil {
		upg.Stop()
		return nil, nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	if err := upg.Ready(); err != nil {
		upg.Stop()
		return nil, nil, fmt.Errorf("signalling ready: %w", err)
	}

	return &Listener{upg: upg}, ln, nil
}

// Exit reports the channel that closes when the process should stop
// accepting new connections (upgrade completed, or shutdown signal
// relayed by the caller through Stop).
func (l *Listener) Exit() <-chan struct{} { return l.upg.Exit() }

// Stop releases the upgrader, e.g. on graceful shutdown.
func (l *Listener) Stop() { l.upg.Stop() }
