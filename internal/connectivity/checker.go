package connectivity

import (
	"context"
	"net"
	"time"
)

type NetworkState struct {
	Connected         bool `json:"connected"`
	InternetReachable bool `json:"internet_reachable"`
}

// Checker classifies the device as online or offline at the moment of a call.
// Implementations must never return an error: any internal failure reads as
// offline so callers take the offline-safe path.
type Checker interface {
	IsOnline(ctx context.Context) bool
	State(ctx context.Context) NetworkState
}

// Pinger reports whether the remote backend answered a liveness probe. The
// CouchDB gateway satisfies this with its Ping.
type Pinger interface {
	Ping(ctx context.Context) (bool, error)
}

type Probe struct {
	pinger  Pinger
	timeout time.Duration
}

func NewProbe(pinger Pinger, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Probe{
		pinger:  pinger,
		timeout: timeout,
	}
}

func (p *Probe) State(ctx context.Context) NetworkState {
	state := NetworkState{Connected: linkUp()}
	if !state.Connected {
		return state
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if ok, err := p.pinger.Ping(ctx); err == nil && ok {
		state.InternetReachable = true
	}
	return state
}

func (p *Probe) IsOnline(ctx context.Context) bool {
	state := p.State(ctx)
	return state.Connected && state.InternetReachable
}

// linkUp reports whether any non-loopback interface is up. Link-up alone is
// not enough to be online, so State also probes actual reachability.
func linkUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		return true
	}
	return false
}
