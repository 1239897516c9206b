package multicast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"homehub/internal/logging"
	"homehub/internal/status"

	"golang.org/x/net/ipv4"
)

const (
	DefaultGroup  = "239.255.0.1:5005"
	DefaultWindow = 1500 * time.Millisecond
	DefaultTTL    = 20 * time.Second

	readTimeout   = 300 * time.Millisecond
	maxPacketSize = 4096
)

type Config struct {
	Group     string
	Interface string
	TTL       time.Duration
}

// Packet is one decoded broadcast.
type Packet struct {
	Module     status.Module
	Fields     status.Fields
	From       string
	ReceivedAt time.Time
	// Inferred is set when the packet carried no usable "module" tag.
	Inferred bool
}

// Listener joins the device multicast group for short windows and feeds a Cache.
type Listener struct {
	cfg    Config
	cache  *Cache
	logger *slog.Logger

	// windows serializes listen windows since they bind the same port.
	windows sync.Mutex

	// OnPacket, when set, sees every accepted packet.
	OnPacket func(Packet)
}

func NewListener(cfg Config, logger *slog.Logger) *Listener {
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = logging.Ctx(context.Background())
	}
	return &Listener{
		cfg:    cfg,
		cache:  NewCache(),
		logger: logger.With("component", "multicast"),
	}
}

func (l *Listener) Cache() *Cache { return l.cache }

func (l *Listener) TTL() time.Duration { return l.cfg.TTL }

// PollWindow listens for up to window and reports whether any valid packet
// arrived. Socket setup failures are logged and reported as false.
func (l *Listener) PollWindow(ctx context.Context, window time.Duration) bool {
	if window <= 0 {
		window = DefaultWindow
	}
	l.windows.Lock()
	defer l.windows.Unlock()

	conn, err := l.open()
	if err != nil {
		l.logger.Debug("multicast unavailable", "group", l.cfg.Group, "error", err)
		return false
	}
	defer conn.Close()

	deadline := time.Now().Add(window)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	buf := make([]byte, maxPacketSize)
	received := false
	for {
		now := time.Now()
		if ctx.Err() != nil || !now.Before(deadline) {
			return received
		}
		readUntil := now.Add(readTimeout)
		if readUntil.After(deadline) {
			readUntil = deadline
		}
		if err := conn.SetReadDeadline(readUntil); err != nil {
			return received
		}

		n, _, src, err := conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			l.logger.Debug("multicast read failed", "error", err)
			return received
		}

		from := ""
		if src != nil {
			from = src.String()
		}
		if _, ok := l.HandlePacket(buf[:n], from, time.Now()); ok {
			received = true
		}
	}
}

// HandlePacket classifies one datagram and stores it. Malformed payloads are
// dropped without logging.
func (l *Listener) HandlePacket(data []byte, from string, at time.Time) (Packet, bool) {
	f, err := status.Decode(data)
	if err != nil {
		return Packet{}, false
	}
	m, inferred := Classify(f)
	if inferred {
		l.logger.Debug("multicast module inferred", "module", m, "from", from)
	}

	p := Packet{Module: m, Fields: f, From: from, ReceivedAt: at, Inferred: inferred}
	l.cache.Put(m, f, at)
	if l.OnPacket != nil {
		l.OnPacket(p)
	}
	return p, true
}

// Unified returns the multicast-derived status for the enabled modules.
func (l *Listener) Unified(now time.Time, enabled func(status.Module) bool) status.Unified {
	return l.cache.Unified(now, l.cfg.TTL, enabled)
}

func (l *Listener) open() (*ipv4.PacketConn, error) {
	group, err := net.ResolveUDPAddr("udp4", l.cfg.Group)
	if err != nil {
		return nil, fmt.Errorf("resolve group %q: %w", l.cfg.Group, err)
	}

	var iface *net.Interface
	if l.cfg.Interface != "" {
		iface, err = net.InterfaceByName(l.cfg.Interface)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", l.cfg.Interface, err)
		}
	}

	// ListenMulticastUDP sets SO_REUSEADDR, so other subscribers on the host
	// can hold the same group and port.
	c, err := net.ListenMulticastUDP("udp4", iface, group)
	if err != nil {
		return nil, fmt.Errorf("join %s: %w", group, err)
	}
	return ipv4.NewPacketConn(c), nil
}
