// Package transport implements the broadcast server and streaming client
// sides of the TCP wire protocol: a peer set fed by a background accept
// loop, a greeting slot replayed to late joiners, and a synchronous
// broadcast API used by the playback pacer.
package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/alxayo/audiocast/internal/audiocast/frame"
	"github.com/alxayo/audiocast/internal/audiocast/hooks"
	"github.com/alxayo/audiocast/internal/audiocast/message"
	aerrors "github.com/alxayo/audiocast/internal/errors"
	"github.com/alxayo/audiocast/internal/logger"
)

// acceptPollInterval bounds shutdown latency: the accept loop never blocks
// longer than this before re-checking the closing flag.
const acceptPollInterval = 50 * time.Millisecond

// Config holds server configuration.
type Config struct {
	ListenAddr      string
	MaxFrameSize    uint32
	HookScripts     []string // event_type=script_path pairs
	HookWebhooks    []string // event_type=webhook_url pairs
	HookTimeout     string
	HookConcurrency int
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = ":8080"
	}
	if c.MaxFrameSize == 0 {
		c.MaxFrameSize = frame.DefaultMaxFrameSize
	}
	if c.HookTimeout == "" {
		c.HookTimeout = "30s"
	}
	if c.HookConcurrency == 0 {
		c.HookConcurrency = 10
	}
}

type peerConn struct {
	id   string
	conn net.Conn
}

// Server accepts connections, holds the live peer set, and broadcasts
// framed audio messages to it.
type Server struct {
	cfg         Config
	log         *slog.Logger
	hookManager *hooks.HookManager

	mu      sync.RWMutex
	l       net.Listener
	closing bool

	peersMu  sync.Mutex
	peers    map[string]*peerConn
	nextPeer uint64

	greetingMu sync.Mutex
	greeting   []byte

	acceptingWg sync.WaitGroup
}

// New creates a new, unstarted Server.
func New(cfg Config) *Server {
	cfg.applyDefaults()
	log := logger.Logger().With("component", "audiocast_server")
	return &Server{
		cfg:         cfg,
		log:         log,
		hookManager: hooks.BuildManager(cfg.HookScripts, cfg.HookWebhooks, cfg.HookTimeout, cfg.HookConcurrency, log),
		peers:       make(map[string]*peerConn),
	}
}

// Bind opens the listening socket and spawns the accept loop. Safe to call
// only once.
func (s *Server) Bind() error {
	s.mu.Lock()
	if s.l != nil {
		s.mu.Unlock()
		return fmt.Errorf("server already bound")
	}
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		s.mu.Unlock()
		return &aerrors.BindFailureError{Addr: s.cfg.ListenAddr, Err: err}
	}
	s.l = ln
	s.mu.Unlock()

	s.log.Info("audiocast server listening", "addr", ln.Addr().String())
	s.acceptingWg.Add(1)
	go s.acceptLoop()
	return nil
}

func (s *Server) acceptLoop() {
	defer s.acceptingWg.Done()
	for {
		s.mu.RLock()
		l := s.l
		closing := s.closing
		s.mu.RUnlock()
		if l == nil || closing {
			return
		}

		if tl, ok := l.(*net.TCPListener); ok {
			tl.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := l.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.mu.RLock()
			closing := s.closing
			s.mu.RUnlock()
			if closing {
				return
			}
			s.log.Warn("accept error", "error", err)
			continue
		}

		s.acceptPeer(conn)
	}
}

func (s *Server) acceptPeer(conn net.Conn) {
	s.greetingMu.Lock()
	greeting := s.greeting
	s.greetingMu.Unlock()

	if len(greeting) > 0 {
		if err := frame.WriteFrame(conn, greeting); err != nil {
			s.log.Warn("dropping peer: greeting write failed", "remote", conn.RemoteAddr(), "error", err)
			conn.Close()
			return
		}
	}

	s.peersMu.Lock()
	s.nextPeer++
	id := fmt.Sprintf("peer-%06d", s.nextPeer)
	s.peers[id] = &peerConn{id: id, conn: conn}
	s.peersMu.Unlock()

	s.log.Info("peer connected", "peer_id", id, "remote", conn.RemoteAddr())
	s.triggerHookEvent(hooks.EventPeerConnected, id, map[string]interface{}{
		"remote_addr": conn.RemoteAddr().String(),
	})
}

// SetGreeting replaces the greeting slot with a copy of payload. An empty or
// nil payload clears the slot.
func (s *Server) SetGreeting(payload []byte) {
	cp := make([]byte, len(payload))
	copy(cp, payload)
	s.greetingMu.Lock()
	s.greeting = cp
	s.greetingMu.Unlock()
}

// Broadcast frame-writes payload to every live peer. Peers whose write fails
// are dropped from the set; Broadcast itself only fails on invalid input.
func (s *Server) Broadcast(payload []byte) error {
	if uint64(len(payload)) > uint64(^uint32(0)) {
		return fmt.Errorf("broadcast payload too large: %d bytes", len(payload))
	}

	s.peersMu.Lock()
	drained := make([]*peerConn, 0, len(s.peers))
	for id, p := range s.peers {
		drained = append(drained, p)
		delete(s.peers, id)
	}
	s.peersMu.Unlock()

	survivors := make([]*peerConn, 0, len(drained))
	for _, p := range drained {
		if err := frame.WriteFrame(p.conn, payload); err != nil {
			s.handlePeerWriteFailure(p, err)
			continue
		}
		survivors = append(survivors, p)
	}

	s.peersMu.Lock()
	for _, p := range survivors {
		s.peers[p.id] = p
	}
	s.peersMu.Unlock()

	return nil
}

func (s *Server) handlePeerWriteFailure(p *peerConn, err error) {
	p.conn.Close()
	if aerrors.IsPeerGone(err) {
		s.log.Info("peer dropped", "peer_id", p.id, "reason", "disconnected")
	} else {
		s.log.Warn("peer dropped", "peer_id", p.id, "error", err)
	}
	s.triggerHookEvent(hooks.EventPeerDisconnected, p.id, nil)
}

// PeerCount returns the current peer set size. Advisory: may change
// immediately after the call returns.
func (s *Server) PeerCount() int {
	s.peersMu.Lock()
	defer s.peersMu.Unlock()
	return len(s.peers)
}

// Addr returns the bound listener address, or nil if not yet bound.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.l == nil {
		return nil
	}
	return s.l.Addr()
}

// Drop stops accepting new connections, closes all live peers, and waits
// for the accept loop to exit.
func (s *Server) Drop() error {
	s.mu.Lock()
	if s.l == nil {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	l := s.l
	s.l = nil
	s.mu.Unlock()
	l.Close()

	s.peersMu.Lock()
	for id, p := range s.peers {
		p.conn.Close()
		delete(s.peers, id)
	}
	s.peersMu.Unlock()

	s.acceptingWg.Wait()

	if s.hookManager != nil {
		s.hookManager.Close()
	}
	s.log.Info("audiocast server stopped")
	return nil
}

func (s *Server) triggerHookEvent(eventType hooks.EventType, peerID string, data map[string]interface{}) {
	if s == nil || s.hookManager == nil {
		return
	}
	event := hooks.NewEvent(eventType).WithPeerID(peerID)
	for k, v := range data {
		event.WithData(k, v)
	}
	s.hookManager.TriggerEvent(context.Background(), *event)
}

// NotifyStreamStart fires EventStreamStart once the server begins
// broadcasting spec, satisfying pacer.Broadcaster.
func (s *Server) NotifyStreamStart(spec message.Spec) {
	s.triggerHookEvent(hooks.EventStreamStart, "", map[string]interface{}{
		"channels":    spec.Channels,
		"sample_rate": spec.SampleRate,
	})
}

// NotifyStreamDrain fires EventStreamDrain once the source is exhausted and
// every peer has disconnected, satisfying pacer.Broadcaster.
func (s *Server) NotifyStreamDrain() {
	s.triggerHookEvent(hooks.EventStreamDrain, "", nil)
}
