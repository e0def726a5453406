// Package ipc serves the line-based control protocol on a unix socket.
//
// Every connection may query. The first connection to issue a control verb
// becomes the owner and receives EVENT lines until it disconnects; other
// connections get ERR CONTROL_LOCKED for control verbs.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"duet/internal/library"
	"duet/pkg/audioengine"
	"duet/pkg/playback"
	"duet/pkg/spec"
)

// Player is the part of the engine the server drives.
type Player interface {
	LoadPlaylist(tracks []playback.Track)
	PlayAt(i int)
	TogglePlayPause()
	Play()
	Pause()
	Next()
	Prev()
	Seek(ms int)
	SetSyncOffset(ms int)
	SetChannelEnabled(ch playback.ChannelID, enabled bool)
	SetGainDb(ch playback.ChannelID, db float64)
	SetFilterCutoff(ch playback.ChannelID, hz int)
	SetFilterKind(ch playback.ChannelID, kind audioengine.FilterKind)
	SetRoute(ch playback.ChannelID, r audioengine.Route)
	SetFilterLink(on bool)
	Status() (playback.Status, error)
	Playlist() ([]playback.Track, error)
	Subscribe(s playback.Sink) func()
}

// Server accepts control connections for one player.
type Server struct {
	player   Player
	scanner  *library.Scanner
	listPath string
	log      *zap.Logger

	mu          sync.Mutex
	owner       *client
	unsubscribe func()

	wg sync.WaitGroup
}

// NewServer returns a server for p. listPath is the playlist file ADD
// appends to; empty disables ADD.
func NewServer(p Player, scanner *library.Scanner, listPath string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if scanner == nil {
		scanner = library.NewScanner(log)
	}
	return &Server{player: p, scanner: scanner, listPath: listPath, log: log}
}

// ListenAndServe removes a stale socket file, listens on path and serves
// until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, path string) error {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return fmt.Errorf("listen %s: %w", path, err)
	}
	defer os.Remove(path)
	s.log.Info("control socket ready", zap.String("socket", path))
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then waits for open
// connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()
	defer s.wg.Wait()

	for {
		c, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", zap.Error(err))
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.ServeConn(c)
		}()
	}
}

type client struct {
	conn net.Conn
	mu   sync.Mutex
}

func (c *client) reply(format string, args ...any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintf(c.conn, format+"\n", args...)
	return err
}

func (s *Server) isOwner(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner == c
}

func (s *Server) claimOwner(c *client) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner == nil {
		s.owner = c
		s.unsubscribe = s.player.Subscribe(playback.SinkFunc(func(ev playback.Event) {
			s.forward(c, ev)
		}))
		s.log.Info("control claimed", zap.String("remote", remoteName(c.conn)))
		return true
	}
	return s.owner == c
}

func (s *Server) releaseOwner(c *client) {
	s.mu.Lock()
	if s.owner != c {
		s.mu.Unlock()
		return
	}
	s.owner = nil
	unsub := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	s.player.Pause()
	s.log.Info("control released", zap.String("remote", remoteName(c.conn)))
}

func (s *Server) forward(c *client, ev playback.Event) {
	j, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("event encode failed", zap.Error(err))
		return
	}
	if err := c.reply("EVENT %s", j); err != nil {
		s.log.Debug("event write failed", zap.Error(err))
		c.conn.Close()
	}
}

func remoteName(c net.Conn) string {
	if a := c.RemoteAddr(); a != nil && a.String() != "" {
		return a.String()
	}
	return "local"
}

// ServeConn runs the command loop for one connection and closes it.
func (s *Server) ServeConn(conn net.Conn) {
	c := &client{conn: conn}
	defer func() {
		s.releaseOwner(c)
		conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		verb, arg, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)
		arg = strings.TrimSpace(arg)

		var resp string
		if r, ok := s.query(c, verb, arg); ok {
			resp = r
		} else if !s.claimOwner(c) {
			resp = "ERR CONTROL_LOCKED"
		} else {
			resp = s.control(verb, arg)
		}
		if err := c.reply("%s", resp); err != nil {
			return
		}
	}
}

// query handles read-only verbs. ok is false for anything else.
func (s *Server) query(c *client, verb, arg string) (string, bool) {
	switch verb {
	case "PING":
		return "Pong", true

	case "ABOUT":
		return spec.UserAgent, true

	case "WHOAMI":
		if s.isOwner(c) {
			return "OWNER", true
		}
		return "OBSERVER", true

	case "STATUS":
		st, err := s.player.Status()
		if err != nil {
			return "ERR STOPPED", true
		}
		return mustJSON(st), true

	case "LIST":
		tracks, err := s.player.Playlist()
		if err != nil {
			return "ERR STOPPED", true
		}
		if len(tracks) == 0 {
			return "NO TRACKS YET", true
		}
		return mustJSON(tracks), true
	}
	return "", false
}

func (s *Server) control(verb, arg string) string {
	args := strings.Fields(arg)

	switch verb {
	case "LOAD":
		if arg == "" {
			return "ERR ARG"
		}
		return s.load(arg)

	case "ADD":
		if arg == "" || s.listPath == "" {
			return "ERR ARG"
		}
		if _, err := library.Describe(arg); err != nil {
			return "ERR LOAD"
		}
		if err := library.AppendPlaylist(s.listPath, arg); err != nil {
			return "ERR DUPLICATE"
		}
		return s.load(s.listPath)

	case "PLAY":
		if arg == "" {
			s.player.Play()
			return "Resume Playing"
		}
		i, err := strconv.Atoi(arg)
		if err != nil {
			return "ERR ARG"
		}
		tracks, _ := s.player.Playlist()
		if i < 0 || i >= len(tracks) {
			return "ERR TRACK_RANGE"
		}
		s.player.PlayAt(i)
		return "Track Playing"

	case "TOGGLE":
		s.player.TogglePlayPause()
		return "Toggled"

	case "PAUSE":
		s.player.Pause()
		return "Paused"

	case "RESUME":
		s.player.Play()
		return "Resume Playing"

	case "NEXT":
		s.player.Next()
		return "Jump"

	case "PREV":
		s.player.Prev()
		return "Jump Back"

	case "SEEK":
		// out-of-range positions are clamped by the engine
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return "ERR ARG"
		}
		s.player.Seek(ms)
		return "Seeked"

	case "OFFSET":
		ms, err := strconv.Atoi(arg)
		if err != nil {
			return "ERR ARG"
		}
		s.player.SetSyncOffset(ms)
		return "Offset Set"

	case "LINK":
		on, ok := parseSwitch(arg)
		if !ok {
			return "ERR ARG"
		}
		s.player.SetFilterLink(on)
		return "OK"

	case "ENABLE", "GAIN", "CUTOFF", "FILTER", "ROUTE":
		if len(args) != 2 {
			return "ERR ARG"
		}
		ch, err := playback.ParseChannel(args[0])
		if err != nil {
			return "ERR ARG"
		}
		return s.channel(verb, ch, args[1])
	}
	return "ERR UNKNOWN"
}

func (s *Server) channel(verb string, ch playback.ChannelID, v string) string {
	switch verb {
	case "ENABLE":
		on, ok := parseSwitch(v)
		if !ok {
			return "ERR ARG"
		}
		s.player.SetChannelEnabled(ch, on)

	case "GAIN":
		db, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "ERR ARG"
		}
		s.player.SetGainDb(ch, db)

	case "CUTOFF":
		hz, err := strconv.Atoi(v)
		if err != nil || hz < 0 {
			return "ERR ARG"
		}
		s.player.SetFilterCutoff(ch, hz)

	case "FILTER":
		kind, err := audioengine.ParseFilterKind(v)
		if err != nil {
			return "ERR ARG"
		}
		s.player.SetFilterKind(ch, kind)

	case "ROUTE":
		r, err := audioengine.ParseRoute(v)
		if err != nil {
			return "ERR ARG"
		}
		s.player.SetRoute(ch, r)
	}
	return "OK"
}

func (s *Server) load(path string) string {
	tracks, err := s.scanner.Scan(path)
	if err != nil || len(tracks) == 0 {
		s.log.Warn("load failed", zap.String("path", path), zap.Error(err))
		return "ERR LOAD"
	}
	s.player.LoadPlaylist(tracks)
	return fmt.Sprintf("Playlist Loaded %d", len(tracks))
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "yes":
		return true, true
	case "off", "false", "0", "no":
		return false, true
	}
	return false, false
}

func mustJSON(v any) string {
	j, err := json.Marshal(v)
	if err != nil {
		return "ERR INTERNAL"
	}
	return string(j)
}
