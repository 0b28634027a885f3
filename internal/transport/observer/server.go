// Package observer streams session frames to websocket clients.
package observer

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"sandcave.dev/internal/protocol"
	"sandcave.dev/internal/sim/session"
)

type Server struct {
	sess *session.Session
	log  *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64
	active   atomic.Int64

	// AllowRemote disables the loopback-only check.
	AllowRemote bool
}

func NewServer(sess *session.Session, logger *log.Logger) *Server {
	return &Server{
		sess: sess,
		log:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Active is the number of connected observers.
func (s *Server) Active() int { return int(s.active.Load()) }

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var sub protocol.SubscribeMsg
		if code, reason := decode(protocol.TypeSubscribe, msg, &sub); code != "" {
			_ = writeJSON(conn, protocol.NewError(code, reason))
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		id := s.nextID.Add(1)
		s.active.Add(1)
		defer s.active.Add(-1)
		if s.log != nil {
			s.log.Printf("observer O%d subscribed rows=%v", id, sub.Rows)
		}

		var rows atomic.Bool
		rows.Store(sub.Rows)

		frames, unsubscribe := s.sess.Subscribe(8)
		defer unsubscribe()

		st, pic := s.sess.View()
		first := protocol.NewState(st)
		if sub.Rows {
			first.Rows = pic.Lines()
		}
		if err := writeJSON(conn, first); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Replies from the reader loop.
		replies := make(chan []byte, 8)

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				var b []byte
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case f, ok := <-frames:
					if !ok {
						writeErr <- nil
						return
					}
					b, _ = json.Marshal(s.frameMsg(f, rows.Load()))
				case b = <-replies:
				}
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
					writeErr <- err
					cancel()
					return
				}
			}
		}()

		reply := func(code, message string) {
			b, _ := json.Marshal(protocol.NewError(code, message))
			select {
			case replies <- b:
			default:
			}
		}

		// Reader loop: STEP requests and SUBSCRIBE updates.
		for ctx.Err() == nil {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			base, err := protocol.DecodeBase(msg)
			if err != nil {
				reply(protocol.ErrProtoBadRequest, "invalid json")
				continue
			}
			switch base.Type {
			case protocol.TypeSubscribe:
				var again protocol.SubscribeMsg
				if code, reason := decode(protocol.TypeSubscribe, msg, &again); code != "" {
					reply(code, reason)
					continue
				}
				rows.Store(again.Rows)
			case protocol.TypeStep:
				var step protocol.StepMsg
				if code, reason := decode(protocol.TypeStep, msg, &step); code != "" {
					reply(code, reason)
					continue
				}
				if s.sess.Done() {
					e := protocol.NewDoneError(s.sess.State())
					reply(e.Code, e.Message)
					continue
				}
				// The resulting frame reaches this client through its subscription.
				if l, ok := step.Limit(); ok {
					s.sess.Step(l)
				} else {
					s.sess.StepChunk()
				}
			default:
				reply(protocol.ErrProtoType, "unexpected type "+base.Type)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
		if s.log != nil {
			s.log.Printf("observer O%d closed", id)
		}
	}
}

func (s *Server) frameMsg(f session.Frame, rows bool) protocol.StateMsg {
	m := protocol.NewFrame(f)
	switch {
	case !rows:
		m.Rows = nil
	case m.Rows == nil:
		m.Rows = s.sess.Picture().Lines()
	}
	return m
}

// decode validates msg against the schema for kind and unmarshals it into v.
// It returns an error code and reason on failure.
func decode(kind string, msg []byte, v any) (code, reason string) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		return protocol.ErrProtoBadRequest, "invalid json"
	}
	if base.Type != kind {
		return protocol.ErrProtoType, "expected " + kind
	}
	if !protocol.Compatible(base.ProtocolVersion) {
		return protocol.ErrProtoVersion, "bad protocol_version"
	}
	if err := protocol.Validate(kind, msg); err != nil {
		return protocol.ErrProtoBadRequest, err.Error()
	}
	if err := json.Unmarshal(msg, v); err != nil {
		return protocol.ErrProtoBadRequest, err.Error()
	}
	return "", ""
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
