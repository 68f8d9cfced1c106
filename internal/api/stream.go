package api

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamBuffer     = 8
	streamWriteWait  = 5 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = streamPongWait * 9 / 10
	streamReadLimit  = 64 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || isAllowedOrigin(origin)
	},
}

// streamHandler pushes every rendered frame of a session to the editor and
// accepts pointer and playback commands in the other direction.
func streamHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already written the response.
			if cfg.Logger != nil {
				cfg.Logger.Warn("stream upgrade failed", "project_id", sess.ID(), "error", err)
			}
			return
		}
		defer conn.Close()

		frames, unsubscribe := sess.Subscribe(streamBuffer)
		defer unsubscribe()

		replies := make(chan StreamMessage, streamBuffer)
		done := make(chan struct{})

		// A gesture this connection started is aborted when the connection
		// goes away, releasing pointer capture.
		var gesture atomic.Bool
		defer func() {
			conn.Close()
			<-done
			if gesture.Load() {
				sess.PointerCancel()
			}
		}()

		go func() {
			defer close(done)
			conn.SetReadLimit(streamReadLimit)
			conn.SetReadDeadline(time.Now().Add(streamPongWait))
			conn.SetPongHandler(func(string) error {
				return conn.SetReadDeadline(time.Now().Add(streamPongWait))
			})
			for {
				var cmd StreamCommand
				if err := conn.ReadJSON(&cmd); err != nil {
					return
				}
				var cmdErr error
				if cmd.Pointer != nil {
					_, cmdErr = applyPointer(sess, *cmd.Pointer)
					switch cmd.Pointer.Action {
					case "down":
						gesture.Store(cmdErr == nil)
					case "up", "cancel":
						gesture.Store(false)
					}
				}
				if cmd.Playback != nil && cmdErr == nil {
					cmdErr = applyPlayback(sess, *cmd.Playback)
				}
				if cmdErr != nil {
					select {
					case replies <- StreamMessage{Type: "error", Error: cmdErr.Error()}:
					default:
					}
				}
			}
		}()

		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()

		for {
			var msg StreamMessage
			select {
			case <-done:
				return
			case <-r.Context().Done():
				return
			case view, open := <-frames:
				if !open {
					conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
					conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
					return
				}
				msg = StreamMessage{Type: "frame", Frame: &view}
			case msg = <-replies:
			case <-ping.C:
				conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
				continue
			}

			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
