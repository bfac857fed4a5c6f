// Command server is a local stand-in for the Hearth gateway. It accepts one session per
// connection, sends READY followed by a MESSAGE_CREATE every -interval, logs heartbeats and
// can drop the connection abnormally to exercise client reconnects.
package main

import (
	"flag"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/yanun0323/logs"

	"hearth/pkg/gateway"
)

type serverOption struct {
	Path      string
	Token     string
	Interval  time.Duration
	DropAfter int
}

func main() {
	addr := flag.String("addr", "localhost:8080", "Listen address")
	path := flag.String("path", gateway.DefaultGatewayPath, "Gateway path")
	token := flag.String("token", "", "Required token (empty accepts any)")
	interval := flag.Duration("interval", 2*time.Second, "Delay between generated messages")
	dropAfter := flag.Int("drop-after", 0, "Drop the connection without a close frame after N messages (0=never)")
	flag.Parse()

	opt := serverOption{Path: *path, Token: *token, Interval: *interval, DropAfter: *dropAfter}
	mux := http.NewServeMux()
	mux.Handle(opt.Path, newHandler(opt))
	logs.Infof("server: listening on ws://%s%s", *addr, opt.Path)
	if err := http.ListenAndServe(*addr, mux); err != nil {
		logs.Errorf("server: %+v", err)
	}
}

func newHandler(opt serverOption) http.Handler {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var sessions atomic.Int64

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if opt.Token != "" && r.URL.Query().Get(gateway.DefaultTokenParam) != opt.Token {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logs.Warnf("server: upgrade, err: %+v", err)
			return
		}
		id := sessions.Add(1)
		logs.Infof("server: session %d opened", id)
		serveSession(conn, opt, id)
		logs.Infof("server: session %d closed", id)
	})
}

func serveSession(conn *websocket.Conn, opt serverOption, id int64) {
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ev, err := gateway.DecodeEvent(data)
			if err != nil {
				logs.Warnf("server: session %d sent malformed frame, err: %+v", id, err)
				continue
			}
			logs.Infof("server: session %d -> %s %s", id, ev.Type, ev.Data)
		}
	}()

	var seq int64
	write := func(t string, data any) bool {
		seq++
		payload, err := sonic.Marshal(data)
		if err != nil {
			return false
		}
		frame, err := gateway.Event{Type: t, Data: payload, Sequence: &seq}.Encode()
		if err != nil {
			return false
		}
		return conn.WriteMessage(websocket.TextMessage, frame) == nil
	}

	if !write(gateway.TypeReady, map[string]any{"session_id": strconv.FormatInt(id, 10)}) {
		return
	}

	ticker := time.NewTicker(opt.Interval)
	defer ticker.Stop()
	for sent := 0; ; {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			sent++
			ok := write(gateway.TypeMessageCreate, map[string]any{
				"id":         strconv.FormatInt(id, 10) + "-" + strconv.Itoa(sent),
				"channel_id": "general",
				"author_id":  "server",
				"content":    "tick " + strconv.Itoa(sent),
				"created_at": now.UTC().Format(time.RFC3339Nano),
			})
			if !ok {
				return
			}
			if opt.DropAfter > 0 && sent >= opt.DropAfter {
				logs.Infof("server: session %d dropped", id)
				return
			}
		}
	}
}
