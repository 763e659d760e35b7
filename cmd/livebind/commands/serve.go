package commands

import (
	"context"
	"fmt"
	"html"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/livefir/livebind/internal/scenario"
)

// Serve streams a scenario replay to browsers over WebSocket. Every
// connection gets its own run.
func Serve(args []string) error {
	var (
		path     string
		addr     = ":8080"
		interval = 500 * time.Millisecond
	)
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; {
		case arg == "--addr" && i+1 < len(args):
			addr = args[i+1]
			i++
		case arg == "--interval" && i+1 < len(args):
			d, err := time.ParseDuration(args[i+1])
			if err != nil {
				return fmt.Errorf("invalid --interval: %w", err)
			}
			interval = d
			i++
		case strings.HasPrefix(arg, "--"):
			return fmt.Errorf("unknown flag: %s", arg)
		case path != "":
			return fmt.Errorf("unexpected argument: %s", arg)
		default:
			path = arg
		}
	}
	if path == "" {
		return fmt.Errorf("scenario file required: serve <scenario.yaml>")
	}

	s, err := scenario.Load(path)
	if err != nil {
		return err
	}

	log.Printf("Serving %s on %s", s.Name, addr)
	return http.ListenAndServe(addr, NewServeHandler(s, interval))
}

// NewServeHandler serves a page at / that renders the frames sent on /ws.
func NewServeHandler(s *scenario.Scenario, interval time.Duration) http.Handler {
	h := &replayHandler{
		scenario: s,
		interval: interval,
		upgrader: &websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.page)
	mux.HandleFunc("/ws", h.stream)
	return mux
}

type replayHandler struct {
	scenario *scenario.Scenario
	interval time.Duration
	upgrader *websocket.Upgrader
}

const pageTemplate = `<!DOCTYPE html>
<html>
<head><title>%[1]s</title></head>
<body>
<h1>%[1]s</h1>
<p id="step"></p>
<div id="view"></div>
<script>
const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/ws");
ws.onmessage = (e) => {
  const frame = JSON.parse(e.data);
  document.getElementById("step").textContent = "step " + frame.step + " " + frame.op;
  document.getElementById("view").innerHTML = frame.html;
};
</script>
</body>
</html>
`

func (h *replayHandler) page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, pageTemplate, html.EscapeString(h.scenario.Name))
}

func (h *replayHandler) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends anything; reading only notices the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error: %v", err)
				}
				return
			}
		}
	}()

	_, err = scenario.Run(ctx, h.scenario, scenario.Options{
		Minify:   true,
		Interval: h.interval,
		OnFrame: func(f scenario.Frame) error {
			return conn.WriteJSON(f)
		},
	})
	if err != nil && ctx.Err() == nil {
		log.Printf("Replay of %s failed: %v", h.scenario.Name, err)
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replay finished")
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil && ctx.Err() == nil {
		log.Printf("Failed to close WebSocket: %v", err)
	}
}
