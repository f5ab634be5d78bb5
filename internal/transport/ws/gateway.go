package ws

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-telegram-login/internal/domain"
	"github.com/gorilla/websocket"
)

const writeTimeout = 10 * time.Second

// Gateway holds one live websocket per correlation token and delivers the
// terminal login result the moment the handshake completes. Registrations
// are in-process memory: a multi-instance deployment must replace this with
// a shared pub/sub backend behind the same contract.
type Gateway struct {
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*client // token -> live channel
}

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex // gorilla conns allow a single concurrent writer
}

func (c *client) writeJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

func NewGateway(allowedOrigins []string) *Gateway {
	allowAll := len(allowedOrigins) == 1 && allowedOrigins[0] == "*"
	return &Gateway{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1 << 10,
			WriteBufferSize: 1 << 10,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				origin := r.Header.Get("Origin")
				for _, o := range allowedOrigins {
					if o == origin {
						return true
					}
				}
				return false
			},
		},
		conns: make(map[string]*client),
	}
}

// joinFrame is the only client-to-server message: it binds this channel to a
// correlation token.
type joinFrame struct {
	Event string `json:"event"`
	Token string `json:"token"`
}

type joinedFrame struct {
	Event   string `json:"event"`
	Success bool   `json:"success"`
}

type resultFrame struct {
	Event      string `json:"event"`
	Status     string `json:"status"`
	Credential string `json:"credential,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Handle upgrades the request and runs the read loop until the browser
// disconnects or its result has been delivered.
func (g *Gateway) Handle(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}
	c := &client{conn: conn}
	defer func() {
		g.unregister(c)
		_ = conn.Close()
	}()

	for {
		var frame joinFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		if frame.Event != "join" || frame.Token == "" {
			continue
		}
		g.register(frame.Token, c)
		if err := c.writeJSON(joinedFrame{Event: "joined", Success: true}); err != nil {
			return
		}
	}
}

// register stores the mapping, replacing any prior registration for the
// token. A reconnecting tab supersedes its old channel.
func (g *Gateway) register(token string, c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conns[token] = c
}

// unregister removes every mapping pointing at this channel.
func (g *Gateway) unregister(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for token, registered := range g.conns {
		if registered == c {
			delete(g.conns, token)
		}
	}
}

// SendResult delivers the terminal result for a token and tears down its
// registration. At-most-once: the mapping is gone after the first call.
// With no registered channel it logs and drops; the browser times out and
// the user retries from the start.
func (g *Gateway) SendResult(token string, res domain.LoginResult) {
	g.mu.Lock()
	c, ok := g.conns[token]
	delete(g.conns, token)
	g.mu.Unlock()

	if !ok {
		slog.Info("no push channel registered for login", "token", token)
		return
	}
	if err := c.writeJSON(resultFrame{
		Event:      "result",
		Status:     res.Status,
		Credential: res.Credential,
		Message:    res.Message,
	}); err != nil {
		slog.Warn("failed to deliver login result", "token", token, "err", err)
	}
	_ = c.conn.Close()
}
