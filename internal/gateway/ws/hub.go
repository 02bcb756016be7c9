// Package ws serves the game over WebSocket. Players and group observers
// connect with a signed grant; the Hub implements gateway.Gateway for the
// coordinator.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/aether-games/echoes-engine/internal/domain"
	"github.com/aether-games/echoes-engine/internal/gateway"
	"github.com/aether-games/echoes-engine/internal/grant"
	"github.com/aether-games/echoes-engine/internal/workflow"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	queueSize  = 32
	maxTracked = 4096
)

// Dispatcher handles what connected clients send.
type Dispatcher interface {
	HandleAction(ctx context.Context, in workflow.Inbound) (domain.Outcome, error)
	ObserveMessage(ctx context.Context, groupID, playerID, text string)
}

type client struct {
	to      gateway.Recipient
	name    string
	groupID string
	out     chan []byte
}

// Hub tracks live connections by recipient.
type Hub struct {
	signer   *grant.Signer
	log      *log.Logger
	upgrader websocket.Upgrader
	schema   *jsonschema.Schema

	mu       sync.RWMutex
	dispatch Dispatcher
	clients  map[gateway.Recipient]map[*client]struct{}
	sent     map[gateway.MessageID]gateway.Recipient
	order    []gateway.MessageID
}

// NewHub creates a hub. Attach a Dispatcher before serving.
func NewHub(signer *grant.Signer, logger *log.Logger) (*Hub, error) {
	schema, err := compileInbound()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		signer: signer,
		log:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		schema:  schema,
		clients: make(map[gateway.Recipient]map[*client]struct{}),
		sent:    make(map[gateway.MessageID]gateway.Recipient),
	}, nil
}

// Attach sets the receiver of inbound frames.
func (h *Hub) Attach(d Dispatcher) {
	h.mu.Lock()
	h.dispatch = d
	h.mu.Unlock()
}

// Send implements gateway.Gateway. Every live connection of the recipient
// gets the frame; a full queue counts as a failed delivery.
func (h *Hub) Send(_ context.Context, to gateway.Recipient, msg gateway.Message) (gateway.MessageID, error) {
	id := gateway.MessageID(uuid.NewString())
	if err := h.push(to, OutboundFrame{Type: TypeMessage, ID: id, Text: msg.Text, Buttons: msg.Buttons}); err != nil {
		return "", err
	}
	h.mu.Lock()
	h.sent[id] = to
	h.order = append(h.order, id)
	if len(h.order) > maxTracked {
		delete(h.sent, h.order[0])
		h.order = h.order[1:]
	}
	h.mu.Unlock()
	return id, nil
}

// Edit implements gateway.Gateway.
func (h *Hub) Edit(_ context.Context, to gateway.Recipient, id gateway.MessageID, msg gateway.Message) error {
	h.mu.RLock()
	owner, ok := h.sent[id]
	h.mu.RUnlock()
	if !ok || owner != to {
		return domain.ErrMessageNotEditable
	}
	return h.push(to, OutboundFrame{Type: TypeEdit, ID: id, Text: msg.Text, Buttons: msg.Buttons})
}

func (h *Hub) push(to gateway.Recipient, f OutboundFrame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns := h.clients[to]
	if len(conns) == 0 {
		return domain.ErrRecipientOffline
	}
	delivered := 0
	for c := range conns {
		select {
		case c.out <- b:
			delivered++
		default:
		}
	}
	if delivered == 0 {
		return domain.ErrDeliveryFailed
	}
	return nil
}

// Online reports whether the recipient has a live connection.
func (h *Hub) Online(to gateway.Recipient) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[to]) > 0
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.clients[c.to]
	if set == nil {
		set = make(map[*client]struct{})
		h.clients[c.to] = set
	}
	set[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set := h.clients[c.to]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.clients, c.to)
		}
	}
}

// Handler upgrades the request and serves one client until it disconnects.
func (h *Hub) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		c := h.handshake(conn)
		if c == nil {
			return
		}
		h.register(c)
		defer h.unregister(c)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		go func() {
			ticker := time.NewTicker(pingPeriod)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
						cancel()
						return
					}
				case b := <-c.out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						return
					}
				}
			}
		}()

		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})

		// Reader loop.
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(pongWait))
			h.handleFrame(ctx, c, raw)
		}
	}
}

func (h *Hub) handshake(conn *websocket.Conn) *client {
	_ = conn.SetReadDeadline(time.Now().Add(writeWait))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return nil
	}
	f, err := decodeInbound(h.schema, raw)
	if err != nil || f.Type != TypeHello {
		closeWith(conn, "expected hello")
		return nil
	}
	claims, err := h.signer.Verify(f.Grant)
	if err != nil {
		closeWith(conn, "invalid grant")
		return nil
	}

	c := &client{name: claims.DisplayName, groupID: claims.GroupID, out: make(chan []byte, queueSize)}
	switch claims.Kind {
	case grant.KindGroup:
		c.to = gateway.Group(claims.SubjectID)
	default:
		c.to = gateway.Player(claims.SubjectID)
	}
	if err := writeJSON(conn, OutboundFrame{Type: TypeWelcome, As: c.to.String()}); err != nil {
		return nil
	}
	return c
}

func (h *Hub) handleFrame(ctx context.Context, c *client, raw []byte) {
	f, err := decodeInbound(h.schema, raw)
	if err != nil {
		h.reply(c, "", err)
		return
	}
	if c.to.Kind != gateway.KindPlayer {
		h.reply(c, "", domain.ErrUnauthorized)
		return
	}
	h.mu.RLock()
	d := h.dispatch
	h.mu.RUnlock()
	if d == nil {
		h.reply(c, "", domain.ErrNoGame)
		return
	}

	switch f.Type {
	case TypeAction:
		groupID := f.GroupID
		if groupID == "" && f.Token == gateway.TokenJoin {
			groupID = c.groupID
		}
		out, err := d.HandleAction(ctx, workflow.Inbound{
			GroupID:     groupID,
			PlayerID:    c.to.ID,
			DisplayName: c.name,
			Token:       f.Token,
		})
		h.reply(c, out.Text, err)
	case TypeSay:
		if c.groupID == "" {
			h.reply(c, "", domain.ErrNoGame)
			return
		}
		d.ObserveMessage(ctx, c.groupID, c.to.ID, f.Text)
		if err := h.push(gateway.Group(c.groupID), OutboundFrame{Type: TypeMessage, Text: "@" + c.name + ": " + f.Text}); err != nil {
			h.log.Printf("WARN: relay chat to %s: %v", c.groupID, err)
		}
	default:
		h.reply(c, "", domain.ErrUnknownAction)
	}
}

func (h *Hub) reply(c *client, text string, err error) {
	ok := err == nil
	f := OutboundFrame{Type: TypeResult, OK: &ok, Text: text}
	if err != nil {
		f.Error = domain.UserMessage(err)
	}
	b, mErr := json.Marshal(f)
	if mErr != nil {
		return
	}
	select {
	case c.out <- b:
	default:
		h.log.Printf("WARN: dropped reply to %s", c.to)
	}
}

func closeWith(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, b)
}
