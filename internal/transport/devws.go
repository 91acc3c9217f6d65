package transport

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// DevHub is a WebSocket chat playground used when the process runs without
// a real bot token (BOT_TOKEN=dev). Each connection claims a chat id and
// plays both sides of the transport: JSON events written by the client are
// fed into the router, and anything the relay sends to that chat id is
// pushed back over the socket. Development only; never mounted in
// production.
type DevHub struct {
	handle func(Event)

	mu    sync.Mutex
	conns map[int64]*websocket.Conn
}

var devUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Local tooling only; the route is not registered in production.
		return true
	},
}

func NewDevHub(handle func(Event)) *DevHub {
	return &DevHub{
		handle: handle,
		conns:  make(map[int64]*websocket.Conn),
	}
}

// devInbound mirrors Event with JSON tags for the playground client.
type devInbound struct {
	SenderID     int64  `json:"sender_id"`
	ChatID       int64  `json:"chat_id"`
	Text         string `json:"text,omitempty"`
	PhotoRef     string `json:"photo_ref,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
	DeepLinkArg  string `json:"deep_link_arg,omitempty"`
	FirstName    string `json:"first_name,omitempty"`
	LastName     string `json:"last_name,omitempty"`
	Handle       string `json:"handle,omitempty"`
}

type devOutbound struct {
	ChatID   int64      `json:"chat_id"`
	Text     string     `json:"text,omitempty"`
	Buttons  [][]Button `json:"buttons,omitempty"`
	Document string     `json:"document,omitempty"` // filename when a document was sent
	Caption  string     `json:"caption,omitempty"`
	Payload  string     `json:"payload,omitempty"` // document body as a string
}

// ServeHTTP upgrades the connection and pumps events until the peer hangs up.
func (h *DevHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := devUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var registered int64
	defer func() {
		if registered != 0 {
			h.mu.Lock()
			if h.conns[registered] == conn {
				delete(h.conns, registered)
			}
			h.mu.Unlock()
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var in devInbound
		if err := json.Unmarshal(raw, &in); err != nil {
			log.Printf("dev hub: bad event: %v", err)
			continue
		}
		if in.ChatID == 0 {
			in.ChatID = in.SenderID
		}
		if in.SenderID == 0 {
			continue
		}

		h.mu.Lock()
		h.conns[in.ChatID] = conn
		h.mu.Unlock()
		registered = in.ChatID

		h.handle(Event{
			SenderID:     in.SenderID,
			ChatID:       in.ChatID,
			Text:         in.Text,
			PhotoRef:     in.PhotoRef,
			CallbackData: in.CallbackData,
			DeepLinkArg:  in.DeepLinkArg,
			FirstName:    in.FirstName,
			LastName:     in.LastName,
			Handle:       in.Handle,
		})
	}
}

func (h *DevHub) push(chatID int64, out devOutbound) error {
	h.mu.Lock()
	conn, ok := h.conns[chatID]
	h.mu.Unlock()
	if !ok {
		return &DeliveryError{ChatID: chatID, Err: errNoDevConn}
	}
	if err := conn.WriteJSON(out); err != nil {
		return &DeliveryError{ChatID: chatID, Err: err}
	}
	return nil
}

var errNoDevConn = errors.New("no dev connection for chat")

func (h *DevHub) SendText(_ context.Context, chatID int64, text string, opts *SendOpts) error {
	out := devOutbound{ChatID: chatID, Text: text}
	if opts != nil {
		out.Buttons = opts.Buttons
	}
	return h.push(chatID, out)
}

func (h *DevHub) SendDocument(_ context.Context, chatID int64, data []byte, filename, caption string) error {
	return h.push(chatID, devOutbound{
		ChatID:   chatID,
		Document: filename,
		Caption:  caption,
		Payload:  string(data),
	})
}
