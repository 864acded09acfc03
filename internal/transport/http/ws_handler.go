package http

import (
	"encoding/json"
	"net/http"

	"caretoplay/internal/app"
	"caretoplay/internal/flow"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type WSHandler struct {
	service  *app.PlayService
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(service *app.PlayService, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: logger,
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type sessionPayload struct {
	SessionID  string `json:"sessionId"`
	DeviceID   string `json:"deviceId"`
	QuizSetKey string `json:"quizSetKey"`
}

type redirectPayload struct {
	QuizSetKey string `json:"quizSetKey"`
}

type copyLinkPayload struct {
	URL string `json:"url"`
}

// ServeWS upgrades HTTP requests to websockets and drives a play session for the device.
//
// Query: deviceId (generated when absent), quizSetKey ("" resumes, "new" starts fresh),
// ref, share=native when the device has a share sheet.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	session, err := h.service.Open(r.Context(), app.OpenRequest{
		DeviceID:    q.Get("deviceId"),
		QuizSetKey:  q.Get("quizSetKey"),
		Ref:         q.Get("ref"),
		NativeShare: q.Get("share") == "native",
	})
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer h.service.Close(r.Context(), session.ID())
	log := h.log.With().Str("session", session.ID()).Str("device", session.DeviceID()).Logger()

	updates, cancel, err := h.service.Subscribe(r.Context(), session.ID())
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// single writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	send <- outboundMessage[any]{Type: "session", Payload: sessionPayload{
		SessionID:  session.ID(),
		DeviceID:   session.DeviceID(),
		QuizSetKey: session.QuizSetKey(),
	}}

	go func() {
		defer close(updatesDone)
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- toOutbound(update):
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "event":
			var ev flow.Event
			if err := json.Unmarshal(inbound.Payload, &ev); err != nil || ev.Type == "" {
				h.reply(send, closeSignals, "invalid event payload")
				continue
			}
			if err := h.service.Send(r.Context(), session.ID(), ev); err != nil {
				h.reply(send, closeSignals, err.Error())
			}
		case "shareResult":
			var res app.ShareResult
			if err := json.Unmarshal(inbound.Payload, &res); err != nil {
				h.reply(send, closeSignals, "invalid share result payload")
				continue
			}
			_ = h.service.ResolveShare(r.Context(), session.ID(), res)
		default:
			h.reply(send, closeSignals, "unsupported message type")
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) reply(send chan<- outboundMessage[any], closed <-chan struct{}, message string) {
	select {
	case send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}:
	case <-closed:
	}
}

func toOutbound(msg app.Message) outboundMessage[any] {
	switch msg.Type {
	case app.MessageRedirect:
		return outboundMessage[any]{Type: msg.Type, Payload: redirectPayload{QuizSetKey: msg.QuizSetKey}}
	case app.MessageShare:
		return outboundMessage[any]{Type: msg.Type, Payload: msg.Share}
	case app.MessageCopyLink:
		return outboundMessage[any]{Type: msg.Type, Payload: copyLinkPayload{URL: msg.URL}}
	default:
		return outboundMessage[any]{Type: msg.Type, Payload: msg.Snapshot}
	}
}
