package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"roots-quiz-service/internal/app"
	"roots-quiz-service/internal/domain"
)

// WSHandler pushes leaderboard events to connected clients.
type WSHandler struct {
	hub      *app.Hub
	quiz     *app.QuizService
	upgrader websocket.Upgrader
}

func NewWSHandler(hub *app.Hub, quiz *app.QuizService) *WSHandler {
	return &WSHandler{
		hub:  hub,
		quiz: quiz,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS upgrades the request, sends the current leaderboard and then relays
// every hub event until the client goes away.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// subscribe before the snapshot so no update falls in between
	events, cancel := h.hub.Subscribe()
	defer cancel()

	send := make(chan domain.Event, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for ev := range send {
			if err := conn.WriteJSON(ev); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	if top, err := h.quiz.Leaderboard(r.Context()); err != nil {
		log.Printf("ws leaderboard snapshot: %v", err)
	} else {
		send <- domain.Event{Name: domain.EventLeaderboardUpdate, Payload: top}
	}

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				select {
				case send <- ev:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		log.Printf("ws message received: %s", msg)
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}
