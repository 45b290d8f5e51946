package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/you/go-globe-planner/internal/obs"
	"github.com/you/go-globe-planner/internal/service"
)

type streamMessage struct {
	Type   string                `json:"type"` // "stage" or "result"
	Event  *stageEvent           `json:"event,omitempty"`
	Result *service.SearchResult `json:"result,omitempty"`
}

// stageEvent is the part of an obs.Event that clients get to see. Raw error
// text stays in the server log; failures are described by kind only.
type stageEvent struct {
	Stage  string     `json:"stage"`
	Status obs.Status `json:"status"`
	DurMs  int64      `json:"dur_ms,omitempty"`
	Kind   string     `json:"kind,omitempty"`
}

func publicEvent(ev obs.Event) *stageEvent {
	return &stageEvent{Stage: ev.Op, Status: ev.Status, DurMs: ev.DurMs, Kind: ev.Kind}
}

// SubscribeSSEHandler runs one plan and streams every stage event as it
// happens, finishing with the result.
//
//	GET /sse/plan?source_city=Delhi&destination_city=Mumbai&departure_date=2026-10-20
func SubscribeSSEHandler(p Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parsePlanRequest(r, time.Now())
		if err != nil {
			writeError(w, r, service.HTTPStatus(err), err.Error())
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, r, http.StatusInternalServerError, "streaming unsupported")
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		var mu sync.Mutex
		send := func(event string, v any) {
			payload, _ := json.Marshal(v)
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
			flusher.Flush()
		}

		ctx := obs.WithSink(r.Context(), obs.ObserverFunc(func(_ context.Context, ev obs.Event) {
			send("stage", publicEvent(ev))
		}))
		res := p.Plan(ctx, req)
		if r.Context().Err() != nil {
			log.Println("SSE client closed")
			return
		}
		send("result", res)
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // restrict origin when served behind a known frontend
	},
}

// SubscribeWSHandler is the websocket twin of SubscribeSSEHandler.
func SubscribeWSHandler(p Planner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := parsePlanRequest(r, time.Now())
		if err != nil {
			writeError(w, r, service.HTTPStatus(err), err.Error())
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("upgrade error: %v", err)
			return
		}
		defer conn.Close()

		var mu sync.Mutex
		send := func(m streamMessage) error {
			mu.Lock()
			defer mu.Unlock()
			return conn.WriteJSON(m)
		}

		ctx := obs.WithSink(r.Context(), obs.ObserverFunc(func(_ context.Context, ev obs.Event) {
			if err := send(streamMessage{Type: "stage", Event: publicEvent(ev)}); err != nil {
				log.Printf("write error: %v", err)
			}
		}))
		res := p.Plan(ctx, req)
		if err := send(streamMessage{Type: "result", Result: &res}); err != nil {
			log.Printf("write error: %v", err)
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"),
			time.Now().Add(time.Second))
	}
}
