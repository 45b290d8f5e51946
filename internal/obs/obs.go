package obs

import (
	"context"
	"log"
	"time"
)

type ctxKey string

const (
	RequestIDKey ctxKey = "req_id"
	sinkKey      ctxKey = "obs_sink"
)

type Status string

const (
	StatusStart  Status = "start"
	StatusOK     Status = "ok"
	StatusFailed Status = "failed"
)

// Event is a single stage-start or stage-result notification.
type Event struct {
	RequestID string `json:"req_id,omitempty"`
	Op        string `json:"stage"`
	Status    Status `json:"status"`
	DurMs     int64  `json:"dur_ms,omitempty"`
	Kind      string `json:"kind,omitempty"` // failure kind, set on terminal failures
	Err       string `json:"err,omitempty"`  // raw cause; for server logs only
}

type Observer interface {
	Observe(ctx context.Context, ev Event)
}

type ObserverFunc func(ctx context.Context, ev Event)

func (f ObserverFunc) Observe(ctx context.Context, ev Event) { f(ctx, ev) }

// Nop discards every event.
type Nop struct{}

func (Nop) Observe(context.Context, Event) {}

// LogObserver writes events as key=value log lines.
type LogObserver struct {
	logger *log.Logger
}

func NewLogObserver(l *log.Logger) *LogObserver {
	if l == nil {
		l = log.Default()
	}
	return &LogObserver{logger: l}
}

func (o *LogObserver) Observe(_ context.Context, ev Event) {
	switch ev.Status {
	case StatusStart:
		o.logger.Printf("req_id=%s op=%s status=%s", ev.RequestID, ev.Op, ev.Status)
	case StatusFailed:
		o.logger.Printf("req_id=%s op=%s status=%s dur=%dms err=%s", ev.RequestID, ev.Op, ev.Status, ev.DurMs, ev.Err)
	default:
		o.logger.Printf("req_id=%s op=%s status=%s dur=%dms", ev.RequestID, ev.Op, ev.Status, ev.DurMs)
	}
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDKey).(string)
	return id
}

// WithSink attaches a per-request observer that receives every event emitted
// under ctx in addition to the component's own observer.
func WithSink(ctx context.Context, o Observer) context.Context {
	return context.WithValue(ctx, sinkKey, o)
}

func Emit(ctx context.Context, o Observer, ev Event) {
	if ev.RequestID == "" {
		ev.RequestID = RequestID(ctx)
	}
	if o != nil {
		o.Observe(ctx, ev)
	}
	if sink, ok := ctx.Value(sinkKey).(Observer); ok && sink != nil {
		sink.Observe(ctx, ev)
	}
}

// Time emits a start event for op and returns a func that emits the result.
//
//	defer obs.Time(ctx, o, "amadeus.token")(&err)
func Time(ctx context.Context, o Observer, op string) func(errp *error) {
	start := time.Now()
	Emit(ctx, o, Event{Op: op, Status: StatusStart})

	return func(errp *error) {
		ev := Event{Op: op, Status: StatusOK, DurMs: time.Since(start).Milliseconds()}
		if errp != nil && *errp != nil {
			ev.Status = StatusFailed
			ev.Err = (*errp).Error()
		}
		Emit(ctx, o, ev)
	}
}
