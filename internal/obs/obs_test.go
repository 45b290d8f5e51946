package obs

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func TestTimeEmitsStartAndResult(t *testing.T) {
	rec := &recorder{}
	ctx := WithRequestID(context.Background(), "abc")

	func() {
		var err error
		defer Time(ctx, rec, "stage.ok")(&err)
	}()
	func() {
		err := errors.New("boom")
		defer Time(ctx, rec, "stage.fail")(&err)
	}()

	require.Len(t, rec.events, 4)
	require.Equal(t, Event{RequestID: "abc", Op: "stage.ok", Status: StatusStart}, rec.events[0])
	require.Equal(t, StatusOK, rec.events[1].Status)
	require.Equal(t, StatusFailed, rec.events[3].Status)
	require.Equal(t, "boom", rec.events[3].Err)
	require.Equal(t, "abc", rec.events[3].RequestID)
}

func TestEmitForwardsToSink(t *testing.T) {
	own := &recorder{}
	sink := &recorder{}
	ctx := WithSink(context.Background(), sink)

	Emit(ctx, own, Event{Op: "x", Status: StatusOK})
	Emit(ctx, nil, Event{Op: "y", Status: StatusOK})

	require.Len(t, own.events, 1)
	require.Len(t, sink.events, 2)
}

func TestLogObserverFormat(t *testing.T) {
	var buf bytes.Buffer
	o := NewLogObserver(log.New(&buf, "", 0))

	o.Observe(context.Background(), Event{RequestID: "r1", Op: "geocode", Status: StatusFailed, DurMs: 12, Err: "nope"})

	line := strings.TrimSpace(buf.String())
	require.Equal(t, "req_id=r1 op=geocode status=failed dur=12ms err=nope", line)
}
