package timer

import (
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu         sync.Mutex
	event      []Timer[string]
	processing []Timer[string]
	onEvent    func(Timer[string])
}

func (r *recorder) OnEventTime(timer Timer[string]) {
	r.mu.Lock()
	r.event = append(r.event, timer)
	r.mu.Unlock()
	if r.onEvent != nil {
		r.onEvent(timer)
	}
}

func (r *recorder) OnProcessingTime(timer Timer[string]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.processing = append(r.processing, timer)
}

func (r *recorder) processed() []Timer[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Timer[string](nil), r.processing...)
}

func TestEventTime(t *testing.T) {
	service := NewService[string](clock.NewMock(), nil)
	r := &recorder{}
	service.Start(r)
	defer service.Stop()

	for _, ts := range []int64{2, 5, 3, 1, 3, 7} {
		service.RegisterEventTimeTimer(Timer[string]{Payload: "a", Timestamp: ts})
	}
	service.RegisterEventTimeTimer(Timer[string]{Payload: "b", Timestamp: 4})
	service.DeleteEventTimeTimer(Timer[string]{Payload: "a", Timestamp: 5})
	event, _ := service.Pending()
	assert.Equal(t, 5, event)

	service.AdvanceWatermark(4)
	assert.Equal(t, []Timer[string]{{"a", 1}, {"a", 2}, {"a", 3}, {"b", 4}}, r.event)

	service.AdvanceWatermark(2)
	assert.Equal(t, int64(4), service.CurrentEventTimestamp())
	assert.Len(t, r.event, 4)

	service.AdvanceWatermark(10)
	assert.Equal(t, Timer[string]{"a", 7}, r.event[4])
}

func TestEventTimeHandlerMutatesQueue(t *testing.T) {
	service := NewService[string](clock.NewMock(), nil)
	r := &recorder{}
	r.onEvent = func(timer Timer[string]) {
		if timer.Payload == "gc" {
			service.DeleteEventTimeTimer(Timer[string]{Payload: "trigger", Timestamp: 10})
			service.RegisterEventTimeTimer(Timer[string]{Payload: "next", Timestamp: 12})
		}
	}
	service.Start(r)
	defer service.Stop()

	service.RegisterEventTimeTimer(Timer[string]{Payload: "trigger", Timestamp: 10})
	service.RegisterEventTimeTimer(Timer[string]{Payload: "gc", Timestamp: 9})
	service.AdvanceWatermark(100)
	assert.Equal(t, []Timer[string]{{"gc", 9}, {"next", 12}}, r.event)
}

func TestProcessingTime(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.UnixMilli(1000))
	var mu sync.Mutex
	service := NewService[string](mock, func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	})
	r := &recorder{}

	mu.Lock()
	service.RegisterProcessingTimeTimer(Timer[string]{Payload: "late", Timestamp: 3000})
	service.RegisterProcessingTimeTimer(Timer[string]{Payload: "early", Timestamp: 2000})
	service.RegisterProcessingTimeTimer(Timer[string]{Payload: "deleted", Timestamp: 1500})
	service.DeleteProcessingTimeTimer(Timer[string]{Payload: "deleted", Timestamp: 1500})
	service.Start(r)
	mu.Unlock()

	mock.Add(500 * time.Millisecond)
	assert.Empty(t, r.processed())

	mock.Add(600 * time.Millisecond)
	assert.Eventually(t, func() bool { return len(r.processed()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Timer[string]{"early", 2000}, r.processed()[0])

	// wait for the callback to re-arm the clock
	mu.Lock()
	mu.Unlock()
	mock.Add(time.Second)
	assert.Eventually(t, func() bool { return len(r.processed()) == 2 }, time.Second, time.Millisecond)

	mu.Lock()
	service.Stop()
	mu.Unlock()
}

func TestProcessingTimeRealClock(t *testing.T) {
	var mu sync.Mutex
	service := NewService[string](clock.New(), func(fn func()) {
		mu.Lock()
		defer mu.Unlock()
		fn()
	})
	r := &recorder{}
	mu.Lock()
	service.Start(r)
	service.RegisterProcessingTimeTimer(Timer[string]{Payload: "now", Timestamp: service.CurrentProcessingTimestamp() + 5})
	service.RegisterProcessingTimeTimer(Timer[string]{Payload: "never", Timestamp: service.CurrentProcessingTimestamp() + 60000})
	mu.Unlock()

	assert.Eventually(t, func() bool { return len(r.processed()) == 1 }, 5*time.Second, time.Millisecond)

	mu.Lock()
	service.Stop()
	_, processing := service.Pending()
	mu.Unlock()
	assert.Equal(t, 1, processing)
}
