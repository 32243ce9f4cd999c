package host

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally/v4"

	"github.com/RuiFG/streaming-trigger/common/safe"
	"github.com/RuiFG/streaming-trigger/config"
	"github.com/RuiFG/streaming-trigger/engine"
	"github.com/RuiFG/streaming-trigger/log"
	"github.com/RuiFG/streaming-trigger/trigger"
	"github.com/RuiFG/streaming-trigger/watermark"
	"github.com/RuiFG/streaming-trigger/window"
)

type sink struct {
	mu    sync.Mutex
	panes []Pane
}

func (s *sink) EmitPane(pane engine.PaneFiring) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panes = append(s.panes, NewPane(pane))
}

func (s *sink) Panes() []Pane {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Pane(nil), s.panes...)
}

func newApplication(w config.Window, spec trigger.Spec) *config.Application {
	return &config.Application{
		Trigger:   spec,
		Window:    w,
		Watermark: config.Watermark{Inputs: 1},
		State:     config.State{Backend: "memory"},
	}
}

func newRunner(t *testing.T, application *config.Application, opts ...WithOptions) (*Runner, *sink, tally.TestScope) {
	s := &sink{}
	scope := tally.NewTestScope("", nil)
	r, err := New(application, append([]WithOptions{
		WithCollector(s),
		WithLogger(log.Nop()),
		WithClock(clock.NewMock()),
		WithMetrics(scope),
	}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, s, scope
}

func lines(events ...string) *strings.Reader {
	return strings.NewReader(strings.Join(events, "\n") + "\n")
}

func counter(scope tally.TestScope, name string) int64 {
	if c, ok := scope.Snapshot().Counters()[name+"+"]; ok {
		return c.Value()
	}
	return 0
}

func TestReplaySessions(t *testing.T) {
	r, s, scope := newRunner(t, newApplication(
		config.Window{Kind: "sessions", Gap: 10 * time.Millisecond},
		trigger.Spec{Kind: "after_watermark", Anchor: "end"}))

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"element","key":"a","timestamp":0}`,
		`{"kind":"element","key":"a","timestamp":5}`,
		`{"kind":"element","key":"a","timestamp":30}`,
		`not an event`,
		``,
	)))
	assert.Equal(t, []window.Window{window.Must(0, 15), window.Must(30, 40)}, r.ActiveWindows("a"))
	assert.Equal(t, watermark.MinTimestamp, r.OutputWatermark())
	assert.Empty(t, s.Panes())

	require.NoError(t, r.Replay(context.Background(), lines(`{"kind":"watermark","timestamp":14}`)))
	assert.Empty(t, s.Panes())
	assert.Equal(t, int64(14), r.OutputWatermark())

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"watermark","timestamp":15}`,
		`{"kind":"watermark","timestamp":40}`,
		`{"kind":"element","key":"b","timestamp":2}`,
	)))
	assert.Equal(t, []Pane{
		{Key: "a", Start: 0, End: 15, Timing: "on_time", Index: 0, Elements: 2, IsLast: true},
		{Key: "a", Start: 30, End: 40, Timing: "on_time", Index: 0, Elements: 1, IsLast: true},
	}, s.Panes())
	assert.Empty(t, r.ActiveWindows("a"))
	assert.Empty(t, r.ActiveWindows("b"))
	assert.Equal(t, int64(40), r.Watermark())

	assert.Equal(t, int64(1), counter(scope, "merges"))
	assert.Equal(t, int64(1), counter(scope, "late_elements"))
	assert.Equal(t, int64(1), counter(scope, "malformed_events"))
}

func TestReplayOutOfOrderness(t *testing.T) {
	application := newApplication(
		config.Window{Kind: "tumbling", Size: 10 * time.Millisecond},
		trigger.Spec{Kind: "repeatedly", Triggers: []trigger.Spec{{Kind: "after_pane", Count: 2}}})
	application.Watermark.OutOfOrderness = 5 * time.Millisecond
	r, s, scope := newRunner(t, application)

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"element","key":"k","timestamp":1}`,
		`{"kind":"element","key":"k","timestamp":2}`,
		`{"kind":"element","key":"k","timestamp":3}`,
	)))
	assert.Equal(t, []Pane{{Key: "k", Start: 0, End: 10, Timing: "early", Index: 0, Elements: 2}}, s.Panes())
	assert.Equal(t, int64(-3), r.Watermark())

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"element","key":"k","timestamp":20}`,
		`{"kind":"element","key":"k","timestamp":0}`,
	)))
	assert.Equal(t, int64(14), r.Watermark())
	assert.Equal(t, []Pane{
		{Key: "k", Start: 0, End: 10, Timing: "early", Index: 0, Elements: 2},
		{Key: "k", Start: 0, End: 10, Timing: "on_time", Index: 1, Elements: 1, IsLast: true, Forced: true},
	}, s.Panes())
	assert.Equal(t, []window.Window{window.Must(20, 30)}, r.ActiveWindows("k"))
	assert.Equal(t, int64(1), counter(scope, "late_elements"))
}

func TestReplayInputs(t *testing.T) {
	application := newApplication(config.Window{Kind: "tumbling", Size: 10 * time.Millisecond},
		trigger.Spec{Kind: "after_watermark"})
	application.Watermark.Inputs = 2
	r, s, _ := newRunner(t, application)

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"element","key":"k","timestamp":1}`,
		`{"kind":"watermark","timestamp":20,"input":1}`,
	)))
	assert.Equal(t, int64(20), r.Watermark())
	assert.Len(t, s.Panes(), 1)

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"element","key":"k","timestamp":25}`,
		`{"kind":"watermark","timestamp":22,"input":2}`,
		`{"kind":"watermark","timestamp":40,"input":1}`,
	)))
	assert.Equal(t, int64(22), r.Watermark())
	assert.Len(t, s.Panes(), 1)

	require.NoError(t, r.Replay(context.Background(), lines(`{"kind":"idle","input":2,"idle":true}`)))
	assert.Equal(t, int64(40), r.Watermark())
	assert.Len(t, s.Panes(), 2)

	err := r.Replay(context.Background(), lines(
		`{"kind":"watermark","timestamp":50,"input":3}`,
		`{"kind":"unknown"}`,
	))
	assert.ErrorContains(t, err, "line 1")
	assert.ErrorContains(t, err, "line 2")
}

func TestReplayProcessingTime(t *testing.T) {
	r, s, _ := newRunner(t, newApplication(
		config.Window{Kind: "global"},
		trigger.Spec{Kind: "repeatedly", Triggers: []trigger.Spec{{Kind: "after_processing_time", Delay: time.Second}}}))

	require.NoError(t, r.Replay(context.Background(), lines(
		`{"kind":"element","key":"k","timestamp":1}`,
		`{"kind":"element","key":"k","timestamp":2}`,
		`{"kind":"tick","timestamp":999}`,
	)))
	assert.Empty(t, s.Panes())
	require.NoError(t, r.Replay(context.Background(), lines(`{"kind":"tick","timestamp":1000}`)))
	assert.Equal(t, []Pane{{Key: "k", Start: watermark.MinTimestamp, End: window.Global().End(),
		Timing: "early", Index: 0, Elements: 2}}, s.Panes())
}

func TestReplayCanceled(t *testing.T) {
	r, _, _ := newRunner(t, newApplication(config.Window{Kind: "tumbling", Size: time.Second},
		trigger.Spec{Kind: "after_watermark"}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Replay(ctx, lines(`{"kind":"element","key":"k","timestamp":1}`)), context.Canceled)
}

func TestJSONCollector(t *testing.T) {
	buffer := &bytes.Buffer{}
	r, err := New(newApplication(config.Window{Kind: "tumbling", Size: 10 * time.Millisecond},
		trigger.Spec{Kind: "after_watermark"}),
		WithCollector(NewJSONCollector(buffer, log.Nop())), WithLogger(log.Nop()), WithClock(clock.NewMock()))
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	require.NoError(t, r.Process(Event{Kind: ElementKind, Key: "k", Timestamp: 3}))
	require.NoError(t, r.Process(Event{Kind: WatermarkKind, Timestamp: 10}))

	var pane Pane
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &pane))
	assert.Equal(t, Pane{Key: "k", Start: 0, End: 10, Timing: "on_time", Elements: 1, IsLast: true}, pane)
}

func TestClosedRunner(t *testing.T) {
	r, _, _ := newRunner(t, newApplication(config.Window{Kind: "tumbling", Size: time.Second},
		trigger.Spec{Kind: "after_watermark"}))
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Error(t, r.Process(Event{Kind: TickKind}))
}

func TestFollow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.log")
	require.NoError(t, os.WriteFile(path, []byte(
		`{"kind":"element","key":"k","timestamp":1}`+"\n"+
			`{"kind":"watermark","timestamp":10}`+"\n"), 0o644))
	r, s, _ := newRunner(t, newApplication(config.Window{Kind: "tumbling", Size: 10 * time.Millisecond},
		trigger.Spec{Kind: "after_watermark"}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := safe.Go(func() error { return r.Follow(ctx, path, true) })

	assert.Eventually(t, func() bool { return len(s.Panes()) == 1 }, 5*time.Second, 10*time.Millisecond)

	file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = file.WriteString(`{"kind":"element","key":"k","timestamp":12}` + "\n" +
		`{"kind":"watermark","timestamp":20}` + "\n")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	assert.Eventually(t, func() bool { return len(s.Panes()) == 2 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, Pane{Key: "k", Start: 10, End: 20, Timing: "on_time", Elements: 1, IsLast: true}, s.Panes()[1])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not stop")
	}
}
