// Package timer schedules the event-time and processing-time timers of the
// trigger engine.
package timer

import (
	"time"

	"github.com/benbjohnson/clock"

	"github.com/RuiFG/streaming-trigger/watermark"
)

// Handler will be triggered passively as time goes by
type Handler[T comparable] interface {
	OnProcessingTime(timer Timer[T])
	OnEventTime(timer Timer[T])
}

// Timer is a structure that contains triggering events
type Timer[T comparable] struct {
	Payload   T
	Timestamp int64
}

// Executor runs fn serialized with every other call into the service.
// Processing-time timers fire from clock goroutines and reach the service
// only through it.
type Executor func(fn func())

type Service[T comparable] struct {
	clock   clock.Clock
	call    Executor
	handler Handler[T]

	nextTimer     *clock.Timer
	nextTimestamp int64
	stopped       bool

	currentWatermark int64
	processingQueue  *timerQueue[T]
	eventQueue       *timerQueue[T]
}

// NewService builds a stopped service; timers fire once Start is called.
// A nil call runs callbacks directly on the clock goroutine.
func NewService[T comparable](clk clock.Clock, call Executor) *Service[T] {
	if call == nil {
		call = func(fn func()) { fn() }
	}
	return &Service[T]{
		clock:            clk,
		call:             call,
		stopped:          true,
		currentWatermark: watermark.MinTimestamp,
		processingQueue:  newTimerQueue[T](),
		eventQueue:       newTimerQueue[T](),
	}
}

func (s *Service[T]) Start(handler Handler[T]) {
	s.handler = handler
	s.stopped = false
	s.schedule()
}

func (s *Service[T]) Stop() {
	s.stopped = true
	if s.nextTimer != nil {
		s.nextTimer.Stop()
		s.nextTimer = nil
	}
}

func (s *Service[T]) CurrentProcessingTimestamp() int64 {
	return s.clock.Now().UnixMilli()
}

func (s *Service[T]) CurrentEventTimestamp() int64 {
	return s.currentWatermark
}

func (s *Service[T]) RegisterEventTimeTimer(timer Timer[T]) {
	s.eventQueue.PushTimer(timer)
}

func (s *Service[T]) RegisterProcessingTimeTimer(timer Timer[T]) {
	if s.processingQueue.PushTimer(timer) {
		s.schedule()
	}
}

func (s *Service[T]) DeleteEventTimeTimer(timer Timer[T]) {
	s.eventQueue.Remove(timer)
}

func (s *Service[T]) DeleteProcessingTimeTimer(timer Timer[T]) {
	if s.processingQueue.Remove(timer) {
		s.schedule()
	}
}

// Pending returns the number of queued event-time and processing-time timers.
func (s *Service[T]) Pending() (event int, processing int) {
	return s.eventQueue.Len(), s.processingQueue.Len()
}

// AdvanceWatermark fires, in timestamp order, every event-time timer at or
// before timestamp. A watermark never moves back.
func (s *Service[T]) AdvanceWatermark(timestamp int64) {
	if timestamp > s.currentWatermark {
		s.currentWatermark = timestamp
	}
	for !s.stopped {
		timer, ok := s.eventQueue.PeekTimer()
		if !ok || timer.Timestamp > s.currentWatermark {
			return
		}
		s.eventQueue.PopTimer()
		s.handler.OnEventTime(timer)
	}
}

// AdvanceProcessingTime fires every processing-time timer at or before timestamp.
func (s *Service[T]) AdvanceProcessingTime(timestamp int64) {
	for !s.stopped {
		timer, ok := s.processingQueue.PeekTimer()
		if !ok || timer.Timestamp > timestamp {
			break
		}
		s.processingQueue.PopTimer()
		s.handler.OnProcessingTime(timer)
	}
	s.schedule()
}

// schedule arms one clock timer for the head of the processing-time queue.
func (s *Service[T]) schedule() {
	if s.stopped {
		return
	}
	head, ok := s.processingQueue.PeekTimer()
	if !ok {
		if s.nextTimer != nil {
			s.nextTimer.Stop()
			s.nextTimer = nil
		}
		return
	}
	if s.nextTimer != nil {
		if s.nextTimestamp == head.Timestamp {
			return
		}
		s.nextTimer.Stop()
	}
	delay := time.Duration(head.Timestamp-s.CurrentProcessingTimestamp()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	timestamp := head.Timestamp
	s.nextTimestamp = timestamp
	s.nextTimer = s.clock.AfterFunc(delay, func() {
		s.call(func() {
			if s.nextTimestamp == timestamp {
				s.nextTimer = nil
			}
			s.AdvanceProcessingTime(timestamp)
		})
	})
}
