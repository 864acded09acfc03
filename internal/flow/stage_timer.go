package flow

import (
	"context"
	"time"
)

// stageTimer auto-advances a stage screen. Every start or stop bumps seq, so an
// elapsed event from an earlier timer no longer matches.
type stageTimer struct {
	seq   int
	timer *time.Timer
}

func (s *stageTimer) start(delay time.Duration, to sender) {
	s.stop()
	if delay <= 0 {
		return
	}
	ev := internalEvent(eventStageElapsed)
	ev.seq = s.seq
	s.timer = time.AfterFunc(delay, func() {
		to.Send(context.Background(), ev)
	})
}

func (s *stageTimer) stop() {
	s.seq++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *stageTimer) current(ev Event) bool {
	return ev.seq == s.seq
}
