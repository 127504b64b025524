package tasks

import (
	"context"
	"log/slog"
	"time"
)

type SweepSessionsTask struct {
	Task
	sessions SessionSweeper
	idle     time.Duration
}

func NewSweepSessionsTask(sessions SessionSweeper, idle time.Duration) *SweepSessionsTask {
	task := NewTask(TaskTypeSweepSessions, "sessions")
	task.MaxRetries = 0

	return &SweepSessionsTask{
		Task:     task,
		sessions: sessions,
		idle:     idle,
	}
}

func (t *SweepSessionsTask) Execute(ctx context.Context) error {
	if err := checkCancelled(ctx); err != nil {
		return err
	}

	if removed := t.sessions.Sweep(t.idle); removed > 0 {
		slog.Info("Task completed", "type", t.GetType(), "removed", removed)
	}
	return nil
}
