package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

const (
	queueSize     = 300
	taskTimeout   = 5 * time.Minute
	maxRetryDelay = 30 * time.Second
)

// Job is a periodic task. New builds a fresh task for every run.
type Job struct {
	Type      TaskType
	Interval  time.Duration
	AtStartup bool
	New       func() TaskInterface
}

type Scheduler struct {
	interval    time.Duration
	workerCount int
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface

	mu       sync.Mutex
	jobs     []Job
	lastRun  map[TaskType]time.Time
	inFlight map[TaskType]string // job type -> id of the periodic run
}

func NewScheduler(workerCount int, interval time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if workerCount <= 0 {
		workerCount = 1
	}
	if interval <= 0 {
		interval = time.Minute
	}

	return &Scheduler{
		interval:    interval,
		workerCount: workerCount,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
		lastRun:     make(map[TaskType]time.Time),
		inFlight:    make(map[TaskType]string),
	}
}

// Register adds a periodic job. Jobs registered after Start are picked up
// on the next tick.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, job)
}

func (s *Scheduler) Start() {
	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks(time.Now())
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
	}

	select {
	case s.taskQueue <- task:
		return nil
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	now := time.Now()

	s.mu.Lock()
	jobs := append([]Job(nil), s.jobs...)
	s.mu.Unlock()

	slog.Debug("Registered periodic jobs", "count", len(jobs))

	for _, job := range jobs {
		if !job.AtStartup {
			s.markRun(job.Type, now)
			continue
		}
		s.enqueueJob(job, now)
	}
}

// enqueueTasks enqueues every job whose interval has elapsed and that has
// no run in progress.
func (s *Scheduler) enqueueTasks(now time.Time) {
	for _, job := range s.dueJobs(now) {
		s.enqueueJob(job, now)
	}
}

func (s *Scheduler) dueJobs(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []Job
	for _, job := range s.jobs {
		if _, running := s.inFlight[job.Type]; running {
			slog.Debug("Job still running, skipping", "type", string(job.Type))
			continue
		}
		last, ok := s.lastRun[job.Type]
		if !ok {
			s.lastRun[job.Type] = now
			continue
		}
		if now.Sub(last) < job.Interval {
			continue
		}
		due = append(due, job)
	}
	return due
}

func (s *Scheduler) enqueueJob(job Job, now time.Time) {
	task := job.New()

	s.mu.Lock()
	s.inFlight[job.Type] = task.GetID()
	s.lastRun[job.Type] = now
	s.mu.Unlock()

	if err := s.EnqueueTask(task); err != nil {
		s.finish(task)
		slog.Warn("Failed to enqueue task", "type", string(job.Type), "error", err)
	}
}

func (s *Scheduler) markRun(taskType TaskType, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[taskType] = now
}

// finish clears the in-flight mark only when task is the periodic run that
// set it. Tasks enqueued directly never touch it.
func (s *Scheduler) finish(task TaskInterface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[task.GetType()] == task.GetID() {
		delete(s.inFlight, task.GetType())
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		s.finish(task)
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		s.finish(task)
		if task.GetMaxRetries() > 0 {
			slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		}
		return
	}

	task.IncrementRetryCount()
	retryDelay := retryDelayFor(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	go func() {
		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
			s.finish(task)
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				s.finish(task)
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelayFor doubles from one second and caps at thirty.
func retryDelayFor(retry int) time.Duration {
	if retry < 1 {
		retry = 1
	}
	if retry > 6 {
		return maxRetryDelay
	}
	return min(time.Duration(1<<uint(retry-1))*time.Second, maxRetryDelay)
}
