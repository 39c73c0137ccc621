package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrClosed      = errors.New("queue is closed")
	ErrFull        = errors.New("queue is full")
	ErrUnknownKind = errors.New("no handler registered for task kind")
)

type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// Handler processes one task payload. A returned error schedules a
// redelivery until the attempt budget is spent, so handlers must be
// idempotent per task key.
type Handler func(ctx context.Context, payload any) error

type Task struct {
	Kind string
	// Key de-duplicates tasks: while a task with the same key is queued,
	// running or waiting for redelivery, Submit returns its id instead of
	// queueing another one.
	Key     string
	Payload any
	Delay   time.Duration
}

type Info struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Key        string     `json:"key,omitempty"`
	State      State      `json:"state"`
	Attempts   int        `json:"attempts"`
	LastError  string     `json:"last_error,omitempty"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

type Config struct {
	Workers      int
	BufferSize   int
	MaxAttempts  int
	RetryBackoff time.Duration
	TaskTimeout  time.Duration
	Retention    time.Duration
}

type entry struct {
	task Task
	info Info
}

// Queue is an in-process task queue with a fixed worker pool.
type Queue struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	handlers map[string]Handler
	tasks    map[string]*entry
	active   map[string]string
	closed   bool

	ready chan *entry
	done  chan struct{}
}

func New(cfg Config, logger *zap.Logger) *Queue {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 64
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	return &Queue{
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		handlers: make(map[string]Handler),
		tasks:    make(map[string]*entry),
		active:   make(map[string]string),
		ready:    make(chan *entry, cfg.BufferSize),
		done:     make(chan struct{}),
	}
}

func (q *Queue) Register(kind string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[kind] = h
}

func (q *Queue) Submit(t Task) (string, error) {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return "", ErrClosed
	}
	if _, ok := q.handlers[t.Kind]; !ok {
		q.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownKind, t.Kind)
	}
	if t.Key != "" {
		if id, ok := q.active[t.Key]; ok {
			q.mu.Unlock()
			q.logger.Debug("Task already queued", zap.String("task_id", id), zap.String("key", t.Key))
			return id, nil
		}
	}

	q.prune()

	e := &entry{
		task: t,
		info: Info{
			ID:       uuid.NewString(),
			Kind:     t.Kind,
			Key:      t.Key,
			State:    StateQueued,
			QueuedAt: q.now(),
		},
	}

	if t.Delay <= 0 {
		select {
		case q.ready <- e:
		default:
			q.mu.Unlock()
			return "", ErrFull
		}
	}

	q.tasks[e.info.ID] = e
	if t.Key != "" {
		q.active[t.Key] = e.info.ID
	}
	q.mu.Unlock()

	if t.Delay > 0 {
		q.enqueueAfter(e, t.Delay)
	}

	q.logger.Debug("Task queued",
		zap.String("task_id", e.info.ID),
		zap.String("kind", t.Kind),
		zap.String("key", t.Key),
		zap.Duration("delay", t.Delay),
	)

	return e.info.ID, nil
}

func (q *Queue) Status(id string) (Info, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.tasks[id]
	if !ok {
		return Info{}, false
	}
	return e.info, true
}

// Active returns the id of the unfinished task holding key, if any.
func (q *Queue) Active(key string) (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	id, ok := q.active[key]
	return id, ok
}

// Run starts the workers and blocks until ctx is done. It must be called once.
func (q *Queue) Run(ctx context.Context) error {
	q.logger.Info("Task queue started", zap.Int("workers", q.cfg.Workers))

	erg, ctx := errgroup.WithContext(ctx)
	for range q.cfg.Workers {
		erg.Go(func() error {
			q.work(ctx)
			return nil
		})
	}
	err := erg.Wait()

	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	close(q.done)

	q.logger.Info("Task queue stopped")
	return err
}

func (q *Queue) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-q.ready:
			q.process(ctx, e)
		}
	}
}

func (q *Queue) process(ctx context.Context, e *entry) {
	q.mu.Lock()
	handler := q.handlers[e.task.Kind]
	started := q.now()
	e.info.State = StateRunning
	e.info.Attempts++
	e.info.StartedAt = &started
	attempt := e.info.Attempts
	q.mu.Unlock()

	log := q.logger.With(
		zap.String("task_id", e.info.ID),
		zap.String("kind", e.task.Kind),
		zap.Int("attempt", attempt),
	)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if q.cfg.TaskTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, q.cfg.TaskTimeout)
	}
	err := invoke(runCtx, handler, e.task.Payload)
	cancel()

	q.mu.Lock()
	finished := q.now()

	if err == nil {
		e.info.State = StateSucceeded
		e.info.LastError = ""
		e.info.FinishedAt = &finished
		q.release(e)
		q.mu.Unlock()
		log.Debug("Task succeeded", zap.Duration("took", finished.Sub(started)))
		return
	}

	e.info.LastError = err.Error()

	if attempt >= q.cfg.MaxAttempts || ctx.Err() != nil {
		e.info.State = StateFailed
		e.info.FinishedAt = &finished
		q.release(e)
		q.mu.Unlock()
		log.Error("Task failed", zap.Error(err))
		return
	}

	e.info.State = StateQueued
	q.mu.Unlock()

	backoff := q.cfg.RetryBackoff * time.Duration(attempt)
	log.Warn("Task failed, scheduling redelivery", zap.Error(err), zap.Duration("backoff", backoff))
	q.enqueueAfter(e, backoff)
}

// release frees the key of a task that reached a final state. Caller holds q.mu.
func (q *Queue) release(e *entry) {
	if e.task.Key != "" && q.active[e.task.Key] == e.info.ID {
		delete(q.active, e.task.Key)
	}
}

func (q *Queue) enqueueAfter(e *entry, delay time.Duration) {
	time.AfterFunc(delay, func() {
		select {
		case q.ready <- e:
		case <-q.done:
		}
	})
}

// prune drops finished tasks older than the retention window. Caller holds q.mu.
func (q *Queue) prune() {
	if q.cfg.Retention <= 0 {
		return
	}
	cutoff := q.now().Add(-q.cfg.Retention)
	for id, e := range q.tasks {
		if e.info.FinishedAt != nil && e.info.FinishedAt.Before(cutoff) {
			delete(q.tasks, id)
		}
	}
}

func invoke(ctx context.Context, h Handler, payload any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return h(ctx, payload)
}
