package workers

import (
	"bot-bridge/contract"
	"bot-bridge/errors"
	"context"
	"log/slog"
	"sync"
	"time"
)

const DefaultRestartInterval = 200 * time.Millisecond

// RestartObserver is told every time a worker is restarted after a failure.
type RestartObserver interface {
	WorkerRestarted(name string)
}

// Supervisor runs each worker in its own goroutine. A panic or an error
// restarts the worker after the restart interval; a nil return ends it.
// Run returns once every worker has finished.
type Supervisor struct {
	log             *slog.Logger
	workers         []contract.Worker
	restartInterval time.Duration
	restarts        RestartObserver
	wg              sync.WaitGroup

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func NewSupervisor(log *slog.Logger, restartInterval time.Duration) *Supervisor {
	if restartInterval <= 0 {
		restartInterval = DefaultRestartInterval
	}
	return &Supervisor{log: log, restartInterval: restartInterval}
}

func (s *Supervisor) WithRestartObserver(observer RestartObserver) *Supervisor {
	s.restarts = observer
	return s
}

// Run ties a local cancellation to the parent ctx: the parent stops
// everything, Stop only stops our children.
func (s *Supervisor) Run(ctx context.Context) {
	supervisedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.cancel = cancel
	if s.stopped {
		cancel()
	}
	s.mu.Unlock()

	for _, worker := range s.workers {
		s.Start(supervisedCtx, worker)
	}
	s.wg.Wait()
}

func (s *Supervisor) Add(worker ...contract.Worker) contract.ISupervisor {
	s.workers = append(s.workers, worker...)
	return s
}

// Start runs a worker under supervision. A failing worker never takes the
// supervisor down with it.
func (s *Supervisor) Start(ctx context.Context, worker contract.Worker) {
	s.wg.Add(1)
	name := contract.GetWorkerName(worker)
	log := s.log.With("worker", name)

	go func() {
		defer s.wg.Done()
		for attempt := 0; ; attempt++ {
			if ctx.Err() != nil {
				log.Info("Worker stopping")
				return
			}
			if attempt > 0 && s.restarts != nil {
				s.restarts.WorkerRestarted(name)
			}

			err := s.runOnce(ctx, worker, log)
			switch {
			case err == nil:
				log.Info("Worker finished")
				return
			case ctx.Err() != nil:
				log.Info("Worker stopped (context canceled)")
				return
			}

			log.Warn("Worker crashed, restarting", "error", err, "restarts", attempt+1)
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.restartInterval):
			}
		}
	}()
}

func (s *Supervisor) runOnce(ctx context.Context, worker contract.Worker, log *slog.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Worker panic", "panic", r)
			err = errors.ErrWorkerPanic
		}
	}()
	return worker.Run(ctx)
}

// Stop cancels every supervised worker; Run returns once they are done.
// Calling Stop before Run makes Run return immediately.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}
