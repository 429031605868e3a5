package workers

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

type observation struct {
	length, capacity int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen map[string]observation
}

func (r *recordingObserver) ObserveChannel(name string, length, capacity int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[name] = observation{length: length, capacity: capacity}
}

func (r *recordingObserver) get(name string) (observation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.seen[name]
	return o, ok
}

func TestChannelCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	observer := &recordingObserver{seen: map[string]observation{}}

	// Given a half full channel and something that is not a channel
	permanent := make(chan int, 4)
	permanent <- 1
	permanent <- 2
	worker := NewChannelCapacityWorker(logs.GetLoggerFromLevel(slog.LevelDebug), []NamedChannel{
		{Name: "permanent", Channel: permanent},
		{Name: "bogus", Channel: 42},
	}, observer, time.Hour).WithLowCapacityThreshold(2)

	// When
	worker.Sample()

	// Then only the channel is reported
	o, ok := observer.get("permanent")
	req.True(ok)
	req.Equal(observation{length: 2, capacity: 4}, o)
	_, ok = observer.get("bogus")
	req.False(ok)
}

func TestChannelCapacityWorker_RunStopsWithContext(t *testing.T) {
	req := require.New(t)
	observer := &recordingObserver{seen: map[string]observation{}}
	worker := NewChannelCapacityWorker(logs.GetLoggerFromLevel(slog.LevelDebug),
		[]NamedChannel{{Name: "commands", Channel: make(chan struct{}, 8)}}, observer, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	req.Eventually(func() bool {
		_, ok := observer.get("commands")
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	req.NoError(<-done)
}
