package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelObserver receives the sampled length and capacity of a channel.
type ChannelObserver interface {
	ObserveChannel(name string, length, capacity int)
}

// ChannelCapacityWorker periodically reports the current channel capacity and length.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with other goroutines.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	observer       ChannelObserver
	metricInterval time.Duration
	// lowCapacity is the free slot count under which a sample is logged as a warning.
	lowCapacity int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	observer ChannelObserver, metricInterval time.Duration) *ChannelCapacityWorker {
	if metricInterval <= 0 {
		metricInterval = DefaultHeartbeatInterval
	}
	return &ChannelCapacityWorker{
		log:            log,
		channels:       channels,
		observer:       observer,
		metricInterval: metricInterval,
	}
}

func (w *ChannelCapacityWorker) WithLowCapacityThreshold(threshold int) *ChannelCapacityWorker {
	w.lowCapacity = threshold
	return w
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample reports every channel once.
func (w *ChannelCapacityWorker) Sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		length, capacity := v.Len(), v.Cap()
		w.observer.ObserveChannel(nc.Name, length, capacity)
		w.log.Debug("Channel usage", "channel", nc.Name, "length", length, "capacity", capacity)
		if capacity <= 0 {
			// unbuffered
			continue
		}
		if left := capacity - length; left <= w.lowCapacity {
			w.log.Warn("Channel close to saturation", "channel", nc.Name, "capacity_left", left)
		}
	}
}
