package logs

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/google/uuid"
	"github.com/wpbryant/WordOps-Dashboard/common"
	"github.com/wpbryant/WordOps-Dashboard/interfaces"
	"github.com/wpbryant/WordOps-Dashboard/metrics"
)

const (
	// DefaultInterval is how often a topic's tail is re-read.
	DefaultInterval = 2 * time.Second

	subscriberBuffer = 4
)

// ErrRelayStopped is returned by Subscribe after Stop.
var ErrRelayStopped = errors.New("log relay stopped")

// Batch is one push to a subscriber.
type Batch struct {
	Lines []string `json:"lines"`
}

// Subscriber receives batches for one topic until it is unsubscribed.
type Subscriber struct {
	ID    string
	Topic string
	ch    chan Batch
}

// C is closed when the subscriber is removed.
func (s *Subscriber) C() <-chan Batch {
	return s.ch
}

// RelayOptions tunes a Relay; zero values use the defaults.
type RelayOptions struct {
	Interval time.Duration
	Lines    int
}

// Relay fans the periodic tail of each topic out to its subscribers. Every
// tick re-reads the same bounded tail, so unchanged lines are delivered again.
type Relay struct {
	source    interfaces.LogSource
	log       *slog.Logger
	metrics   *metrics.Recorder
	interval  time.Duration
	lines     int
	scheduler *gocron.Scheduler

	mu      sync.Mutex
	topics  map[string]map[*Subscriber]struct{}
	jobs    map[string]*gocron.Job
	stopped bool
}

// NewRelay starts the relay's scheduler. Jobs exist only while a topic has
// subscribers.
func NewRelay(source interfaces.LogSource, log *slog.Logger, rec *metrics.Recorder, opts RelayOptions) *Relay {
	r := &Relay{
		source:    source,
		log:       common.OrDefault(log),
		metrics:   rec,
		interval:  opts.Interval,
		lines:     opts.Lines,
		scheduler: gocron.NewScheduler(time.UTC),
		topics:    make(map[string]map[*Subscriber]struct{}),
		jobs:      make(map[string]*gocron.Job),
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.lines <= 0 {
		r.lines = DefaultLines
	}
	r.scheduler.StartAsync()
	return r
}

// Subscribe registers a subscriber on topic. The current tail is queued as
// the first batch before it is returned.
func (r *Relay) Subscribe(topic string) (*Subscriber, error) {
	lines, err := r.source.Tail(topic, r.lines)
	if err != nil {
		return nil, err
	}

	sub := &Subscriber{ID: uuid.NewString(), Topic: topic, ch: make(chan Batch, subscriberBuffer)}
	sub.ch <- Batch{Lines: lines}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil, ErrRelayStopped
	}

	subs, ok := r.topics[topic]
	if !ok {
		job, err := r.scheduler.Every(r.interval).SingletonMode().WaitForSchedule().Tag(topic).Do(r.poll, topic)
		if err != nil {
			return nil, err
		}
		subs = make(map[*Subscriber]struct{})
		r.topics[topic] = subs
		r.jobs[topic] = job
		r.log.Debug("Started log poller", "topic", topic)
	}
	subs[sub] = struct{}{}
	r.metrics.SetStreamSubscribers(topic, len(subs))
	return sub, nil
}

// Unsubscribe removes sub and closes its channel. The topic's job stops with
// its last subscriber. Calling it twice is harmless.
func (r *Relay) Unsubscribe(sub *Subscriber) {
	r.mu.Lock()
	subs, ok := r.topics[sub.Topic]
	if !ok {
		r.mu.Unlock()
		return
	}
	if _, ok := subs[sub]; !ok {
		r.mu.Unlock()
		return
	}
	delete(subs, sub)
	close(sub.ch)
	r.metrics.SetStreamSubscribers(sub.Topic, len(subs))

	var job *gocron.Job
	if len(subs) == 0 {
		delete(r.topics, sub.Topic)
		job = r.jobs[sub.Topic]
		delete(r.jobs, sub.Topic)
	}
	r.mu.Unlock()

	if job != nil {
		r.scheduler.RemoveByReference(job)
		r.log.Debug("Stopped log poller", "topic", sub.Topic)
	}
}

// Subscribers returns the number of live subscribers on topic.
func (r *Relay) Subscribers(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic])
}

// poll re-reads the topic's tail and offers it to every subscriber. A
// subscriber whose buffer is full misses this batch.
func (r *Relay) poll(topic string) {
	lines, err := r.source.Tail(topic, r.lines)
	if err != nil {
		r.log.Warn("Log poll failed", "topic", topic, "err", err)
		return
	}
	batch := Batch{Lines: lines}

	r.mu.Lock()
	defer r.mu.Unlock()
	for sub := range r.topics[topic] {
		select {
		case sub.ch <- batch:
		default:
			r.log.Debug("Dropping batch for slow subscriber", "topic", topic, "subscriber", sub.ID)
		}
	}
}

// Stop halts every poller and closes all subscriber channels.
func (r *Relay) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	for topic, subs := range r.topics {
		for sub := range subs {
			close(sub.ch)
		}
		r.metrics.SetStreamSubscribers(topic, 0)
	}
	r.topics = make(map[string]map[*Subscriber]struct{})
	r.jobs = make(map[string]*gocron.Job)
	r.mu.Unlock()

	r.scheduler.Stop()
}
