package relay

import (
	"log"

	"github.com/dechat-im/dechat/internal/stats"
)

const (
	defaultPersistWorkers = 4
	persistQueueDepth     = 256
)

type persistFunc func() error

// persistQueue runs best-effort storage writes off the delivery path.
// Enqueue never blocks; when the queue is full the write is dropped and
// counted.
type persistQueue struct {
	log     *log.Logger
	stats   stats.StatsProvider
	jobs    chan persistFunc
	done    chan struct{}
	workers int
}

func newPersistQueue(logger *log.Logger, statser stats.StatsProvider, workers int) *persistQueue {
	if workers <= 0 {
		workers = defaultPersistWorkers
	}

	return &persistQueue{
		log:     logger,
		stats:   statser,
		jobs:    make(chan persistFunc, persistQueueDepth),
		done:    make(chan struct{}),
		workers: workers,
	}
}

func (pq *persistQueue) run() {
	for i := 0; i < pq.workers; i++ {
		go pq.worker()
	}
}

func (pq *persistQueue) worker() {
	for {
		select {
		case job := <-pq.jobs:
			if err := job(); err != nil {
				pq.log.Printf("persist: %s", err)
				pq.stats.Incr(statPersistFailures)
			}
		case <-pq.done:
			return
		}
	}
}

func (pq *persistQueue) enqueue(job persistFunc) {
	select {
	case pq.jobs <- job:
	default:
		pq.log.Println("persist queue full, dropping write")
		pq.stats.Incr(statPersistDrops)
	}
}

func (pq *persistQueue) stop() {
	close(pq.done)
}
