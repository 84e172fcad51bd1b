package duckdb

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tinytelemetry/byod/internal/model"
)

// DefaultFlushQueueSize is the number of batches that can be queued for async flushing.
const DefaultFlushQueueSize = 16

// HistoryBuffer batches cycle records and flushes them to DuckDB
// asynchronously. Record never blocks the poller on DuckDB writes; when the
// flush queue is full the batch is dropped and counted.
type HistoryBuffer struct {
	writer        model.HistoryWriter
	mu            sync.Mutex
	pending       []*model.CycleRecord
	flushChan     chan []*model.CycleRecord
	maxBatch      int
	flushInterval time.Duration
	done          chan struct{}
	stopped       atomic.Bool
	wg            sync.WaitGroup
	tickWg        sync.WaitGroup
	stopOnce      sync.Once

	// closeMu guards sends on flushChan against its close in Stop.
	closeMu     sync.RWMutex
	flushClosed bool

	// dropped counts records discarded because the flush worker was behind.
	dropped   atomic.Int64
	lastBPLog atomic.Int64
}

// HistoryBufferConfig holds tunable parameters for the history buffer.
type HistoryBufferConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	FlushQueueSize int
}

// NewHistoryBuffer creates a buffer that flushes to writer.
func NewHistoryBuffer(writer model.HistoryWriter, conf ...HistoryBufferConfig) *HistoryBuffer {
	batchSize := 64
	flushInterval := time.Second
	flushQueueSize := DefaultFlushQueueSize
	if len(conf) > 0 {
		if conf[0].BatchSize > 0 {
			batchSize = conf[0].BatchSize
		}
		if conf[0].FlushInterval > 0 {
			flushInterval = conf[0].FlushInterval
		}
		if conf[0].FlushQueueSize > 0 {
			flushQueueSize = conf[0].FlushQueueSize
		}
	}

	b := &HistoryBuffer{
		writer:        writer,
		pending:       make([]*model.CycleRecord, 0, batchSize),
		flushChan:     make(chan []*model.CycleRecord, flushQueueSize),
		maxBatch:      batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}

	b.wg.Add(1)
	go b.flushWorker()

	b.wg.Add(1)
	b.tickWg.Add(1)
	go b.tickLoop()

	return b
}

func (b *HistoryBuffer) tickLoop() {
	defer b.wg.Done()
	defer b.tickWg.Done()
	ticker := time.NewTicker(b.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			b.drainPending(false)
		case <-b.done:
			b.drainPending(true)
			return
		}
	}
}

// drop discards a batch and emits a throttled warning (at most once per
// 10 seconds).
func (b *HistoryBuffer) drop(batch []*model.CycleRecord) {
	total := b.dropped.Add(int64(len(batch)))
	now := time.Now().Unix()
	last := b.lastBPLog.Load()
	if now-last >= 10 && b.lastBPLog.CompareAndSwap(last, now) {
		log.Printf("duckdb: history writer behind, %d cycle records dropped so far", total)
	}
}

// Dropped returns how many records were discarded under backpressure.
func (b *HistoryBuffer) Dropped() int64 {
	return b.dropped.Load()
}

func (b *HistoryBuffer) drainPending(final bool) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := b.pending
	b.pending = make([]*model.CycleRecord, 0, b.maxBatch)
	b.mu.Unlock()

	b.enqueue(batch, final)
}

// enqueue hands batch to the flush worker. When the worker is behind the
// batch is dropped, unless wait is set (the final drain in Stop).
func (b *HistoryBuffer) enqueue(batch []*model.CycleRecord, wait bool) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()
	if b.flushClosed {
		b.drop(batch)
		return
	}
	if wait {
		b.flushChan <- batch
		return
	}
	select {
	case b.flushChan <- batch:
	default:
		b.drop(batch)
	}
}

func (b *HistoryBuffer) flushWorker() {
	defer b.wg.Done()
	for batch := range b.flushChan {
		if err := b.writer.InsertCycleBatch(batch); err != nil {
			log.Printf("duckdb history flush error: %v", err)
		}
	}
}

// Record queues rec for insertion. Records arriving after Stop are dropped.
func (b *HistoryBuffer) Record(rec model.CycleRecord) {
	if b.stopped.Load() {
		return
	}

	b.mu.Lock()
	b.pending = append(b.pending, &rec)
	var batch []*model.CycleRecord
	if len(b.pending) >= b.maxBatch {
		batch = b.pending
		b.pending = make([]*model.CycleRecord, 0, b.maxBatch)
	}
	b.mu.Unlock()

	if batch != nil {
		b.enqueue(batch, false)
	}
}

// Stop flushes remaining records and waits for all writes to complete.
// Safe to call more than once.
func (b *HistoryBuffer) Stop() {
	b.stopOnce.Do(func() {
		b.stopped.Store(true)
		close(b.done)
		// The tick loop does the final drain; only then is flushChan closed.
		b.tickWg.Wait()
		b.closeMu.Lock()
		b.flushClosed = true
		close(b.flushChan)
		b.closeMu.Unlock()
		b.wg.Wait()
	})
}
