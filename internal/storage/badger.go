package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"
)

// BadgerEngine implements PageStore using Badger v3.
type BadgerEngine struct {
	db     *badger.DB
	cfg    BadgerConfig
	codec  pageCodec
	logger *slog.Logger
	closed atomic.Bool

	// applyMu keeps readers out while a staged commit is being copied
	// over live pages.
	applyMu  sync.RWMutex
	stageSeq atomic.Uint64

	lastGCTime atomic.Int64  // Unix milliseconds
	gcRuns     atomic.Uint64 // value log rewrites

	// Prometheus metrics
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCRuns       prometheus.Counter

	stopCh chan struct{}
	doneCh chan struct{}
}

var _ PageStore = (*BadgerEngine)(nil)

// NewBadgerEngine opens a Badger-backed page store.
func NewBadgerEngine(cfg KVConfig, logger *slog.Logger) (*BadgerEngine, error) {
	if cfg.Dir == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	codec, err := newPageCodec(cfg.Compression)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: logger}

	badgerCfg := cfg.Badger
	opts.BlockCacheSize = badgerCfg.CacheSize
	opts.ValueLogFileSize = badgerCfg.ValueLogFileSize
	opts.NumMemtables = badgerCfg.NumMemtables
	if badgerCfg.MemTableSize > 0 {
		opts.MemTableSize = badgerCfg.MemTableSize
	}
	opts.NumLevelZeroTables = badgerCfg.NumLevelZeroTables
	opts.NumLevelZeroTablesStall = badgerCfg.NumLevelZeroTablesStall
	opts.SyncWrites = badgerCfg.SyncWrites && !cfg.InMemory

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	engine := &BadgerEngine{
		db:     db,
		cfg:    badgerCfg,
		codec:  codec,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
	engine.stageSeq.Store(uint64(time.Now().UnixNano()))

	if err := engine.recoverCommits(); err != nil {
		db.Close()
		return nil, fmt.Errorf("badger: recover staged commits: %w", err)
	}

	go engine.gcLoop()

	logger.Info("badger page store started",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"compression", cfg.Compression,
		"gc_interval", badgerCfg.GCInterval)

	return engine, nil
}

// GetPage returns the content of page index of db.
// Returns ErrPageNotFound if the page was never stored.
func (e *BadgerEngine) GetPage(ctx context.Context, db string, index uint32) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.applyMu.RLock()
	defer e.applyMu.RUnlock()

	var page []byte
	err := e.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(PageKey(db, index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrPageNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			page, err = e.codec.decode(val)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ApplyBatch applies truncation and page writes in one transaction. A
// batch too large for one transaction is staged and committed through a
// marker, so it stays all-or-nothing across a crash.
func (e *BadgerEngine) ApplyBatch(ctx context.Context, db string, batch PageBatch) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if batch.Empty() {
		return nil
	}

	err := e.db.Update(func(txn *badger.Txn) error {
		if batch.TruncateTo != nil {
			if err := e.deleteFrom(txn, db, *batch.TruncateTo); err != nil {
				return err
			}
		}
		for index, page := range batch.Pages {
			if err := txn.Set(PageKey(db, index), e.codec.encode(page)); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, badger.ErrTxnTooBig) {
		e.logger.Debug("batch exceeds one transaction, staging", "db", db, "pages", len(batch.Pages))
		return e.applyStaged(db, batch)
	}
	return err
}

// deleteFrom deletes every page of db with index >= from inside txn.
func (e *BadgerEngine) deleteFrom(txn *badger.Txn, db string, from uint32) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = PagePrefix(db)
	it := txn.NewIterator(opts)
	defer it.Close()

	var doomed [][]byte
	for it.Seek(PageKey(db, from)); it.Valid(); it.Next() {
		doomed = append(doomed, it.Item().KeyCopy(nil))
	}
	for _, key := range doomed {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// PageCount returns the highest stored page index of db plus one.
func (e *BadgerEngine) PageCount(ctx context.Context, db string) (uint32, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}

	e.applyMu.RLock()
	defer e.applyMu.RUnlock()

	var count uint32
	err := e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		opts.Prefix = PagePrefix(db)
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(PageKey(db, math.MaxUint32))
		if !it.Valid() {
			return nil
		}
		_, index, err := ParsePageKey(it.Item().Key())
		if err != nil {
			return err
		}
		count = index + 1
		return nil
	})
	return count, err
}

// ScanPages visits pages of db in index order.
func (e *BadgerEngine) ScanPages(ctx context.Context, db string, fn func(index uint32, page []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}

	e.applyMu.RLock()
	defer e.applyMu.RUnlock()

	prefix := PagePrefix(db)
	return e.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			key := item.Key()
			if !bytes.HasPrefix(key, prefix) || len(key) != len(prefix)+4 {
				continue
			}
			index := binary.BigEndian.Uint32(key[len(prefix):])

			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			page, err := e.codec.decode(value)
			if err != nil {
				return fmt.Errorf("page %d: %w", index, err)
			}
			if !fn(index, page) {
				break
			}
		}
		return nil
	})
}

// DeleteDatabase removes all pages of db.
func (e *BadgerEngine) DeleteDatabase(ctx context.Context, db string) error {
	if e.closed.Load() {
		return ErrClosed
	}
	err := e.db.DropPrefix(PagePrefix(db), stageDatabasePrefix(db), markerKey(db))
	if err != nil {
		return fmt.Errorf("badger: drop %s: %w", db, err)
	}
	e.logger.Info("database pages deleted", "db", db)
	return nil
}

// GC triggers value log garbage collection until nothing is left to rewrite.
// Returns the number of rewrites performed.
func (e *BadgerEngine) GC(ctx context.Context) (uint64, error) {
	startTime := time.Now()

	var runs uint64
	for {
		if err := ctx.Err(); err != nil {
			return runs, err
		}
		err := e.db.RunValueLogGC(e.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
				break
			}
			return runs, fmt.Errorf("gc: %w", err)
		}
		runs++
	}

	e.lastGCTime.Store(time.Now().UnixMilli())
	e.gcRuns.Add(runs)
	if e.metricsGCRuns != nil {
		e.metricsGCRuns.Add(float64(runs))
	}

	e.logger.Debug("gc completed",
		"rewrites", runs,
		"elapsed", time.Since(startTime))

	return runs, nil
}

// Stats returns storage statistics.
func (e *BadgerEngine) Stats(ctx context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	lsm, vlog := e.db.Size()

	return &KVStats{
		TotalSize:    uint64(lsm + vlog),
		LSMSize:      uint64(lsm),
		ValueLogSize: uint64(vlog),
		LastGCTime:   e.lastGCTime.Load(),
		GCRuns:       e.gcRuns.Load(),
	}, nil
}

// Close gracefully shuts down the Badger engine.
func (e *BadgerEngine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	e.logger.Info("shutting down badger page store")

	close(e.stopCh)
	<-e.doneCh

	if err := e.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}
	return nil
}

// RegisterMetrics registers store gauges with reg under namespace.
// Returns the engine for method chaining.
func (e *BadgerEngine) RegisterMetrics(reg prometheus.Registerer, namespace string) *BadgerEngine {
	e.metricsLSMSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "badger",
		Name:      "lsm_size_bytes",
		Help:      "Badger LSM tree size in bytes",
	})
	e.metricsValueLogSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "badger",
		Name:      "value_log_size_bytes",
		Help:      "Badger value log size in bytes",
	})
	e.metricsLastGCTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "badger",
		Name:      "last_gc_timestamp_seconds",
		Help:      "Unix timestamp of the last Badger GC run",
	})
	e.metricsGCRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "badger",
		Name:      "gc_rewrites_total",
		Help:      "Value log rewrites performed by Badger garbage collection",
	})

	reg.MustRegister(
		e.metricsLSMSize,
		e.metricsValueLogSize,
		e.metricsLastGCTime,
		e.metricsGCRuns,
	)
	e.updateMetrics()

	go e.metricsUpdateLoop()

	return e
}

func (e *BadgerEngine) updateMetrics() {
	stats, err := e.Stats(context.Background())
	if err != nil {
		return
	}
	e.metricsLSMSize.Set(float64(stats.LSMSize))
	e.metricsValueLogSize.Set(float64(stats.ValueLogSize))
	if stats.LastGCTime > 0 {
		e.metricsLastGCTime.Set(float64(stats.LastGCTime) / 1000.0)
	}
}

// metricsUpdateLoop periodically refreshes the size gauges.
func (e *BadgerEngine) metricsUpdateLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.updateMetrics()
		case <-e.stopCh:
			return
		}
	}
}

// gcLoop runs periodic garbage collection.
func (e *BadgerEngine) gcLoop() {
	defer close(e.doneCh)

	interval, err := time.ParseDuration(e.cfg.GCInterval)
	if err != nil || interval <= 0 {
		e.logger.Error("invalid gc_interval, using default 10m", "error", err)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := e.GC(ctx); err != nil {
				e.logger.Error("auto gc failed", "error", err)
			}
			cancel()

		case <-e.stopCh:
			return
		}
	}
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
