// Package downloader runs media downloads on a bounded pool of workers.
package downloader

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	errs "snapdl/pkg/errors"
	"snapdl/pkg/logger"
	"snapdl/pkg/models"
	"snapdl/pkg/retry"
	"snapdl/pkg/storage"
)

// MediaFetcher opens media bodies
type MediaFetcher interface {
	OpenMedia(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// Storage maps items to paths and writes them atomically
type Storage interface {
	Path(item models.MediaItem) string
	Size(path string) (int64, bool)
	Save(path string, r io.Reader) (int64, error)
}

// Recorder is told about every materialized item
type Recorder interface {
	Record(item models.MediaItem, path string) error
}

// Options tune a pool run
type Options struct {
	MaxWorkers    int
	SleepInterval time.Duration
	Fast          bool
	// Retry is the per-item policy; nil means three attempts spaced by SleepInterval
	Retry *retry.Config
}

type downloadJob struct {
	index int
	item  models.MediaItem
}

type downloadResult struct {
	index  int
	record models.DownloadRecord
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	opts        Options
	jobQueue    chan downloadJob
	resultQueue chan downloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      MediaFetcher
	storage     Storage
	recorder    Recorder
	logger      logger.Logger

	// undispatched counts items no worker has taken yet
	undispatched atomic.Int64

	mu        sync.Mutex
	ledgerErr error
}

// NewWorkerPool creates a new download worker pool
func NewWorkerPool(opts Options, client MediaFetcher, store Storage, recorder Recorder, log logger.Logger) *WorkerPool {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 1
	}
	if opts.SleepInterval < 0 {
		opts.SleepInterval = 0
	}
	if opts.Retry == nil {
		opts.Retry = retry.NewPolicy(3, opts.SleepInterval, log)
	}

	return &WorkerPool{
		opts:     opts,
		client:   client,
		storage:  store,
		recorder: recorder,
		logger:   log.WithField("component", "downloader"),
	}
}

// Run downloads items and returns one record per item in input order. Items
// that were never dispatched because ctx was cancelled stay PENDING. The
// returned error is set only when the ledger could not be written; the pool
// then stops dispatching and lets in-flight items finish.
func (wp *WorkerPool) Run(ctx context.Context, items []models.MediaItem) ([]models.DownloadRecord, error) {
	records := make([]models.DownloadRecord, len(items))
	for i, item := range items {
		records[i] = models.DownloadRecord{
			Item:      item,
			LocalPath: wp.storage.Path(item),
			Status:    models.StatusPending,
		}
	}
	if len(items) == 0 {
		return records, nil
	}

	wp.start(ctx, len(items))
	go func() {
		defer wp.stop()
		for i, item := range items {
			if err := wp.submit(downloadJob{index: i, item: item}); err != nil {
				return
			}
		}
	}()

	for res := range wp.resultQueue {
		records[res.index] = res.record
	}

	wp.mu.Lock()
	defer wp.mu.Unlock()
	return records, wp.ledgerErr
}

// start initializes the queues and starts all workers
func (wp *WorkerPool) start(parent context.Context, n int) {
	wp.ctx, wp.cancel = context.WithCancel(parent)
	wp.jobQueue = make(chan downloadJob, wp.opts.MaxWorkers*2)
	wp.resultQueue = make(chan downloadResult, n)
	wp.ledgerErr = nil
	wp.undispatched.Store(int64(n))

	logger.LogComponentStart(wp.logger, "download pool", map[string]interface{}{
		"workers":        wp.opts.MaxWorkers,
		"items":          n,
		"sleep_interval": wp.opts.SleepInterval,
		"fast":           wp.opts.Fast,
	})

	for i := 0; i < wp.opts.MaxWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// stop closes the job queue, waits for the workers and closes the results
func (wp *WorkerPool) stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)

	reason := "completed"
	if wp.ctx.Err() != nil {
		reason = "cancelled"
	}
	wp.cancel()
	logger.LogComponentStop(wp.logger, "download pool", reason)
}

// submit adds a job to the queue unless the pool is shutting down
func (wp *WorkerPool) submit(job downloadJob) error {
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return wp.ctx.Err()
	}
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		wp.undispatched.Add(-1)
		if wp.ctx.Err() != nil {
			// leave the record PENDING
			continue
		}

		rec, requested := wp.processJob(job.item, id)
		wp.resultQueue <- downloadResult{index: job.index, record: rec}

		// the sleep only separates consecutive requests
		if requested && wp.undispatched.Load() > 0 && wp.opts.SleepInterval > 0 {
			if err := retry.Wait(wp.ctx, wp.opts.SleepInterval); err != nil {
				wp.logger.DebugWithFields("worker sleep interrupted", map[string]interface{}{
					"worker_id": id,
				})
			}
		}
	}
}

// processJob handles a single item. requested reports whether the network
// was used, which decides whether the worker throttles afterwards.
func (wp *WorkerPool) processJob(item models.MediaItem, workerID int) (models.DownloadRecord, bool) {
	path := wp.storage.Path(item)
	rec := models.DownloadRecord{
		Item:      item,
		LocalPath: path,
		Status:    models.StatusInProgress,
	}

	wp.logger.DebugWithFields("worker processing item", map[string]interface{}{
		"worker_id": workerID,
		"account":   item.Account,
		"item":      item.Key(),
	})

	if wp.opts.Fast {
		if size, ok := wp.storage.Size(path); ok {
			rec.Status = models.StatusDone
			rec.Existing = true
			rec.Bytes = size
			wp.finish(&rec)
			return rec, false
		}
	}

	// in-flight items are never interrupted; cancellation is observed between items
	fetchCtx := context.WithoutCancel(wp.ctx)
	var empty bool
	attempts, err := retry.DoCount(func() error {
		empty = false
		body, size, err := wp.client.OpenMedia(fetchCtx, item.MediaURL)
		if err != nil {
			return err
		}
		defer body.Close()

		if !wp.opts.Fast {
			if cur, ok := wp.storage.Size(path); ok && size >= 0 && cur == size {
				rec.Existing = true
				rec.Bytes = cur
				return nil
			}
			if size == 0 {
				empty = true
				return nil
			}
		}

		n, err := wp.storage.Save(path, body)
		if errors.Is(err, storage.ErrEmpty) {
			empty = true
			return nil
		}
		if err != nil {
			return errs.NewItemDownloadError(item.Account, 0, "failed to write media", err)
		}
		rec.Bytes = n
		return nil
	}, wp.opts.Retry.WithContext(fetchCtx))
	rec.Attempts = attempts

	switch {
	case err != nil:
		rec.Status = models.StatusFailed
		rec.Err = err
	case empty:
		rec.Status = models.StatusSkipped
	default:
		rec.Status = models.StatusDone
	}
	wp.finish(&rec)
	return rec, true
}

// finish records DONE items in the ledger and logs the outcome
func (wp *WorkerPool) finish(rec *models.DownloadRecord) {
	if rec.Status == models.StatusDone && wp.recorder != nil {
		if err := wp.recorder.Record(rec.Item, rec.LocalPath); err != nil {
			rec.Status = models.StatusFailed
			rec.Err = err
			if !errs.IsLedgerIO(err) {
				err = errs.NewLedgerIOError(rec.Item.Account, "failed to record item", err)
			}
			wp.mu.Lock()
			if wp.ledgerErr == nil {
				wp.ledgerErr = err
			}
			wp.mu.Unlock()
			wp.cancel()
		}
	}
	logger.LogDownload(wp.logger, *rec)
}
