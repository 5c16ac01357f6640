package uploader

import (
	"context"
	"log/slog"
	"sync"

	"github.com/brensch/edgarfsn/internal/report"
)

// Handle tracks one submitted upload.
type Handle struct {
	Path string
	Key  string

	done chan struct{}
	item report.Item
}

// Done is closed once the upload has finished, successfully or not.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the upload has finished and returns its outcome.
func (h *Handle) Wait() report.Item {
	<-h.done
	return h.item
}

type job struct {
	handle *Handle
	bucket string
}

// Pool runs uploads on a fixed number of workers.
type Pool struct {
	u    *Uploader
	ctx  context.Context
	jobs chan job
	wg   sync.WaitGroup
}

// NewPool starts workers goroutines (at least one) that upload until Close is called.
func (u *Uploader) NewPool(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{u: u, ctx: ctx, jobs: make(chan job, workers)}
	u.logger.Debug("Starting upload workers.", slog.Int("workers", workers))
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			l := u.logger.With(slog.Int("worker", workerID))
			for j := range p.jobs {
				j.handle.item = u.uploadOne(p.ctx, l.With(slog.String("file", j.handle.Path)), j.handle.Path, j.bucket, j.handle.Key)
				close(j.handle.done)
				if !isCancellation(j.handle.item.Err) {
					u.Notify.Notify(j.handle.item)
				}
			}
		}(i + 1)
	}
	return p
}

// Submit queues an upload and returns its handle. It blocks while every
// worker is busy and the queue is full.
func (p *Pool) Submit(localPath, bucketName, key string) *Handle {
	h := &Handle{Path: localPath, Key: key, done: make(chan struct{})}
	select {
	case p.jobs <- job{handle: h, bucket: bucketName}:
	case <-p.ctx.Done():
		h.item = report.Item{ID: key, Status: report.Failed, Err: p.ctx.Err()}
		close(h.done)
	}
	return h
}

// Close stops accepting work and waits for the workers to drain the queue.
func (p *Pool) Close() {
	close(p.jobs)
	p.wg.Wait()
}
