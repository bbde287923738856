// Package processor runs recognition bookkeeping off the backend read loop.
package processor

import (
	"context"
	"errors"
	"sync"
	"time"

	"attendance-kiosk/internal/kiosk"
	"attendance-kiosk/internal/util/timezone"

	log "github.com/sirupsen/logrus"
)

// ErrPoolClosed is returned by Record after Shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// WorkerPool verwaltet Worker-Goroutinen, die Erkennungen an einen Recorder
// weitergeben. Record kehrt zurück, sobald der Job angenommen wurde.
type WorkerPool struct {
	recorder    kiosk.Recorder
	timeout     time.Duration
	jobs        chan *RecordJob
	workerCount int

	activeJobs      int
	activeJobsMutex sync.Mutex

	closeMutex sync.RWMutex
	closed     bool
	wg         sync.WaitGroup
}

// RecordJob ist eine angenommene Erkennung
type RecordJob struct {
	rec    kiosk.Recognition
	queued time.Time
}

// NewWorkerPool starts workerCount workers with room for queueSize pending
// jobs. Each Record call on recorder gets its own timeout.
func NewWorkerPool(recorder kiosk.Recorder, workerCount, queueSize int, timeout time.Duration) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = workerCount * 2
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	log.Infof("Initializing recording worker pool with %d workers", workerCount)

	pool := &WorkerPool{
		recorder:    recorder,
		timeout:     timeout,
		jobs:        make(chan *RecordJob, queueSize),
		workerCount: workerCount,
	}
	pool.startWorkers()
	return pool
}

func (p *WorkerPool) startWorkers() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go func(workerID int) {
			defer p.wg.Done()
			log.Debugf("Worker %d started", workerID)

			// Läuft bis der Job-Kanal geschlossen und leer ist
			for job := range p.jobs {
				p.run(workerID, job)
			}
			log.Debugf("Worker %d shutting down (job channel closed)", workerID)
		}(i)
	}
}

func (p *WorkerPool) run(workerID int, job *RecordJob) {
	p.activeJobsMutex.Lock()
	p.activeJobs++
	p.activeJobsMutex.Unlock()
	defer func() {
		p.activeJobsMutex.Lock()
		p.activeJobs--
		p.activeJobsMutex.Unlock()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	logger := log.WithFields(log.Fields{"worker": workerID, "name": job.rec.Name, "known": job.rec.Known})
	if err := p.recorder.Record(ctx, job.rec); err != nil {
		logger.WithError(err).Warn("Failed to record recognition")
		return
	}
	logger.Debugf("Recognition recorded %v after it was queued", timezone.Now().Sub(job.queued))
}

// Record queues rec. It blocks only while the queue is full, and at most
// until ctx ends.
func (p *WorkerPool) Record(ctx context.Context, rec kiosk.Recognition) error {
	p.closeMutex.RLock()
	defer p.closeMutex.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}

	job := &RecordJob{rec: rec, queued: timezone.Now()}
	select {
	case p.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ActiveJobCount gibt die Anzahl der aktuell aktiven Jobs zurück
func (p *WorkerPool) ActiveJobCount() int {
	p.activeJobsMutex.Lock()
	defer p.activeJobsMutex.Unlock()
	return p.activeJobs
}

// GetWorkerCount gibt die Anzahl der Worker im Pool zurück
func (p *WorkerPool) GetWorkerCount() int {
	return p.workerCount
}

// GetQueueCapacity gibt die Kapazität der Job-Queue zurück
func (p *WorkerPool) GetQueueCapacity() int {
	return cap(p.jobs)
}

// Shutdown stops accepting jobs and waits until queued ones are recorded.
func (p *WorkerPool) Shutdown() {
	p.closeMutex.Lock()
	if p.closed {
		p.closeMutex.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.closeMutex.Unlock()

	p.wg.Wait()
	log.Debug("Recording worker pool stopped")
}
