// Package worker drains webhook confirmation jobs into the ledger
// engine so the receiver can acknowledge immediately.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/tonerolima/kobopay/internal/domain"
	"github.com/tonerolima/kobopay/internal/ledger"
)

type ConfirmJob struct {
	Params ledger.ConfirmParams
}

type Pool struct {
	jobs   chan ConfirmJob
	engine *ledger.Engine
	logger *slog.Logger
	wg     sync.WaitGroup
}

func NewPool(bufferSize int, engine *ledger.Engine, logger *slog.Logger) *Pool {
	return &Pool{
		jobs:   make(chan ConfirmJob, bufferSize),
		engine: engine,
		logger: logger,
	}
}

func (p *Pool) Start(workerCount int) {
	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for job := range p.jobs {
		_, err := p.engine.Confirm(context.Background(), job.Params)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrTransactionFinal):
			// Replayed webhook; the first delivery already won.
			p.logger.Info("duplicate confirmation ignored",
				"reference_id", job.Params.ReferenceID)
		default:
			p.logger.Error("confirmation failed",
				"reference_id", job.Params.ReferenceID,
				"error", err,
			)
		}
	}
}

// Submit enqueues a job; false means the buffer is full and the caller
// should shed load.
func (p *Pool) Submit(job ConfirmJob) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

func (p *Pool) Shutdown() {
	close(p.jobs)
	p.wg.Wait()
}
