// Package pipeline decodes batches of prover memory dumps into typed
// artifacts and persists them.
//
// Jobs are submitted from any goroutine and stamped with a seq from a
// logical Clock. Run fans decoding out to a pool of workers; decoding is
// pure and needs no coordination. Every store write happens in the Run
// goroutine, so the store sees a single writer regardless of the worker
// count.
//
// A job's lifecycle in the store:
//
//  1. pending job row, plus one input artifact per advice entry when the
//     request carries prover inputs
//  2. decoded record state and result artifacts
//  3. done, or failed with the abi error code and message
//
// Jobs dispatched when Run's context is cancelled stay pending and are
// reported by store.FindIncompleteJobs.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/roach88/zkabi/internal/abi"
	"github.com/roach88/zkabi/internal/memory"
	"github.com/roach88/zkabi/internal/prover"
	"github.com/roach88/zkabi/internal/store"
)

// DefaultWorkers is the default size of the decode pool.
const DefaultWorkers = 4

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pipeline closed")

// Request is one memory dump to decode.
type Request struct {
	// ABI locates the record state and the result in Memory. May be nil
	// when Inputs is set, in which case Inputs.ABI is used.
	ABI *abi.ABI

	Memory memory.WordReader

	// Inputs, when set, are stored as the job's input artifacts.
	Inputs *prover.Inputs

	// Budget overrides the pipeline budget for this job when non-zero.
	Budget uint64
}

type job struct {
	id     string
	seq    int64
	abi    *abi.ABI
	req    Request
	budget uint64
}

type outcome struct {
	job    job
	this   abi.Value
	result abi.Value
	err    error
}

// Pipeline is a decode worker pool with a single store writer.
type Pipeline struct {
	store   *store.Store
	clock   *Clock
	ids     IDGenerator
	queue   *requestQueue
	quota   *QuotaEnforcer
	workers int
	budget  uint64
	maxJobs int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the decode pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithBudget sets the decode budget for every job that does not carry
// its own. Zero keeps memory.DefaultBudget.
func WithBudget(units uint64) Option {
	return func(p *Pipeline) {
		p.budget = units
	}
}

// WithMaxJobs caps the number of jobs Submit accepts.
func WithMaxJobs(n int) Option {
	return func(p *Pipeline) {
		p.maxJobs = n
	}
}

// WithClock sets the clock, e.g. NewClockAt(lastSeq) to resume numbering
// after jobs already in the store.
func WithClock(c *Clock) Option {
	return func(p *Pipeline) {
		p.clock = c
	}
}

// WithIDGenerator sets the job ID source.
func WithIDGenerator(g IDGenerator) Option {
	return func(p *Pipeline) {
		p.ids = g
	}
}

// New creates a Pipeline writing to s.
func New(s *store.Store, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:   s,
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		queue:   newRequestQueue(),
		workers: DefaultWorkers,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.quota = NewQuotaEnforcer(p.maxJobs)
	return p
}

// Submit validates a request and queues it. It returns the job ID.
// Safe for concurrent use.
func (p *Pipeline) Submit(req Request) (string, error) {
	a := req.ABI
	if a == nil && req.Inputs != nil {
		a = req.Inputs.ABI
	}
	if a == nil {
		return "", fmt.Errorf("submit: abi is required")
	}
	if err := a.Validate(); err != nil {
		return "", fmt.Errorf("submit: %w", err)
	}
	if req.Memory == nil {
		return "", fmt.Errorf("submit: memory is required")
	}

	id := p.ids.Generate()
	if err := p.quota.Check(id); err != nil {
		return "", err
	}

	budget := p.budget
	if req.Budget != 0 {
		budget = req.Budget
	}
	j := job{id: id, seq: p.clock.Next(), abi: a, req: req, budget: budget}
	if !p.queue.Enqueue(j) {
		return "", ErrClosed
	}
	return id, nil
}

// Close stops accepting jobs. Run returns once every queued job is
// finished.
func (p *Pipeline) Close() {
	p.queue.Close()
}

// Clock returns the pipeline clock.
func (p *Pipeline) Clock() *Clock {
	return p.clock
}

// QueueLen returns the number of jobs waiting for dispatch.
func (p *Pipeline) QueueLen() int {
	return p.queue.Len()
}

// Run processes jobs until the pipeline is closed and drained, or ctx is
// cancelled. It must be called from exactly one goroutine.
//
// A job whose decode fails is recorded as failed and processing
// continues. A store failure for one job is logged and processing
// continues with the next.
func (p *Pipeline) Run(ctx context.Context) error {
	log := Logger()
	log.Info("pipeline starting", zap.Int("workers", p.workers))

	work := make(chan job)
	results := make(chan outcome)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range work {
				results <- decode(j)
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var (
		next     *job
		inflight int
		wait     = p.queue.Wait()
	)
	for {
		if next == nil {
			if j, ok := p.queue.TryDequeue(); ok {
				if err := p.begin(ctx, j); err != nil {
					log.Error("job start failed", zap.String("job", j.id), zap.Int64("seq", j.seq), zap.Error(err))
					continue
				}
				next = &j
			}
		}
		if next == nil && inflight == 0 && p.queue.Drained() {
			close(work)
			for range results {
			}
			log.Info("pipeline stopping: queue drained")
			return nil
		}

		var (
			send    chan<- job
			pending job
		)
		if next != nil {
			send, pending = work, *next
		}

		select {
		case <-ctx.Done():
			log.Info("pipeline stopping: context cancelled", zap.Int("inflight", inflight))
			p.queue.Close()
			close(work)
			for range results {
			}
			return ctx.Err()

		case send <- pending:
			next = nil
			inflight++

		case out := <-results:
			inflight--
			p.finish(ctx, out)

		case _, ok := <-wait:
			if !ok {
				// Closed: stop selecting on it and rely on Drained.
				wait = nil
			}
		}
	}
}

// begin records a job as pending, with its input artifacts.
func (p *Pipeline) begin(ctx context.Context, j job) error {
	abiID, err := p.store.WriteABI(ctx, j.abi)
	if err != nil {
		return err
	}
	if err := p.store.WriteJob(ctx, store.Job{ID: j.id, ABIID: abiID, Seq: j.seq}); err != nil {
		return err
	}
	if j.req.Inputs == nil {
		return nil
	}
	for i, e := range j.req.Inputs.Entries() {
		_, err := p.store.WriteArtifact(ctx, store.Artifact{
			JobID: j.id,
			Kind:  store.KindInput,
			Seq:   int64(i),
			Type:  e.Type,
			Value: e.Value,
		})
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name, err)
		}
	}
	return nil
}

// decode runs on a worker goroutine and must not touch the store.
func decode(j job) outcome {
	var opts []memory.Option
	if j.budget != 0 {
		opts = append(opts, memory.WithBudget(j.budget))
	}
	this, result, err := prover.DecodeOutputs(j.abi, j.req.Memory, opts...)
	return outcome{job: j, this: this, result: result, err: err}
}

// finish persists a decoded job and records its status.
func (p *Pipeline) finish(ctx context.Context, out outcome) {
	log := Logger().With(zap.String("job", out.job.id), zap.Int64("seq", out.job.seq))

	err := out.err
	if err == nil {
		err = p.writeOutputs(ctx, out)
	}

	if err != nil {
		code, _ := abi.CodeOf(err)
		log.Warn("job failed", zap.String("code", string(code)), zap.Error(err))
		if ferr := p.store.FinishJob(ctx, out.job.id, store.JobFailed, string(code), err.Error()); ferr != nil {
			log.Error("recording job failure", zap.Error(ferr))
		}
		return
	}

	if err := p.store.FinishJob(ctx, out.job.id, store.JobDone, "", ""); err != nil {
		log.Error("recording job completion", zap.Error(err))
		return
	}
	log.Debug("job done")
}

func (p *Pipeline) writeOutputs(ctx context.Context, out outcome) error {
	if out.this != nil {
		_, err := p.store.WriteArtifact(ctx, store.Artifact{
			JobID: out.job.id, Kind: store.KindThis, Type: out.job.abi.ThisType, Value: out.this,
		})
		if err != nil {
			return err
		}
	}
	if out.result != nil {
		_, err := p.store.WriteArtifact(ctx, store.Artifact{
			JobID: out.job.id, Kind: store.KindResult, Type: out.job.abi.ResultType, Value: out.result,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
