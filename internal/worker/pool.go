package worker

import (
	"context"
	"sort"
	"sync"
)

// Job is one unit of work run by a pool worker
type Job interface {
	Execute(ctx context.Context) Result
}

// Result is what a Job hands back; a failed job reports it through GetError
type Result interface {
	GetError() error
}

// Indexed is implemented by results that remember their submission order
type Indexed interface {
	Position() int
}

// Pool runs submitted jobs on a fixed number of goroutines
type Pool struct {
	size      int
	jobs      chan Job
	results   chan Result
	collector *ResultCollector
	collected chan struct{}
	running   sync.WaitGroup
	ctx       context.Context
	stop      context.CancelFunc
	closeOnce sync.Once
}

// NewPool returns a pool with workers goroutines, at least one.
// Cancelling ctx stops the pool like Shutdown.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	ctx, stop := context.WithCancel(ctx)
	return &Pool{
		size:      workers,
		jobs:      make(chan Job, workers*2),
		results:   make(chan Result, workers*2),
		collector: NewResultCollector(),
		collected: make(chan struct{}),
		ctx:       ctx,
		stop:      stop,
	}
}

// Start launches the workers and the goroutine that gathers their results
func (p *Pool) Start() {
	p.running.Add(p.size)
	for i := 0; i < p.size; i++ {
		go p.run()
	}

	go func() {
		defer close(p.collected)
		for r := range p.results {
			p.collector.Add(r)
		}
	}()
}

func (p *Pool) run() {
	defer p.running.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			r := job.Execute(p.ctx)
			select {
			case p.results <- r:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// Submit queues job, blocking while the queue is full. It returns
// without queueing once the pool is stopped.
func (p *Pool) Submit(job Job) {
	select {
	case <-p.ctx.Done():
	case p.jobs <- job:
	}
}

// Wait closes the queue, lets queued jobs finish and returns their results.
// Indexed results come back in Position order.
func (p *Pool) Wait() []Result {
	close(p.jobs)
	p.running.Wait()
	p.closeResults()
	<-p.collected
	p.stop()
	return Ordered(p.collector.Results())
}

// Shutdown stops the workers without draining the queue
func (p *Pool) Shutdown() {
	p.stop()
	p.running.Wait()
	p.closeResults()
}

func (p *Pool) closeResults() {
	p.closeOnce.Do(func() { close(p.results) })
}

// Ordered sorts results by Position; results without one keep their order
// after the indexed ones
func Ordered(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		a, aok := results[i].(Indexed)
		b, bok := results[j].(Indexed)
		if aok && bok {
			return a.Position() < b.Position()
		}
		return aok && !bok
	})
	return results
}

// ResultCollector accumulates results from concurrent producers
type ResultCollector struct {
	mu      sync.Mutex
	results []Result
}

// NewResultCollector returns an empty collector
func NewResultCollector() *ResultCollector {
	return &ResultCollector{}
}

// Add appends result
func (c *ResultCollector) Add(result Result) {
	c.mu.Lock()
	c.results = append(c.results, result)
	c.mu.Unlock()
}

// Results returns a snapshot of everything added so far
func (c *ResultCollector) Results() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}
