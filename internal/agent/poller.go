// Package agent is the remote print agent: a timer-driven poller that
// drains the paid-job queue one job at a time and drives the printer
// controller through its HTTP API.
package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shapekiln/kiln/internal/core"
	"github.com/shapekiln/kiln/internal/printer"
)

// JobService is the lifecycle surface the agent consumes. core.Lifecycle
// satisfies it for in-process use; Client satisfies it over the server's
// HTTP API for remote deployment.
type JobService interface {
	PeekNext(ctx context.Context) (string, error)
	MeshData(ctx context.Context, id string) (string, error)
	BeginPrinting(ctx context.Context, id string) (*core.Job, error)
	Complete(ctx context.Context, id string) (*core.Job, error)
	Fail(ctx context.Context, id, reason string) error
}

// Controller is the printer firmware surface, satisfied by printer.Client.
type Controller interface {
	State(ctx context.Context) (*printer.State, error)
	Upload(ctx context.Context, name string, toolpath []byte) error
	StartPrint(ctx context.Context, name string) error
}

// Poller polls on a fixed interval with at most one job in flight. Each
// tick is independent: any upstream error skips the tick and the next
// interval retries, never a tight loop.
type Poller struct {
	service      JobService
	controller   Controller
	strategy     ToolpathStrategy
	interval     time.Duration
	uploadPrefix string

	inFlight string
	stopCh   chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewPoller(service JobService, controller Controller, strategy ToolpathStrategy, interval time.Duration, uploadPrefix string) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if strategy == nil {
		strategy = &StubStrategy{}
	}
	if uploadPrefix == "" {
		uploadPrefix = "kiln"
	}

	return &Poller{
		service:      service,
		controller:   controller,
		strategy:     strategy,
		interval:     interval,
		uploadPrefix: uploadPrefix,
		stopCh:       make(chan struct{}),
	}
}

// Start launches the polling loop.
func (p *Poller) Start() {
	p.wg.Add(1)
	go p.loop()
}

// Stop halts the loop and waits for the current tick to finish.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
	})
	p.wg.Wait()
}

func (p *Poller) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), p.interval)
			p.Tick(ctx)
			cancel()
		}
	}
}

// Tick runs one poll cycle. Exported so tests and operators can drive the
// agent without real timers.
func (p *Poller) Tick(ctx context.Context) {
	state, err := p.controller.State(ctx)
	if err != nil {
		// Unreachable controller and a negative readiness check are the
		// same thing: wait for the next interval.
		log.Printf("agent: controller state check failed: %v", err)
		return
	}

	if state.Printing() {
		return
	}

	if p.inFlight != "" {
		// Controller went idle while we had a job in flight: the print
		// finished.
		if _, err := p.service.Complete(ctx, p.inFlight); err != nil {
			log.Printf("agent: failed to complete job %s: %v", p.inFlight, err)
			return
		}
		log.Printf("agent: job %s completed", p.inFlight)
		p.inFlight = ""
	}

	if !state.Ready() {
		return
	}

	id, err := p.service.PeekNext(ctx)
	if err != nil {
		log.Printf("agent: queue peek failed: %v", err)
		return
	}
	if id == "" {
		return
	}

	p.startJob(ctx, id)
}

func (p *Poller) startJob(ctx context.Context, id string) {
	meshText, err := p.service.MeshData(ctx, id)
	if err != nil {
		// The job stays queued; the next tick retries the fetch.
		log.Printf("agent: failed to fetch mesh for job %s: %v", id, err)
		return
	}

	toolpath, err := p.strategy.MeshToToolpath(meshText)
	if err != nil {
		p.fail(ctx, id, fmt.Sprintf("toolpath generation failed: %v", err))
		return
	}

	name := fmt.Sprintf("%s-%s.gcode", p.uploadPrefix, id)
	if err := p.controller.Upload(ctx, name, toolpath); err != nil {
		p.fail(ctx, id, fmt.Sprintf("toolpath upload failed: %v", err))
		return
	}

	if _, err := p.service.BeginPrinting(ctx, id); err != nil {
		log.Printf("agent: failed to mark job %s printing: %v", id, err)
		return
	}

	if err := p.controller.StartPrint(ctx, name); err != nil {
		p.fail(ctx, id, fmt.Sprintf("print start failed: %v", err))
		return
	}

	p.inFlight = id
	log.Printf("agent: job %s printing as %s", id, name)
}

// fail reports a terminal failure, which also removes the id from the
// queue so the next tick cannot pick it up again.
func (p *Poller) fail(ctx context.Context, id, reason string) {
	log.Printf("agent: job %s failed: %s", id, reason)
	if err := p.service.Fail(ctx, id, reason); err != nil {
		log.Printf("agent: failed to record failure for job %s: %v", id, err)
	}
	if p.inFlight == id {
		p.inFlight = ""
	}
}
