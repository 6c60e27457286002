package sched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"lockstep/internal/protocol"
	"lockstep/internal/world"
)

type Config struct {
	TickRateHz int
	// BatchSize caps how many queued actions one tick drains.
	BatchSize int
	// SubmitterCap bounds outstanding (admitted, unresolved) actions per
	// submitter; excess submissions are rejected at Submit time.
	SubmitterCap   int
	ExecTimeout    time.Duration
	ConflictRadius float64
	TunerInterval  time.Duration
	TunerThreshold time.Duration
	// StopGrace is how long Stop waits before canceling an in-flight tick.
	StopGrace time.Duration
	Pools     []PoolConfig
}

func (c *Config) applyDefaults() {
	if c.TickRateHz <= 0 {
		c.TickRateHz = 20
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 64
	}
	if c.SubmitterCap <= 0 {
		c.SubmitterCap = 5
	}
	if c.ExecTimeout <= 0 {
		c.ExecTimeout = 5 * time.Second
	}
	if c.ConflictRadius <= 0 {
		c.ConflictRadius = 5
	}
	if c.TunerInterval <= 0 {
		c.TunerInterval = 30 * time.Second
	}
	if c.TunerThreshold <= 0 {
		c.TunerThreshold = 100 * time.Millisecond
	}
	if c.StopGrace <= 0 {
		c.StopGrace = 2 * time.Second
	}
	if len(c.Pools) == 0 {
		c.Pools = DefaultPools()
	}
}

// Notifier receives result fan-out for a submitter (and the action's target,
// when present). Implementations must not block.
type Notifier interface {
	Notify(submitterID string, res Result)
}

// TickEntry is one tick's durable log line.
type TickEntry struct {
	Tick      uint64  `json:"tick"`
	Batch     int     `json:"batch"`
	Conflicts int     `json:"conflicts"`
	Failures  int     `json:"failures"`
	LatencyMs float64 `json:"latency_ms"`
	Digest    string  `json:"digest"`
}

// Sink is the durable record of what each tick did. Optional.
type Sink interface {
	WriteTick(e TickEntry) error
	WriteResult(r Result) error
}

// AdmissionError is a synchronous Submit rejection.
type AdmissionError struct {
	Code string
	Msg  string
}

func (e *AdmissionError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Msg) }

// Stats is the GetStatistics snapshot.
type Stats struct {
	PendingCount   int
	ProcessedTotal uint64
	AvgLatencyMs   float64
	TickRateHz     int
	BatchSize      int
	SubmitterCap   int
}

// Scheduler batches queued actions into pools at a fixed tick rate,
// arbitrates conflicts, executes survivors and applies their mutations as
// the world's single writer. Identical input streams produce identical
// result streams and world digests on every peer.
type Scheduler struct {
	cfg       Config
	log       *log.Logger
	world     *world.State
	pools     *poolSet
	detector  *Detector
	executors map[string]Executor
	monitor   *Monitor
	tuner     *AutoTuner
	notifier  Notifier
	sink      Sink

	inbox    chan Action
	notifyCh chan Result
	stop     chan struct{}
	started  atomic.Bool
	stopped  atomic.Bool
	tick     atomic.Uint64

	nextStamp atomic.Int64
	pending   atomic.Int64

	outMu       sync.Mutex
	outstanding map[string]int

	inflightMu     sync.Mutex
	inflightCancel context.CancelFunc
}

func New(cfg Config, st *world.State, executors map[string]Executor, notifier Notifier, sink Sink, logger *log.Logger) (*Scheduler, error) {
	cfg.applyDefaults()
	if err := validateExecutors(executors); err != nil {
		return nil, err
	}
	pools, err := newPoolSet(cfg.Pools)
	if err != nil {
		return nil, err
	}
	monitor := NewMonitor()
	s := &Scheduler{
		cfg:         cfg,
		log:         logger,
		world:       st,
		pools:       pools,
		detector:    NewDetector(cfg.ConflictRadius),
		executors:   executors,
		monitor:     monitor,
		tuner:       NewAutoTuner(monitor, cfg.TunerInterval, cfg.TunerThreshold, logger),
		notifier:    notifier,
		sink:        sink,
		inbox:       make(chan Action, cfg.BatchSize*4),
		notifyCh:    make(chan Result, 1024),
		stop:        make(chan struct{}),
		outstanding: make(map[string]int),
	}
	return s, nil
}

// SetNotifier wires result fan-out after construction, for transports that
// themselves need the scheduler. Call before Run.
func (s *Scheduler) SetNotifier(n Notifier) { s.notifier = n }

// Submit validates and admits one action synchronously. Rejections never
// enter a pool: the error carries the protocol code to report back.
func (s *Scheduler) Submit(act Action) error {
	if err := validateAction(act); err != nil {
		return &AdmissionError{Code: protocol.ErrBadRequest, Msg: err.Error()}
	}
	if act.Timestamp == 0 {
		act.Timestamp = s.nextStamp.Add(1)
	}

	s.outMu.Lock()
	if s.outstanding[act.SubmitterID] >= s.cfg.SubmitterCap {
		s.outMu.Unlock()
		return &AdmissionError{
			Code: protocol.ErrRateLimit,
			Msg:  fmt.Sprintf("submitter %s already has %d outstanding actions", act.SubmitterID, s.cfg.SubmitterCap),
		}
	}
	s.outstanding[act.SubmitterID]++
	s.outMu.Unlock()

	select {
	case s.inbox <- act:
		s.pending.Add(1)
		return nil
	default:
		s.release(act.SubmitterID)
		return &AdmissionError{Code: protocol.ErrRateLimit, Msg: "inbound queue full"}
	}
}

func (s *Scheduler) release(submitterID string) {
	s.outMu.Lock()
	if s.outstanding[submitterID] > 0 {
		s.outstanding[submitterID]--
	}
	if s.outstanding[submitterID] == 0 {
		delete(s.outstanding, submitterID)
	}
	s.outMu.Unlock()
}

// Run drives the fixed-rate loop until ctx is done or Stop is called.
// Calling it twice is a no-op; so is Stop before Run.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return nil
	}
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	go s.deliverLoop(ctx)

	var queued []Action
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case act := <-s.inbox:
			queued = append(queued, act)
		case <-ticker.C:
			// Drain whatever else arrived without blocking.
			for {
				select {
				case act := <-s.inbox:
					queued = append(queued, act)
					continue
				default:
				}
				break
			}
			n := len(queued)
			if n > s.cfg.BatchSize {
				n = s.cfg.BatchSize
			}
			elapsed := s.safeTick(ctx, queued[:n])
			queued = append(queued[:0], queued[n:]...)
			if elapsed > interval {
				// Best effort, not hard real-time: warn and take the next
				// tick immediately. Nothing is dropped.
				s.log.Printf("tick %d overran: %s > %s interval", s.tick.Load()-1,
					elapsed.Round(time.Microsecond), interval)
			}
			s.tuner.Evaluate(time.Now())
		}
	}
}

// Stop is idempotent. The loop exits after the in-flight tick; executors
// still running past the grace period are canceled.
func (s *Scheduler) Stop() {
	if !s.stopped.CompareAndSwap(false, true) {
		return
	}
	close(s.stop)
	time.AfterFunc(s.cfg.StopGrace, s.cancelInflight)
}

func (s *Scheduler) cancelInflight() {
	s.inflightMu.Lock()
	cancel := s.inflightCancel
	s.inflightMu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// StepOnce advances exactly one tick with the given batch, bypassing the
// inbox, and returns the tick and resulting world digest. This is the
// replay/determinism entry point: peers feeding the same batches observe
// the same digests.
func (s *Scheduler) StepOnce(batch []Action) (uint64, string) {
	s.safeTick(context.Background(), batch)
	return s.tick.Load() - 1, s.world.Digest(s.tick.Load() - 1)
}

// safeTick isolates the loop from anything a tick does: an unexpected panic
// is logged and the next tick proceeds.
func (s *Scheduler) safeTick(ctx context.Context, batch []Action) (elapsed time.Duration) {
	start := time.Now()
	tick := s.tick.Add(1) - 1

	defer func() {
		if r := recover(); r != nil {
			s.log.Printf("tick %d: recovered panic: %v", tick, r)
		}
		elapsed = time.Since(start)
		s.monitor.Record(len(batch), elapsed)
	}()

	tickCtx, cancel := context.WithCancel(ctx)
	s.inflightMu.Lock()
	s.inflightCancel = cancel
	s.inflightMu.Unlock()
	defer func() {
		s.inflightMu.Lock()
		s.inflightCancel = nil
		s.inflightMu.Unlock()
		cancel()
	}()

	results := s.processTick(tickCtx, tick, batch)
	s.finishTick(tick, len(batch), results, time.Since(start))
	return
}

// pendingResult pairs a result skeleton with the mutation to apply.
type pendingResult struct {
	res Result
	mut Mutation
}

// processTick routes the batch into pools and works the pools in ascending
// priority order: conflict resolution, then dispatch. Results come back in
// deterministic order; mutations are not applied yet.
func (s *Scheduler) processTick(ctx context.Context, tick uint64, batch []Action) []pendingResult {
	s.pools.route(batch)

	var out []pendingResult
	for _, p := range s.pools.pools {
		if len(p.actions) == 0 {
			continue
		}
		survivors, losses := s.detector.Resolve(p.actions, s.world)
		for _, l := range losses {
			out = append(out, pendingResult{res: conflicted(l.Action, tick, l.Reason())})
		}
		if p.cfg.Sequential {
			for _, act := range survivors {
				out = append(out, s.dispatch(ctx, tick, act))
			}
		} else {
			out = append(out, s.dispatchParallel(ctx, tick, survivors)...)
		}
	}
	return out
}

func (s *Scheduler) dispatch(ctx context.Context, tick uint64, act Action) pendingResult {
	exec := s.executors[act.Category]
	if exec == nil {
		return pendingResult{res: failure(act, tick, protocol.ErrUnknownType,
			fmt.Sprintf("no executor for category %q", act.Category))}
	}
	mut, err := runExecutor(ctx, exec, act, s.cfg.ExecTimeout)
	if err != nil {
		return pendingResult{res: failure(act, tick, errCode(err), err.Error())}
	}
	return pendingResult{res: Result{Action: act, OK: true, Tick: tick, Timestamp: act.Timestamp}, mut: mut}
}

// dispatchParallel fans the pool out and collects results back in the
// pool's deterministic order, so parallelism never reorders the result
// stream.
func (s *Scheduler) dispatchParallel(ctx context.Context, tick uint64, survivors []Action) []pendingResult {
	out := make([]pendingResult, len(survivors))
	g, gctx := errgroup.WithContext(ctx)
	for i, act := range survivors {
		i, act := i, act
		g.Go(func() error {
			out[i] = s.dispatch(gctx, tick, act)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// finishTick is the single-writer result-application step: mutations run
// here, in result order, then results fan out to submitters and the sink.
func (s *Scheduler) finishTick(tick uint64, batch int, results []pendingResult, latency time.Duration) {
	conflicts, failures := 0, 0
	final := make([]Result, 0, len(results))
	for _, pr := range results {
		res := pr.res
		if res.OK && pr.mut != nil {
			if err := pr.mut(s.world); err != nil {
				res = failure(res.Action, tick, errCode(err), err.Error())
			}
		}
		if res.Conflicted {
			conflicts++
		} else if !res.OK {
			failures++
		}
		final = append(final, res)
	}

	for _, res := range final {
		// StepOnce batches bypass Submit, so the gauge may not cover them.
		if s.pending.Load() > 0 {
			s.pending.Add(-1)
		}
		s.release(res.Action.SubmitterID)
		s.enqueueNotify(res)
		if s.sink != nil {
			if err := s.sink.WriteResult(res); err != nil {
				s.log.Printf("sink result: %v", err)
			}
		}
	}

	if s.sink != nil && batch > 0 {
		entry := TickEntry{
			Tick:      tick,
			Batch:     batch,
			Conflicts: conflicts,
			Failures:  failures,
			LatencyMs: float64(latency.Microseconds()) / 1000,
			Digest:    s.world.Digest(tick),
		}
		if err := s.sink.WriteTick(entry); err != nil {
			s.log.Printf("sink tick: %v", err)
		}
	}
}

func (s *Scheduler) enqueueNotify(res Result) {
	if s.notifier == nil {
		return
	}
	select {
	case s.notifyCh <- res:
	default:
		// Notification delivery must never stall the loop.
		s.log.Printf("notify queue full; dropping result ref=%s", res.Action.Ref)
	}
}

// deliverLoop fans results out to the submitter and, when present, the
// action's target, off the tick thread.
func (s *Scheduler) deliverLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			// Drain what is already queued before exiting.
			for {
				select {
				case res := <-s.notifyCh:
					s.deliver(res)
				default:
					return
				}
			}
		case res := <-s.notifyCh:
			s.deliver(res)
		}
	}
}

func (s *Scheduler) deliver(res Result) {
	s.notifier.Notify(res.Action.SubmitterID, res)
	if t := res.Action.TargetID; t != "" && t != res.Action.SubmitterID {
		s.notifier.Notify(t, res)
	}
}

// GetStatistics reports the live counters for the stats endpoint.
func (s *Scheduler) GetStatistics() Stats {
	return Stats{
		PendingCount:   int(s.pending.Load()),
		ProcessedTotal: s.monitor.Processed(),
		AvgLatencyMs:   float64(s.monitor.AvgLatency().Microseconds()) / 1000,
		TickRateHz:     s.cfg.TickRateHz,
		BatchSize:      s.cfg.BatchSize,
		SubmitterCap:   s.cfg.SubmitterCap,
	}
}

// Tick reports the next tick number to run.
func (s *Scheduler) Tick() uint64 { return s.tick.Load() }
