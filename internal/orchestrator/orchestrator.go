package orchestrator

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"runtime"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/rodrigo/nfse-collector/internal/session"
	"github.com/rodrigo/nfse-collector/internal/types"
)

// Session is the slice of a browser session the orchestrator drives.
type Session interface {
	Collect(dir types.Direction, period, company string, logf types.LogFunc) (types.ScanOutcome, error)
	Close()
}

// SessionFactory builds authenticated sessions on demand.
type SessionFactory interface {
	Build(ctx context.Context, taxID string, headless bool) (Session, error)
}

// SessionFactoryFunc adapts a function to the SessionFactory interface.
type SessionFactoryFunc func(ctx context.Context, taxID string, headless bool) (Session, error)

func (f SessionFactoryFunc) Build(ctx context.Context, taxID string, headless bool) (Session, error) {
	return f(ctx, taxID, headless)
}

// CompanyDirectory resolves a tax ID into a display name for output paths.
type CompanyDirectory interface {
	CompanyName(ctx context.Context, taxID string) (string, error)
}

// Request is an enqueue request for one account and accounting period.
type Request struct {
	AccountID string `json:"account_id" validate:"required"`
	TaxID     string `json:"tax_id" validate:"required,len=14,numeric"`
	Period    string `json:"period" validate:"required,period"`
	Direction string `json:"direction" validate:"omitempty,oneof=issued received both"`
	Headless  *bool  `json:"headless,omitempty"`
}

var periodPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{4}$`)

// Options configures an Orchestrator.
type Options struct {
	Factory       SessionFactory
	Companies     CompanyDirectory // optional; nil means paths use the tax ID
	DownloadsPath string
	Headless      bool // default when the request does not override
	IdleTimeout   time.Duration
	QueueCapacity int
}

// Orchestrator executes runs strictly in FIFO order on a single worker
// goroutine. The worker shuts down after an idle period and is restarted
// transparently by the next enqueue.
type Orchestrator struct {
	factory         SessionFactory
	companies       CompanyDirectory
	downloadsPath   string
	defaultHeadless bool
	idleTimeout     time.Duration
	validate        *validator.Validate

	mu            sync.Mutex
	queue         chan *types.Run
	runs          map[string]*types.Run
	workerRunning bool
}

// New creates an Orchestrator. The worker is started lazily on first enqueue.
func New(opts Options) *Orchestrator {
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = 60 * time.Second
	}
	capacity := opts.QueueCapacity
	if capacity <= 0 {
		capacity = 32
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return periodPattern.MatchString(fl.Field().String())
	})

	return &Orchestrator{
		factory:         opts.Factory,
		companies:       opts.Companies,
		downloadsPath:   opts.DownloadsPath,
		defaultHeadless: opts.Headless,
		idleTimeout:     idle,
		validate:        v,
		queue:           make(chan *types.Run, capacity),
		runs:            make(map[string]*types.Run),
	}
}

// Enqueue validates the request and appends a pending run to the queue.
// A new run for an account replaces that account's visible status slot; the
// superseded run still executes if already queued.
func (o *Orchestrator) Enqueue(ctx context.Context, req Request) (types.Snapshot, error) {
	if err := o.validate.Struct(req); err != nil {
		return types.Snapshot{}, &ValidationError{Message: "request rejected", Cause: err}
	}
	dir, err := types.ParseDirection(req.Direction)
	if err != nil {
		return types.Snapshot{}, &ValidationError{Message: err.Error()}
	}

	headless := o.defaultHeadless
	if req.Headless != nil {
		headless = *req.Headless
	}

	run := types.NewRun(req.AccountID, req.TaxID, req.Period, dir, headless)
	run.Company = o.resolveCompany(ctx, req.TaxID)

	o.mu.Lock()
	defer o.mu.Unlock()

	select {
	case o.queue <- run:
	default:
		return types.Snapshot{}, ErrQueueFull
	}

	o.runs[run.AccountID] = run
	o.appendLogLocked(run, "run queued for period %s (%s)", run.Period, run.Direction)
	o.ensureWorkerLocked()

	return run.Snapshot(), nil
}

// GetStatus returns a point-in-time snapshot of the account's latest run.
func (o *Orchestrator) GetStatus(accountID string) (types.Snapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[accountID]
	if !ok {
		return types.Snapshot{}, ErrRunNotFound
	}
	return run.Snapshot(), nil
}

// QueueDepth reports how many runs are waiting (not including a running one).
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

func (o *Orchestrator) resolveCompany(ctx context.Context, taxID string) string {
	if o.companies == nil {
		return taxID
	}
	name, err := o.companies.CompanyName(ctx, taxID)
	if err != nil || name == "" {
		// Path naming falls back to the tax ID; never blocks an enqueue.
		return taxID
	}
	return name
}

// ensureWorkerLocked starts the worker goroutine if it is not running.
// Caller must hold o.mu.
func (o *Orchestrator) ensureWorkerLocked() {
	if o.workerRunning {
		return
	}
	o.workerRunning = true
	go o.worker()
}

// worker drains the queue one run at a time. Browser automation misbehaves
// when bounced across OS threads, so the worker pins itself.
func (o *Orchestrator) worker() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	log.Printf("[QUEUE] worker started")
	for {
		select {
		case run := <-o.queue:
			o.process(run)
		case <-time.After(o.idleTimeout):
			o.mu.Lock()
			// An enqueue may have raced the timer; drain before stopping.
			select {
			case run := <-o.queue:
				o.mu.Unlock()
				o.process(run)
				continue
			default:
			}
			o.workerRunning = false
			o.mu.Unlock()
			log.Printf("[QUEUE] worker idle for %s, shutting down", o.idleTimeout)
			return
		}
	}
}

// process executes one run from pending to a terminal status. Authentication
// failures are fatal; scan failures are logged and finalization still runs.
func (o *Orchestrator) process(run *types.Run) {
	logf := o.runLogger(run)

	o.begin(run)
	logf("starting run for %s, period %s", run.TaxID, run.Period)
	o.advance(run, types.StageInit, 10, "preparing session")

	o.advance(run, types.StageAuthenticating, 30, "authenticating with client certificate")
	sess, err := o.factory.Build(context.Background(), run.TaxID, run.Headless)
	if err != nil {
		logf("authentication failed: %v", err)
		if session.IsCredentialError(err) {
			o.fail(run, "certificate unavailable or invalid: "+err.Error())
		} else {
			o.fail(run, "authentication failed: "+err.Error())
		}
		return
	}
	o.advance(run, types.StageAuthenticating, 40, "authenticated")
	logf("session established")

	if run.Direction.Includes(types.DirectionIssued) {
		o.advance(run, types.StageScanningIssued, 50, "scanning issued documents")
		o.collect(run, sess, types.DirectionIssued, logf)
	}
	o.setProgress(run, 70)

	if run.Direction.Includes(types.DirectionReceived) {
		o.advance(run, types.StageScanningReceived, 80, "scanning received documents")
		o.collect(run, sess, types.DirectionReceived, logf)
	}
	o.setProgress(run, 90)

	o.advance(run, types.StageFinalizing, 90, "finalizing")
	if err := o.writeManifest(run); err != nil {
		logf("could not write run manifest: %v", err)
	}
	sess.Close()

	o.complete(run)
	logf("run finished with %d artifacts", len(run.Artifacts))
}

// collect runs one direction's scan. Errors here never fail the run.
func (o *Orchestrator) collect(run *types.Run, sess Session, dir types.Direction, logf types.LogFunc) {
	outcome, err := sess.Collect(dir, run.Period, run.Company, logf)
	if err != nil {
		logf("%s scan aborted: %v", dir, err)
	}

	o.mu.Lock()
	run.Artifacts = append(run.Artifacts, outcome.Artifacts...)
	o.mu.Unlock()

	logf("%s: %d pages, %d matched, %d skipped, %d artifacts",
		dir, outcome.Pages, outcome.Matched, outcome.Skipped, len(outcome.Artifacts))
}

// runLogger returns a LogFunc that appends to the run's caller-visible log
// and mirrors to the process log.
func (o *Orchestrator) runLogger(run *types.Run) types.LogFunc {
	return func(format string, args ...any) {
		o.mu.Lock()
		o.appendLogLocked(run, format, args...)
		o.mu.Unlock()
	}
}

func (o *Orchestrator) appendLogLocked(run *types.Run, format string, args ...any) {
	line := time.Now().Format("[15:04:05] ") + fmt.Sprintf(format, args...)
	run.Logs = append(run.Logs, line)
	log.Printf("[RUN %s] %s", run.AccountID, line)
}

func (o *Orchestrator) begin(run *types.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	run.Status = types.StatusRunning
	run.StartedAt = &now
}

// advance updates stage, progress and message together.
func (o *Orchestrator) advance(run *types.Run, stage types.Stage, progress int, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run.Stage = stage
	run.Message = message
	if progress > run.Progress {
		run.Progress = progress
	}
}

// setProgress raises the progress bar; it never moves backwards.
func (o *Orchestrator) setProgress(run *types.Run, progress int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if progress > run.Progress {
		run.Progress = progress
	}
}

func (o *Orchestrator) complete(run *types.Run) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	run.Status = types.StatusCompleted
	run.Progress = 100
	run.Message = "completed"
	run.FinishedAt = &now
}

// fail marks the run failed; the stage stays where it died.
func (o *Orchestrator) fail(run *types.Run, errMsg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	now := time.Now()
	run.Status = types.StatusFailed
	run.Error = errMsg
	run.Message = "failed"
	run.FinishedAt = &now
}
