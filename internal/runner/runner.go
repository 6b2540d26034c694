package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/d5/tengo/v2"
	"github.com/d5/tengo/v2/stdlib"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/nfrund/rerun/internal/config"
	"github.com/nfrund/rerun/internal/output"
	"github.com/nfrund/rerun/internal/rewrite"
	"github.com/nfrund/rerun/internal/session"
)

// Dependencies holds all the services a Runner requires to operate.
type Dependencies struct {
	Session *session.Session
	Sink    output.Sink
	Config  *config.Config

	// Fs is the filesystem the script is read from. Defaults to the OS
	// filesystem; tests supply an in-memory one.
	Fs afero.Fs
}

// Runner supervises the execution of one script. It owns the execution
// state machine, spawns at most one worker goroutine at a time, and lets
// controllers stop, pause, or rerun the script cooperatively while it is
// in flight.
//
// All Request* methods are non-blocking signal-and-return and may be
// called from any goroutine. The worker reacts at its next checkpoint, so
// the latency between a request and its effect is bounded by the time
// between two consecutive checkpoints in the running script.
type Runner struct {
	session *session.Session
	sink    output.Sink
	cfg     *config.Config
	fs      afero.Fs

	mu              sync.Mutex
	state           State
	spawning        bool // a worker was spawned but has not reached RUNNING yet
	changeRequested bool // a controller asked for stop/rerun/pause since the last checkpoint
	paused          bool // the worker must block in the pause-wait loop
	signal          interrupt

	stateHooks   []func(State)
	ignoredHooks []func()

	watcher *FileWatcher
	wg      sync.WaitGroup
}

// New creates a Runner for the given session. It does not start the
// script; call Start or RequestRerun to spawn the first worker.
func New(deps Dependencies) *Runner {
	fs := deps.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	return &Runner{
		session: deps.Session,
		sink:    deps.Sink,
		cfg:     deps.Config,
		fs:      fs,
		state:   StateInitial,
	}
}

// Init starts the file watcher for the session's script. The watcher runs
// until ctx is cancelled or Close is called. A Runner without a watcher is
// still fully functional; it just never reacts to file changes.
func (r *Runner) Init(ctx context.Context) error {
	watcher, err := NewFileWatcher(r.session.ScriptPath, r.maybeHandleFileChanged)
	if err != nil {
		return err
	}

	r.watcher = watcher
	watcher.Start(ctx)

	slog.Debug("Runner initialized", "script", r.session.ScriptPath,
		"run_on_save", r.cfg.RunOnSave, "auto_output", r.cfg.AutoOutput,
		"install_tracer", r.cfg.InstallTracer)
	return nil
}

// Start runs the script with the session's current arguments.
func (r *Runner) Start() {
	r.RequestRerun(r.session.Argv())
}

// Wait blocks until the active worker exits. It does not request a stop;
// callers that want one combine RequestStop or Close with Wait.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Close stops the file watcher, requests a cooperative stop, and waits for
// the worker to exit.
func (r *Runner) Close() error {
	if r.watcher != nil {
		if err := r.watcher.Close(); err != nil {
			slog.Error("Failed to close file watcher", "error", err)
		}
	}

	r.RequestStop()
	r.wg.Wait()
	return nil
}

// OnStateChanged registers an observer invoked synchronously, on the
// goroutine that performed the transition, every time the state changes.
// Hooks fire outside the runner's lock, so when transitions are made on
// different goroutines their delivery order is not guaranteed; only
// transitions made by the worker itself arrive in order.
func (r *Runner) OnStateChanged(hook func(State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stateHooks = append(r.stateHooks, hook)
}

// OnFileChangeIgnored registers an observer invoked when the script file
// changed but run-on-save is disabled, so a UI can prompt the user instead
// of rerunning.
func (r *Runner) OnFileChangeIgnored(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ignoredHooks = append(r.ignoredHooks, hook)
}

// State returns the current execution state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// IsRunning reports whether the script is actively executing.
func (r *Runner) IsRunning() bool {
	return r.State() == StateRunning
}

// IsFullyStopped reports whether no worker is active.
func (r *Runner) IsFullyStopped() bool {
	return r.State().FullyStopped()
}

// RequestRerun replaces the session's argument vector and reruns the
// script: immediately when fully stopped, otherwise cooperatively at the
// running worker's next checkpoint. Repeated calls while a rerun is
// already pending only overwrite the arguments.
func (r *Runner) RequestRerun(argv []string) {
	r.session.SetArgv(argv)

	r.mu.Lock()
	if r.fullyStoppedLocked() {
		r.spawnLocked()
		r.mu.Unlock()
		return
	}
	notify := r.transitionLocked(StateRerunRequested)
	r.paused = false
	r.changeRequested = true
	r.mu.Unlock()
	notify()
}

// RequestStop asks a running worker to stop at its next checkpoint. It is
// a no-op when the script is already fully stopped.
func (r *Runner) RequestStop() {
	r.mu.Lock()
	if r.fullyStoppedLocked() {
		r.mu.Unlock()
		return
	}
	notify := r.transitionLocked(StateStopRequested)
	r.paused = false
	r.changeRequested = true
	r.mu.Unlock()
	notify()
}

// RequestPauseToggle resumes a paused worker, or asks a running one to
// pause at its next checkpoint. It is a no-op when fully stopped.
func (r *Runner) RequestPauseToggle() {
	r.mu.Lock()
	if r.state == StatePaused {
		// The worker is already blocked polling the pause flag, so
		// clearing it is all a resume takes; no signal needed.
		notify := r.transitionLocked(StateRunning)
		r.paused = false
		r.mu.Unlock()
		notify()
		return
	}

	if r.fullyStoppedLocked() {
		r.mu.Unlock()
		return
	}
	notify := r.transitionLocked(StatePauseRequested)
	r.changeRequested = true
	r.mu.Unlock()
	notify()
}

// fullyStoppedLocked reports whether a new worker may be spawned. A
// pending spawn counts as active, so two rapid rerun requests (a save can
// produce more than one file event) cannot race a second worker into
// existence before the first reaches RUNNING.
func (r *Runner) fullyStoppedLocked() bool {
	return r.state.FullyStopped() && !r.spawning
}

// transitionLocked moves the state machine to next and returns the
// notification to fire once the lock is released. Repeated transitions to
// the current state produce no notification.
func (r *Runner) transitionLocked(next State) func() {
	if r.state == next {
		return func() {}
	}

	prev := r.state
	r.state = next
	slog.Debug("Runner state changed", "from", prev, "to", next)

	hooks := make([]func(State), len(r.stateHooks))
	copy(hooks, r.stateHooks)
	return func() {
		for _, hook := range hooks {
			hook(next)
		}
	}
}

// spawnLocked starts the worker goroutine. The caller must hold the lock
// and have verified the runner is fully stopped.
func (r *Runner) spawnLocked() {
	slog.Debug("Spawning script worker", "script", r.session.ScriptPath)

	r.spawning = true
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for r.runOnce() {
			// A rerun is a continuation of the same logical run inside
			// this worker, never a second concurrent one.
		}
	}()
}

// runOnce executes one full pass of the script and reports whether the
// pass was interrupted for a rerun, in which case the worker loops into
// the next pass with the spawn guard held across the gap.
func (r *Runner) runOnce() bool {
	runID := uuid.NewString()

	r.mu.Lock()
	wasSpawning := r.spawning
	r.spawning = false
	if !wasSpawning && !r.state.FullyStopped() {
		// One-worker invariant violated; this is a bug in the controller
		// logic, not a recoverable condition.
		r.mu.Unlock()
		panic("runner: worker spawned while script is already running")
	}

	switch r.state {
	case StateStopRequested:
		// A stop won the race against the spawn; never start the pass.
		r.changeRequested = false
		notify := r.transitionLocked(StateStopped)
		r.mu.Unlock()
		notify()
		return false
	case StatePauseRequested:
		// A pause won the race. Keep the request and the state so the
		// first checkpoint pauses; the resume transitions to RUNNING.
		r.signal = interruptNone
		r.mu.Unlock()
	default:
		// A rerun request is satisfied by this fresh pass.
		r.changeRequested = false
		r.signal = interruptNone
		notify := r.transitionLocked(StateRunning)
		r.mu.Unlock()
		notify()
	}

	start := time.Now()
	err := r.executePass(runID)

	r.mu.Lock()
	sig := r.signal
	r.signal = interruptNone
	r.mu.Unlock()

	switch {
	case sig == interruptRerun || errors.Is(err, ErrRerun):
		slog.Debug("Script pass interrupted for rerun", "run_id", runID)
		r.mu.Lock()
		// The pass stopped; the restart follows immediately. Re-arming
		// the spawn guard keeps the gap between the two passes closed to
		// concurrent spawns, so controller requests landing here take
		// the cooperative path.
		r.spawning = true
		notify := r.transitionLocked(StateStopped)
		r.mu.Unlock()
		notify()
		return true
	case sig == interruptStop || errors.Is(err, ErrStop):
		slog.Debug("Script pass stopped", "run_id", runID)
	case err != nil:
		// Script failures are rendered to the sink, not crashes of the
		// supervisor.
		slog.Warn("Script failed", "run_id", runID,
			"script", r.session.ScriptPath, "error", err)
		r.sink.Error(err)
	default:
		slog.Debug("Script completed", "run_id", runID,
			"duration", time.Since(start))
	}

	r.mu.Lock()
	notify := r.transitionLocked(StateStopped)
	r.mu.Unlock()
	notify()

	return false
}

// executePass reads, prepares, compiles, and runs the script body once.
func (r *Runner) executePass(runID string) error {
	src, err := afero.ReadFile(r.fs, r.session.ScriptPath)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}

	body := string(src)
	if r.cfg.AutoOutput {
		if body, err = rewrite.Source(body); err != nil {
			return err
		}
	}
	if r.cfg.InstallTracer {
		if body, err = rewrite.Instrument(body); err != nil {
			return err
		}
	}

	// A brand new script per pass: nothing leaks between runs or from
	// the supervisor's own scope.
	script := tengo.NewScript([]byte(body))
	script.SetImports(r.moduleMap())

	argv := r.session.Argv()
	values := make([]interface{}, len(argv))
	for i, arg := range argv {
		values[i] = arg
	}
	if err := script.Add("argv", values); err != nil {
		return fmt.Errorf("failed to set argv: %w", err)
	}

	// The checkpoint is always callable so pre-instrumented scripts stay
	// interruptible even when the tracer pass is disabled.
	if err := script.Add(rewrite.CheckpointIdent, &tengo.UserFunction{
		Name:  rewrite.CheckpointIdent,
		Value: r.checkpointBuiltin,
	}); err != nil {
		return fmt.Errorf("failed to install checkpoint: %w", err)
	}

	compiled, err := script.Compile()
	if err != nil {
		return fmt.Errorf("malformed script: %w", err)
	}

	slog.Debug("Executing script", "run_id", runID,
		"script", r.session.ScriptPath, "argv", argv)
	return compiled.Run()
}

// moduleMap builds the import map a pass may use: a safe subset of the
// Tengo standard library plus the output sink module.
func (r *Runner) moduleMap() *tengo.ModuleMap {
	modules := stdlib.GetModuleMap("fmt", "math", "text", "times", "rand", "json")
	modules.AddBuiltinModule(output.ModuleName, output.Module(r.sink))
	return modules
}

// checkpointBuiltin adapts checkpoint to Tengo's calling convention. A
// returned control signal aborts the VM and unwinds the pass.
func (r *Runner) checkpointBuiltin(args ...tengo.Object) (tengo.Object, error) {
	if err := r.checkpoint(); err != nil {
		return nil, err
	}
	return tengo.UndefinedValue, nil
}

// checkpoint is polled from inside the script between statements. It
// consumes a pending control request: stop and rerun abort the pass by
// returning the matching control signal, pause blocks here until resumed.
func (r *Runner) checkpoint() error {
	r.mu.Lock()
	if !r.changeRequested {
		r.mu.Unlock()
		return nil
	}
	r.changeRequested = false

	switch r.state {
	case StateStopRequested:
		r.signal = interruptStop
		r.mu.Unlock()
		return ErrStop

	case StateRerunRequested:
		r.signal = interruptRerun
		r.mu.Unlock()
		return ErrRerun

	case StatePauseRequested:
		r.paused = true
		notify := r.transitionLocked(StatePaused)
		r.mu.Unlock()
		notify()
		r.waitWhilePaused()
		return nil

	default:
		r.mu.Unlock()
		return nil
	}
}

// waitWhilePaused blocks the worker until the pause flag is cleared by a
// resume, stop, or rerun request. Coarse polling is fine here; pause is
// not a latency-critical wait.
func (r *Runner) waitWhilePaused() {
	for {
		r.mu.Lock()
		paused := r.paused
		r.mu.Unlock()
		if !paused {
			return
		}
		time.Sleep(r.cfg.PauseInterval)
	}
}

// maybeHandleFileChanged is the watcher callback. A change either triggers
// a rerun with the current arguments or, when run-on-save is disabled, the
// file-change-ignored notification.
func (r *Runner) maybeHandleFileChanged() {
	if r.cfg.RunOnSave {
		r.RequestRerun(r.session.Argv())
		return
	}

	slog.Debug("Script file change ignored", "script", r.session.ScriptPath)

	r.mu.Lock()
	hooks := make([]func(), len(r.ignoredHooks))
	copy(hooks, r.ignoredHooks)
	r.mu.Unlock()
	for _, hook := range hooks {
		hook()
	}
}
