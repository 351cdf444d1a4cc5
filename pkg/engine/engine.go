// Package engine assembles the assistant: it wires the watcher, the
// dispatcher, the call session machine, the notification bridge, the
// policy-gated executor, and the collaborator clients into one runtime,
// and owns the startup and graceful-shutdown sequence.
//
// The engine is inert until Run is called. Only initialization failures
// (an unreachable language model, a dead listener) are fatal; after
// startup every fault is absorbed by the component it happened in.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"otto/pkg/action"
	"otto/pkg/actuator"
	"otto/pkg/bridge"
	"otto/pkg/config"
	"otto/pkg/deviceprofile"
	"otto/pkg/eventlog"
	"otto/pkg/llm"
	"otto/pkg/memory"
	"otto/pkg/operator"
	"otto/pkg/policy"
	"otto/pkg/protocol"
	"otto/pkg/reason"
	"otto/pkg/safety"
	"otto/pkg/session"
	"otto/pkg/watch"
)

// drainTimeout bounds the wait for in-flight handlers during shutdown.
const drainTimeout = 5 * time.Second

// StepLogger receives startup progress lines. Satisfied by the CLI's
// startup logger; nil disables progress output.
type StepLogger interface {
	Step(msg string)
}

// SpinnerLogger is the optional StepLogger extension for startup phases
// slow enough to animate. The returned function finishes the line with
// a success or failure verdict.
type SpinnerLogger interface {
	StartSpinner(msg string) func(ok bool)
}

// Options wires an Engine. Config, StateDB, and MemoryDB are mandatory;
// every collaborator seam left nil gets its production default.
type Options struct {
	Config  config.Config
	Profile deviceprofile.Profile
	Version string

	StateDB  *sql.DB // event log
	MemoryDB *sql.DB // long-lived memory

	HeartbeatPath string // empty disables the heartbeat
	StopPath      string // empty disables the stop-file watch

	// Collaborator seams, defaulted when nil.
	Runner       actuator.CommandRunner
	Spawner      llm.Spawner
	Notifier     operator.Notifier
	CallSource   watch.CallSource
	Notification watch.NotificationSource
	Calendar     watch.CalendarSource

	Log StepLogger
}

// Engine is the assembled runtime.
type Engine struct {
	cfg     config.Config
	profile deviceprofile.Profile
	version string
	log     StepLogger

	recorder *eventlog.Recorder
	mem      *memory.Store
	policy   *policy.Engine
	registry *action.Registry
	exec     *action.Executor

	llmClient *llm.Client
	llmServer *llm.Server

	queue      *watch.Queue
	dispatcher *watch.Dispatcher
	watcher    *watch.Watcher
	tracker    *session.Tracker
	responder  *reason.Responder
	notifier   operator.Notifier

	console       *operator.Server
	heartbeatPath string
	stopPath      string

	mu      sync.Mutex
	state   string // starting | running | stopped
	cancel  context.CancelFunc
	nowFunc func() time.Time
}

// New builds an Engine and validates everything that can fail early:
// config defaults, policy construction, and the tool catalog binding.
// No I/O happens here beyond reading the injected handles.
func New(opts Options) (*Engine, error) {
	if opts.StateDB == nil || opts.MemoryDB == nil {
		return nil, fmt.Errorf("new engine: nil database handle")
	}
	cfg := config.Resolve(opts.Config)

	e := &Engine{
		cfg:           cfg,
		profile:       opts.Profile,
		version:       opts.Version,
		log:           opts.Log,
		heartbeatPath: opts.HeartbeatPath,
		stopPath:      opts.StopPath,
		state:         "starting",
		nowFunc:       time.Now,
	}

	e.recorder = eventlog.NewRecorder(opts.StateDB)
	e.mem = memory.NewStore(opts.MemoryDB)
	e.policy = policy.New(cfg.Policy.Deny)

	runner := opts.Runner
	if runner == nil {
		runner = &actuator.ExecCommandRunner{}
	}

	controller := actuator.NewController(runner, opts.Profile.Screen)
	e.registry = action.NewRegistry()
	if err := actuator.RegisterTools(e.registry, controller, opts.Profile); err != nil {
		return nil, fmt.Errorf("bind tools: %w", err)
	}

	var err error
	e.exec, err = action.NewExecutor(action.ExecutorConfig{
		Policy:  e.policy,
		Reg:     e.registry,
		Mem:     e.mem,
		Events:  e.recorder,
		Timeout: cfg.ActionTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("new engine: %w", err)
	}

	e.llmClient = llm.NewClient(cfg.LLMBaseURL(), cfg.LLMTimeout())
	spawner := opts.Spawner
	if spawner == nil {
		spawner = llm.ExecSpawner{}
	}
	e.llmServer = llm.NewServer(llm.ServerConfig{
		Bin:       cfg.LLM.ServerBin,
		ModelPath: cfg.LLM.ModelPath,
		Host:      cfg.LLM.Host,
		Port:      cfg.LLM.Port,
	}, spawner, e.llmClient)

	e.notifier = opts.Notifier
	if e.notifier == nil {
		if cfg.Frontend.WebhookURL != "" {
			e.notifier = operator.NewWebhookNotifier(cfg.Frontend.WebhookURL, cfg.Frontend.Token)
		} else {
			e.notifier = operator.NewLogNotifier(e.recorder)
		}
	}

	planner := reason.NewLLMPlanner(cfg.Assistant.Name, e.llmClient, e.mem)
	e.responder = reason.NewResponder(planner, e.exec)

	e.tracker = session.NewTracker(cfg.AutoAnswerDelay())
	e.queue = watch.NewQueue(cfg.Watcher.QueueSize)
	e.dispatcher = watch.NewDispatcher(watch.DispatcherConfig{
		MaxInflight: cfg.Watcher.MaxInflightHandlers,
	}, e.queue, e.recorder)

	callSource := opts.CallSource
	notifSource := opts.Notification
	calSource := opts.Calendar
	if callSource == nil && opts.Profile.Has(deviceprofile.FeatureTelephony) {
		callSource = actuator.NewTelephonySource(runner)
	}
	if notifSource == nil && opts.Profile.Has(deviceprofile.FeatureTermuxAPI) {
		notifSource = actuator.NewNotificationSource(runner)
	}
	if calSource == nil && opts.Profile.Has(deviceprofile.FeatureTermuxAPI) {
		calSource = actuator.NewCalendarSource(runner)
	}
	e.watcher = watch.NewWatcher(watch.WatcherConfig{
		CallInterval:         cfg.CallInterval(),
		NotificationInterval: cfg.NotificationInterval(),
		CalendarInterval:     cfg.CalendarInterval(),
		WarningWindow:        cfg.CalendarWarningWindow(),
		UrgentWindow:         cfg.CalendarUrgentWindow(),
	}, e.queue, callSource, notifSource, calSource, e.tracker)

	callHandler := session.NewHandler(session.HandlerConfig{
		AssistantName:  cfg.Assistant.Name,
		OwnerName:      cfg.Assistant.Owner,
		WorkHoursStart: cfg.Call.WorkHoursStart,
		WorkHoursEnd:   cfg.Call.WorkHoursEnd,
	}, e.tracker, e.llmClient, e.exec, e.mem, e.notifier, e.recorder)
	callHandler.Register(e.dispatcher)
	if !cfg.Call.AutoAnswerEnabled {
		// Without standing approval the trigger must never reach the
		// answer decision; ended/utterance handling still applies.
		e.dispatcher.Unregister(protocol.KindCallAutoAnswer)
	}

	bridge.New(planner, e.exec, e.notifier).Register(e.dispatcher)

	e.console = operator.NewServer(operator.ServerConfig{
		Listen: cfg.Frontend.Listen,
		Token:  cfg.Frontend.Token,
	}, e)

	return e, nil
}

// Run starts every loop and blocks until shutdown is requested through
// ctx, the stop file, the console, or a fatal startup error.
func (e *Engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	// The language model is the one collaborator the assistant cannot
	// work without; failing to reach it is an initialization failure.
	finish := e.spin("language model online")
	err := e.llmServer.Start(runCtx)
	finish(err == nil)
	if err != nil {
		return fmt.Errorf("start llm: %w", err)
	}

	if err := e.recorder.EnsureSchema(runCtx); err != nil {
		return fmt.Errorf("event log schema: %w", err)
	}
	if err := e.mem.EnsureSchema(runCtx); err != nil {
		return fmt.Errorf("memory schema: %w", err)
	}
	e.step("state stores ready")

	e.step(fmt.Sprintf("%d tools bound for %s %s",
		len(e.registry.BoundNames()), e.profile.Manufacturer, e.profile.Model))

	serveErr, err := e.console.Start()
	if err != nil {
		return fmt.Errorf("start console: %w", err)
	}
	e.step("operator console listening on " + e.cfg.Frontend.Listen)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.watcher.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		e.dispatcher.Run(runCtx)
	}()

	if e.heartbeatPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			safety.NewHeartbeat(e.heartbeatPath, 0).Run(runCtx)
		}()
	}
	if e.stopPath != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			safety.NewStopWatch(e.stopPath, 0).Run(runCtx, e.RequestShutdown)
		}()
	}

	e.setState("running")
	e.step("watcher active")
	_ = e.recorder.RecordNote(runCtx, protocol.KindEngineStarted, "engine", e.version)

	var fatal error
	select {
	case <-runCtx.Done():
	case err, ok := <-serveErr:
		if ok && err != nil {
			fatal = fmt.Errorf("operator console: %w", err)
		}
	}

	cancel()
	wg.Wait()
	e.shutdown()

	if fatal != nil {
		return fatal
	}
	return nil
}

// shutdown runs the teardown sequence: drain handlers, close the console,
// stop the model server, and leave a final event-log row.
func (e *Engine) shutdown() {
	e.setState("stopped")

	if !e.dispatcher.Drain(drainTimeout) {
		_ = e.recorder.RecordNote(context.Background(), protocol.KindHandlerFault, "engine",
			fmt.Sprintf("handlers still in flight after %s drain", drainTimeout))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = e.console.Shutdown(shutdownCtx)

	_ = e.llmServer.Stop()
	_ = e.recorder.RecordNote(context.Background(), protocol.KindEngineStopped, "engine", e.version)
	e.step("engine stopped")
}

// RequestShutdown asks the run loop to wind down. Safe from any goroutine
// and idempotent.
func (e *Engine) RequestShutdown() {
	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// HandleUserMessage routes one operator message through reasoning. The
// message is also recorded as a user_message observability event.
func (e *Engine) HandleUserMessage(ctx context.Context, text string) (string, error) {
	_ = e.recorder.Record(ctx, protocol.NewEvent(protocol.KindUserMessage, "operator",
		map[string]any{"text": text}, e.nowFunc(), 0.5))
	return e.responder.HandleUserRequest(ctx, text)
}

// Status reports the live snapshot the console and CLI expose.
func (e *Engine) Status(ctx context.Context) operator.Status {
	brain := "offline"
	if e.llmClient.Healthy(ctx) {
		brain = "online"
	}

	watcherState := "stopped"
	if e.getState() == "running" {
		watcherState = "active"
	}

	counts := make(map[string]int)
	for kind, n := range e.dispatcher.Counts() {
		counts[string(kind)] = n
	}

	return operator.Status{
		Brain:          brain,
		Watcher:        watcherState,
		ToolCount:      len(e.registry.BoundNames()),
		EventCounts:    counts,
		ActiveSessions: e.tracker.Len(),
		Version:        e.version,
	}
}

// Capabilities lists each catalog tool with its risk class and whether
// the device profile let it bind.
func (e *Engine) Capabilities() operator.Capabilities {
	tools := make([]operator.ToolInfo, 0, len(action.Names()))
	for _, name := range action.Names() {
		tools = append(tools, operator.ToolInfo{
			Name:  name,
			Risk:  e.policy.RiskOf(name).String(),
			Bound: e.registry.Bound(name),
		})
	}
	return operator.Capabilities{
		Tools:       tools,
		Limitations: e.profile.Limitations,
		AutoAnswer:  e.cfg.Call.AutoAnswerEnabled,
	}
}

func (e *Engine) step(msg string) {
	if e.log != nil {
		e.log.Step(msg)
	}
}

// spin animates msg through the logger's spinner when it has one; a
// plain StepLogger just gets the completed line on success.
func (e *Engine) spin(msg string) func(ok bool) {
	if sl, ok := e.log.(SpinnerLogger); ok {
		return sl.StartSpinner(msg)
	}
	return func(ok bool) {
		if ok {
			e.step(msg)
		}
	}
}

func (e *Engine) setState(s string) {
	e.mu.Lock()
	e.state = s
	e.mu.Unlock()
}

func (e *Engine) getState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
