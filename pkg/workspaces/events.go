package workspaces

// Event names used for broker communication.
var (
	// Runner bootstrap events.
	BeforeBootstrapEvent = "runner:before:bootstrap"
	AfterBootstrapEvent  = "runner:after:bootstrap"
	// Workspace fork events.
	BeforeForkEvent = "workspace:before:fork"
	AfterForkEvent  = "workspace:after:fork"
	// Workspace teardown events.
	BeforeTeardownEvent = "workspace:before:teardown"
	AfterTeardownEvent  = "workspace:after:teardown"
)

type BeforeBootstrapCallback func(config *Config)
type AfterBootstrapCallback func(w *Workspace)
type BeforeForkCallback func()
type AfterForkCallback func(w *Workspace)
type BeforeTeardownCallback func(w *Workspace)
type AfterTeardownCallback func()

// BeforeBootstrap subscribes to the before bootstrap event.
func (r *Runner) BeforeBootstrap(callback BeforeBootstrapCallback) {
	r.broker.On(BeforeBootstrapEvent, callback)
}

// AfterBootstrap subscribes to the after bootstrap event. The workspace
// passed to the callback is the provisioned base environment.
func (r *Runner) AfterBootstrap(callback AfterBootstrapCallback) {
	r.broker.On(AfterBootstrapEvent, callback)
}

// BeforeFork subscribes to the before fork event.
func (r *Runner) BeforeFork(callback BeforeForkCallback) {
	r.broker.On(BeforeForkEvent, callback)
}

// AfterFork subscribes to the after fork event.
func (r *Runner) AfterFork(callback AfterForkCallback) {
	r.broker.On(AfterForkEvent, callback)
}

// BeforeTeardown subscribes to the before teardown event.
func (r *Runner) BeforeTeardown(callback BeforeTeardownCallback) {
	r.broker.On(BeforeTeardownEvent, callback)
}

// AfterTeardown subscribes to the after teardown event.
func (r *Runner) AfterTeardown(callback AfterTeardownCallback) {
	r.broker.On(AfterTeardownEvent, callback)
}

func (r *Runner) emitBeforeBootstrap(config *Config) {
	r.broker.Emit(BeforeBootstrapEvent, config)
}

func (r *Runner) emitAfterBootstrap(w *Workspace) {
	r.broker.Emit(AfterBootstrapEvent, w)
}

func (r *Runner) emitBeforeFork() {
	r.broker.Emit(BeforeForkEvent)
}

func (r *Runner) emitAfterFork(w *Workspace) {
	r.broker.Emit(AfterForkEvent, w)
}

func (r *Runner) emitBeforeTeardown(w *Workspace) {
	r.broker.Emit(BeforeTeardownEvent, w)
}

func (r *Runner) emitAfterTeardown() {
	r.broker.Emit(AfterTeardownEvent)
}
