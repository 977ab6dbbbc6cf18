package sandbox

// Event names used for broker communication.
var (
	// Process lifecycle events.
	BeforeStartEvent = "sandbox:before:start"
	AfterStartEvent  = "sandbox:after:start"
	StoppedEvent     = "sandbox:stopped"
	CrashedEvent     = "sandbox:crashed"
)

type BeforeStartCallback func(config *Config)
type AfterStartCallback func(endpoint *Endpoint)
type StoppedCallback func()
type CrashedCallback func(err error)

// BeforeStart subscribes to the before start event.
func (s *Server) BeforeStart(callback BeforeStartCallback) {
	s.broker.On(BeforeStartEvent, callback)
}

// AfterStart subscribes to the after start event.
func (s *Server) AfterStart(callback AfterStartCallback) {
	s.broker.On(AfterStartEvent, callback)
}

// Stopped subscribes to the stopped event, fired on orderly shutdown.
func (s *Server) Stopped(callback StoppedCallback) {
	s.broker.On(StoppedEvent, callback)
}

// Crashed subscribes to the crashed event, fired when the process exits
// without being asked to.
func (s *Server) Crashed(callback CrashedCallback) {
	s.broker.On(CrashedEvent, callback)
}

func (s *Server) emitBeforeStart(config *Config) {
	s.broker.Emit(BeforeStartEvent, config)
}

func (s *Server) emitAfterStart(endpoint *Endpoint) {
	s.broker.Emit(AfterStartEvent, endpoint)
}

func (s *Server) emitStopped() {
	s.broker.Emit(StoppedEvent)
}

func (s *Server) emitCrashed(err error) {
	s.broker.Emit(CrashedEvent, err)
}
