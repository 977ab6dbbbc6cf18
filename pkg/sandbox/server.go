package sandbox

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/Edgewood-TD/workspaces-go/pkg/execution/clients"
	"github.com/cenkalti/backoff/v5"
	"github.com/chuckpreslar/emission"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// stopGracePeriod is how long Stop waits after SIGTERM before escalating to
// SIGKILL.
const stopGracePeriod = 10 * time.Second

// Server manages a single sandbox node child process: spawn, readiness
// probing, crash detection and teardown. One Server maps to one process; a
// fresh fork gets a fresh Server.
type Server struct {
	log     logrus.FieldLogger
	config  *Config
	broker  *emission.Emitter
	metrics *Metrics

	mu       sync.Mutex
	cmd      *exec.Cmd
	endpoint *Endpoint
	stopping bool

	exited  chan struct{}
	exitErr error
}

// NewServer creates a server for the given config. Metrics may be nil to
// disable instrumentation.
func NewServer(log logrus.FieldLogger, config *Config, metrics *Metrics) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	return &Server{
		log:     log.WithField("module", "workspaces/sandbox"),
		config:  config,
		broker:  emission.NewEmitter(),
		metrics: metrics,
	}
}

// Config returns the config the server was created with.
func (s *Server) Config() *Config {
	return s.config
}

// Name identifies the provider in logs.
func (s *Server) Name() string {
	return "process"
}

// Endpoint returns the endpoint of the running node, or nil before Start.
func (s *Server) Endpoint() *Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.endpoint
}

// Ready reports whether the node is running and has answered RPC.
func (s *Server) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.endpoint == nil {
		return false
	}

	select {
	case <-s.exited:
		return false
	default:
		return true
	}
}

// Start spawns the node process and blocks until it answers RPC or the
// config timeout expires. Start fails fast when the process dies during
// startup, surfacing the exit error instead of a probe timeout.
func (s *Server) Start(ctx context.Context) (*Endpoint, error) {
	s.emitBeforeStart(s.config)

	binary, err := ResolveBinary(s.config)
	if err != nil {
		return nil, err
	}

	port := s.config.Port
	if port == 0 {
		port, err = FreePort(s.config.Host)
		if err != nil {
			return nil, err
		}
	}

	args, err := buildArgs(s.config, port)
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{
		"binary": binary,
		"port":   port,
	})

	log.WithField("args", args).Debug("Spawning sandbox node")

	// Deliberately not CommandContext: the node must outlive the bootstrap
	// context, teardown happens through Stop.
	//nolint:gosec // G204: the binary is resolved from explicit test configuration.
	cmd := exec.Command(binary, args...)
	// Own process group so Stop can signal the node and any children it
	// spawns without hitting the test process.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stdout pipe")
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open stderr pipe")
	}

	if err := cmd.Start(); err != nil {
		if s.metrics != nil {
			s.metrics.IncStartFailure()
		}

		return nil, errors.Wrapf(err, "failed to start %s", binary)
	}

	started := time.Now()

	s.mu.Lock()
	s.cmd = cmd
	s.stopping = false
	s.exited = make(chan struct{})
	s.mu.Unlock()

	go s.forwardOutput(stdout, "stdout")
	go s.forwardOutput(stderr, "stderr")
	go s.waitForExit(cmd)

	rpcURL := fmt.Sprintf("http://%s:%d", s.config.Host, port)

	implementation, err := s.probe(ctx, rpcURL)
	if err != nil {
		if s.metrics != nil {
			s.metrics.IncStartFailure()
		}

		if stopErr := s.Stop(context.WithoutCancel(ctx)); stopErr != nil {
			log.WithError(stopErr).Warn("Failed to stop sandbox node after failed start")
		}

		return nil, err
	}

	if implementation != s.config.Implementation {
		log.WithFields(logrus.Fields{
			"expected": s.config.Implementation,
			"detected": implementation,
		}).Warn("Sandbox node reports a different implementation than configured")
	}

	endpoint := &Endpoint{
		RPCURL:         rpcURL,
		WSURL:          fmt.Sprintf("ws://%s:%d", s.config.Host, port),
		Implementation: implementation,
	}

	s.mu.Lock()
	s.endpoint = endpoint
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ObserveStart(time.Since(started))
	}

	log.WithFields(logrus.Fields{
		"implementation": implementation,
		"duration":       time.Since(started),
	}).Info("Sandbox node is ready")

	s.emitAfterStart(endpoint)

	return endpoint, nil
}

// Stop terminates the node process: SIGTERM to the process group, a bounded
// wait, then SIGKILL. When KeepAlive is set the process is left running and
// only the handle is dropped.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	cmd := s.cmd
	exited := s.exited
	s.stopping = true
	s.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	select {
	case <-exited:
		// Already gone.
		return nil
	default:
	}

	if s.config.KeepAlive {
		s.log.WithField("pid", cmd.Process.Pid).Info("Keep-alive set, leaving sandbox node running")

		return nil
	}

	s.log.WithField("pid", cmd.Process.Pid).Debug("Stopping sandbox node")

	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM); err != nil {
		s.log.WithError(err).Debug("Failed to signal sandbox process group, falling back to direct kill")

		if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
			return errors.Wrap(err, "failed to signal sandbox node")
		}
	}

	select {
	case <-exited:
	case <-time.After(stopGracePeriod):
		s.log.Warn("Sandbox node ignored SIGTERM, killing")

		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			s.log.WithError(err).Warn("Failed to kill sandbox process group")
		}

		<-exited
	case <-ctx.Done():
		return ctx.Err()
	}

	if s.metrics != nil {
		s.metrics.IncStopped()
	}

	s.emitStopped()

	return nil
}

// ExitError returns the process exit error, or nil while it is running or
// after a clean exit.
func (s *Server) ExitError() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.exitErr
}

// probe polls the node until it answers web3_clientVersion or the config
// timeout expires, returning the detected implementation.
func (s *Server) probe(ctx context.Context, rpcURL string) (clients.Client, error) {
	client, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return clients.ClientUnknown, errors.Wrap(err, "failed to dial sandbox node")
	}

	defer client.Close()

	operation := func() (string, error) {
		select {
		case <-s.exited:
			return "", backoff.Permanent(errors.Wrap(s.exitErr, "sandbox node exited before becoming ready"))
		default:
		}

		var version string
		if err := client.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
			return "", err
		}

		return version, nil
	}

	version, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(100*time.Millisecond)),
		backoff.WithMaxElapsedTime(s.config.Timeout),
	)
	if err != nil {
		return clients.ClientUnknown, errors.Wrap(err, "sandbox node did not become ready")
	}

	return clients.ClientFromString(version), nil
}

// forwardOutput relays a process output stream to the logger at debug level.
func (s *Server) forwardOutput(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	log := s.log.WithField("stream", stream)

	for scanner.Scan() {
		log.Debug(scanner.Text())
	}
}

// waitForExit reaps the process and records how it went.
func (s *Server) waitForExit(cmd *exec.Cmd) {
	err := cmd.Wait()

	s.mu.Lock()
	s.exitErr = err
	stopping := s.stopping
	close(s.exited)
	s.mu.Unlock()

	if stopping {
		return
	}

	s.log.WithError(err).Warn("Sandbox node exited unexpectedly")

	if s.metrics != nil {
		s.metrics.IncCrashed()
	}

	s.emitCrashed(err)
}

var _ Provider = (*Server)(nil)
