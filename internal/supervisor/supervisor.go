// Package supervisor keeps one running shop bot per registered credential.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"cardshop/internal/domain"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Instance is a launched bot. Run blocks until Stop is called.
type Instance interface {
	Name() string
	Run()
	Stop()
}

// Launcher builds a bot for a credential. A bad credential or missing record is an error.
type Launcher interface {
	Launch(ctx context.Context, cred domain.Credential) (Instance, error)
}

// Discoverer lists every registered credential
type Discoverer interface {
	Discover() ([]domain.Credential, error)
}

// LaunchError reports a bot that could not be started
type LaunchError struct {
	Credential domain.Credential
	Err        error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch bot %s: %s", e.Credential, e.Credential.Redact(e.Err.Error()))
}

func (e *LaunchError) Unwrap() []error {
	return []error{domain.ErrLaunch, e.Err}
}

// Report is the outcome of one launch attempt
type Report struct {
	Credential domain.Credential
	Name       string
	Err        error
	At         time.Time
}

type child struct {
	instance Instance
	done     chan struct{}
}

// Supervisor launches, tracks and stops shop bots
type Supervisor struct {
	launcher   Launcher
	discoverer Discoverer
	logger     *zap.Logger
	reports    chan Report

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	running   map[domain.Credential]*child
	launching map[domain.Credential][]chan error
	closed    bool
	wg        sync.WaitGroup
}

// New creates a supervisor
func New(launcher Launcher, discoverer Discoverer, logger *zap.Logger) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		launcher:   launcher,
		discoverer: discoverer,
		logger:     logger,
		reports:    make(chan Report, 64),
		ctx:        ctx,
		cancel:     cancel,
		running:    make(map[domain.Credential]*child),
		launching:  make(map[domain.Credential][]chan error),
	}
}

// Reports delivers launch outcomes. Reports are dropped when nobody keeps up.
func (s *Supervisor) Reports() <-chan Report {
	return s.reports
}

// Add launches the bot for cred in the background. Adding a running or launching
// credential does not start a second bot; the returned channel resolves once with
// the launch result (nil when the bot is already running).
func (s *Supervisor) Add(cred domain.Credential) <-chan error {
	result := make(chan error, 1)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		result <- &LaunchError{Credential: cred, Err: errors.New("supervisor is shut down")}
		close(result)
		return result
	}
	if _, ok := s.running[cred]; ok {
		s.mu.Unlock()
		result <- nil
		close(result)
		return result
	}
	if waiters, ok := s.launching[cred]; ok {
		s.launching[cred] = append(waiters, result)
		s.mu.Unlock()
		return result
	}
	s.launching[cred] = []chan error{result}
	s.wg.Add(1)
	s.mu.Unlock()

	go s.launch(cred)
	return result
}

func (s *Supervisor) launch(cred domain.Credential) {
	defer s.wg.Done()

	instance, err := s.safeLaunch(cred)
	if err != nil {
		err = &LaunchError{Credential: cred, Err: err}
	}

	s.mu.Lock()
	waiters := s.launching[cred]
	delete(s.launching, cred)

	var c *child
	if err == nil {
		if s.closed {
			instance.Stop()
			err = &LaunchError{Credential: cred, Err: errors.New("supervisor is shut down")}
		} else {
			c = &child{instance: instance, done: make(chan struct{})}
			s.running[cred] = c
			s.wg.Add(1)
		}
	}
	s.mu.Unlock()

	if c != nil {
		go s.run(cred, c)
		s.logger.Info("Shop bot started",
			zap.Stringer("credential", cred),
			zap.String("bot", instance.Name()),
		)
	} else {
		s.logger.Error("Shop bot failed to start", zap.Stringer("credential", cred), zap.Error(err))
	}

	report := Report{Credential: cred, Err: err, At: time.Now()}
	if instance != nil && err == nil {
		report.Name = instance.Name()
	}
	s.publish(report)

	for _, w := range waiters {
		w <- err
		close(w)
	}
}

func (s *Supervisor) safeLaunch(cred domain.Credential) (instance Instance, err error) {
	defer func() {
		if r := recover(); r != nil {
			instance, err = nil, fmt.Errorf("panic during launch: %v", r)
		}
	}()
	return s.launcher.Launch(s.ctx, cred)
}

func (s *Supervisor) run(cred domain.Credential, c *child) {
	defer s.wg.Done()
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Shop bot crashed", zap.Stringer("credential", cred), zap.Any("panic", r))
		}
	}()
	defer func() {
		s.mu.Lock()
		if s.running[cred] == c {
			delete(s.running, cred)
		}
		s.mu.Unlock()
	}()

	c.instance.Run()
	s.logger.Info("Shop bot stopped", zap.Stringer("credential", cred))
}

func (s *Supervisor) publish(r Report) {
	select {
	case s.reports <- r:
	default:
		s.logger.Warn("Launch report dropped", zap.Stringer("credential", r.Credential))
	}
}

// Start discovers every registered credential and launches them concurrently.
// It waits for all launches and returns how many succeeded along with the failures.
func (s *Supervisor) Start(ctx context.Context) (int, error) {
	creds, err := s.discoverer.Discover()
	if err != nil {
		return 0, fmt.Errorf("discover credentials: %w", err)
	}

	s.logger.Info("Discovered registered shop bots", zap.Int("count", len(creds)))

	results := make([]<-chan error, len(creds))
	for i, cred := range creds {
		results[i] = s.Add(cred)
	}

	launched := 0
	var errs error
	for _, ch := range results {
		select {
		case err := <-ch:
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			launched++
		case <-ctx.Done():
			return launched, multierr.Append(errs, ctx.Err())
		}
	}

	return launched, errs
}

// Run starts every registered bot, logs launch reports until ctx is done, then shuts down
func (s *Supervisor) Run(ctx context.Context) error {
	launched, err := s.Start(ctx)
	if err != nil {
		for _, e := range multierr.Errors(err) {
			s.logger.Warn("Registered bot not running", zap.Error(e))
		}
	}
	s.logger.Info("Supervisor ready", zap.Int("launched", launched))

	<-ctx.Done()
	s.Shutdown()
	return nil
}

// Stop stops the bot for cred and waits for it to exit. It reports whether the bot was running.
func (s *Supervisor) Stop(cred domain.Credential) bool {
	s.mu.Lock()
	c, ok := s.running[cred]
	if ok {
		delete(s.running, cred)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}

	c.instance.Stop()
	<-c.done
	return true
}

// Shutdown stops every bot, abandons pending launches and waits for all goroutines
func (s *Supervisor) Shutdown() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	children := make([]*child, 0, len(s.running))
	for cred, c := range s.running {
		children = append(children, c)
		delete(s.running, cred)
	}
	s.mu.Unlock()

	s.cancel()
	for _, c := range children {
		c.instance.Stop()
	}
	s.wg.Wait()

	s.logger.Info("Supervisor stopped", zap.Int("bots", len(children)))
}

// Running lists the credentials of the bots currently running
func (s *Supervisor) Running() []domain.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := make([]domain.Credential, 0, len(s.running))
	for cred := range s.running {
		creds = append(creds, cred)
	}
	return creds
}
