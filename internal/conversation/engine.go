package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cardshop/internal/domain"

	"go.uber.org/zap"
)

// ErrNoSession is returned when input arrives for a user with no active flow
var ErrNoSession = errors.New("no active conversation")

// Status tells the caller whether the flow is still collecting input
type Status int

const (
	StatusWaiting Status = iota
	StatusCompleted
)

// Reply is the result of starting or advancing a session
type Reply struct {
	Status Status
	Prompt Prompt
}

// Engine drives sessions of one flow. Sessions belong to the engine, so two
// engines never share state even when they run the same flow.
type Engine struct {
	flow   *Flow
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewEngine creates an engine for flow
func NewEngine(flow *Flow, logger *zap.Logger) *Engine {
	if len(flow.nodes) == 0 {
		panic(fmt.Sprintf("conversation: flow %q has no steps", flow.name))
	}
	return &Engine{
		flow:     flow,
		logger:   logger.With(zap.String("flow", flow.name)),
		now:      time.Now,
		sessions: make(map[int64]*Session),
	}
}

// Flow returns the flow this engine runs
func (e *Engine) Flow() *Flow {
	return e.flow
}

// Start begins the flow for key with optional seed values. An existing session for key is discarded.
func (e *Engine) Start(ctx context.Context, key int64, values map[string]any) (Reply, error) {
	s := newSession(key, e.now())
	for k, v := range values {
		s.values[k] = v
	}
	e.enter(s, 0)

	s.mu.Lock()
	defer s.mu.Unlock()

	e.mu.Lock()
	if _, replaced := e.sessions[key]; replaced {
		e.logger.Debug("Replacing active session", zap.Int64("user_id", key))
	}
	e.sessions[key] = s
	e.mu.Unlock()

	reply, err := e.render(ctx, s, "")
	if err != nil {
		e.remove(key, s)
		return Reply{}, err
	}
	return reply, nil
}

// Advance feeds one input to the user's session
func (e *Engine) Advance(ctx context.Context, key int64, in Input) (Reply, error) {
	s := e.lookup(key)
	if s == nil {
		return Reply{}, ErrNoSession
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// cancelled or replaced while waiting for the lock
	if e.lookup(key) != s {
		return Reply{}, ErrNoSession
	}

	pos := s.pos
	cur := e.flow.nodes[pos]
	saved := s.save()

	var next int
	switch {
	case in.Kind == KindChoice && in.Data == DoneData && e.flow.canFinishLoop(s, pos):
		s.rounds = s.rounds[:len(s.rounds)-1]
		next = e.flow.loop.end

	case !cur.step.accepts(in.Kind):
		return e.render(ctx, s, expectedNotice(cur.step.Accepts))

	default:
		if err := cur.step.Handle(ctx, s, in); err != nil {
			if notice, ok := validationNotice(err); ok {
				return e.render(ctx, s, notice)
			}
			return Reply{}, err
		}
		next = e.flow.next(s, pos)
	}

	if next >= len(e.flow.nodes) {
		return e.finish(ctx, s, saved)
	}

	e.enter(s, next)

	reply, err := e.render(ctx, s, "")
	if err != nil {
		s.restore(saved)
		return Reply{}, err
	}
	return reply, nil
}

// Cancel discards the user's session; it reports whether one existed
func (e *Engine) Cancel(key int64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[key]; !ok {
		return false
	}
	delete(e.sessions, key)
	return true
}

// Active reports whether the user is inside this flow
func (e *Engine) Active(key int64) bool {
	return e.lookup(key) != nil
}

// Sweep discards sessions idle for longer than idle and returns how many were dropped
func (e *Engine) Sweep(idle time.Duration) int {
	cutoff := e.now().Add(-idle)

	e.mu.Lock()
	defer e.mu.Unlock()

	dropped := 0
	for key, s := range e.sessions {
		if s.touched.Before(cutoff) {
			delete(e.sessions, key)
			dropped++
		}
	}
	return dropped
}

// finish runs the completion action. On failure the session keeps its last step.
func (e *Engine) finish(ctx context.Context, s *Session, saved position) (Reply, error) {
	s.inLoop = false

	var prompt Prompt
	if e.flow.complete != nil {
		p, err := e.flow.complete(ctx, s)
		if err != nil {
			s.restore(saved)
			if notice, ok := validationNotice(err); ok {
				return e.render(ctx, s, notice)
			}
			return Reply{}, err
		}
		prompt = p
	}

	e.remove(s.Key, s)
	return Reply{Status: StatusCompleted, Prompt: prompt}, nil
}

func (e *Engine) enter(s *Session, pos int) {
	s.pos = pos
	s.inLoop = e.flow.nodes[pos].inLoop
	if e.flow.loop != nil && pos == e.flow.loop.start {
		s.rounds = append(s.rounds, make(map[string]any))
	}
}

func (e *Engine) render(ctx context.Context, s *Session, notice string) (Reply, error) {
	p, err := e.flow.nodes[s.pos].step.prompt(ctx, s)
	if err != nil {
		return Reply{}, err
	}
	p.Notice = notice
	if e.flow.canFinishLoop(s, s.pos) {
		p.Choices = append(p.Choices, Choice{Label: "✅ Done", Data: DoneData})
	}
	return Reply{Status: StatusWaiting, Prompt: p}, nil
}

func (e *Engine) lookup(key int64) *Session {
	e.mu.Lock()
	defer e.mu.Unlock()

	s, ok := e.sessions[key]
	if !ok {
		return nil
	}
	s.touched = e.now()
	return s
}

func (e *Engine) remove(key int64, s *Session) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sessions[key] == s {
		delete(e.sessions, key)
	}
}

func validationNotice(err error) (string, bool) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason, true
	}
	if errors.Is(err, domain.ErrValidation) {
		return err.Error(), true
	}
	return "", false
}

func expectedNotice(kinds []Kind) string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		switch k {
		case KindPhoto:
			names = append(names, "a photo")
		case KindContact:
			names = append(names, "your contact")
		case KindChoice:
			names = append(names, "one of the buttons")
		default:
			names = append(names, "a text message")
		}
	}
	return "Please send " + strings.Join(names, " or ") + "."
}
