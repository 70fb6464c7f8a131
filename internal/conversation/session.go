package conversation

import (
	"sync"
	"time"
)

// Session is the in-progress state of one user in one flow
type Session struct {
	Key       int64
	StartedAt time.Time

	mu      sync.Mutex
	pos     int
	inLoop  bool
	values  map[string]any
	rounds  []map[string]any
	touched time.Time
}

func newSession(key int64, now time.Time) *Session {
	return &Session{
		Key:       key,
		StartedAt: now,
		values:    make(map[string]any),
		touched:   now,
	}
}

// Put stores a value. Inside a loop it lands in the current round.
func (s *Session) Put(key string, v any) {
	if r := s.currentRound(); r != nil {
		r[key] = v
		return
	}
	s.values[key] = v
}

// Get looks a value up in the current round first, then in the flow-wide values
func (s *Session) Get(key string) (any, bool) {
	if r := s.currentRound(); r != nil {
		if v, ok := r[key]; ok {
			return v, true
		}
	}
	v, ok := s.values[key]
	return v, ok
}

// Text returns a stored string or ""
func (s *Session) Text(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Float returns a stored float64 or 0
func (s *Session) Float(key string) float64 {
	v, _ := s.Get(key)
	f, _ := v.(float64)
	return f
}

// Int64 returns a stored int64 or 0
func (s *Session) Int64(key string) int64 {
	v, _ := s.Get(key)
	i, _ := v.(int64)
	return i
}

// Round returns the 1-based number of the loop round in progress, or 0 outside a loop
func (s *Session) Round() int {
	return len(s.rounds)
}

// Rounds returns the values captured in each loop round
func (s *Session) Rounds() []map[string]any {
	out := make([]map[string]any, len(s.rounds))
	copy(out, s.rounds)
	return out
}

// Position returns the index of the step the session is waiting on
func (s *Session) Position() int {
	return s.pos
}

func (s *Session) currentRound() map[string]any {
	if s.inLoop && len(s.rounds) > 0 {
		return s.rounds[len(s.rounds)-1]
	}
	return nil
}

// position is the part of a session that moves between steps
type position struct {
	pos    int
	inLoop bool
	rounds []map[string]any
}

func (s *Session) save() position {
	return position{pos: s.pos, inLoop: s.inLoop, rounds: s.rounds}
}

func (s *Session) restore(p position) {
	s.pos, s.inLoop, s.rounds = p.pos, p.inLoop, p.rounds
}
