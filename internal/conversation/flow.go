// Package conversation runs multi-step chat flows. A Flow describes the steps,
// an Engine keeps one Session per chat user and walks it through the flow.
package conversation

import (
	"context"
	"fmt"
)

// Kind is the type of input a user sends
type Kind int

const (
	KindText Kind = iota + 1
	KindPhoto
	KindContact
	KindChoice
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindPhoto:
		return "photo"
	case KindContact:
		return "contact"
	case KindChoice:
		return "choice"
	default:
		return "unknown"
	}
}

// DoneData is the choice data that ends a repeat loop early
const DoneData = "conv_done"

// Input is one user message, normalized away from the transport
type Input struct {
	Kind   Kind
	Text   string
	FileID string
	Phone  string
	Data   string
}

// Choice is a selectable option rendered as a button
type Choice struct {
	Label string
	Data  string
}

// Prompt is what the bot sends while waiting for the next input
type Prompt struct {
	Text           string
	Notice         string
	Choices        []Choice
	RequestContact bool
	// ImagePath or Image attach a photo to the prompt
	ImagePath string
	Image     []byte
}

// Step collects one input.
// Handle validates the input and stores it on the session; returning a
// domain.ValidationError keeps the user on this step.
type Step struct {
	Name    string
	Accepts []Kind
	Text    string
	Prompt  func(ctx context.Context, s *Session) (Prompt, error)
	Handle  func(ctx context.Context, s *Session, in Input) error
}

func (st Step) accepts(k Kind) bool {
	for _, a := range st.Accepts {
		if a == k {
			return true
		}
	}
	return false
}

func (st Step) prompt(ctx context.Context, s *Session) (Prompt, error) {
	if st.Prompt == nil {
		return Prompt{Text: st.Text}, nil
	}
	return st.Prompt(ctx, s)
}

// Loop repeats Steps as rounds. After Min rounds the user may finish early
// with a Done choice; Max caps the number of rounds for a session.
type Loop struct {
	Steps []Step
	Min   int
	Max   func(s *Session) int
}

// Flow is an ordered state graph: steps, at most one repeat loop, and a completion action
type Flow struct {
	name     string
	nodes    []node
	loop     *loopSpan
	complete func(ctx context.Context, s *Session) (Prompt, error)
}

type node struct {
	step   Step
	inLoop bool
}

type loopSpan struct {
	start, end int
	min        int
	max        func(s *Session) int
}

// NewFlow starts an empty flow definition
func NewFlow(name string) *Flow {
	return &Flow{name: name}
}

// Name returns the flow's name
func (f *Flow) Name() string {
	return f.name
}

// Then appends steps that run once
func (f *Flow) Then(steps ...Step) *Flow {
	for _, st := range steps {
		f.nodes = append(f.nodes, node{step: st})
	}
	return f
}

// Repeat appends a loop. A flow holds at most one loop.
func (f *Flow) Repeat(l Loop) *Flow {
	if f.loop != nil {
		panic(fmt.Sprintf("conversation: flow %q already has a loop", f.name))
	}
	if len(l.Steps) == 0 {
		panic(fmt.Sprintf("conversation: flow %q has an empty loop", f.name))
	}

	maxRounds := l.Max
	if maxRounds == nil {
		maxRounds = func(*Session) int { return l.Min }
	}

	f.loop = &loopSpan{start: len(f.nodes), end: len(f.nodes) + len(l.Steps), min: l.Min, max: maxRounds}
	for _, st := range l.Steps {
		f.nodes = append(f.nodes, node{step: st, inLoop: true})
	}
	return f
}

// OnComplete sets the action run after the last step. Its prompt is the final reply.
func (f *Flow) OnComplete(fn func(ctx context.Context, s *Session) (Prompt, error)) *Flow {
	f.complete = fn
	return f
}

// next returns the position after pos, opening or closing loop rounds as needed
func (f *Flow) next(s *Session, pos int) int {
	pos++
	if f.loop == nil || pos != f.loop.end {
		return pos
	}
	if len(s.rounds) < f.loop.max(s) {
		return f.loop.start
	}
	return f.loop.end
}

// canFinishLoop reports whether pos is the first step of a round the user may skip
func (f *Flow) canFinishLoop(s *Session, pos int) bool {
	return f.loop != nil && pos == f.loop.start && len(s.rounds)-1 >= f.loop.min
}
