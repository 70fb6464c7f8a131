package conversation

import (
	"context"
	"testing"

	"cardshop/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRegistration struct {
	plan  string
	items []testCard
}

func registrationEngine(out *[]capturedRegistration) *Engine {
	flow := NewFlow("registration").
		Then(Step{
			Name:    "plan",
			Accepts: []Kind{KindChoice},
			Prompt: func(context.Context, *Session) (Prompt, error) {
				return Prompt{Text: "Pick a plan", Choices: []Choice{
					{Label: "Full", Data: "plan_full"},
					{Label: "Single", Data: "plan_single"},
				}}, nil
			},
			Handle: func(_ context.Context, s *Session, in Input) error {
				s.Put("plan", in.Data)
				return nil
			},
		}).
		Repeat(Loop{
			Steps: []Step{imageStep(), titleStep(), priceStep()},
			Min:   1,
			Max: func(s *Session) int {
				if s.Text("plan") == "plan_full" {
					return 3
				}
				return 1
			},
		}).
		OnComplete(func(_ context.Context, s *Session) (Prompt, error) {
			reg := capturedRegistration{plan: s.Text("plan")}
			for _, r := range s.Rounds() {
				reg.items = append(reg.items, testCard{
					FileID: r["file_id"].(string),
					Title:  r["title"].(string),
					Price:  r["price"].(float64),
				})
			}
			*out = append(*out, reg)
			return Prompt{Text: "Registered"}, nil
		})
	return NewEngine(flow, testutil.NewTestLogger())
}

func sendItem(t *testing.T, e *Engine, fileID, title, price string) Reply {
	t.Helper()
	ctx := context.Background()

	_, err := e.Advance(ctx, 1, Input{Kind: KindPhoto, FileID: fileID})
	require.NoError(t, err)
	_, err = e.Advance(ctx, 1, Input{Kind: KindText, Text: title})
	require.NoError(t, err)
	reply, err := e.Advance(ctx, 1, Input{Kind: KindText, Text: price})
	require.NoError(t, err)
	return reply
}

func hasDone(p Prompt) bool {
	for _, c := range p.Choices {
		if c.Data == DoneData {
			return true
		}
	}
	return false
}

func TestLoop_SinglePlanEndsAfterOneItem(t *testing.T) {
	var regs []capturedRegistration
	e := registrationEngine(&regs)
	ctx := context.Background()

	_, err := e.Start(ctx, 1, nil)
	require.NoError(t, err)

	reply, err := e.Advance(ctx, 1, Input{Kind: KindChoice, Data: "plan_single"})
	require.NoError(t, err)
	assert.Equal(t, "Send the card image", reply.Prompt.Text)
	assert.False(t, hasDone(reply.Prompt), "done must not be offered before the minimum")

	reply = sendItem(t, e, "f1", "Card1", "39.0")
	assert.Equal(t, StatusCompleted, reply.Status)

	require.Len(t, regs, 1)
	assert.Equal(t, "plan_single", regs[0].plan)
	assert.Equal(t, []testCard{{FileID: "f1", Title: "Card1", Price: 39}}, regs[0].items)
}

func TestLoop_FullPlanStopsAtMax(t *testing.T) {
	var regs []capturedRegistration
	e := registrationEngine(&regs)
	ctx := context.Background()

	_, err := e.Start(ctx, 1, nil)
	require.NoError(t, err)
	_, err = e.Advance(ctx, 1, Input{Kind: KindChoice, Data: "plan_full"})
	require.NoError(t, err)

	reply := sendItem(t, e, "f1", "A", "10")
	assert.Equal(t, StatusWaiting, reply.Status)
	assert.True(t, hasDone(reply.Prompt))
	assert.Equal(t, 2, e.lookup(1).Round())

	reply = sendItem(t, e, "f2", "B", "20")
	assert.Equal(t, StatusWaiting, reply.Status)

	reply = sendItem(t, e, "f3", "C", "30")
	assert.Equal(t, StatusCompleted, reply.Status)

	require.Len(t, regs, 1)
	require.Len(t, regs[0].items, 3)
	assert.Equal(t, "C", regs[0].items[2].Title)
}

func TestLoop_DoneFinishesEarly(t *testing.T) {
	var regs []capturedRegistration
	e := registrationEngine(&regs)
	ctx := context.Background()

	_, err := e.Start(ctx, 1, nil)
	require.NoError(t, err)
	_, err = e.Advance(ctx, 1, Input{Kind: KindChoice, Data: "plan_full"})
	require.NoError(t, err)

	// done is not accepted during the first round
	reply, err := e.Advance(ctx, 1, Input{Kind: KindChoice, Data: DoneData})
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, reply.Status)
	assert.NotEmpty(t, reply.Prompt.Notice)

	sendItem(t, e, "f1", "A", "10")
	sendItem(t, e, "f2", "B", "20")

	reply, err = e.Advance(ctx, 1, Input{Kind: KindChoice, Data: DoneData})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, reply.Status)

	require.Len(t, regs, 1)
	assert.Len(t, regs[0].items, 2)
}

func TestLoop_InvalidInputInsideRound(t *testing.T) {
	var regs []capturedRegistration
	e := registrationEngine(&regs)
	ctx := context.Background()

	_, err := e.Start(ctx, 1, nil)
	require.NoError(t, err)
	_, err = e.Advance(ctx, 1, Input{Kind: KindChoice, Data: "plan_single"})
	require.NoError(t, err)
	_, err = e.Advance(ctx, 1, Input{Kind: KindPhoto, FileID: "f1"})
	require.NoError(t, err)
	_, err = e.Advance(ctx, 1, Input{Kind: KindText, Text: "Card1"})
	require.NoError(t, err)

	reply, err := e.Advance(ctx, 1, Input{Kind: KindText, Text: "cheap"})
	require.NoError(t, err)
	assert.Equal(t, "Send the card price", reply.Prompt.Text)
	assert.Equal(t, 1, e.lookup(1).Round())

	reply, err = e.Advance(ctx, 1, Input{Kind: KindText, Text: "39"})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, reply.Status)
	require.Len(t, regs, 1)
	assert.Len(t, regs[0].items, 1)
}

func TestFlow_RepeatTwicePanics(t *testing.T) {
	loop := Loop{Steps: []Step{titleStep()}, Min: 1}
	assert.Panics(t, func() {
		NewFlow("twice").Repeat(loop).Repeat(loop)
	})
}
