package autopilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingowing/lingowing/models"
)

func TestParseProgress(t *testing.T) {
	cases := []struct {
		text  string
		total int
		want  int
	}{
		{"3 / 10", 10, 2},
		{"3/10", 10, 2},
		{"Question 1 / 4", 4, 0},
		{"10 / 10", 10, 9},
		{"11 / 10", 10, 0},
		{"0 / 10", 10, 0},
		{"", 10, 0},
		{"no progress here", 10, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseProgress(tc.text, tc.total), "text %q", tc.text)
	}
}

func TestCurrentItem(t *testing.T) {
	ctx := context.Background()
	sel := DefaultSettings().Selectors
	set := exercise(
		models.Item{UUID: "a", CorrectAnswers: [][]string{{"one"}}},
		models.Item{UUID: "b", CorrectAnswers: [][]string{{"two"}}},
		models.Item{UUID: "c", CorrectAnswers: [][]string{{"three"}}},
	)

	page := newFakePage()
	item, idx := CurrentItem(ctx, page, sel.Progress, set)
	require.NotNil(t, item)
	assert.Equal(t, 0, idx, "missing indicator falls back to the first item")
	assert.Equal(t, "a", item.UUID)

	page.add(sel.Progress, "progress", " 2 / 3 ")
	item, idx = CurrentItem(ctx, page, sel.Progress, set)
	require.NotNil(t, item)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "b", item.UUID)

	item, idx = CurrentItem(ctx, page, sel.Progress, nil)
	assert.Nil(t, item)
	assert.Equal(t, 0, idx)
}

func TestDetectPriority(t *testing.T) {
	ctx := context.Background()
	sel := DefaultSettings().Selectors

	page := newFakePage()
	v, err := Detect(ctx, page, sel)
	require.NoError(t, err)
	assert.Equal(t, VariantUnknown, v)

	page.add(sel.TextInput, "input", "")
	v, _ = Detect(ctx, page, sel)
	assert.Equal(t, VariantTextInput, v)

	page.add(sel.ChoiceOption, "option", "Paris")
	v, _ = Detect(ctx, page, sel)
	assert.Equal(t, VariantMultipleChoice, v)

	page.add(sel.DragElement, "drag", "the")
	v, _ = Detect(ctx, page, sel)
	assert.Equal(t, VariantDragAndDrop, v)
}

func TestDetectQueryError(t *testing.T) {
	page := newFakePage()
	page.queryErr = errBoom
	v, err := Detect(context.Background(), page, DefaultSettings().Selectors)
	assert.Error(t, err)
	assert.Equal(t, VariantUnknown, v)
}

func TestFlowGuard(t *testing.T) {
	var f flow
	assert.True(t, f.acquire(StateDetecting))
	assert.False(t, f.acquire(StateDetecting), "second acquire while in flight")
	assert.False(t, f.settle(StateIdle))

	f.advance(StateExecuting)
	state, busy := f.snapshot()
	assert.Equal(t, StateExecuting, state)
	assert.True(t, busy)

	f.release(StateAwaitingContinue)
	state, busy = f.snapshot()
	assert.Equal(t, StateAwaitingContinue, state)
	assert.False(t, busy)

	f.advance(StateExecuting)
	state, _ = f.snapshot()
	assert.Equal(t, StateAwaitingContinue, state, "advance is a no-op when idle")

	assert.False(t, f.settleFrom(StateAwaitingQuestion, StateIdle))
	assert.True(t, f.settleFrom(StateAwaitingQuestion, StateIdle, StateAwaitingContinue))
	assert.Equal(t, "awaiting_question", StateAwaitingQuestion.String())
}

func TestAbortKind(t *testing.T) {
	assert.Equal(t, "", AbortKind(nil))
	assert.Equal(t, "missing_element", AbortKind(missingElement(".x")))
	assert.Equal(t, "cancelled", AbortKind(context.Canceled))
	assert.Equal(t, "error", AbortKind(errBoom))
}
