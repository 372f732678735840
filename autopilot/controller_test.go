package autopilot

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingowing/lingowing/models"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func startController(t *testing.T, page Page, rec AttemptRecorder) (*Controller, context.CancelFunc) {
	t.Helper()
	c := NewController(page, testSettings(), rec)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		c.Wait()
	})
	return c, cancel
}

func TestControllerMultipleChoiceRoundTrip(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")
	page.add(sel.ChoiceOption, "London", "London")
	page.add(sel.Progress, "progress", "1 / 1")
	validate := page.add(sel.ValidateButton, "validate", "Validate")
	validate.onClick = func() {
		next := page.add(sel.ContinueButton, "continue", "Continue")
		next.onClick = func() {
			page.remove(sel.ChoiceOption, sel.ValidateButton, sel.ContinueButton)
		}
	}

	rec := &fakeRecorder{}
	c, _ := startController(t, page, rec)
	c.SetEnabled(true)
	c.PushExercise(exercise(models.Item{UUID: "q1", CorrectAnswers: [][]string{{"London"}}}))

	require.Eventually(t, func() bool {
		return c.Status().State == StateAwaitingContinue.String() && len(rec.all()) == 1
	}, waitFor, tick)
	assert.Equal(t, []string{"click:London", "click:validate"}, page.Actions())
	first := rec.all()[0]
	assert.Equal(t, models.AttemptSubmitted, first.Outcome)
	assert.Equal(t, string(VariantMultipleChoice), first.Variant)
	assert.Equal(t, 2, first.Clicks)

	// 页面变化后由观察者点击继续，随后识别不到题目，回到空闲
	c.NotifyMutation()
	require.Eventually(t, func() bool {
		return len(rec.all()) == 2 && c.Status().State == StateIdle.String()
	}, waitFor, tick)
	assert.Equal(t, []string{"click:London", "click:validate", "click:continue"}, page.Actions())
	assert.True(t, strings.HasPrefix(rec.all()[1].Reason, "unknown_question_type"))
}

func TestControllerMultiInputChainsToNextQuestion(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.TextInput, "in0", "")
	page.add(sel.TextInput, "in1", "")
	page.add(sel.ValidateButton, "validate", "Validate")
	next := page.add(sel.ContinueButton, "continue", "Continue")
	next.onClick = func() {
		page.remove(sel.TextInput, sel.ValidateButton, sel.ContinueButton)
	}

	rec := &fakeRecorder{}
	c, _ := startController(t, page, rec)
	c.SetEnabled(true)
	c.PushExercise(exercise(models.Item{CorrectAnswers: [][]string{{"am"}, {"is"}}}))

	require.Eventually(t, func() bool {
		return len(rec.all()) == 2 && c.Status().State == StateIdle.String()
	}, waitFor, tick)
	assert.Equal(t, []string{
		"focus:in0", "set:in0=am",
		"focus:in1", "set:in1=is",
		"click:validate", "click:continue",
	}, page.Actions())

	attempts := rec.all()
	assert.Equal(t, models.AttemptCompleted, attempts[0].Outcome)
	assert.Equal(t, string(VariantTextInput), attempts[0].Variant)
	assert.Equal(t, models.AttemptAborted, attempts[1].Outcome)
}

func TestControllerGuardRejectsOverlappingTriggers(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")

	c := NewController(page, testSettings(), nil)
	blocker := newBlockingExecutor()
	c.SetExecutor(VariantMultipleChoice, blocker)

	ctx := context.Background()
	c.handle(ctx, ToggleEvent{Enabled: true})

	assert.True(t, c.Process(ctx))
	<-blocker.started
	assert.False(t, c.Process(ctx))
	assert.False(t, c.Process(ctx))
	st := c.Status()
	assert.True(t, st.InFlight)
	assert.Equal(t, StateExecuting.String(), st.State)

	close(blocker.release)
	c.Wait()
	assert.Equal(t, 1, blocker.Calls())
	st = c.Status()
	assert.False(t, st.InFlight)
	assert.Equal(t, StateAwaitingContinue.String(), st.State)
}

func TestControllerProcessRequiresEnabled(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")

	c := NewController(page, testSettings(), nil)
	assert.False(t, c.Process(context.Background()))
	c.Wait()
	assert.Empty(t, page.Actions())
	assert.Equal(t, StateIdle.String(), c.Status().State)
}

func TestControllerNavigationCancelsAttempt(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")

	rec := &fakeRecorder{}
	c := NewController(page, testSettings(), rec)
	blocker := newBlockingExecutor()
	c.SetExecutor(VariantMultipleChoice, blocker)

	ctx := context.Background()
	c.handle(ctx, ToggleEvent{Enabled: true})
	c.handle(ctx, ExerciseEvent{Set: exercise(models.Item{CorrectAnswers: [][]string{{"Paris"}}})})
	<-blocker.started

	c.handle(ctx, NavigationEvent{URL: "https://example.com/dashboard", OnActivity: false})
	c.Wait()

	st := c.Status()
	assert.False(t, st.HasExercise)
	assert.False(t, st.InFlight)
	assert.Equal(t, StateIdle.String(), st.State)
	require.Len(t, rec.all(), 1)
	assert.True(t, strings.HasPrefix(rec.all()[0].Reason, "cancelled"))
}

func TestControllerMutationRetriesAfterUnknownQuestion(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()

	rec := &fakeRecorder{}
	c := NewController(page, testSettings(), rec)
	ctx := context.Background()
	c.handle(ctx, ToggleEvent{Enabled: true})
	c.handle(ctx, ExerciseEvent{Set: exercise(models.Item{CorrectAnswers: [][]string{{"Berlin"}}})})
	c.Wait()
	require.Len(t, rec.all(), 1)
	assert.Equal(t, StateIdle.String(), c.Status().State)

	page.add(sel.ChoiceOption, "Paris", "Paris")
	page.add(sel.ChoiceOption, "Berlin", "Berlin")
	page.add(sel.ValidateButton, "validate", "Validate")
	c.handle(ctx, MutationEvent{})
	c.Wait()

	assert.Equal(t, []string{"click:Berlin", "click:validate"}, page.Actions())
	assert.Equal(t, StateAwaitingContinue.String(), c.Status().State)
}

func TestControllerDisabledIgnoresEvents(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")
	page.add(sel.ContinueButton, "continue", "Continue")

	c := NewController(page, testSettings(), nil)
	ctx := context.Background()
	c.handle(ctx, ExerciseEvent{Set: exercise(models.Item{CorrectAnswers: [][]string{{"Paris"}}})})
	c.handle(ctx, MutationEvent{})
	c.Wait()

	assert.Empty(t, page.Actions())
	st := c.Status()
	assert.True(t, st.HasExercise)
	assert.False(t, st.Enabled)
}

func TestControllerPronunciationExerciseSkipsAutopilot(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")

	c := NewController(page, testSettings(), nil)
	ctx := context.Background()
	c.handle(ctx, ToggleEvent{Enabled: true})
	set := exercise()
	set.ActivityType = models.ActivityPronunciation
	c.handle(ctx, ExerciseEvent{Set: set})
	c.Wait()

	assert.Empty(t, page.Actions())
	assert.True(t, c.Status().Pronunciation)
}

func pronunciationSet() *models.ExerciseSet {
	set := exercise(models.Item{CorrectAnswers: [][]string{{"bonjour"}}})
	set.ActivityType = models.ActivityPronunciation
	return set
}

func TestControllerStaysIdleDuringPronunciation(t *testing.T) {
	sel := DefaultSettings().Selectors
	page := newFakePage()
	page.add(sel.ChoiceOption, "Paris", "Paris")
	page.add(sel.ContinueButton, "continue", "Continue")

	rec := &fakeRecorder{}
	c := NewController(page, testSettings(), rec)
	ctx := context.Background()
	c.handle(ctx, ToggleEvent{Enabled: true})
	c.handle(ctx, ExerciseEvent{Set: pronunciationSet()})
	for i := 0; i < 3; i++ {
		c.handle(ctx, MutationEvent{})
	}
	c.handle(ctx, ToggleEvent{Enabled: false})
	c.handle(ctx, ToggleEvent{Enabled: true})
	assert.False(t, c.Process(ctx))
	c.Wait()

	assert.Empty(t, rec.all())
	assert.Empty(t, page.Actions(), "continue button belongs to the pronunciation runner")
	st := c.Status()
	assert.True(t, st.Pronunciation)
	assert.Equal(t, StateIdle.String(), st.State)

	// 换成普通练习后恢复作答
	c.handle(ctx, ExerciseEvent{Set: exercise(models.Item{CorrectAnswers: [][]string{{"Paris"}}})})
	c.Wait()
	require.Len(t, rec.all(), 1)
	assert.Equal(t, string(VariantMultipleChoice), rec.all()[0].Variant)
	assert.False(t, c.Status().Pronunciation)
}

func TestControllerStatusReportsPronunciationProgress(t *testing.T) {
	sel := DefaultSettings().Pronunciation.Selectors
	page := newFakePage()
	page.add(sel.WordText, "word", "merci")
	next := page.add(sel.ContinueButton, "continue", "Continue")
	next.onClick = func() { page.remove(sel.WordText, sel.ContinueButton) }

	c := NewController(page, testSettings(), nil)
	c.handle(context.Background(), ExerciseEvent{Set: pronunciationSet()})
	c.Wait()

	st := c.Status()
	assert.Equal(t, 1, st.Words)
	assert.Equal(t, "merci", st.LastWord)
}
