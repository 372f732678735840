package autopilot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPronunciationProcessesWord(t *testing.T) {
	sel := DefaultSettings().Pronunciation.Selectors
	page := newFakePage()
	page.add(sel.WordText, "word", " bonjour ")
	page.add(sel.PlayButton, "play", "")
	page.add(sel.RecordButton, "record", "")
	next := page.add(sel.ContinueButton, "continue", "Continue")
	next.onClick = func() {
		page.remove(sel.WordText, sel.PlayButton, sel.RecordButton, sel.ContinueButton)
	}

	p := NewPronunciation(page, &testSettings().Pronunciation)
	p.SetActive(context.Background(), true)
	p.Wait()

	assert.Equal(t, []string{"click:play", "click:record", "click:continue"}, page.Actions())
	assert.Equal(t, 1, p.Words())
	assert.Equal(t, "bonjour", p.LastWord())
}

func TestPronunciationWithoutRecordButton(t *testing.T) {
	sel := DefaultSettings().Pronunciation.Selectors
	page := newFakePage()
	page.add(sel.WordText, "word", "merci")
	next := page.add(sel.ContinueButton, "continue", "Continue")
	next.onClick = func() { page.remove(sel.WordText, sel.ContinueButton) }

	p := NewPronunciation(page, &testSettings().Pronunciation)
	p.SetActive(context.Background(), true)
	p.Wait()

	assert.Equal(t, []string{"click:continue"}, page.Actions())
}

func TestPronunciationInactiveIgnoresMutations(t *testing.T) {
	sel := DefaultSettings().Pronunciation.Selectors
	page := newFakePage()
	page.add(sel.WordText, "word", "merci")
	page.add(sel.ContinueButton, "continue", "Continue")

	p := NewPronunciation(page, &testSettings().Pronunciation)
	p.OnMutation(context.Background())
	assert.False(t, p.ProcessWord(context.Background()))
	p.Wait()
	assert.Empty(t, page.Actions())
}
