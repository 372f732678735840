package assist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingowing/lingowing/config"
	"github.com/lingowing/lingowing/models"
)

type fakeModel struct {
	reply   string
	err     error
	prompts []string
}

func (m *fakeModel) Generate(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.reply, m.err
}

func TestAnalyze(t *testing.T) {
	model := &fakeModel{reply: "```json\n{\"answer\": \"went\", \"explanation\": \"past simple\", \"confidence\": 0.9}\n```"}
	a := NewAdvisor(model)

	s, err := a.Analyze(context.Background(), Question{UUID: "q1", Text: "Yesterday I ___ home.", Options: []string{"go", "went"}})
	require.NoError(t, err)
	assert.Equal(t, "went", s.Answer)
	assert.InDelta(t, 0.9, s.Confidence, 1e-9)
	require.Len(t, model.prompts, 1)
	assert.Contains(t, model.prompts[0], "go | went")
}

func TestAnalyzeSkipsDuplicate(t *testing.T) {
	model := &fakeModel{reply: `{"answer": "a", "explanation": "", "confidence": 1}`}
	a := NewAdvisor(model)
	ctx := context.Background()

	_, err := a.Analyze(ctx, Question{UUID: "q1", Text: "one"})
	require.NoError(t, err)
	_, err = a.Analyze(ctx, Question{UUID: "q1", Text: "one"})
	assert.ErrorIs(t, err, ErrDuplicateQuestion)
	_, err = a.Analyze(ctx, Question{UUID: "q2", Text: "two"})
	require.NoError(t, err)
	_, err = a.Analyze(ctx, Question{UUID: "q1", Text: "one"})
	require.NoError(t, err, "only the previous question is deduplicated")
	assert.Len(t, model.prompts, 3)
}

func TestAnalyzeErrorsBecomeSuggestions(t *testing.T) {
	ctx := context.Background()

	s, err := NewAdvisor(&fakeModel{err: errors.New("quota exceeded")}).Analyze(ctx, Question{UUID: "q1", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error analyzing question", s.Answer)
	assert.Contains(t, s.Explanation, "quota exceeded")
	assert.Zero(t, s.Confidence)

	s, err = NewAdvisor(&fakeModel{reply: "not json"}).Analyze(ctx, Question{UUID: "q2", Text: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Error analyzing question", s.Answer)
}

func TestAnalyzeRejectsBadInput(t *testing.T) {
	var nilAdvisor *Advisor
	_, err := nilAdvisor.Analyze(context.Background(), Question{Text: "x"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewAdvisor(&fakeModel{}).Analyze(context.Background(), Question{UUID: "q"})
	assert.Error(t, err)
}

func TestParseSuggestionClampsConfidence(t *testing.T) {
	s, err := parseSuggestion(`{"answer": "x", "confidence": 7}`)
	require.NoError(t, err)
	assert.Equal(t, 1.0, s.Confidence)

	_, err = parseSuggestion(`{"explanation": "no answer"}`)
	assert.Error(t, err)
}

func TestFromItem(t *testing.T) {
	q := FromItem(&models.Item{
		UUID:           "q9",
		Type:           models.ItemTypeOpen,
		Question:       "I [GAP] and [GAP]",
		CorrectAnswers: [][]string{{"a"}, {"b"}},
		Answers:        [][]string{{"x", "y"}},
	})
	assert.Equal(t, "q9", q.UUID)
	assert.Equal(t, 2, q.Gaps)
	assert.Equal(t, []string{"x", "y"}, q.Options)
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini(context.Background(), &config.LLMConfig{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}
