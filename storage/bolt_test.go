package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lingowing/lingowing/models"
)

func openTestDB(t *testing.T) *BoltDB {
	t.Helper()
	db, err := NewBoltDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPreferences(t *testing.T) {
	db := openTestDB(t)

	enabled, err := db.Enabled(PrefAutopilot)
	require.NoError(t, err)
	assert.False(t, enabled, "unset preference defaults to false")

	_, err = db.GetPreference(PrefAutopilot)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.SetPreference(PrefAutopilot, true))
	enabled, err = db.Enabled(PrefAutopilot)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, db.SetPreference(PrefAutopilot, false))
	pref, err := db.GetPreference(PrefAutopilot)
	require.NoError(t, err)
	assert.False(t, pref.Enabled)
	assert.False(t, pref.UpdatedAt.IsZero())
}

func TestPreferenceSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := NewBoltDB(path)
	require.NoError(t, err)
	require.NoError(t, db.SetPreference(PrefPronunciation, true))
	require.NoError(t, db.Close())

	db, err = NewBoltDB(path)
	require.NoError(t, err)
	defer db.Close()
	enabled, err := db.Enabled(PrefPronunciation)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestLatestExerciseReplacesPrevious(t *testing.T) {
	db := openTestDB(t)

	_, err := db.LatestExercise()
	assert.ErrorIs(t, err, ErrNotFound)

	first := &models.ExerciseSet{Title: "first", Content: models.ExerciseContent{Items: []models.Item{
		{CorrectAnswers: [][]string{{"a"}}},
	}}}
	second := &models.ExerciseSet{Title: "second", ActivityType: "GRAMMAR", Content: models.ExerciseContent{Items: []models.Item{
		{CorrectAnswers: [][]string{{"b"}}, Answers: [][]string{{"b"}}},
		{CorrectAnswers: [][]string{{"c"}}},
	}}}
	require.NoError(t, db.SaveExercise(first))
	require.NoError(t, db.SaveExercise(second))

	got, err := db.LatestExercise()
	require.NoError(t, err)
	assert.Equal(t, "second", got.Title)
	assert.Len(t, got.Items(), 2)
}

func TestAttemptsNewestFirst(t *testing.T) {
	db := openTestDB(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, db.SaveAttempt(&models.Attempt{
			ID:        id,
			Outcome:   models.AttemptSubmitted,
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := db.ListAttempts(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{all[0].ID, all[1].ID, all[2].ID})

	limited, err := db.ListAttempts(2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	require.NoError(t, db.ClearAttempts())
	all, err = db.ListAttempts(0)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCookies(t *testing.T) {
	db := openTestDB(t)
	_, err := db.GetCookies("browser")
	assert.ErrorIs(t, err, ErrNotFound)

	store := &models.CookieStore{ID: "browser", Cookies: []*proto.NetworkCookie{
		{Name: "session", Value: "abc", Domain: "app.example.com", Path: "/"},
	}}
	require.NoError(t, db.SaveCookies(store))

	got, err := db.GetCookies("browser")
	require.NoError(t, err)
	require.Len(t, got.Cookies, 1)
	assert.Equal(t, "abc", got.Cookies[0].Value)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSaveAttemptKeepsNewest(t *testing.T) {
	db := openTestDB(t)
	db.maxAttempts = 3
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, db.SaveAttempt(&models.Attempt{
			ID:        id,
			Outcome:   models.AttemptAborted,
			Reason:    "unknown_question_type",
			StartedAt: base.Add(time.Duration(i) * time.Second),
		}))
	}

	all, err := db.ListAttempts(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"e", "d", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
}
