package questions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexiqai/voice-interview/internal/interview"
)

const bankYAML = `
roles:
  Site Reliability Engineer:
    - text: What is an error budget?
      type: technical
      difficulty: medium
      expected_keywords: [slo, availability]
      time_limit: 90s
    - id: sre-custom
      text: Tell me about an incident you led.
      type: behavioral
  general:
    - text: Why do you want this job?
`

func writeBank(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	src, err := LoadFile(writeBank(t, bankYAML))
	require.NoError(t, err)

	qs, err := src.Questions(context.Background(), "  site reliability   engineer ", 5)
	require.NoError(t, err)
	require.Len(t, qs, 2)

	assert.Equal(t, "site-reliability-engineer-1", qs[0].ID)
	assert.Equal(t, interview.QuestionTechnical, qs[0].Type)
	assert.Equal(t, []string{"slo", "availability"}, qs[0].ExpectedKeywords)
	assert.Equal(t, 90*time.Second, qs[0].TimeLimit)
	assert.Equal(t, "sre-custom", qs[1].ID)

	qs, err = src.Questions(context.Background(), "astronaut", 1)
	require.NoError(t, err)
	assert.Equal(t, "Why do you want this job?", qs[0].Text)
	assert.Equal(t, interview.QuestionGeneral, qs[0].Type)
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not yaml", "roles: [unclosed"},
		{"no roles", "other: 1"},
		{"empty text", "roles:\n  x:\n    - id: a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFile(writeBank(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStatic(t *testing.T) {
	src := Static()

	qs, err := src.Questions(context.Background(), "Backend Engineer", 3)
	require.NoError(t, err)
	require.Len(t, qs, 3)
	assert.Equal(t, "be-1", qs[0].ID)

	qs, err = src.Questions(context.Background(), "data scientist", 50)
	require.NoError(t, err)
	assert.Len(t, qs, 3)

	_, err = src.Questions(context.Background(), "data scientist", 0)
	assert.Error(t, err)
}

func TestStatic_ReturnsCopies(t *testing.T) {
	src := Static()
	qs, err := src.Questions(context.Background(), "backend engineer", 1)
	require.NoError(t, err)
	qs[0].ExpectedKeywords[0] = "changed"

	again, err := src.Questions(context.Background(), "backend engineer", 1)
	require.NoError(t, err)
	assert.Equal(t, "token bucket", again[0].ExpectedKeywords[0])
}

type failingSource struct{ err error }

func (f failingSource) Questions(context.Context, string, int) ([]interview.Question, error) {
	return nil, f.err
}

func TestFallback(t *testing.T) {
	boom := errors.New("llm unavailable")
	f := Fallback{
		Sources: []interview.QuestionSource{failingSource{boom}, Static()},
		Logger:  zerolog.Nop(),
	}

	qs, err := f.Questions(context.Background(), "product manager", 2)
	require.NoError(t, err)
	assert.Len(t, qs, 2)

	f.Sources = []interview.QuestionSource{failingSource{boom}}
	_, err = f.Questions(context.Background(), "product manager", 2)
	assert.ErrorIs(t, err, boom)
}

func TestNew(t *testing.T) {
	src, err := New("", zerolog.Nop())
	require.NoError(t, err)
	assert.IsType(t, &BankSource{}, src)

	src, err = New(writeBank(t, bankYAML), zerolog.Nop())
	require.NoError(t, err)
	qs, err := src.Questions(context.Background(), "backend engineer", 1)
	require.NoError(t, err)
	assert.Equal(t, "Why do you want this job?", qs[0].Text, "file general bank wins over built-in roles")
}
