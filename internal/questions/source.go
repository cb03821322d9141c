// Package questions supplies the ordered question list for an interview.
package questions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lexiqai/voice-interview/internal/interview"
)

// ErrNoQuestions is returned when no bank covers the role
var ErrNoQuestions = errors.New("no questions available")

// defaultBank is used for roles without their own bank
const defaultBank = "general"

// Bank maps a normalised role name to its questions
type Bank map[string][]interview.Question

// File is the YAML layout of a question bank file
type File struct {
	Roles map[string][]interview.Question `yaml:"roles"`
}

// BankSource serves questions from an in-memory bank
type BankSource struct {
	bank Bank
}

// NewBankSource validates bank and returns a source over it
func NewBankSource(bank Bank) (*BankSource, error) {
	normalised := make(Bank, len(bank))
	for role, qs := range bank {
		for i, q := range qs {
			if strings.TrimSpace(q.Text) == "" {
				return nil, fmt.Errorf("role %q question %d has no text", role, i+1)
			}
			if q.ID == "" {
				qs[i].ID = fmt.Sprintf("%s-%d", slug(role), i+1)
			}
			if q.Type == "" {
				qs[i].Type = interview.QuestionGeneral
			}
		}
		normalised[normalise(role)] = qs
	}
	return &BankSource{bank: normalised}, nil
}

// Questions returns up to count questions for role in bank order,
// falling back to the general bank
func (s *BankSource) Questions(ctx context.Context, role string, count int) ([]interview.Question, error) {
	if count <= 0 {
		return nil, fmt.Errorf("invalid question count %d", count)
	}

	qs, ok := s.bank[normalise(role)]
	if !ok || len(qs) == 0 {
		qs = s.bank[defaultBank]
	}
	if len(qs) == 0 {
		return nil, fmt.Errorf("%w for role %q", ErrNoQuestions, role)
	}

	if count > len(qs) {
		count = len(qs)
	}
	out := make([]interview.Question, count)
	for i := range out {
		out[i] = qs[i]
		out[i].ExpectedKeywords = append([]string(nil), qs[i].ExpectedKeywords...)
	}
	return out, nil
}

// LoadFile reads a YAML question bank
func LoadFile(path string) (*BankSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read question bank %s: %w", path, err)
	}

	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse question bank %s: %w", path, err)
	}
	if len(file.Roles) == 0 {
		return nil, fmt.Errorf("question bank %s defines no roles", path)
	}

	return NewBankSource(Bank(file.Roles))
}

// Fallback tries each source in order until one returns questions
type Fallback struct {
	Sources []interview.QuestionSource
	Logger  zerolog.Logger
}

// Questions returns the first non-empty result
func (f Fallback) Questions(ctx context.Context, role string, count int) ([]interview.Question, error) {
	var errs []error
	for i, src := range f.Sources {
		qs, err := src.Questions(ctx, role, count)
		if err == nil && len(qs) > 0 {
			return qs, nil
		}
		if err == nil {
			err = fmt.Errorf("%w for role %q", ErrNoQuestions, role)
		}
		f.Logger.Debug().Err(err).Int("source", i).Str("role", role).Msg("Question source failed, trying next")
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, ErrNoQuestions
	}
	return nil, errors.Join(errs...)
}

// New returns the file bank, when configured, backed by the built-in bank
func New(path string, logger zerolog.Logger) (interview.QuestionSource, error) {
	builtin := Static()
	if path == "" {
		return builtin, nil
	}

	file, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", path).Msg("Loaded question bank")
	return Fallback{Sources: []interview.QuestionSource{file, builtin}, Logger: logger}, nil
}

func normalise(role string) string {
	return strings.ToLower(strings.Join(strings.Fields(role), " "))
}

func slug(role string) string {
	return strings.ReplaceAll(normalise(role), " ", "-")
}
