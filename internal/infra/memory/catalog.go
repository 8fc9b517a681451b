package memory

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"trivia-engine/internal/domain"
)

// StaticQuizLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticQuizLoader struct {
	quizzes map[int64]domain.Quiz
}

func NewStaticQuizLoader(quizzes map[int64]domain.Quiz) *StaticQuizLoader {
	return &StaticQuizLoader{quizzes: quizzes}
}

func (l *StaticQuizLoader) LoadQuiz(_ context.Context, quizID int64) (domain.Quiz, error) {
	if quiz, ok := l.quizzes[quizID]; ok {
		return quiz, nil
	}
	return domain.Quiz{}, domain.ErrQuizNotFound
}

// CatalogFile is the YAML layout of a quiz catalog file.
type CatalogFile struct {
	Quizzes []domain.Quiz `yaml:"quizzes"`
}

// ReadCatalogFile parses a YAML quiz catalog.
func ReadCatalogFile(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[int64]struct{}, len(file.Quizzes))
	for _, q := range file.Quizzes {
		if q.ID <= 0 {
			return nil, fmt.Errorf("parse catalog: quiz %q has no positive id", q.Title)
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("parse catalog: duplicate quiz id %d", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return file.Quizzes, nil
}

// NewFileQuizLoader loads a YAML catalog once and serves it from memory.
func NewFileQuizLoader(path string) (*StaticQuizLoader, error) {
	quizzes, err := ReadCatalogFile(path)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]domain.Quiz, len(quizzes))
	for _, q := range quizzes {
		byID[q.ID] = q
	}
	return NewStaticQuizLoader(byID), nil
}
