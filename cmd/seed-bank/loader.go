package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-practice/internal/domain"
	"gopkg.in/yaml.v3"
)

// itemNamespace derives stable ids for seed items without an explicit id,
// so loading the same file twice does not duplicate the bank.
var itemNamespace = uuid.MustParse("6f0b3c1e-4a59-4c67-9f0d-2d8b8f3e7a10")

// seedFile is the YAML layout accepted by the loader.
type seedFile struct {
	Subject string     `yaml:"subject"`
	Items   []seedItem `yaml:"items"`
}

type seedItem struct {
	ID         string   `yaml:"id"`
	Subject    string   `yaml:"subject"`
	Topic      string   `yaml:"topic"`
	Question   string   `yaml:"question"`
	Answer     string   `yaml:"answer"`
	Choices    []string `yaml:"choices"`
	Tags       []string `yaml:"tags"`
	Difficulty int      `yaml:"difficulty"`
}

// parseSeed decodes a seed file into bank items. A file-level subject
// applies to items that do not name their own.
func parseSeed(r io.Reader) ([]domain.PracticeItem, error) {
	var file seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	items := make([]domain.PracticeItem, 0, len(file.Items))
	for i, raw := range file.Items {
		item, err := raw.toDomain(file.Subject)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s seedItem) toDomain(defaultSubject string) (domain.PracticeItem, error) {
	subject := strings.TrimSpace(s.Subject)
	if subject == "" {
		subject = strings.TrimSpace(defaultSubject)
	}

	id := uuid.NewSHA1(itemNamespace, []byte(subject+"\x00"+strings.TrimSpace(s.Question)))
	if s.ID != "" {
		parsed, err := uuid.Parse(s.ID)
		if err != nil {
			return domain.PracticeItem{}, fmt.Errorf("%w: %q", domain.ErrInvalidID, s.ID)
		}
		id = parsed
	}

	item := domain.PracticeItem{
		ID:               id,
		Subject:          subject,
		Topic:            strings.TrimSpace(s.Topic),
		Question:         strings.TrimSpace(s.Question),
		Answer:           strings.TrimSpace(s.Answer),
		Choices:          s.Choices,
		Tags:             s.Tags,
		Difficulty:       s.Difficulty,
		DifficultyRating: domain.RatingForDifficulty(s.Difficulty),
		Source:           domain.ItemSourceBank,
	}
	if err := item.Validate(); err != nil {
		return domain.PracticeItem{}, err
	}
	return item, nil
}
