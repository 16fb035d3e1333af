package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/pavelanni/examhall/internal/model"
)

//go:embed templates/*.txt
var Files embed.FS

var topicTagRegex = regexp.MustCompile(`(?i)</?\s*topic\b[^>]*>`)

// Difficulty selects a drafting prompt variant.
type Difficulty string

const (
	DifficultyEasy     Difficulty = "easy"
	DifficultyStandard Difficulty = "standard"
	DifficultyHard     Difficulty = "hard"
)

var validDifficulties = map[Difficulty]bool{
	DifficultyEasy:     true,
	DifficultyStandard: true,
	DifficultyHard:     true,
}

const (
	maxTopicRunes = 200
	maxAvoid      = 50
)

var (
	loadOnce       sync.Once
	loadErr        error
	draftTemplates map[Difficulty]*template.Template
)

// IsValidDifficulty checks if a difficulty name is valid.
func IsValidDifficulty(d string) bool {
	return validDifficulties[Difficulty(d)]
}

// DraftData holds template data for drafting prompts.
type DraftData struct {
	Topic string
	Count int
	Avoid []string
}

// Load parses the drafting templates from fsys. Only the first call has
// any effect.
func Load(fsys fs.FS) error {
	loadOnce.Do(func() {
		draftTemplates = make(map[Difficulty]*template.Template)
		for _, d := range []Difficulty{DifficultyEasy, DifficultyStandard, DifficultyHard} {
			file := "templates/draft_" + string(d) + ".txt"
			content, err := fs.ReadFile(fsys, file)
			if err != nil {
				loadErr = errors.New("failed to read prompt file " + file + ": " + err.Error())
				return
			}
			tmpl, err := template.New("draft").Parse(string(content))
			if err != nil {
				loadErr = errors.New("failed to parse prompt template " + file + ": " + err.Error())
				return
			}
			draftTemplates[d] = tmpl
		}
	})
	return loadErr
}

// BuildDraftPrompt renders the system prompt for a drafting request. An
// empty difficulty means standard.
func BuildDraftPrompt(req model.DraftRequest) (string, error) {
	if draftTemplates == nil {
		return "", errors.New("templates not initialized: call Load first")
	}
	d := Difficulty(req.Difficulty)
	if d == "" {
		d = DifficultyStandard
	}
	tmpl, ok := draftTemplates[d]
	if !ok {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", errors.New("invalid difficulty: " + string(d))
	}

	data := DraftData{
		Topic: sanitizeTopic(req.Topic),
		Count: req.Count,
	}
	for _, a := range req.Avoid {
		if len(data.Avoid) == maxAvoid {
			break
		}
		data.Avoid = append(data.Avoid, strings.Join(strings.Fields(a), " "))
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func sanitizeTopic(topic string) string {
	topic = topicTagRegex.ReplaceAllString(topic, "")
	topic = strings.Join(strings.Fields(topic), " ")
	if topic == "" {
		return "[general knowledge]"
	}
	if utf8.RuneCountInString(topic) > maxTopicRunes {
		topic = string([]rune(topic)[:maxTopicRunes])
	}
	return topic
}
