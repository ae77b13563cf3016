package services

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"sort"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

// golden-ratio increment used to derive secondary PCG streams
const seedMix = 0x9E3779B97F4A7C15

// RenderedQuestion is a question as shown to a student: answer key removed, options possibly permuted
type RenderedQuestion struct {
	ID       uint                `json:"id"`
	Position int                 `json:"position"`
	Type     models.QuestionType `json:"type"`
	Text     string              `json:"text"`
	Options  []string            `json:"options,omitempty"`
	Marks    float64             `json:"marks"`
}

// Seed derives a stable 64-bit seed for (quiz, student, attempt number)
func Seed(quizID uint, studentID string, attemptNumber int) models.ShuffleSeed {
	h := fnv.New64a()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(quizID))
	h.Write(buf[:])
	h.Write([]byte(studentID))
	h.Write([]byte{0})
	binary.BigEndian.PutUint64(buf[:], uint64(attemptNumber))
	h.Write(buf[:])
	return models.ShuffleSeed(h.Sum64())
}

// Render orders questions by Order (ties by ID) and applies the seeded permutations.
// The input slice and its questions are never modified.
func Render(questions []*models.Question, shuffleSeed models.ShuffleSeed, shuffleQuestions, shuffleOptions bool) []RenderedQuestion {
	seed := uint64(shuffleSeed)
	ordered := make([]*models.Question, 0, len(questions))
	for _, q := range questions {
		if q != nil {
			ordered = append(ordered, q)
		}
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Order != ordered[j].Order {
			return ordered[i].Order < ordered[j].Order
		}
		return ordered[i].ID < ordered[j].ID
	})

	if shuffleQuestions {
		r := rand.New(rand.NewPCG(seed, seed^seedMix))
		r.Shuffle(len(ordered), func(i, j int) {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		})
	}

	rendered := make([]RenderedQuestion, len(ordered))
	for i, q := range ordered {
		var options []string
		if len(q.Options) > 0 {
			options = append([]string(nil), q.Options...)
			if shuffleOptions {
				optionSeed := seed ^ (uint64(q.ID) * seedMix)
				r := rand.New(rand.NewPCG(optionSeed, optionSeed+seedMix))
				r.Shuffle(len(options), func(a, b int) {
					options[a], options[b] = options[b], options[a]
				})
			}
		}
		rendered[i] = RenderedQuestion{
			ID:       q.ID,
			Position: i + 1,
			Type:     q.Type,
			Text:     q.Text,
			Options:  options,
			Marks:    q.Marks,
		}
	}
	return rendered
}
