package validator

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/SAP-F-2025/quiz-engine/internal/errors"
	"github.com/SAP-F-2025/quiz-engine/internal/models"
)

const marksTolerance = 1e-9

// QuestionValidator handles question-specific validation
type QuestionValidator struct {
	validator *Validator
}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator(v *Validator) *QuestionValidator {
	return &QuestionValidator{validator: v}
}

// ValidateQuestion checks struct tags and the per-type answer key rules
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	if err := v.validator.Validate(question); err != nil {
		return err
	}

	var errs ValidationErrors
	v.validateContent(question, "", &errs)
	return errs.OrNil()
}

// ValidateForPublish validates a quiz and its question set before it leaves DRAFT.
// Every failure is collected so authors see the full list at once.
func (v *QuestionValidator) ValidateForPublish(quiz *models.Quiz, questions []*models.Question) error {
	var errs ValidationErrors
	if err := v.validator.Validate(quiz); err != nil {
		if fieldErrs, ok := err.(ValidationErrors); ok {
			errs = append(errs, fieldErrs...)
		} else {
			return err
		}
	}

	if len(questions) == 0 {
		errs.Add("questions", "must contain at least one question", 0)
	}

	var sum float64
	for i, question := range questions {
		prefix := fmt.Sprintf("questions[%d].", i)
		if err := v.validator.ValidateStruct(question); err != nil {
			for _, fe := range apperrors.ToValidationErrors(err) {
				fe.Field = prefix + fe.Field
				errs = append(errs, fe)
			}
		}
		v.validateContent(question, prefix, &errs)
		sum += question.Marks
	}

	if quiz.TotalMarks <= 0 {
		errs.Add("total_marks", "must be greater than 0", quiz.TotalMarks)
	} else if len(questions) > 0 && math.Abs(sum-quiz.TotalMarks) > marksTolerance {
		errs.Add("total_marks", fmt.Sprintf("must equal the sum of question marks (%g)", sum), quiz.TotalMarks)
	}

	if quiz.PassingMarks != nil && *quiz.PassingMarks > quiz.TotalMarks {
		errs.Add("passing_marks", "must not exceed total_marks", *quiz.PassingMarks)
	}

	if quiz.TimeLimitEnforced && quiz.DurationMinutes <= 0 {
		errs.Add("duration_minutes", "must be greater than 0 when the time limit is enforced", quiz.DurationMinutes)
	}

	if quiz.StartTime != nil && quiz.EndTime != nil && !quiz.EndTime.After(*quiz.StartTime) {
		errs.Add("end_time", "must be after start_time", quiz.EndTime)
	}

	return errs.OrNil()
}

func (v *QuestionValidator) validateContent(question *models.Question, prefix string, errs *ValidationErrors) {
	answer := strings.TrimSpace(question.CorrectAnswer)

	switch question.Type {
	case models.QuestionMultipleChoice:
		if len(question.Options) < 2 {
			errs.Add(prefix+"options", "must have at least 2 options", len(question.Options))
			return
		}
		seen := make(map[string]bool, len(question.Options))
		for _, option := range question.Options {
			key := strings.ToLower(strings.TrimSpace(option))
			if key == "" {
				errs.Add(prefix+"options", "option text cannot be empty", option)
				return
			}
			if seen[key] {
				errs.Add(prefix+"options", "options must be unique", option)
				return
			}
			seen[key] = true
		}
		if answer == "" {
			errs.Add(prefix+"correct_answer", "is required", nil)
		} else if !seen[strings.ToLower(answer)] {
			errs.Add(prefix+"correct_answer", "must match one of the options", question.CorrectAnswer)
		}

	case models.QuestionTrueFalse:
		switch strings.ToLower(answer) {
		case "true", "false":
		default:
			errs.Add(prefix+"correct_answer", "must be true or false", question.CorrectAnswer)
		}

	case models.QuestionShortAnswer:
		if answer == "" {
			errs.Add(prefix+"correct_answer", "is required", nil)
		}

	case models.QuestionEssay, models.QuestionCode:
		// Graded manually; any stored answer key is ignored.
	}
}
