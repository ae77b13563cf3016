// Package memory provides an in-process Repository used by tests and STORAGE=memory.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

type answerKey struct {
	attemptID  uint
	questionID uint
}

type reminderKey struct {
	quizID   uint
	startsAt int64
	kind     models.ReminderKind
}

// Store holds every table behind a single mutex. Values are copied on the way in
// and out so callers never share memory with the store.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	quizzes   map[uint]models.Quiz
	questions map[uint]models.Question
	attempts  map[uint]models.Attempt
	answers   map[answerKey]models.Answer
	grades    map[uint]models.Grade
	reminders map[reminderKey]models.ReminderLog

	nextQuizID     uint
	nextQuestionID uint
	nextAttemptID  uint
	nextAnswerID   uint
	nextGradeID    uint
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Store {
	return &Store{
		quizzes:   make(map[uint]models.Quiz),
		questions: make(map[uint]models.Question),
		attempts:  make(map[uint]models.Attempt),
		answers:   make(map[answerKey]models.Answer),
		grades:    make(map[uint]models.Grade),
		reminders: make(map[reminderKey]models.ReminderLog),
	}
}

var _ repositories.Repository = (*Store)(nil)

func (s *Store) Quiz() repositories.QuizRepository       { return quizRepo{s} }
func (s *Store) Attempt() repositories.AttemptRepository { return attemptRepo{s} }
func (s *Store) Answer() repositories.AnswerRepository   { return answerRepo{s} }
func (s *Store) Grade() repositories.GradeRepository     { return gradeRepo{s} }
func (s *Store) Reminder() repositories.ReminderLedger   { return reminderRepo{s} }

// WithTransaction runs fn against the store and restores the prior state when fn fails.
// Transactions are serialized with each other but not isolated from plain writes.
func (s *Store) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	snapshot := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snapshot)
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

func (s *Store) Close() error { return nil }

func (s *Store) snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c := NewRepository()
	for k, v := range s.quizzes {
		c.quizzes[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	for k, v := range s.attempts {
		c.attempts[k] = v
	}
	for k, v := range s.answers {
		c.answers[k] = v
	}
	for k, v := range s.grades {
		c.grades[k] = v
	}
	for k, v := range s.reminders {
		c.reminders[k] = v
	}
	c.nextQuizID, c.nextQuestionID, c.nextAttemptID = s.nextQuizID, s.nextQuestionID, s.nextAttemptID
	c.nextAnswerID, c.nextGradeID = s.nextAnswerID, s.nextGradeID
	return c
}

func (s *Store) restore(c *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.quizzes, s.questions, s.attempts = c.quizzes, c.questions, c.attempts
	s.answers, s.grades, s.reminders = c.answers, c.grades, c.reminders
	s.nextQuizID, s.nextQuestionID, s.nextAttemptID = c.nextQuizID, c.nextQuestionID, c.nextAttemptID
	s.nextAnswerID, s.nextGradeID = c.nextAnswerID, c.nextGradeID
}

// ===== QUIZZES =====

type quizRepo struct{ s *Store }

func (r quizRepo) GetQuiz(ctx context.Context, id uint) (*models.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneQuiz(quiz), nil
}

func (r quizRepo) GetQuestions(ctx context.Context, quizID uint) ([]*models.Question, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Question
	for _, q := range r.s.questions {
		if q.QuizID == quizID {
			out = append(out, cloneQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r quizRepo) UpdateQuizStatus(ctx context.Context, id uint, status models.QuizStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	quiz, ok := r.s.quizzes[id]
	if !ok {
		return repositories.ErrNotFound
	}
	quiz.Status = status
	quiz.UpdatedAt = time.Now()
	r.s.quizzes[id] = quiz
	return nil
}

func (r quizRepo) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now()
	if quiz.ID == 0 {
		r.s.nextQuizID++
		quiz.ID = r.s.nextQuizID
		quiz.CreatedAt = now
	} else if _, ok := r.s.quizzes[quiz.ID]; !ok {
		return repositories.ErrNotFound
	}
	if quiz.Status == "" {
		quiz.Status = models.QuizDraft
	}
	quiz.UpdatedAt = now

	stored := *cloneQuiz(*quiz)
	stored.Questions = nil
	r.s.quizzes[quiz.ID] = stored
	return nil
}

func (r quizRepo) ReplaceQuestions(ctx context.Context, quizID uint, questions []*models.Question) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.quizzes[quizID]; !ok {
		return repositories.ErrNotFound
	}
	for id, q := range r.s.questions {
		if q.QuizID == quizID {
			delete(r.s.questions, id)
		}
	}
	for _, q := range questions {
		r.s.nextQuestionID++
		q.ID = r.s.nextQuestionID
		q.QuizID = quizID
		r.s.questions[q.ID] = *cloneQuestion(*q)
	}
	return nil
}

func (r quizRepo) ListSchedulable(ctx context.Context, until time.Time) ([]*models.Quiz, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Quiz
	for _, q := range r.s.quizzes {
		if q.Status != models.QuizScheduled && q.Status != models.QuizActive {
			continue
		}
		startDue := q.StartTime != nil && !q.StartTime.After(until)
		endDue := q.EndTime != nil && !q.EndTime.After(until)
		if startDue || endDue {
			out = append(out, cloneQuiz(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ===== ATTEMPTS =====

type attemptRepo struct{ s *Store }

func (r attemptRepo) GetAttempt(ctx context.Context, id uint) (*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	attempt, ok := r.s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &attempt, nil
}

func (r attemptRepo) FindOpenAttempt(ctx context.Context, quizID uint, studentID string) (*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.findOpenLocked(quizID, studentID), nil
}

func (s *Store) findOpenLocked(quizID uint, studentID string) *models.Attempt {
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.StudentID == studentID && !a.IsCompleted {
			attempt := a
			return &attempt
		}
	}
	return nil
}

func (s *Store) countLocked(quizID uint, studentID string) int {
	count := 0
	for _, a := range s.attempts {
		if a.QuizID == quizID && a.StudentID == studentID {
			count++
		}
	}
	return count
}

func (r attemptRepo) CountAttempts(ctx context.Context, quizID uint, studentID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.countLocked(quizID, studentID), nil
}

func (r attemptRepo) CreateAttempt(ctx context.Context, attempt *models.Attempt, maxAttempts int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if open := r.s.findOpenLocked(attempt.QuizID, attempt.StudentID); open != nil {
		return &repositories.OpenAttemptError{AttemptID: open.ID}
	}
	count := r.s.countLocked(attempt.QuizID, attempt.StudentID)
	if count >= maxAttempts {
		return repositories.ErrAttemptLimitReached
	}

	r.s.nextAttemptID++
	now := time.Now()
	attempt.ID = r.s.nextAttemptID
	attempt.AttemptNumber = count + 1
	attempt.CreatedAt, attempt.UpdatedAt = now, now

	stored := *attempt
	stored.Answers = nil
	r.s.attempts[attempt.ID] = stored
	return nil
}

func (r attemptRepo) UpdateAttempt(ctx context.Context, attempt *models.Attempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.attempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	attempt.UpdatedAt = time.Now()
	stored := *attempt
	stored.Answers = nil
	r.s.attempts[attempt.ID] = stored
	return nil
}

func (r attemptRepo) CompleteAttempt(ctx context.Context, attempt *models.Attempt) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	current, ok := r.s.attempts[attempt.ID]
	if !ok {
		return false, repositories.ErrNotFound
	}
	if current.IsCompleted {
		return false, nil
	}

	current.IsCompleted = true
	current.SubmittedAt = attempt.SubmittedAt
	current.TimeSpentMinutes = attempt.TimeSpentMinutes
	current.Score = attempt.Score
	current.IsPassed = attempt.IsPassed
	current.Forced = attempt.Forced
	current.UpdatedAt = time.Now()
	r.s.attempts[attempt.ID] = current
	return true, nil
}

func (r attemptRepo) ListOverdue(ctx context.Context, now time.Time) ([]*models.Attempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Attempt
	for _, a := range r.s.attempts {
		if a.IsCompleted {
			continue
		}
		quiz, ok := r.s.quizzes[a.QuizID]
		if !ok {
			continue
		}
		if deadline, limited := a.Deadline(&quiz); limited && deadline.Before(now) {
			attempt := a
			out = append(out, &attempt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out, nil
}

// ===== ANSWERS =====

type answerRepo struct{ s *Store }

func (r answerRepo) UpsertAnswer(ctx context.Context, answer *models.Answer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := answerKey{attemptID: answer.AttemptID, questionID: answer.QuestionID}
	now := time.Now()
	if existing, ok := r.s.answers[key]; ok {
		answer.ID = existing.ID
		answer.CreatedAt = existing.CreatedAt
	} else {
		r.s.nextAnswerID++
		answer.ID = r.s.nextAnswerID
		answer.CreatedAt = now
	}
	answer.UpdatedAt = now
	r.s.answers[key] = *answer
	return nil
}

func (r answerRepo) ListAnswers(ctx context.Context, attemptID uint) ([]*models.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Answer
	for k, a := range r.s.answers {
		if k.attemptID == attemptID {
			answer := a
			out = append(out, &answer)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out, nil
}

func (r answerRepo) GetAnswer(ctx context.Context, id uint) (*models.Answer, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, a := range r.s.answers {
		if a.ID == id {
			answer := a
			return &answer, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r answerRepo) UpdateAnswer(ctx context.Context, answer *models.Answer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := answerKey{attemptID: answer.AttemptID, questionID: answer.QuestionID}
	existing, ok := r.s.answers[key]
	if !ok || existing.ID != answer.ID {
		return repositories.ErrNotFound
	}
	answer.UpdatedAt = time.Now()
	r.s.answers[key] = *answer
	return nil
}

// ===== GRADES =====

type gradeRepo struct{ s *Store }

func (r gradeRepo) CreateGrade(ctx context.Context, grade *models.Grade) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, g := range r.s.grades {
		if g.AttemptID == grade.AttemptID && g.Version == grade.Version {
			return repositories.ErrDuplicate
		}
	}

	r.s.nextGradeID++
	now := time.Now()
	grade.ID = r.s.nextGradeID
	grade.CreatedAt, grade.UpdatedAt = now, now
	r.s.grades[grade.ID] = *grade
	return nil
}

func (r gradeRepo) GetLatestGrade(ctx context.Context, attemptID uint) (*models.Grade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var latest *models.Grade
	for _, g := range r.s.grades {
		if g.AttemptID != attemptID {
			continue
		}
		if latest == nil || g.Version > latest.Version {
			grade := g
			latest = &grade
		}
	}
	if latest == nil {
		return nil, repositories.ErrNotFound
	}
	return latest, nil
}

func (r gradeRepo) ListGradesByQuiz(ctx context.Context, quizID uint) ([]*models.Grade, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*models.Grade
	for _, g := range r.s.grades {
		if g.QuizID == quizID && !g.Superseded {
			grade := g
			out = append(out, &grade)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := strings.Compare(out[i].StudentID, out[j].StudentID); c != 0 {
			return c < 0
		}
		return out[i].AttemptID < out[j].AttemptID
	})
	return out, nil
}

func (r gradeRepo) SupersedeGrades(ctx context.Context, attemptID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for id, g := range r.s.grades {
		if g.AttemptID == attemptID && !g.Superseded {
			g.Superseded = true
			g.UpdatedAt = time.Now()
			r.s.grades[id] = g
		}
	}
	return nil
}

func (r gradeRepo) PublishGrades(ctx context.Context, quizID uint) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, g := range r.s.grades {
		if g.QuizID == quizID && !g.Superseded && !g.IsPublished {
			g.IsPublished = true
			g.UpdatedAt = time.Now()
			r.s.grades[id] = g
			n++
		}
	}
	return n, nil
}

// ===== REMINDERS =====

type reminderRepo struct{ s *Store }

func (r reminderRepo) MarkSent(ctx context.Context, quizID uint, startsAt time.Time, kind models.ReminderKind, recipients int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := reminderKey{quizID: quizID, startsAt: startsAt.Unix(), kind: kind}
	if _, ok := r.s.reminders[key]; ok {
		return false, nil
	}
	r.s.reminders[key] = models.ReminderLog{QuizID: quizID, StartsAt: key.startsAt, Kind: kind, SentAt: time.Now(), Recipient: recipients}
	return true, nil
}

// ===== HELPERS =====

func cloneQuiz(q models.Quiz) *models.Quiz {
	out := q
	if q.PassingMarks != nil {
		v := *q.PassingMarks
		out.PassingMarks = &v
	}
	out.Questions = nil
	return &out
}

func cloneQuestion(q models.Question) *models.Question {
	out := q
	if q.Options != nil {
		out.Options = append([]string(nil), q.Options...)
	}
	return &out
}
