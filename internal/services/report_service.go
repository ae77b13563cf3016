package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-engine/internal/models"
	"github.com/SAP-F-2025/quiz-engine/internal/repositories"
)

const gradebookSheet = "Grades"

type reportService struct {
	repo   repositories.Repository
	logger *slog.Logger
	log    *ServiceLogger
}

func NewReportService(repo repositories.Repository, logger *slog.Logger) ReportService {
	return &reportService{
		repo:   repo,
		logger: logger,
		log:    NewServiceLogger(logger, LogConfig{Service: "quiz-engine", Component: "report"}),
	}
}

// ExportGrades renders the quiz's current grades as an xlsx gradebook
func (s *reportService) ExportGrades(ctx context.Context, caller CallerContext, quizID uint) ([]byte, error) {
	op := s.log.WithOperation(ctx, "export_grades", caller.StudentID)
	data, err := s.exportGrades(ctx, caller, quizID)
	op.LogResult(quizID, "quiz", err)
	return data, err
}

func (s *reportService) exportGrades(ctx context.Context, caller CallerContext, quizID uint) ([]byte, error) {
	if !caller.Role.CanGrade() {
		return nil, ErrForbidden
	}

	quiz, err := s.repo.Quiz().GetQuiz(ctx, quizID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuizNotFound
		}
		return nil, collaboratorFailure("quiz_repository", "get_quiz", err)
	}

	grades, err := s.repo.Grade().ListGradesByQuiz(ctx, quizID)
	if err != nil {
		return nil, collaboratorFailure("grade_repository", "list_grades_by_quiz", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(gradebookSheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	headers := []interface{}{
		"Student ID", "Attempt ID", "Marks", "Max Marks", "Percentage", "Grade", "Passed", "Version", "Published", "Graded By",
	}
	if err := f.SetSheetRow(gradebookSheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("failed to write header row: %w", err)
	}

	for i, grade := range grades {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := gradeRow(grade)
		if err := f.SetSheetRow(gradebookSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write grade row: %w", err)
		}
	}

	stats := repositories.ComputeGradeStats(quizID, grades)
	summary := [][]interface{}{
		{"Quiz", quiz.Title},
		{"Graded attempts", stats.GradedAttempts},
		{"Passed", stats.PassedCount},
		{"Average marks", stats.AverageMarks},
		{"Pass rate (%)", stats.PassRate},
	}
	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(12, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(gradebookSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}

	s.logger.Info("Gradebook exported", "quiz_id", quizID, "rows", len(grades))
	return buf.Bytes(), nil
}

func gradeRow(grade *models.Grade) []interface{} {
	gradedBy := ""
	if grade.GradedBy != nil {
		gradedBy = *grade.GradedBy
	}
	return []interface{}{
		grade.StudentID,
		grade.AttemptID,
		grade.Marks,
		grade.MaxMarks,
		grade.Percentage,
		grade.Grade,
		grade.IsPassed,
		grade.Version,
		grade.IsPublished,
		gradedBy,
	}
}
