package services

import "github.com/SAP-F-2025/quiz-engine/internal/models"

// CallerContext identifies who is invoking an operation. StudentID carries the
// caller's user id for every role.
type CallerContext struct {
	StudentID string          `json:"student_id"`
	Role      models.UserRole `json:"role"`
}

func (c CallerContext) IsStudent() bool {
	return c.Role == models.RoleStudent || c.Role == ""
}

// owns reports whether the caller may act on a resource belonging to studentID
func (c CallerContext) owns(studentID string) bool {
	return c.StudentID != "" && c.StudentID == studentID
}

// canView reports whether the caller may read a resource belonging to studentID
func (c CallerContext) canView(studentID string) bool {
	return c.owns(studentID) || c.Role.CanGrade()
}
