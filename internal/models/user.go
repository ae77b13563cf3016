package models

type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleInstructor UserRole = "instructor"
	RoleGrader     UserRole = "grader"
	RoleAdmin      UserRole = "admin"
)

// CanGrade reports whether the role may record manual marks or regrade attempts.
func (r UserRole) CanGrade() bool {
	return r == RoleInstructor || r == RoleGrader || r == RoleAdmin
}

// CanManageQuizzes reports whether the role may publish or activate quizzes.
func (r UserRole) CanManageQuizzes() bool {
	return r == RoleInstructor || r == RoleAdmin
}
