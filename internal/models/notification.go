package models

type NotificationType string
type NotificationPriority int

const (
	NotificationQuizUpcoming     NotificationType = "quiz_upcoming"
	NotificationQuizStartingSoon NotificationType = "quiz_starting_soon"
	NotificationResultAvailable  NotificationType = "result_available"

	PriorityLow      NotificationPriority = 1
	PriorityNormal   NotificationPriority = 2
	PriorityHigh     NotificationPriority = 3
	PriorityCritical NotificationPriority = 4
)
