package model

// Target — отслеживаемая пара (инструктор, машина).
// Диапазон дат общий для всех целей и живёт в конфигурации.
type Target struct {
	TeacherID int64 `json:"teacherId" validate:"required"`
	CarID     int64 `json:"carId" validate:"required"`
}
