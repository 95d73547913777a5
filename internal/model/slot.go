package model

import (
	"fmt"
	"time"
)

// Slot — одно занятие, доступное для записи.
// CarID не приходит от бэкенда: он подставляется вызывающей стороной
// из параметров поиска до слияния результатов разных целей.
type Slot struct {
	ID          int64     `json:"id"`
	IsFree      bool      `json:"isFree"`
	DrivingDate LocalTime `json:"drivingDate"`
	CarID       int64     `json:"-"`
}

// LocalTime — момент времени в локальном времени бэкенда.
// Бэкенд отдаёт ISO-8601 как с офсетом, так и без него.
type LocalTime struct {
	time.Time
}

var localTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func (t *LocalTime) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("driving date is not a string: %s", data)
	}
	s := string(data[1 : len(data)-1])

	var lastErr error
	for _, layout := range localTimeLayouts {
		parsed, err := time.Parse(layout, s)
		if err == nil {
			t.Time = parsed
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("parse driving date %q: %w", s, lastErr)
}

func (t LocalTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.Format("2006-01-02T15:04:05") + `"`), nil
}
