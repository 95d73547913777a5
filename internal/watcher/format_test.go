package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComposeMessageEscapesDynamicContent(t *testing.T) {
	group := slotGroup{
		CarID: 8,
		Date:  time.Date(2025, 9, 3, 0, 0, 0, 0, time.UTC),
		Times: []string{"08:00", "14:30"},
	}

	text := composeMessage("Дата: 1.2 (тест)!", group, "https://edu.automiet.ru/cars")

	// пунктуация MarkdownV2 в имени машины экранирована, буквы и цифры нет
	assert.Contains(t, text, `Дата: 1\.2 \(тест\)\!`)
	assert.Contains(t, text, `03\.09\.2025`)
	assert.Contains(t, text, "08:00, 14:30")
	assert.Contains(t, text, `(https://edu\.automiet\.ru/cars/8?transmission\=0)`)
	assert.Contains(t, text, "[Записаться]")
}

func TestComposeMessageLayout(t *testing.T) {
	group := slotGroup{
		CarID: 1,
		Date:  time.Date(2025, 10, 12, 0, 0, 0, 0, time.UTC),
		Times: []string{"09:00"},
	}

	text := composeMessage("Kia Rio", group, "https://edu.automiet.ru/cars")

	assert.Contains(t, text, "🚗 *Kia Rio*")
	assert.Contains(t, text, `📅 *Дата:* 12\.10\.2025`)
	assert.Contains(t, text, "⏰ *Время:* 09:00")
}
