package watcher

import (
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
)

// composeMessage собирает MarkdownV2-сообщение об одной группе новых
// слотов. Весь динамический текст проходит через экранирование:
// MarkdownV2 ломается на неэкранированной пунктуации.
func composeMessage(carName string, group slotGroup, bookingURLBase string) string {
	safeName := bot.EscapeMarkdown(carName)
	safeDate := bot.EscapeMarkdown(group.Date.Format("02.01.2006"))
	safeTimes := bot.EscapeMarkdown(strings.Join(group.Times, ", "))
	safeURL := bot.EscapeMarkdown(fmt.Sprintf("%s/%d?transmission=0", bookingURLBase, group.CarID))

	return fmt.Sprintf(
		"🚗 *%s*\n\n"+
			"Доступные для записи занятия:\n\n"+
			"📅 *Дата:* %s\n"+
			"⏰ *Время:* %s\n\n"+
			"[Записаться](%s)",
		safeName, safeDate, safeTimes, safeURL)
}
