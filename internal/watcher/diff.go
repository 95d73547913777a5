package watcher

import (
	"sort"
	"time"

	"github.com/avdushin/minuet-bot/internal/model"
)

// idSet собирает множество идентификаторов наблюдаемых слотов.
func idSet(slots []model.Slot) map[int64]struct{} {
	ids := make(map[int64]struct{}, len(slots))
	for _, slot := range slots {
		ids[slot.ID] = struct{}{}
	}
	return ids
}

// filterNew оставляет слоты, которых не было в known на конец
// предыдущего цикла.
func filterNew(slots []model.Slot, known map[int64]struct{}) []model.Slot {
	var fresh []model.Slot
	for _, slot := range slots {
		if _, ok := known[slot.ID]; !ok {
			fresh = append(fresh, slot)
		}
	}
	return fresh
}

// intersect выбрасывает из known идентификаторы, которых нет в current.
// Исчезнувший и вновь появившийся слот будет заново считаться новым.
func intersect(known, current map[int64]struct{}) {
	for id := range known {
		if _, ok := current[id]; !ok {
			delete(known, id)
		}
	}
}

// slotGroup — новые слоты одной машины на одну календарную дату.
type slotGroup struct {
	CarID int64
	Date  time.Time
	Times []string
}

// groupSlots группирует слоты по (машина, дата). Группы идут в порядке
// (carID, дата), времена внутри группы отсортированы по возрастанию.
func groupSlots(slots []model.Slot) []slotGroup {
	type groupKey struct {
		carID int64
		date  string
	}

	byKey := make(map[groupKey]*slotGroup)
	for _, slot := range slots {
		day := time.Date(slot.DrivingDate.Year(), slot.DrivingDate.Month(), slot.DrivingDate.Day(),
			0, 0, 0, 0, slot.DrivingDate.Location())
		key := groupKey{carID: slot.CarID, date: day.Format("2006-01-02")}

		group, ok := byKey[key]
		if !ok {
			group = &slotGroup{CarID: slot.CarID, Date: day}
			byKey[key] = group
		}
		group.Times = append(group.Times, slot.DrivingDate.Format("15:04"))
	}

	groups := make([]slotGroup, 0, len(byKey))
	for _, group := range byKey {
		sort.Strings(group.Times)
		groups = append(groups, *group)
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].CarID != groups[j].CarID {
			return groups[i].CarID < groups[j].CarID
		}
		return groups[i].Date.Before(groups[j].Date)
	})
	return groups
}
