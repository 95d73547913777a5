package watcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avdushin/minuet-bot/internal/config"
	"github.com/avdushin/minuet-bot/internal/model"
)

// fakeAPI отдаёт по машине заранее заданные слоты или ошибку.
// Слоты копируются: watcher дописывает carId в свою копию.
type fakeAPI struct {
	slots  map[int64][]model.Slot
	errs   map[int64]error
	panics bool
}

func (f *fakeAPI) AvailableSlots(_ context.Context, carID, _ int64, _, _ time.Time) ([]model.Slot, error) {
	if f.panics {
		panic("boom")
	}
	if err := f.errs[carID]; err != nil {
		return nil, err
	}
	slots := make([]model.Slot, len(f.slots[carID]))
	copy(slots, f.slots[carID])
	return slots, nil
}

func (f *fakeAPI) CarInfo(_ context.Context, carID int64) (*model.CarInfo, error) {
	return &model.CarInfo{ID: carID, Name: fmt.Sprintf("Car %d", carID)}, nil
}

type fakeSender struct {
	messages []string
	err      error
}

func (f *fakeSender) Send(_ context.Context, text string) error {
	f.messages = append(f.messages, text)
	return f.err
}

func testConfig(targets ...model.Target) *config.Config {
	return &config.Config{
		Targets:        targets,
		DateFrom:       time.Date(2025, 8, 27, 0, 0, 0, 0, time.UTC),
		DateTo:         time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC),
		BookingURLBase: "https://edu.automiet.ru/cars",
		CheckInterval:  time.Hour,
	}
}

func newTestWatcher(api *fakeAPI, sender *fakeSender, cfg *config.Config) *Watcher {
	w := New(api, sender, cfg, zap.NewNop(),
		WithSendInterval(time.Microsecond),
		WithTargetFailurePause(0))
	w.preloadCarNames(context.Background())
	return w
}

func freeSlot(id int64, at time.Time) model.Slot {
	return model.Slot{ID: id, IsFree: true, DrivingDate: model.LocalTime{Time: at}}
}

var day = time.Date(2025, 9, 3, 14, 30, 0, 0, time.UTC)

func TestFirstCycleEstablishesBaseline(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{
		8: {freeSlot(1, day), freeSlot(2, day.Add(time.Hour))},
	}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	w.runCycle(context.Background())

	// первый проход только фиксирует baseline
	assert.Empty(t, sender.messages)
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, w.known)
}

func TestUnchangedSetReportsNothing(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: {freeSlot(1, day)}}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	w.runCycle(context.Background())
	w.runCycle(context.Background())

	assert.Empty(t, sender.messages)
}

func TestNewSlotReportedOnceAndKnownMatchesCurrent(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: {freeSlot(1, day)}}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	w.runCycle(context.Background())

	api.slots[8] = append(api.slots[8], freeSlot(2, day.Add(time.Hour)))
	w.runCycle(context.Background())

	require.Len(t, sender.messages, 1)
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, w.known)

	// тот же снимок ещё раз — ничего нового
	w.runCycle(context.Background())
	assert.Len(t, sender.messages, 1)
	assert.Equal(t, map[int64]struct{}{1: {}, 2: {}}, w.known)
}

func TestReappearedSlotReportedAgain(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: {freeSlot(1, day)}}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	w.runCycle(context.Background())

	api.slots[8] = nil
	w.runCycle(context.Background())
	assert.Empty(t, w.known)

	api.slots[8] = []model.Slot{freeSlot(1, day)}
	w.runCycle(context.Background())

	require.Len(t, sender.messages, 1)
}

func TestGroupingProducesOneMessagePerCarAndDate(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: nil}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	w.runCycle(context.Background())

	api.slots[8] = []model.Slot{
		freeSlot(1, time.Date(2025, 9, 3, 14, 30, 0, 0, time.UTC)),
		freeSlot(2, time.Date(2025, 9, 3, 8, 0, 0, 0, time.UTC)),
		freeSlot(3, time.Date(2025, 9, 4, 10, 0, 0, 0, time.UTC)),
	}
	w.runCycle(context.Background())

	require.Len(t, sender.messages, 2)
	assert.Contains(t, sender.messages[0], "08:00, 14:30")
	assert.Contains(t, sender.messages[0], `03\.09\.2025`)
	assert.Contains(t, sender.messages[1], `04\.09\.2025`)
	assert.Contains(t, sender.messages[0], "Car 8")
}

func TestTargetFailureDoesNotAbortCycle(t *testing.T) {
	api := &fakeAPI{
		slots: map[int64][]model.Slot{8: nil, 9: nil},
		errs:  map[int64]error{9: errors.New("search failed")},
	}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(
		model.Target{TeacherID: 16, CarID: 8},
		model.Target{TeacherID: 1, CarID: 9},
	))

	w.runCycle(context.Background())

	api.slots[8] = []model.Slot{freeSlot(1, day)}
	w.runCycle(context.Background())

	// цель 9 падает оба цикла, но слот цели 8 всё равно отправлен
	require.Len(t, sender.messages, 1)
	assert.Contains(t, sender.messages[0], "Car 8")
}

func TestDeliveryFailureKeepsSlotKnown(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: nil}}
	sender := &fakeSender{err: errors.New("telegram is down")}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	w.runCycle(context.Background())

	api.slots[8] = []model.Slot{freeSlot(1, day)}
	w.runCycle(context.Background())
	require.Len(t, sender.messages, 1)

	// слот считается известным, на следующем цикле повторной отправки нет
	w.runCycle(context.Background())
	assert.Len(t, sender.messages, 1)
	assert.Equal(t, map[int64]struct{}{1: {}}, w.known)
}

func TestCyclePanicIsRecovered(t *testing.T) {
	api := &fakeAPI{panics: true}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	assert.NotPanics(t, func() {
		w.runCycle(context.Background())
	})
}

func TestRunStopsOnContextCancel(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: nil}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after context cancel")
	}
}

func TestRunStopsOnStop(t *testing.T) {
	api := &fakeAPI{slots: map[int64][]model.Slot{8: nil}}
	sender := &fakeSender{}
	w := newTestWatcher(api, sender, testConfig(model.Target{TeacherID: 16, CarID: 8}))

	done := make(chan struct{})
	go func() {
		w.Run(context.Background())
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	w.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop after Stop")
	}
}
