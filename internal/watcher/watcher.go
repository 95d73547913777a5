package watcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/avdushin/minuet-bot/internal/config"
	"github.com/avdushin/minuet-bot/internal/model"
)

// SlotAPI — часть клиента автошколы, нужная циклу мониторинга.
type SlotAPI interface {
	AvailableSlots(ctx context.Context, carID, teacherID int64, dateFrom, dateTo time.Time) ([]model.Slot, error)
	CarInfo(ctx context.Context, carID int64) (*model.CarInfo, error)
}

// Sender доставляет готовое сообщение в канал уведомлений.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// Watcher — цикл опроса и диффа. Единственный владелец множества
// известных слотов; кроме него это состояние никто не читает и не пишет.
type Watcher struct {
	api    SlotAPI
	sender Sender
	cfg    *config.Config
	logger *zap.Logger

	sendLimiter *rate.Limiter
	targetPause time.Duration
	stopChan    chan struct{}

	known    map[int64]struct{}
	firstRun bool
	carNames map[int64]string
}

type Option func(*Watcher)

// WithSendInterval меняет темп отправки уведомлений внутри одного цикла.
func WithSendInterval(d time.Duration) Option {
	return func(w *Watcher) {
		w.sendLimiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithTargetFailurePause меняет паузу после неудачного запроса по цели.
func WithTargetFailurePause(d time.Duration) Option {
	return func(w *Watcher) {
		w.targetPause = d
	}
}

// New создаёт мониторинг поверх клиента и нотификатора.
func New(api SlotAPI, sender Sender, cfg *config.Config, logger *zap.Logger, opts ...Option) *Watcher {
	w := &Watcher{
		api:         api,
		sender:      sender,
		cfg:         cfg,
		logger:      logger,
		sendLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
		targetPause: time.Second,
		stopChan:    make(chan struct{}),
		known:       make(map[int64]struct{}),
		firstRun:    true,
		carNames:    make(map[int64]string),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run крутит цикл мониторинга до отмены контекста или Stop.
// Первый цикл выполняется сразу и только устанавливает baseline.
func (w *Watcher) Run(ctx context.Context) {
	w.preloadCarNames(ctx)

	w.logger.Info("Monitoring started",
		zap.Duration("interval", w.cfg.CheckInterval),
		zap.Int("targets", len(w.cfg.Targets)))

	w.runCycle(ctx)

	ticker := time.NewTicker(w.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runCycle(ctx)
		case <-w.stopChan:
			w.logger.Info("Monitoring stopped")
			return
		case <-ctx.Done():
			w.logger.Info("Monitoring cancelled")
			return
		}
	}
}

// Stop останавливает цикл на ближайшей точке ожидания.
func (w *Watcher) Stop() {
	close(w.stopChan)
}

// preloadCarNames один раз загружает отображаемые имена машин.
// Неудача не фатальна: вместо имени останется подстановка по id.
func (w *Watcher) preloadCarNames(ctx context.Context) {
	for _, target := range w.cfg.Targets {
		if _, ok := w.carNames[target.CarID]; ok {
			continue
		}
		info, err := w.api.CarInfo(ctx, target.CarID)
		if err != nil {
			w.logger.Error("Failed to fetch car info",
				zap.Int64("car_id", target.CarID),
				zap.Error(err))
			continue
		}
		w.carNames[target.CarID] = info.Name
	}
	w.logger.Info("Car names loaded", zap.Int("count", len(w.carNames)))
}

func (w *Watcher) carName(carID int64) string {
	if name, ok := w.carNames[carID]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Машина %d", carID)
}

// runCycle — одна итерация опроса. Паника внутри итерации гасится
// на её границе, цикл продолжает работать.
func (w *Watcher) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			cyclePanicsTotal.Inc()
			w.logger.Error("Polling cycle failed",
				zap.Any("panic", r),
				zap.Duration("retry_in", w.cfg.CheckInterval))
		}
	}()

	if ctx.Err() != nil {
		return
	}

	log := w.logger.With(zap.String("cycle_id", uuid.NewString()))

	observed := w.collect(ctx, log)
	current := idSet(observed)
	freeSlotsCurrent.Set(float64(len(current)))

	if w.firstRun {
		w.known = current
		w.firstRun = false
		log.Info("Initial check complete", zap.Int("free_slots", len(current)))
		cyclesTotal.Inc()
		return
	}

	fresh := filterNew(observed, w.known)
	if len(fresh) == 0 {
		log.Info("No new free slots")
	} else {
		log.Info("New free slots found", zap.Int("count", len(fresh)))
		newSlotsTotal.Add(float64(len(fresh)))

		w.report(ctx, log, fresh)

		for _, slot := range fresh {
			w.known[slot.ID] = struct{}{}
		}
	}

	intersect(w.known, current)
	cyclesTotal.Inc()
}

// collect опрашивает все цели, подставляет carId в результаты и сливает
// их в одно наблюдаемое множество. Ошибка по одной цели не срывает цикл.
func (w *Watcher) collect(ctx context.Context, log *zap.Logger) []model.Slot {
	var observed []model.Slot
	for _, target := range w.cfg.Targets {
		slots, err := w.api.AvailableSlots(ctx, target.CarID, target.TeacherID, w.cfg.DateFrom, w.cfg.DateTo)
		if err != nil {
			fetchErrorsTotal.Inc()
			log.Error("Failed to fetch slots",
				zap.Int64("teacher_id", target.TeacherID),
				zap.Int64("car_id", target.CarID),
				zap.Error(err))
			select {
			case <-time.After(w.targetPause):
			case <-ctx.Done():
				return observed
			}
			continue
		}

		for i := range slots {
			slots[i].CarID = target.CarID
		}
		observed = append(observed, slots...)
	}
	return observed
}

// report группирует новые слоты и отправляет по сообщению на группу,
// выдерживая темп, чтобы не упереться в лимиты канала.
func (w *Watcher) report(ctx context.Context, log *zap.Logger, fresh []model.Slot) {
	for _, group := range groupSlots(fresh) {
		if err := w.sendLimiter.Wait(ctx); err != nil {
			return
		}

		text := composeMessage(w.carName(group.CarID), group, w.cfg.BookingURLBase)
		if err := w.sender.Send(ctx, text); err != nil {
			notificationsFailedTotal.Inc()
			log.Error("Notification delivery failed",
				zap.Int64("car_id", group.CarID),
				zap.String("date", group.Date.Format("02.01.2006")),
				zap.Error(err))
			continue
		}
		notificationsSentTotal.Inc()
	}
}
