package service

import (
	"context"
	"sync"
	"time"

	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Константы свипера
const (
	defaultSweepInterval  = time.Minute
	defaultSweepBatchSize = 100
	sweepTimeout          = 10 * time.Second
)

// Sweeper периодически удаляет истёкшие записи ограниченными пачками.
// Единственный компонент с детерминированным удалением: пассивное
// вытеснение хранилища — не более чем оптимизация.
type Sweeper struct {
	repo      repository.LinkRepository
	logger    *zap.Logger
	interval  time.Duration
	batchSize int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewSweeper создаёт новый экземпляр свипера
func NewSweeper(repo repository.LinkRepository, interval time.Duration, batchSize int, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if batchSize <= 0 {
		batchSize = defaultSweepBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		repo:      repo,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Start запускает фоновый цикл очистки
func (s *Sweeper) Start() {
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.logger.Info("Запуск свипера истёкших ссылок",
		zap.Duration("interval", s.interval),
		zap.Int("batch_size", s.batchSize),
	)

	s.wg.Add(1)
	go s.run()
}

// Stop корректно останавливает свипер
func (s *Sweeper) Stop() {
	s.logger.Info("Остановка свипера...")
	s.cancel()
	s.wg.Wait()
	s.logger.Info("Свипер остановлен")
}

// run выполняет очистку по тикеру. Ошибки не фатальны: следующий тик —
// естественный ретрай
func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.sweepAll()
		}
	}
}

// sweepAll прогоняет пачки, пока скан усечён лимитом
func (s *Sweeper) sweepAll() {
	for {
		ctx, cancel := context.WithTimeout(s.ctx, sweepTimeout)
		deleted, hadMore, err := s.Sweep(ctx, s.batchSize)
		cancel()

		if err != nil {
			s.logger.Error("Ошибка очистки истёкших ссылок", zap.Error(err))
			return
		}
		if deleted > 0 {
			s.logger.Info("Удалены истёкшие ссылки",
				zap.Int("deleted", deleted),
				zap.Bool("had_more", hadMore),
			)
		}
		if !hadMore {
			return
		}
	}
}

// Sweep удаляет до batchSize истёкших записей. Возвращает число реально
// удалённых и признак, что скан был усечён лимитом. Запись, исчезнувшая
// между сканом и удалением, не ошибка: удаление идемпотентно.
func (s *Sweeper) Sweep(ctx context.Context, batchSize int) (int, bool, error) {
	// Запрашиваем на одну запись больше, чтобы отличить "ровно пачка"
	// от "остались ещё"
	codes, err := s.repo.ScanExpired(ctx, time.Now(), batchSize+1)
	if err != nil {
		return 0, false, err
	}

	hadMore := len(codes) > batchSize
	if hadMore {
		codes = codes[:batchSize]
	}

	deleted := 0
	for _, code := range codes {
		found, err := s.repo.Delete(ctx, code)
		if err != nil {
			s.logger.Warn("Не удалось удалить истёкшую ссылку",
				zap.String("code", code),
				zap.Error(err),
			)
			continue
		}
		if found {
			deleted++
		}
	}

	return deleted, hadMore, nil
}
