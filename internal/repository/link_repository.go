package repository

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/shortlink/internal/models"
)

var (
	ErrLinkNotFound = errors.New("link not found")
	ErrCodeExists   = errors.New("short code already exists")
)

// LinkRepository контракт хранилища ссылок. Вся координация между
// конкурентными операциями держится на его атомарных примитивах:
// условная запись при создании и атомарный инкремент счётчика кликов.
type LinkRepository interface {
	// Create создаёт запись атомарно и только если кода ещё нет.
	// Коллизия -> ErrCodeExists, частичных состояний не бывает.
	Create(ctx context.Context, link *models.Link) error

	// GetByShortCode возвращает запись как есть, без фильтра по сроку
	// жизни: проверка истечения — дело сервисного слоя.
	GetByShortCode(ctx context.Context, code string) (*models.Link, error)

	// IncrementClicks атомарно увеличивает счётчик кликов и возвращает
	// новое значение. Отсутствующая запись -> ErrLinkNotFound.
	IncrementClicks(ctx context.Context, code string, by int64) (int64, error)

	// ScanExpired возвращает до limit кодов с expires_at <= before.
	// Каждый вызов — свежий скан, курсор между вызовами не сохраняется.
	ScanExpired(ctx context.Context, before time.Time, limit int) ([]string, error)

	// Delete удаляет запись; отсутствие записи не ошибка,
	// found сообщает, было ли что удалять.
	Delete(ctx context.Context, code string) (found bool, err error)

	// NextSequence атомарно увеличивает глобальный счётчик кодов
	// для последовательного режима генерации.
	NextSequence(ctx context.Context) (int64, error)
}
