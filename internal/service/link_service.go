package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/SergeiKhy/shortlink/internal/generator"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrInvalidURL          = errors.New("невалидный URL")
	ErrInvalidTTL          = errors.New("TTL превышает максимально допустимый")
	ErrInvalidAlias        = errors.New("невалидный кастомный код")
	ErrAliasTaken          = errors.New("кастомный код уже занят")
	ErrAllocationExhausted = errors.New("не удалось подобрать свободный код")
	ErrLinkExpired         = errors.New("срок жизни ссылки истёк")
)

// Режимы генерации кодов
const (
	CodeModeRandom     = "random"
	CodeModeSequential = "sequential"

	// Предел попыток при коллизиях случайных кодов. Исчерпание —
	// операционный сигнал (мало энтропии в конфигурации), не ошибка клиента.
	maxAllocateAttempts = 5
)

var urlPattern = regexp.MustCompile(`^https?://[^\s]+$`)

// Options политика аллокации ссылок
type Options struct {
	DefaultTTL   time.Duration
	MaxTTL       time.Duration
	CodeMode     string
	AliasEnabled bool
	MaxURLLength int
}

// LinkService интерфейс сервиса ссылок
type LinkService interface {
	CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error)
	ResolveLink(ctx context.Context, code string) (*models.Link, error)
	GetStats(ctx context.Context, code string) (*models.LinkStats, error)
	DeleteLink(ctx context.Context, code string) error
}

// linkService реализация сервиса ссылок
type linkService struct {
	repo   repository.LinkRepository
	gen    *generator.Generator
	opts   Options
	logger *zap.Logger
}

// NewLinkService создаёт новый экземпляр сервиса
func NewLinkService(repo repository.LinkRepository, gen *generator.Generator, opts Options, logger *zap.Logger) LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &linkService{
		repo:   repo,
		gen:    gen,
		opts:   opts,
		logger: logger,
	}
}

// CreateLink создаёт новую короткую ссылку. Уникальность кода обеспечивает
// только условная запись хранилища: никаких предварительных чтений.
func (s *linkService) CreateLink(ctx context.Context, input *models.CreateLinkInput) (*models.Link, error) {
	if err := s.validateURL(input.OriginalURL); err != nil {
		return nil, err
	}

	ttl, err := s.resolveTTL(input.TTLSeconds)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	link := &models.Link{
		OriginalURL: input.OriginalURL,
		Owner:       input.Owner,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}

	// Путь с alias: одна условная запись, коллизия не перегенерируется —
	// выбранный пользователем код нельзя молча подменить
	if input.CustomCode != nil && *input.CustomCode != "" {
		if !s.opts.AliasEnabled {
			return nil, ErrInvalidAlias
		}
		if err := s.gen.ValidateAlias(*input.CustomCode); err != nil {
			return nil, ErrInvalidAlias
		}

		link.ShortCode = *input.CustomCode
		if err := s.repo.Create(ctx, link); err != nil {
			if errors.Is(err, repository.ErrCodeExists) {
				return nil, ErrAliasTaken
			}
			return nil, err
		}
		return link, nil
	}

	// Путь с генерацией: ограниченное число попыток при коллизиях
	for attempt := 0; attempt < maxAllocateAttempts; attempt++ {
		code, err := s.nextCode(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to generate code: %w", err)
		}

		link.ShortCode = code
		err = s.repo.Create(ctx, link)
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			// Сбои хранилища не ретраим: повтор мог бы задвоить запись
			return nil, err
		}

		s.logger.Warn("Коллизия сгенерированного кода, повторная попытка",
			zap.String("code", code),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, ErrAllocationExhausted
}

// ResolveLink возвращает ссылку по коду и атомарно увеличивает счётчик
// кликов. Истёкшая запись логически отсутствует, её удаление — дело свипера.
func (s *linkService) ResolveLink(ctx context.Context, code string) (*models.Link, error) {
	link, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.ExpiredAt(time.Now()) {
		return nil, ErrLinkExpired
	}

	clicks, err := s.repo.IncrementClicks(ctx, code, 1)
	if err != nil {
		// Запись могла исчезнуть между чтением и инкрементом
		return nil, err
	}
	link.Clicks = clicks

	return link, nil
}

// GetStats возвращает проекцию записи для отчётности. Истёкшие записи
// отсутствуют и здесь — внешняя семантика совпадает с ResolveLink.
func (s *linkService) GetStats(ctx context.Context, code string) (*models.LinkStats, error) {
	link, err := s.repo.GetByShortCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if link.ExpiredAt(time.Now()) {
		return nil, ErrLinkExpired
	}

	return &models.LinkStats{
		ShortCode:   link.ShortCode,
		OriginalURL: link.OriginalURL,
		Clicks:      link.Clicks,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
	}, nil
}

// DeleteLink удаляет ссылку по короткому коду
func (s *linkService) DeleteLink(ctx context.Context, code string) error {
	found, err := s.repo.Delete(ctx, code)
	if err != nil {
		return err
	}
	if !found {
		return repository.ErrLinkNotFound
	}
	return nil
}

// nextCode выдаёт кандидата в зависимости от режима генерации
func (s *linkService) nextCode(ctx context.Context) (string, error) {
	if s.opts.CodeMode == CodeModeSequential {
		next, err := s.repo.NextSequence(ctx)
		if err != nil {
			return "", err
		}
		return s.gen.EncodeSequence(next), nil
	}
	return s.gen.Generate()
}

// resolveTTL выбирает TTL: клиентское значение в пределах максимума,
// иначе значение по умолчанию
func (s *linkService) resolveTTL(ttlSeconds *int64) (time.Duration, error) {
	if ttlSeconds == nil {
		return s.opts.DefaultTTL, nil
	}

	ttl := time.Duration(*ttlSeconds) * time.Second
	if ttl <= 0 || ttl > s.opts.MaxTTL {
		return 0, ErrInvalidTTL
	}
	return ttl, nil
}

// validateURL проверяет формат и длину целевого URL
func (s *linkService) validateURL(url string) error {
	if len(url) > s.opts.MaxURLLength {
		return ErrInvalidURL
	}
	if !urlPattern.MatchString(url) {
		return ErrInvalidURL
	}
	return nil
}
