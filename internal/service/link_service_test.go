package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/SergeiKhy/shortlink/internal/generator"
	"github.com/SergeiKhy/shortlink/internal/models"
	"github.com/SergeiKhy/shortlink/internal/repository"
	"github.com/SergeiKhy/shortlink/internal/service"
	"github.com/SergeiKhy/shortlink/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultOptions() service.Options {
	return service.Options{
		DefaultTTL:   24 * time.Hour,
		MaxTTL:       30 * 24 * time.Hour,
		CodeMode:     service.CodeModeRandom,
		AliasEnabled: true,
		MaxURLLength: 2048,
	}
}

// setupTestService создаёт тестовое окружение с моковым хранилищем
func setupTestService(opts service.Options) (service.LinkService, *mocks.MockLinkRepository) {
	repo := mocks.NewMockLinkRepository()
	gen := generator.New(generator.Policy{
		CodeLength:     7,
		AliasMinLength: 4,
		AliasMaxLength: 32,
	})
	logger, _ := zap.NewDevelopment()
	linkService := service.NewLinkService(repo, gen, opts, logger)
	return linkService, repo
}

// TestLinkService_CreateLink_Success проверяет успешное создание ссылки
func TestLinkService_CreateLink_Success(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())

	input := &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
		Owner:       "team-payments",
	}

	ctx := context.Background()
	link, err := linkService.CreateLink(ctx, input)

	require.NoError(t, err)
	assert.Len(t, link.ShortCode, 7)
	assert.Equal(t, input.OriginalURL, link.OriginalURL)
	assert.Equal(t, "team-payments", link.Owner)
	assert.Equal(t, int64(0), link.Clicks)
	// TTL по умолчанию
	assert.WithinDuration(t, link.CreatedAt.Add(24*time.Hour), link.ExpiresAt, time.Second)
}

// TestLinkService_CreateLink_WithAlias проверяет создание ссылки с кастомным кодом
func TestLinkService_CreateLink_WithAlias(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())

	customCode := "launch"
	input := &models.CreateLinkInput{
		OriginalURL: "https://example.com/docs",
		CustomCode:  &customCode,
	}

	ctx := context.Background()
	link, err := linkService.CreateLink(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, "launch", link.ShortCode)
}

// TestLinkService_CreateLink_AliasTaken проверяет, что занятый alias не
// перевыделяется и повторная попытка не трогает исходную запись
func TestLinkService_CreateLink_AliasTaken(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	ctx := context.Background()

	customCode := "launch"
	first, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/docs",
		CustomCode:  &customCode,
	})
	require.NoError(t, err)

	// Накручиваем клики, чтобы убедиться, что коллизия их не сбросит
	_, err = linkService.ResolveLink(ctx, "launch")
	require.NoError(t, err)

	second, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://other.example.com",
		CustomCode:  &customCode,
	})
	assert.ErrorIs(t, err, service.ErrAliasTaken)
	assert.Nil(t, second)

	// Исходная запись не изменилась
	stored, err := repo.GetByShortCode(ctx, "launch")
	require.NoError(t, err)
	assert.Equal(t, first.OriginalURL, stored.OriginalURL)
	assert.Equal(t, int64(1), stored.Clicks)
}

// TestLinkService_CreateLink_AliasDisabled проверяет отклонение alias'а
// при выключенном режиме
func TestLinkService_CreateLink_AliasDisabled(t *testing.T) {
	opts := defaultOptions()
	opts.AliasEnabled = false
	linkService, _ := setupTestService(opts)

	customCode := "launch"
	link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		CustomCode:  &customCode,
	})

	assert.ErrorIs(t, err, service.ErrInvalidAlias)
	assert.Nil(t, link)
}

// TestLinkService_CreateLink_InvalidAlias проверяет валидацию кастомного кода
func TestLinkService_CreateLink_InvalidAlias(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())

	// Слишком короткий, недопустимые символы, зарезервированное слово
	invalidCodes := []string{"ab", "invalid@code", "links"}

	for _, code := range invalidCodes {
		customCode := code
		link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
			OriginalURL: "https://example.com/test",
			CustomCode:  &customCode,
		})

		assert.ErrorIs(t, err, service.ErrInvalidAlias)
		assert.Nil(t, link)
	}

	// Ни одна запись не создана
	assert.Equal(t, 0, repo.Len())
}

// TestLinkService_CreateLink_InvalidURL проверяет отклонение невалидного URL
func TestLinkService_CreateLink_InvalidURL(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())

	invalidURLs := []string{"not-a-url", "ftp://example.com", "", "example.com"}
	for _, url := range invalidURLs {
		link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
			OriginalURL: url,
		})
		assert.ErrorIs(t, err, service.ErrInvalidURL, "URL должен быть невалидным: %s", url)
		assert.Nil(t, link)
	}
}

// TestLinkService_CreateLink_TTL проверяет выбор TTL и отклонение
// значения выше максимума
func TestLinkService_CreateLink_TTL(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	ctx := context.Background()

	// Клиентский TTL в пределах максимума
	ttl := int64(86400)
	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com",
		TTLSeconds:  &ttl,
	})
	require.NoError(t, err)
	assert.WithinDuration(t, link.CreatedAt.Add(24*time.Hour), link.ExpiresAt, time.Second)

	// TTL выше максимума: ошибка, запись не создаётся
	before := repo.Len()
	tooLong := int64(90 * 24 * 3600)
	link, err = linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/too-long",
		TTLSeconds:  &tooLong,
	})
	assert.ErrorIs(t, err, service.ErrInvalidTTL)
	assert.Nil(t, link)
	assert.Equal(t, before, repo.Len())

	// Неположительный TTL тоже отклоняется
	negative := int64(-1)
	_, err = linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/negative",
		TTLSeconds:  &negative,
	})
	assert.ErrorIs(t, err, service.ErrInvalidTTL)
}

// TestLinkService_CreateLink_Exhausted проверяет ограниченный ретрай
// при коллизиях сгенерированных кодов
func TestLinkService_CreateLink_Exhausted(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	repo.ForceCodeExists = true

	link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
	})

	assert.ErrorIs(t, err, service.ErrAllocationExhausted)
	assert.Nil(t, link)
}

// TestLinkService_CreateLink_StoreFailure проверяет, что сбой хранилища
// не ретраится и отдаётся вызывающему как есть
func TestLinkService_CreateLink_StoreFailure(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	storeErr := errors.New("connection reset")
	repo.FailWith = storeErr

	link, err := linkService.CreateLink(context.Background(), &models.CreateLinkInput{
		OriginalURL: "https://example.com",
	})

	assert.ErrorIs(t, err, storeErr)
	assert.Nil(t, link)
}

// TestLinkService_CreateLink_Sequential проверяет последовательный режим:
// коды берутся из атомарного счётчика хранилища
func TestLinkService_CreateLink_Sequential(t *testing.T) {
	opts := defaultOptions()
	opts.CodeMode = service.CodeModeSequential
	linkService, _ := setupTestService(opts)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
			OriginalURL: fmt.Sprintf("https://example.com/%d", i),
		})
		require.NoError(t, err)
		assert.NotContains(t, seen, link.ShortCode)
		seen[link.ShortCode] = true
	}
}

// TestLinkService_ResolveLink проверяет резолв и рост счётчика кликов
func TestLinkService_ResolveLink(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	})
	require.NoError(t, err)

	for i := int64(1); i <= 3; i++ {
		link, err := linkService.ResolveLink(ctx, created.ShortCode)
		require.NoError(t, err)
		assert.Equal(t, created.OriginalURL, link.OriginalURL)
		assert.Equal(t, i, link.Clicks, "каждый резолв увеличивает счётчик ровно на 1")
	}
}

// TestLinkService_ResolveLink_NotFound проверяет обработку несуществующего кода
func TestLinkService_ResolveLink_NotFound(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())

	link, err := linkService.ResolveLink(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
	assert.Nil(t, link)
}

// TestLinkService_ResolveLink_Expired проверяет, что истёкшая запись
// логически отсутствует, но физически не удаляется резолвом
func TestLinkService_ResolveLink_Expired(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	})
	require.NoError(t, err)

	repo.Expire(created.ShortCode, time.Now().Add(-time.Second))

	link, err := linkService.ResolveLink(ctx, created.ShortCode)
	assert.ErrorIs(t, err, service.ErrLinkExpired)
	assert.Nil(t, link)

	// Удаление — дело свипера, запись всё ещё в хранилище
	assert.Equal(t, 1, repo.Len())

	// Счётчик не увеличился
	stored, err := repo.GetByShortCode(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stored.Clicks)
}

// TestLinkService_GetStats проверяет проекцию статистики
func TestLinkService_GetStats(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	})
	require.NoError(t, err)

	_, err = linkService.ResolveLink(ctx, created.ShortCode)
	require.NoError(t, err)

	stats, err := linkService.GetStats(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, created.ShortCode, stats.ShortCode)
	assert.Equal(t, created.OriginalURL, stats.OriginalURL)
	assert.Equal(t, int64(1), stats.Clicks)
	assert.Equal(t, created.ExpiresAt.Unix(), stats.ExpiresAt.Unix())
}

// TestLinkService_GetStats_Expired проверяет, что статистика истёкшей
// записи отдаётся как not found — семантика совпадает с резолвом
func TestLinkService_GetStats_Expired(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	})
	require.NoError(t, err)

	repo.Expire(created.ShortCode, time.Now())

	stats, err := linkService.GetStats(ctx, created.ShortCode)
	assert.ErrorIs(t, err, service.ErrLinkExpired)
	assert.Nil(t, stats)
}

// TestLinkService_DeleteLink проверяет удаление ссылки
func TestLinkService_DeleteLink(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/test",
	})
	require.NoError(t, err)

	require.NoError(t, linkService.DeleteLink(ctx, created.ShortCode))

	err = linkService.DeleteLink(ctx, created.ShortCode)
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}

// TestLinkService_ConcurrentAllocation проверяет, что параллельные
// аллокации дают попарно различные коды
func TestLinkService_ConcurrentAllocation(t *testing.T) {
	linkService, _ := setupTestService(defaultOptions())
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	codes := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
				OriginalURL: fmt.Sprintf("https://example.com/test%d", id),
			})
			assert.NoError(t, err)
			if link != nil {
				codes <- link.ShortCode
			}
		}(i)
	}

	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		assert.False(t, seen[code], "коды должны быть попарно различны")
		seen[code] = true
	}
	assert.Len(t, seen, n)
}

// TestLinkService_ConcurrentResolve проверяет, что при параллельных
// резолвах одного кода инкременты не теряются
func TestLinkService_ConcurrentResolve(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	ctx := context.Background()

	created, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/hot",
	})
	require.NoError(t, err)

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := linkService.ResolveLink(ctx, created.ShortCode)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.GetByShortCode(ctx, created.ShortCode)
	require.NoError(t, err)
	assert.Equal(t, int64(n), stored.Clicks, "ни один инкремент не должен потеряться")
}

// TestLinkService_EndToEnd проверяет сквозной сценарий: аллокация с alias,
// три резолва, истечение, очистка свипером
func TestLinkService_EndToEnd(t *testing.T) {
	linkService, repo := setupTestService(defaultOptions())
	sweeper := service.NewSweeper(repo, time.Minute, 100, nil)
	ctx := context.Background()

	alias := "launch"
	ttl := int64(86400)
	link, err := linkService.CreateLink(ctx, &models.CreateLinkInput{
		OriginalURL: "https://example.com/docs",
		CustomCode:  &alias,
		TTLSeconds:  &ttl,
	})
	require.NoError(t, err)
	assert.Equal(t, "launch", link.ShortCode)
	assert.Equal(t, "https://example.com/docs", link.OriginalURL)
	assert.Equal(t, int64(0), link.Clicks)

	var resolved *models.Link
	for i := 0; i < 3; i++ {
		resolved, err = linkService.ResolveLink(ctx, "launch")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), resolved.Clicks)

	// TTL истёк
	repo.Expire("launch", time.Now())

	_, err = linkService.ResolveLink(ctx, "launch")
	assert.ErrorIs(t, err, service.ErrLinkExpired)

	deleted, hadMore, err := sweeper.Sweep(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	assert.False(t, hadMore)

	_, err = linkService.ResolveLink(ctx, "launch")
	assert.ErrorIs(t, err, repository.ErrLinkNotFound)
}
