package generator

import (
	"crypto/rand"
	"errors"
	"math/big"
	"regexp"
	"strings"
)

// Ошибки генератора
var (
	ErrInvalidAlias = errors.New("невалидный alias")
)

// Алфавит без визуально неоднозначных символов (0/O, 1/l/I исключены)
const alphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Зарезервированные alias'ы: совпадают с системными путями
var reservedAliases = map[string]struct{}{
	"api":     {},
	"links":   {},
	"health":  {},
	"stats":   {},
	"docs":    {},
	"metrics": {},
}

var aliasPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Policy параметры генерации и валидации коротких кодов
type Policy struct {
	CodeLength     int // длина случайного кода
	AliasMinLength int
	AliasMaxLength int
}

// Generator генерирует случайные короткие коды и валидирует пользовательские alias'ы.
// Не хранит состояния и не делает I/O: последовательный режим кодирует
// значение внешнего атомарного счётчика через EncodeSequence.
type Generator struct {
	policy Policy
}

func New(policy Policy) *Generator {
	return &Generator{policy: policy}
}

// Generate возвращает случайный код заданной длины, равномерно по алфавиту
func (g *Generator) Generate() (string, error) {
	result := make([]byte, g.policy.CodeLength)
	for i := 0; i < g.policy.CodeLength; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", err
		}
		result[i] = alphabet[num.Int64()]
	}
	return string(result), nil
}

// ValidateAlias проверяет пользовательский код: длина, набор символов,
// отсутствие в списке зарезервированных слов
func (g *Generator) ValidateAlias(alias string) error {
	if len(alias) < g.policy.AliasMinLength || len(alias) > g.policy.AliasMaxLength {
		return ErrInvalidAlias
	}
	if !aliasPattern.MatchString(alias) {
		return ErrInvalidAlias
	}
	if _, reserved := reservedAliases[strings.ToLower(alias)]; reserved {
		return ErrInvalidAlias
	}
	return nil
}

// EncodeSequence кодирует значение монотонного счётчика тем же алфавитом.
// Используется в последовательном режиме генерации кодов.
func (g *Generator) EncodeSequence(n int64) string {
	if n == 0 {
		return string(alphabet[0])
	}
	base := int64(len(alphabet))
	var sb []byte
	for n > 0 {
		sb = append(sb, alphabet[n%base])
		n /= base
	}
	// Переворачиваем: старшие разряды вперёд
	for i, j := 0, len(sb)-1; i < j; i, j = i+1, j-1 {
		sb[i], sb[j] = sb[j], sb[i]
	}
	return string(sb)
}
