package models

import (
	"time"
)

type Link struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Owner       string    `json:"owner,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Clicks      int64     `json:"clicks"`
}

// ExpiredAt сообщает, истекла ли ссылка на момент now.
// Граница включительная: now == ExpiresAt считается истёкшей.
func (l *Link) ExpiredAt(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

type CreateLinkInput struct {
	OriginalURL string  `json:"original_url"`
	TTLSeconds  *int64  `json:"ttl_seconds,omitempty"`
	CustomCode  *string `json:"custom_code,omitempty"`
	Owner       string  `json:"owner,omitempty"`
}

type LinkStats struct {
	ShortCode   string    `json:"short_code"`
	OriginalURL string    `json:"original_url"`
	Clicks      int64     `json:"clicks"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}
