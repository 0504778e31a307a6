package service

import (
	"context"
	"fmt"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
	"github.com/xela07ax/shuma-dashboard/internal/journal"
)

// JournalProvider описывает контракт для чтения журнала обновлений.
type JournalProvider interface {
	FetchRecent(ctx context.Context, tab string, limit int) ([]journal.Entry, error)
}

type JournalService struct {
	repo JournalProvider
}

// NewJournalService; repo == nil означает, что журнал пишется только в лог.
func NewJournalService(repo JournalProvider) *JournalService {
	return &JournalService{repo: repo}
}

func (s *JournalService) Enabled() bool {
	return s.repo != nil
}

// FetchRecent: пустая вкладка читает все; невалидное имя вкладки нормализуется.
func (s *JournalService) FetchRecent(ctx context.Context, tab string, limit int) ([]journal.Entry, error) {
	if s.repo == nil {
		return []journal.Entry{}, nil
	}
	if tab != "" {
		tab = string(domain.NormalizeTab(tab))
	}
	entries, err := s.repo.FetchRecent(ctx, tab, limit)
	if err != nil {
		return nil, fmt.Errorf("journal_service: failed to fetch entries: %w", err)
	}
	return entries, nil
}
