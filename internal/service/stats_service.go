package service

import (
	"go.uber.org/zap"

	"tradebot/internal/models"
)

// StatsService отдает агрегированную статистику торговли
type StatsService struct {
	repo StatsRepositoryInterface
	log  *zap.Logger
}

// NewStatsService создает новый экземпляр StatsService
func NewStatsService(repo StatsRepositoryInterface, log *zap.Logger) *StatsService {
	return &StatsService{repo: repo, log: log}
}

// GetStats возвращает сводную статистику по завершенным сделкам
func (s *StatsService) GetStats() (*models.Stats, error) {
	return s.repo.GetStats()
}
