package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// RiskWatcher следит за файлом торговых лимитов и перечитывает его
// при изменении. Новые лимиты передаются в callback; невалидный файл
// игнорируется, действующие лимиты не трогаются.
type RiskWatcher struct {
	path    string
	watcher *fsnotify.Watcher
	log     *zap.Logger
	onLoad  func(RiskConfig)
}

// NewRiskWatcher создаёт watcher для файла лимитов
//
// Подписываемся на директорию, а не на сам файл: редакторы и
// конфиг-менеджеры обычно заменяют файл через rename, и inode-подписка
// на старый файл теряется.
func NewRiskWatcher(path string, onLoad func(RiskConfig), log *zap.Logger) (*RiskWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}
	return &RiskWatcher{
		path:    path,
		watcher: w,
		log:     log,
		onLoad:  onLoad,
	}, nil
}

// Run обрабатывает события до отмены контекста
func (rw *RiskWatcher) Run(ctx context.Context) {
	defer rw.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Пауза, чтобы не читать файл в середине записи
			time.Sleep(100 * time.Millisecond)
			rw.reload()

		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.log.Error("Ошибка file watcher", zap.Error(err))
		}
	}
}

func (rw *RiskWatcher) reload() {
	cfg, err := LoadRiskConfig(rw.path)
	if err != nil {
		rw.log.Error("Не удалось перечитать торговые лимиты, оставляем прежние",
			zap.String("path", rw.path),
			zap.Error(err))
		return
	}
	rw.log.Info("Торговые лимиты перечитаны",
		zap.String("path", rw.path),
		zap.Float64("max_position_size", cfg.MaxPositionSize),
		zap.Float64("max_daily_loss", cfg.MaxDailyLoss))
	rw.onLoad(cfg)
}
