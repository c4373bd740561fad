package service

import (
	"testing"

	"go.uber.org/zap"

	"tradebot/internal/models"
)

func TestGetSettingsDefaults(t *testing.T) {
	svc := NewSettingsService(&mockSettingsRepo{}, nil, zap.NewNop())

	settings, err := svc.GetSettings()
	if err != nil {
		t.Fatalf("GetSettings: %v", err)
	}
	if !settings.TradingEnabled {
		t.Error("по умолчанию торговля должна быть включена")
	}
	if !settings.NotificationPrefs.StopLoss {
		t.Error("по умолчанию все уведомления включены")
	}
}

func TestUpdateSettingsPartial(t *testing.T) {
	repo := &mockSettingsRepo{settings: defaultSettings()}
	svc := NewSettingsService(repo, nil, zap.NewNop())

	enabled := false
	updated, err := svc.UpdateSettings(&UpdateSettingsRequest{TradingEnabled: &enabled})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if updated.TradingEnabled {
		t.Error("TradingEnabled должен быть выключен")
	}
	// Незатронутые поля не меняются
	if !updated.NotificationPrefs.Entry {
		t.Error("NotificationPrefs не должны измениться")
	}
	if repo.settings == nil || repo.settings.TradingEnabled {
		t.Error("изменение должно быть сохранено в репозитории")
	}
}

func TestUpdateSettingsPrefs(t *testing.T) {
	repo := &mockSettingsRepo{settings: defaultSettings()}
	svc := NewSettingsService(repo, nil, zap.NewNop())

	prefs := models.NotificationPreferences{Entry: true, StopLoss: true}
	updated, err := svc.UpdateSettings(&UpdateSettingsRequest{NotificationPrefs: &prefs})
	if err != nil {
		t.Fatalf("UpdateSettings: %v", err)
	}

	if updated.NotificationPrefs.Exit {
		t.Error("Exit должен быть выключен после замены prefs")
	}
	if !updated.TradingEnabled {
		t.Error("TradingEnabled не должен измениться")
	}
}

func TestSetTradingEnabledCreatesRow(t *testing.T) {
	// Строки настроек еще нет - SetTradingEnabled создает ее
	repo := &mockSettingsRepo{}
	svc := NewSettingsService(repo, nil, zap.NewNop())

	if err := svc.SetTradingEnabled(false); err != nil {
		t.Fatalf("SetTradingEnabled: %v", err)
	}
	if repo.settings == nil {
		t.Fatal("строка настроек должна быть создана")
	}
	if repo.settings.TradingEnabled {
		t.Error("TradingEnabled должен быть false")
	}
}
