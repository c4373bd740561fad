package utils

import "time"

// ============================================================
// Границы периодов для агрегации статистики
//
// Все границы считаются в UTC: дневные лимиты риска и периоды
// статистики должны совпадать независимо от timezone сервера.
// Неделя начинается с понедельника (ISO 8601).
// ============================================================

// GetDayStart возвращает начало текущего дня (00:00:00 UTC)
func GetDayStart() time.Time {
	return GetDayStartFrom(time.Now())
}

// GetDayStartFrom возвращает начало дня для указанного времени
func GetDayStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// GetWeekStart возвращает начало текущей недели (понедельник 00:00:00 UTC)
func GetWeekStart() time.Time {
	return GetWeekStartFrom(time.Now())
}

// GetWeekStartFrom возвращает понедельник недели, содержащей указанное время
func GetWeekStartFrom(t time.Time) time.Time {
	t = t.UTC()
	// time.Weekday: 0=Sunday, у ISO 8601 воскресенье - седьмой день
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	monday := t.AddDate(0, 0, -(weekday - 1))
	return time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, time.UTC)
}

// GetMonthStart возвращает начало текущего месяца (1-е число 00:00:00 UTC)
func GetMonthStart() time.Time {
	return GetMonthStartFrom(time.Now())
}

// GetMonthStartFrom возвращает начало месяца для указанного времени
func GetMonthStartFrom(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
