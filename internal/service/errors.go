package service

import "errors"

// Ошибки сервисного слоя
var (
	ErrPositionNotFound = errors.New("позиция не найдена")
	ErrInvalidLimit     = errors.New("некорректный лимит выборки")
)
