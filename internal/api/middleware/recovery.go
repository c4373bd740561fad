package middleware

import (
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"tradebot/pkg/utils"
)

// Recovery перехватывает panic в handlers, чтобы один запрос
// не ронял весь сервер
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				utils.L().Error("Паника в HTTP handler",
					zap.Any("panic", err),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}
