package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request through the global zap logger.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			fields := []zap.Field{
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("latency", time.Since(start)),
				zap.String("remoteAddr", r.RemoteAddr),
				zap.String("requestID", middleware.GetReqID(r.Context())),
			}
			switch status := ww.Status(); {
			case status >= http.StatusInternalServerError:
				zap.L().Error("HTTP request", fields...)
			case status >= http.StatusBadRequest:
				zap.L().Warn("HTTP request", fields...)
			default:
				zap.L().Info("HTTP request", fields...)
			}
		}()
		next.ServeHTTP(ww, r)
	})
}

// SetupBaseMiddleware registers the middleware every route shares.
func SetupBaseMiddleware(router chi.Router, requestTimeout time.Duration) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(RequestLogger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(requestTimeout))
}
