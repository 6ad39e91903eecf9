package http

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/allisson/identity/internal/config"
)

// newCORSMiddleware returns nil when CORS is off or the configured origins are
// unusable. Tokens travel in the Authorization header, never in cookies, so
// credentialed requests are not enabled. A "*" entry allows every origin.
func newCORSMiddleware(cfg *config.Config, logger *slog.Logger) gin.HandlerFunc {
	if !cfg.CORSEnabled {
		return nil
	}

	origins := splitOrigins(cfg.CORSAllowOrigins)
	if len(origins) == 0 {
		logger.Warn("CORS enabled without CORS_ALLOW_ORIGINS, not applying it")
		return nil
	}

	corsConfig := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposeHeaders: []string{"X-Request-Id", "Retry-After"},
		MaxAge:        time.Hour,
	}
	if slices.Contains(origins, "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}

	if err := corsConfig.Validate(); err != nil {
		logger.Warn("invalid CORS configuration, not applying it", slog.Any("error", err))
		return nil
	}

	logger.Info("CORS enabled", slog.Any("origins", origins))
	return cors.New(corsConfig)
}

func splitOrigins(value string) []string {
	var origins []string
	for origin := range strings.SplitSeq(value, ",") {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
