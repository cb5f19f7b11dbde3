package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"gistblog/internal/metrics"
)

// transactional runs the rest of the chain inside a read-only transaction. The
// transaction is rolled back when the handler fails or panics and committed
// otherwise.
func transactional(beginner TxBeginner, logger *slog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, tx, err := beginner.Begin(req.Context(), true)
			if err != nil {
				logger.Error("begin transaction", "path", c.Path(), "error", err)
				return echo.NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable")
			}

			done := false
			defer func() {
				if done {
					return
				}
				if rbErr := tx.Rollback(); rbErr != nil {
					logger.Error("rollback transaction", "path", c.Path(), "error", rbErr)
				}
			}()

			c.SetRequest(req.WithContext(ctx))
			if err := next(c); err != nil {
				return err
			}

			done = true
			if err := tx.Commit(); err != nil {
				logger.Error("commit transaction", "path", c.Path(), "error", err)
				if !c.Response().Committed {
					return echo.NewHTTPError(http.StatusServiceUnavailable, "Service Unavailable")
				}
			}
			return nil
		}
	}
}

func cacheControl(maxAge time.Duration) echo.MiddlewareFunc {
	value := fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds()))
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set(echo.HeaderCacheControl, value)
			return next(c)
		}
	}
}

// etag answers 304 Not Modified when the hash named by If-None-Match is still
// current according to isFresh. Handlers set the ETag header themselves.
func etag(isFresh func(c echo.Context, hash string) (bool, error)) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			hash, ok := parseIfNoneMatch(c.Request().Header.Get("If-None-Match"))
			if !ok {
				return next(c)
			}

			fresh, err := isFresh(c, hash)
			if err != nil {
				return err
			}
			if !fresh {
				return next(c)
			}

			setETag(c, hash)
			return c.NoContent(http.StatusNotModified)
		}
	}
}

// parseIfNoneMatch extracts the hash from an If-None-Match header. Weak
// validators are accepted both as W/"hash" and as "W/hash".
func parseIfNoneMatch(header string) (string, bool) {
	v := strings.TrimSpace(header)
	v = strings.TrimPrefix(v, "W/")
	if len(v) < 2 || !strings.HasPrefix(v, `"`) || !strings.HasSuffix(v, `"`) {
		return "", false
	}
	v = strings.TrimPrefix(v[1:len(v)-1], "W/")
	if v == "" {
		return "", false
	}
	return v, true
}

func setETag(c echo.Context, hash string) {
	c.Response().Header().Set("ETag", `"`+hash+`"`)
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/healthz" || c.Path() == "/metrics"
		},
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogError:     true,
		LogRequestID: true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
				"request_id", v.RequestID,
			}
			ctx := c.Request().Context()
			switch {
			case v.Status >= http.StatusInternalServerError:
				if v.Error != nil {
					attrs = append(attrs, "error", v.Error.Error())
				}
				logger.ErrorContext(ctx, "request failed", attrs...)
			case v.Status >= http.StatusBadRequest:
				logger.WarnContext(ctx, "request rejected", attrs...)
			default:
				logger.InfoContext(ctx, "request completed", attrs...)
			}
			return nil
		},
	})
}

func recordMetrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.RecordHTTPRequest(
				c.Request().Method,
				route,
				strconv.Itoa(c.Response().Status),
				time.Since(start).Seconds(),
			)
			return err
		}
	}
}
