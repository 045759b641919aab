package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskflow/bus"
	"taskflow/domain"
	"taskflow/storage"
)

// RegisterStream wires up the live task feed. Opening the stream also pins
// the owner's background session for as long as the connection lasts.
func RegisterStream(e *echo.Echo, feed *storage.Feed, b *bus.StatusBus, sessions Sessions, auth Authenticator) {
	e.GET("/api/stream", streamTasks(feed, b, sessions, auth))
}

func streamTasks(feed *storage.Feed, b *bus.StatusBus, sessions Sessions, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.QueryParam("token")
		authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
		if authHeader == "" && token != "" {
			authHeader = "Bearer " + token
		}
		owner, err := auth.OwnerFromAuthHeader(authHeader)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}

		release := sessions.Acquire(owner)
		defer release()

		signal := make(chan struct{}, 1)
		unsubscribe := b.Subscribe(func(domain.StatusChange) {
			select {
			case signal <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()

		for snapshot := range feed.Watch(c.Request().Context(), owner, signal) {
			data, err := sonic.ConfigStd.Marshal(snapshot)
			if err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("data: ")); err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write(data); err != nil {
				c.Logger().Error(err)
				return err
			}
			if _, err := c.Response().Write([]byte("\n\n")); err != nil {
				c.Logger().Error(err)
				return err
			}
			flusher.Flush()
		}
		return nil
	}
}
