package api

import (
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskflow/domain"
	"taskflow/lifecycle"
)

const createMaxSize = 64 * 1024

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, store Storage, ctrl Lifecycle, auth Authenticator, dedup Deduper, logger *log.Logger) {
	e.GET("/api/tasks", getTasks(store, auth))
	e.POST("/api/tasks", postTask(ctrl, auth, dedup, logger))
	e.POST("/api/tasks/:id/toggle", toggleTask(store, ctrl, auth))
	e.DELETE("/api/tasks/:id", deleteTask(ctrl, auth))
	e.GET("/healthz", healthz())
}

type tasksResponse struct {
	Tasks []domain.Task `json:"tasks"`
}

type createRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	DueDate     int64  `json:"dueDate"`
	RemindMe    bool   `json:"remindMe"`
}

type toggleResponse struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		owner, err := auth.OwnerFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		tasks, err := store.ListActive(ctx, owner)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "task backend unavailable")
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func postTask(ctrl Lifecycle, auth Authenticator, dedup Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		owner, err := auth.OwnerFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, createMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()

		var req createRequest
		if err := dec.Decode(&req); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}

		key := c.Request().Header.Get("Idempotency-Key")
		if key == "" {
			key = uuid.NewString()
		}
		added, err := dedup.Add(ctx, owner, key)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "dedup store unavailable")
		}
		if !added {
			return c.String(http.StatusConflict, "duplicate request")
		}

		task, err := ctrl.Create(ctx, owner, lifecycle.CreateInput{
			Title:       req.Title,
			Description: req.Description,
			DueDate:     req.DueDate,
			RemindMe:    req.RemindMe,
		})
		if err != nil {
			if removeErr := dedup.Remove(ctx, owner, key); removeErr != nil {
				logger.WithError(removeErr).Warn("failed to release idempotency key")
			}
			if domain.IsValidation(err) {
				return c.String(http.StatusBadRequest, err.Error())
			}
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "task backend unavailable")
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func toggleTask(store Storage, ctrl Lifecycle, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		owner, err := auth.OwnerFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := c.Param("id")

		tasks, err := store.ListActive(ctx, owner)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "task backend unavailable")
		}
		var current *domain.Task
		for i := range tasks {
			if tasks[i].ID == id {
				current = &tasks[i]
				break
			}
		}
		if current == nil {
			return c.String(http.StatusNotFound, "task not found")
		}

		done, err := ctrl.ToggleDone(ctx, owner, *current)
		if err != nil {
			c.Logger().Error(err)
			// The change was rolled back; report the surviving state.
			return c.JSON(http.StatusBadGateway, toggleResponse{ID: id, Done: done})
		}
		return c.JSON(http.StatusOK, toggleResponse{ID: id, Done: done})
	}
}

func deleteTask(ctrl Lifecycle, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		owner, err := auth.OwnerFromAuthHeader(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		if err := ctrl.Delete(ctx, owner, c.Param("id")); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusBadGateway, "task backend unavailable")
		}
		return c.NoContent(http.StatusNoContent)
	}
}
