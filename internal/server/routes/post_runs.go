package routes

import (
	"net/http"

	"github.com/OFFIS-RIT/kgalign/internal/queue"
	"github.com/OFFIS-RIT/kgalign/internal/server/middleware"
	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/logger"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	"github.com/labstack/echo/v4"
)

func CreateRunHandler(c echo.Context) error {
	type createRunBody struct {
		EmbeddingsKey string `json:"embeddings_key" validate:"required"`
		Model         string `json:"model" validate:"required,max=64,excludesall=/"`
		Epochs        int    `json:"epochs" validate:"gte=0"`
		Dim           int    `json:"dim" validate:"gte=0"`
	}

	data := new(createRunBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	app := c.(*middleware.AppContext).App
	ctx := c.Request().Context()

	id, err := util.NewRunID()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	run := store.Run{
		ID:            id,
		EmbeddingsKey: data.EmbeddingsKey,
		Model:         data.Model,
		Epochs:        data.Epochs,
		Dim:           data.Dim,
		State:         store.RunPending,
	}
	if err := app.Runs.CreateRun(ctx, run); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if err := queue.EnqueueRun(app.Queue, id); err != nil {
		logger.Error("Failed to enqueue run", "run", id, "err", err)
		_ = app.Runs.UpdateRunState(ctx, id, store.RunFailed, "failed to enqueue run")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to enqueue run"})
	}

	logger.Info("Run queued", "run", id, "embeddings", data.EmbeddingsKey)
	return c.JSON(http.StatusAccepted, run)
}
