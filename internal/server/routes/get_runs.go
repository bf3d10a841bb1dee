package routes

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/OFFIS-RIT/kgalign/internal/server/middleware"
	"github.com/OFFIS-RIT/kgalign/internal/util"
	"github.com/OFFIS-RIT/kgalign/pkg/mapping"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	"github.com/labstack/echo/v4"
)

// loadRun resolves the :id param. On failure it has already written the
// response and returns ok == false.
func loadRun(c echo.Context) (store.Run, bool, error) {
	id := c.Param("id")
	if !util.IsRunID(id) {
		return store.Run{}, false, c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid run ID"})
	}

	app := c.(*middleware.AppContext).App
	run, err := app.Runs.GetRun(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			return store.Run{}, false, c.JSON(http.StatusNotFound, map[string]string{"error": "Run not found"})
		}
		return store.Run{}, false, c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return run, true, nil
}

func notCompleted(c echo.Context, run store.Run) error {
	return c.JSON(http.StatusConflict, map[string]string{
		"error": "Run is not completed",
		"state": string(run.State),
	})
}

func GetRunHandler(c echo.Context) error {
	run, ok, err := loadRun(c)
	if !ok {
		return err
	}
	return c.JSON(http.StatusOK, run)
}

// GetRunMappingHandler returns the stored pairs in the mapping file format.
func GetRunMappingHandler(c echo.Context) error {
	run, ok, err := loadRun(c)
	if !ok {
		return err
	}
	if run.State != store.RunCompleted {
		return notCompleted(c, run)
	}

	app := c.(*middleware.AppContext).App
	m, err := app.Runs.GetMapping(c.Request().Context(), run.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	var buf bytes.Buffer
	if err := mapping.Write(&buf, m); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.Blob(http.StatusOK, echo.MIMETextPlainCharsetUTF8, buf.Bytes())
}

func GetRunDownloadHandler(c echo.Context) error {
	run, ok, err := loadRun(c)
	if !ok {
		return err
	}
	if run.State != store.RunCompleted || run.MappingKey == "" {
		return notCompleted(c, run)
	}

	app := c.(*middleware.AppContext).App
	if app.DownloadLink == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Downloads are not configured"})
	}
	link, err := app.DownloadLink(c.Request().Context(), run.MappingKey)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"url": link})
}

// GetRunBlankNodesHandler summarises the blank-node vectors stored for a run.
func GetRunBlankNodesHandler(c echo.Context) error {
	run, ok, err := loadRun(c)
	if !ok {
		return err
	}

	app := c.(*middleware.AppContext).App
	a, b, err := app.Runs.LoadBlankTables(c.Request().Context(), run.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	dimA, errA := a.Dim()
	dimB, errB := b.Dim()
	if errA != nil || errB != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Stored vectors have mixed dimensions"})
	}

	return c.JSON(http.StatusOK, map[string]int{
		"a":   len(a),
		"b":   len(b),
		"dim": max(dimA, dimB),
	})
}
