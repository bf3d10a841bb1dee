package middleware

import (
	"context"

	"github.com/OFFIS-RIT/kgalign/internal/queue"
	"github.com/OFFIS-RIT/kgalign/pkg/store"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

type AppUser struct {
	UserID      int64
	Role        string
	Permissions []string
}

// LinkFunc returns a temporary public URL for an object key.
type LinkFunc func(ctx context.Context, key string) (string, error)

type App struct {
	Runs           store.RunStorage
	Queue          queue.Channel
	KeyFunc        jwt.Keyfunc
	DownloadLink   LinkFunc
	MasterAPIKey   string
	MasterUserID   int64
	MasterUserRole string
}

type AppContext struct {
	echo.Context
	App  *App
	User *AppUser
}

func AppContextMiddleware(app *App) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cc := &AppContext{c, app, nil}
			return next(cc)
		}
	}
}
