package db

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"

	"github.com/neurodash/neurodash/internal/platform/session"
)

type contextKey string

const (
	// DBConnKey carries the row-scoped connection through the request
	// context so repositories share it.
	DBConnKey contextKey = "db_conn"
)

// RowScopeMiddleware acquires a connection for the request and pins the
// session identity to it via set_config, so every query the repositories run
// is evaluated under the store's row-level security policies for that user.
// Anonymous requests get no scoped connection; repositories then fall back to
// the pool, which the policies restrict to public rows.
func RowScopeMiddleware(pool *pgxpool.Pool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			s := session.FromContext(c.Request().Context())
			if s == nil {
				return next(c)
			}

			ctx := c.Request().Context()
			conn, err := pool.Acquire(ctx)
			if err != nil {
				return echo.NewHTTPError(http.StatusServiceUnavailable, "database unavailable")
			}
			defer conn.Release()

			if err := ScopeConn(ctx, conn, s); err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "row scoping failed")
			}

			ctx = context.WithValue(ctx, DBConnKey, conn)
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set("db", conn)

			return next(c)
		}
	}
}

// ScopeConn pins a session's identity to conn for the lifetime of its
// checkout. set_config with is_local=false survives until the connection is
// reset on release.
func ScopeConn(ctx context.Context, conn *pgxpool.Conn, s *session.Session) error {
	_, err := conn.Exec(ctx,
		`SELECT set_config('app.current_user', $1, false), set_config('app.current_role', $2, false)`,
		s.UserID, s.Role)
	return err
}

// ConnFromContext retrieves the row-scoped database connection from context,
// or nil when the request is anonymous.
func ConnFromContext(ctx context.Context) *pgxpool.Conn {
	conn, _ := ctx.Value(DBConnKey).(*pgxpool.Conn)
	return conn
}
