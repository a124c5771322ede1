package middleware

import (
	"github.com/gin-gonic/gin"

	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/pkg/logger"
)

// SessionFactory creates the unit of work of one request.
type SessionFactory func() *session.Session

// Session gives every request its own session, reachable from the request
// context with session.FromContext. Nothing is shared between requests.
func Session(newSession SessionFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		s := newSession()
		c.Request = c.Request.WithContext(session.WithSession(c.Request.Context(), s))

		c.Next()

		logger.Debug(c.Request.Context(), "session closed", "tracked", s.Tracked())
	}
}
