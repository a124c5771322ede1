package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"softdeletes/internal/core/apperror"
	appctx "softdeletes/internal/core/context"
	"softdeletes/internal/infrastructure/http/v1/dto"
	"softdeletes/internal/infrastructure/storage/postgres/pgtest"
	"softdeletes/internal/infrastructure/storage/postgres/session"
	"softdeletes/internal/metadata"
	"softdeletes/pkg/logger"
)

func newEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(), Trace(), Logger(logger.NewNop()), ErrorHandler())
	r.GET("/", handlers...)
	return r
}

func serve(r http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestErrorHandler_AppError(t *testing.T) {
	rec := serve(newEngine(func(c *gin.Context) {
		_ = c.Error(apperror.NewNotFound("post", "1"))
	}))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, apperror.CodeNotFound, body.Code)
	assert.Equal(t, "post", body.Details["entity"])
}

func TestErrorHandler_HidesUnknownErrors(t *testing.T) {
	rec := serve(newEngine(func(c *gin.Context) {
		_ = c.Error(errors.New("pq: password authentication failed"))
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, apperror.CodeInternal, body.Code)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotEmpty(t, body.Details["request_id"])
}

func TestErrorHandler_KeepsWrittenResponse(t *testing.T) {
	rec := serve(newEngine(func(c *gin.Context) {
		c.String(http.StatusAccepted, "done")
		_ = c.Error(errors.New("late"))
	}))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "done", rec.Body.String())
}

func TestRecovery(t *testing.T) {
	rec := serve(newEngine(func(c *gin.Context) {
		panic("boom")
	}))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, apperror.CodeInternal, errorBody(t, rec).Code)
}

func TestTrace_SetsContext(t *testing.T) {
	var requestID string
	rec := serve(newEngine(func(c *gin.Context) {
		requestID = appctx.GetRequestID(c.Request.Context())
		c.Status(http.StatusNoContent)
	}))

	assert.NotEmpty(t, requestID)
	assert.Equal(t, requestID, rec.Header().Get(HeaderRequestID))
}

func TestSession_OnePerRequest(t *testing.T) {
	db := pgtest.New()
	registry := metadata.NewRegistry()

	var created []*session.Session
	factory := func() *session.Session {
		s := session.New(db, registry)
		created = append(created, s)
		return s
	}

	var seen []*session.Session
	r := newEngine(Session(factory), func(c *gin.Context) {
		seen = append(seen, session.MustFromContext(c.Request.Context()))
		c.Status(http.StatusNoContent)
	})
	serve(r)
	serve(r)

	require.Len(t, seen, 2)
	assert.Equal(t, created, seen)
	assert.NotSame(t, seen[0], seen[1])
}
