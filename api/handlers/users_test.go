package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/mailgram/mailgram/api/handlers"
	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/models"
)

type fakeUserService struct {
	createErr error
	exists    bool
	existsErr error
	created   []int64
}

func (f *fakeUserService) CreateUser(_ context.Context, telegramID int64) error {
	f.created = append(f.created, telegramID)
	return f.createErr
}

func (f *fakeUserService) UserExists(_ context.Context, _ int64) (bool, error) {
	return f.exists, f.existsErr
}

func (f *fakeUserService) GetUser(_ context.Context, telegramID int64) (*models.BotUser, error) {
	return &models.BotUser{TelegramID: telegramID}, nil
}

func userRouter(svc *fakeUserService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/users", handlers.CreateUser(svc))
	r.GET("/users/:telegram_id/exists", handlers.UserExists(svc))
	return r
}

func TestCreateUser(t *testing.T) {
	svc := &fakeUserService{}
	r := userRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"telegram_id": 42}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "Bot user was successfully created")
	assert.Equal(t, []int64{42}, svc.created)
}

func TestCreateUserDuplicate(t *testing.T) {
	svc := &fakeUserService{createErr: apperrors.ErrUserAlreadyExists}
	r := userRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{"telegram_id": 42}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Bot user already exists")
}

func TestCreateUserRejectsMissingTelegramID(t *testing.T) {
	svc := &fakeUserService{}
	r := userRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, svc.created)
}

func TestUserExists(t *testing.T) {
	svc := &fakeUserService{exists: true}
	r := userRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42/exists", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Bot user with telegram_id:42 exists")
}

func TestUserDoesNotExist(t *testing.T) {
	svc := &fakeUserService{exists: false}
	r := userRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/42/exists", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "doesn't exist")
}

func TestUserExistsRejectsNonNumericID(t *testing.T) {
	svc := &fakeUserService{}
	r := userRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users/abc/exists", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
