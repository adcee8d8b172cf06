package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailgram/mailgram/api/dto"
	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/user"
)

func parseTelegramID(c *gin.Context) (int64, bool) {
	telegramID, err := strconv.ParseInt(c.Param("telegram_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "telegram_id must be an integer"})
		return 0, false
	}
	return telegramID, true
}

// CreateUser registers a new bot user.
func CreateUser(userService user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "CreateUser", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		var request dto.CreateUserRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: err.Error()})
			return
		}
		tracing.TagTelegramID(span, request.TelegramID)

		err := userService.CreateUser(ctx, request.TelegramID)
		if errors.Is(err, apperrors.ErrUserAlreadyExists) {
			c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "Bot user already exists"})
			return
		}
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
			return
		}

		c.JSON(http.StatusCreated, dto.MessageResponse{Message: "Bot user was successfully created"})
	}
}

// UserExists reports whether a bot user is registered.
func UserExists(userService user.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "UserExists", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)

		exists, err := userService.UserExists(ctx, telegramID)
		if err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
			return
		}

		if exists {
			c.JSON(http.StatusOK, dto.MessageResponse{
				Message: fmt.Sprintf("Bot user with telegram_id:%d exists", telegramID),
			})
			return
		}
		c.JSON(http.StatusNotFound, dto.MessageResponse{
			Message: fmt.Sprintf("Bot user with telegram_id:%d doesn't exist", telegramID),
		})
	}
}
