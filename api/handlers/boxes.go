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
	"github.com/mailgram/mailgram/services/box"
)

func parseBoxID(c *gin.Context) (uint, bool) {
	boxID, err := strconv.ParseUint(c.Param("box_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "box_id must be an integer"})
		return 0, false
	}
	return uint(boxID), true
}

func userNotFoundMessage(telegramID int64) dto.MessageResponse {
	return dto.MessageResponse{
		Message: fmt.Sprintf("Requested bot user with telegram_id:%d doesn't exist", telegramID),
	}
}

func boxNotFoundMessage(boxID uint) dto.MessageResponse {
	return dto.MessageResponse{
		Message: fmt.Sprintf("Requested email box with id:%d not found", boxID),
	}
}

var boxNotOwnedMessage = dto.MessageResponse{
	Message: "Requested bot user doesn't have this email box",
}

// CreateBox registers a mailbox after probing its credentials, then
// starts its worker.
func CreateBox(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "CreateBox", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)

		var request dto.CreateBoxRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: err.Error()})
			return
		}

		filters := make([]box.NewFilter, 0, len(request.Filters))
		for _, filter := range request.Filters {
			filters = append(filters, box.NewFilter{
				FilterValue: filter.FilterValue,
				FilterName:  filter.FilterName,
			})
		}

		_, err := boxService.CreateBox(ctx, telegramID, box.CreateBoxRequest{
			EmailServiceID: request.EmailService,
			EmailUsername:  request.EmailUsername,
			EmailPassword:  request.EmailPassword,
			Filters:        filters,
		})
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case errors.Is(err, apperrors.ErrServiceNotFound):
			c.JSON(http.StatusNotFound, dto.MessageResponse{
				Message: fmt.Sprintf("Requested email service with id:%d doesn't exist", request.EmailService),
			})
		case errors.Is(err, apperrors.ErrBoxAlreadyExists):
			c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "This email box already exists"})
		case errors.Is(err, apperrors.ErrCredentialsInvalid):
			c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "Your email credentials are incorrect"})
		case errors.Is(err, apperrors.ErrServerTimeout):
			c.JSON(http.StatusBadRequest, dto.MessageResponse{Message: "IMAP server is not responding"})
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			c.JSON(http.StatusCreated, dto.MessageResponse{Message: "Email box successfully created"})
		}
	}
}

// GetUserBoxes lists the mailboxes of a user.
func GetUserBoxes(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetUserBoxes", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)

		boxes, err := boxService.GetUserBoxes(ctx, telegramID)
		switch {
		case errors.Is(err, apperrors.ErrBoxesNotFound):
			c.JSON(http.StatusNotFound, dto.MessageResponse{Message: "You do not have any email boxes yet"})
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			out := dto.EmailBoxesOut{EmailBoxes: make([]dto.EmailBoxOut, 0, len(boxes))}
			for _, b := range boxes {
				out.EmailBoxes = append(out.EmailBoxes, dto.NewEmailBoxOut(b))
			}
			c.JSON(http.StatusOK, out)
		}
	}
}

// GetBox returns one mailbox with its filters.
func GetBox(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetBox", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		boxID, ok := parseBoxID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)
		tracing.TagBoxID(span, boxID)

		emailBox, filters, err := boxService.GetBoxWithFilters(ctx, telegramID, boxID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case errors.Is(err, apperrors.ErrBoxNotFound):
			c.JSON(http.StatusNotFound, boxNotFoundMessage(boxID))
		case errors.Is(err, apperrors.ErrBoxNotOwnedByUser):
			c.JSON(http.StatusBadRequest, boxNotOwnedMessage)
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			out := dto.EmailBoxWithFiltersOut{
				EmailBoxOut: dto.NewEmailBoxOut(emailBox),
				Filters:     make([]dto.BoxFilterOut, 0, len(filters)),
			}
			for _, filter := range filters {
				out.Filters = append(out.Filters, dto.NewBoxFilterOut(filter))
			}
			c.JSON(http.StatusOK, out)
		}
	}
}

// GetBoxFilters returns the whitelist filters applied to a mailbox.
func GetBoxFilters(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetBoxFilters", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		boxID, ok := parseBoxID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)
		tracing.TagBoxID(span, boxID)

		filters, err := boxService.GetFilters(ctx, telegramID, boxID)
		switch {
		case errors.Is(err, apperrors.ErrFiltersNotFound):
			c.JSON(http.StatusNotFound, dto.MessageResponse{
				Message: fmt.Sprintf("There are no applied filters for the email box with id:%d", boxID),
			})
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case errors.Is(err, apperrors.ErrBoxNotFound):
			c.JSON(http.StatusNotFound, boxNotFoundMessage(boxID))
		case errors.Is(err, apperrors.ErrBoxNotOwnedByUser):
			c.JSON(http.StatusBadRequest, boxNotOwnedMessage)
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			out := make([]dto.BoxFilterOut, 0, len(filters))
			for _, filter := range filters {
				out = append(out, dto.NewBoxFilterOut(filter))
			}
			c.JSON(http.StatusOK, gin.H{"filters": out})
		}
	}
}

// DeleteBox removes a mailbox and stops its worker.
func DeleteBox(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "DeleteBox", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		boxID, ok := parseBoxID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)
		tracing.TagBoxID(span, boxID)

		err := boxService.DeleteBox(ctx, telegramID, boxID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case errors.Is(err, apperrors.ErrBoxNotFound):
			c.JSON(http.StatusNotFound, boxNotFoundMessage(boxID))
		case errors.Is(err, apperrors.ErrBoxNotOwnedByUser):
			c.JSON(http.StatusBadRequest, boxNotOwnedMessage)
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			c.Status(http.StatusNoContent)
		}
	}
}

// PauseBox pauses mail listening for a mailbox.
func PauseBox(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "PauseBox", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		boxID, ok := parseBoxID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)
		tracing.TagBoxID(span, boxID)

		err := boxService.PauseBoxListening(ctx, telegramID, boxID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case errors.Is(err, apperrors.ErrBoxNotFound):
			c.JSON(http.StatusNotFound, boxNotFoundMessage(boxID))
		case errors.Is(err, apperrors.ErrBoxNotOwnedByUser):
			c.JSON(http.StatusBadRequest, boxNotOwnedMessage)
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			c.JSON(http.StatusOK, dto.MessageResponse{
				Message: fmt.Sprintf("The user:%d box:%d listening was paused", telegramID, boxID),
			})
		}
	}
}

// ResumeBox resumes mail listening for a mailbox.
func ResumeBox(boxService box.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "ResumeBox", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		telegramID, ok := parseTelegramID(c)
		if !ok {
			return
		}
		boxID, ok := parseBoxID(c)
		if !ok {
			return
		}
		tracing.TagTelegramID(span, telegramID)
		tracing.TagBoxID(span, boxID)

		err := boxService.ResumeBoxListening(ctx, telegramID, boxID)
		switch {
		case errors.Is(err, apperrors.ErrUserNotFound):
			c.JSON(http.StatusNotFound, userNotFoundMessage(telegramID))
		case errors.Is(err, apperrors.ErrBoxNotFound):
			c.JSON(http.StatusNotFound, boxNotFoundMessage(boxID))
		case errors.Is(err, apperrors.ErrBoxNotOwnedByUser):
			c.JSON(http.StatusBadRequest, boxNotOwnedMessage)
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			c.JSON(http.StatusOK, dto.MessageResponse{
				Message: fmt.Sprintf("The user:%d box:%d listening was resumed", telegramID, boxID),
			})
		}
	}
}
