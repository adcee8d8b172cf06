package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/mailgram/mailgram/api/dto"
	apperrors "github.com/mailgram/mailgram/internal/errors"
	"github.com/mailgram/mailgram/internal/tracing"
	"github.com/mailgram/mailgram/services/emailservice"
)

// GetServices lists the supported email providers.
func GetServices(serviceCatalog emailservice.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracing.StartHttpServerTracerSpanWithHeader(c.Request.Context(), "GetServices", c.Request.Header)
		defer span.Finish()
		tracing.TagComponentRest(span)

		domainServices, err := serviceCatalog.GetServices(ctx)
		switch {
		case errors.Is(err, apperrors.ErrServicesNotAvailable):
			c.JSON(http.StatusNotFound, dto.MessageResponse{Message: "No available services found"})
		case err != nil:
			tracing.TraceErr(span, err)
			c.JSON(http.StatusInternalServerError, dto.MessageResponse{Message: "Internal server error"})
		default:
			out := dto.EmailServicesOut{Services: make([]dto.EmailServiceOut, 0, len(domainServices))}
			for _, domainService := range domainServices {
				out.Services = append(out.Services, dto.NewEmailServiceOut(domainService))
			}
			c.JSON(http.StatusOK, out)
		}
	}
}
