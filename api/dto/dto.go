// Package dto defines the JSON bodies of the control API.
package dto

import "github.com/mailgram/mailgram/internal/models"

type CreateUserRequest struct {
	TelegramID int64 `json:"telegram_id" binding:"required"`
}

type BoxFilterIn struct {
	FilterValue string  `json:"filter_value" binding:"required"`
	FilterName  *string `json:"filter_name"`
}

type CreateBoxRequest struct {
	EmailService  uint          `json:"email_service" binding:"required"`
	EmailUsername string        `json:"email_username" binding:"required"`
	EmailPassword string        `json:"email_password" binding:"required"`
	Filters       []BoxFilterIn `json:"filters"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type BoxFilterOut struct {
	FilterValue string  `json:"filter_value"`
	FilterName  *string `json:"filter_name"`
}

type EmailBoxOut struct {
	ID             uint   `json:"id"`
	EmailServiceID uint   `json:"email_service_id"`
	EmailUsername  string `json:"email_username"`
	IsActive       bool   `json:"is_active"`
}

type EmailBoxWithFiltersOut struct {
	EmailBoxOut
	Filters []BoxFilterOut `json:"filters"`
}

type EmailBoxesOut struct {
	EmailBoxes []EmailBoxOut `json:"email_boxes"`
}

type EmailServiceOut struct {
	ID    uint   `json:"id"`
	Title string `json:"title"`
}

type EmailServicesOut struct {
	Services []EmailServiceOut `json:"services"`
}

func NewEmailBoxOut(box *models.EmailBox) EmailBoxOut {
	return EmailBoxOut{
		ID:             box.ID,
		EmailServiceID: box.EmailServiceID,
		EmailUsername:  box.EmailUsername,
		IsActive:       box.IsActive,
	}
}

func NewBoxFilterOut(filter *models.BoxFilter) BoxFilterOut {
	return BoxFilterOut{
		FilterValue: filter.FilterValue,
		FilterName:  filter.FilterName,
	}
}

func NewEmailServiceOut(service *models.EmailService) EmailServiceOut {
	return EmailServiceOut{
		ID:    service.ID,
		Title: service.Title,
	}
}
