package handler

import (
	"time"

	"kuruma/internal/compliance"
	"kuruma/internal/compliance/models"
)

// QuotaResponse renders a remaining quota. Unlimited quotas have a null
// count and Unlimited set.
type QuotaResponse struct {
	Remaining *int `json:"remaining"`
	Unlimited bool `json:"unlimited"`
}

func quotaFrom(n int) QuotaResponse {
	if compliance.IsUnlimited(n) {
		return QuotaResponse{Unlimited: true}
	}
	return QuotaResponse{Remaining: &n}
}

type MessageResponse struct {
	Type    string `json:"type"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

type ReportResponse struct {
	Status      compliance.Status `json:"status"`
	Message     MessageResponse   `json:"message"`
	Listings    QuotaResponse     `json:"listings"`
	AnnualSales QuotaResponse     `json:"annual_sales"`
	EvaluatedAt time.Time         `json:"evaluated_at"`
}

func ReportFrom(r *models.Report) ReportResponse {
	return ReportResponse{
		Status: r.Status,
		Message: MessageResponse{
			Type:    string(r.Message.Type),
			Title:   r.Message.Title,
			Message: r.Message.Message,
		},
		Listings:    quotaFrom(r.RemainingListings),
		AnnualSales: quotaFrom(r.RemainingAnnualSales),
		EvaluatedAt: r.EvaluatedAt,
	}
}

type AccountResponse struct {
	ID          string    `json:"id"`
	AccountType string    `json:"account_type"`
	CreatedAt   time.Time `json:"created_at"`
}

func AccountFrom(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID.String(),
		AccountType: a.Type.String(),
		CreatedAt:   a.CreatedAt,
	}
}
