package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kuruma/internal/compliance"
	dErrors "kuruma/pkg/domain-errors"
)

func intPtr(n int) *int { return &n }

func TestEvaluateRequestValidate(t *testing.T) {
	tests := []struct {
		name string
		req  EvaluateRequest
		code dErrors.Code
	}{
		{"missing type", EvaluateRequest{VehiclesSoldThisYear: intPtr(0), ActiveListings: intPtr(0)}, dErrors.CodeValidation},
		{"unknown type", EvaluateRequest{AccountType: "fleet", VehiclesSoldThisYear: intPtr(0), ActiveListings: intPtr(0)}, dErrors.CodeInvalidInput},
		{"missing sold", EvaluateRequest{AccountType: "guest", ActiveListings: intPtr(0)}, dErrors.CodeValidation},
		{"missing listings", EvaluateRequest{AccountType: "guest", VehiclesSoldThisYear: intPtr(0)}, dErrors.CodeValidation},
		{"negative sold", EvaluateRequest{AccountType: "guest", VehiclesSoldThisYear: intPtr(-1), ActiveListings: intPtr(0)}, dErrors.CodeInvalidInput},
		{"negative listings", EvaluateRequest{AccountType: "guest", VehiclesSoldThisYear: intPtr(0), ActiveListings: intPtr(-2)}, dErrors.CodeInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, tc.code), "got %v", err)
		})
	}

	t.Run("valid request converts to counters", func(t *testing.T) {
		sold := time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC)
		req := EvaluateRequest{AccountType: "Private", VehiclesSoldThisYear: intPtr(1), ActiveListings: intPtr(2), LastSaleDate: &sold}
		require.NoError(t, req.Validate())
		assert.Equal(t, compliance.Counters{
			AccountType:          compliance.AccountTypePrivate,
			VehiclesSoldThisYear: 1,
			ActiveListings:       2,
			LastSaleDate:         &sold,
		}, req.Counters())
	})
}

func TestRecordSaleRequest(t *testing.T) {
	var empty RecordSaleRequest
	require.NoError(t, empty.Validate())
	assert.True(t, empty.soldAt().IsZero())

	zero := time.Time{}
	err := (&RecordSaleRequest{SoldAt: &zero}).Validate()
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}

func TestQuotaFrom(t *testing.T) {
	q := quotaFrom(compliance.Unlimited)
	assert.True(t, q.Unlimited)
	assert.Nil(t, q.Remaining)

	q = quotaFrom(0)
	assert.False(t, q.Unlimited)
	require.NotNil(t, q.Remaining)
	assert.Equal(t, 0, *q.Remaining)
}
