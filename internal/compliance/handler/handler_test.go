package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
	"golang.org/x/text/language"

	"kuruma/internal/compliance"
	"kuruma/internal/compliance/handler/mocks"
	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	dErrors "kuruma/pkg/domain-errors"
	"kuruma/pkg/platform/middleware/auth"
	"kuruma/pkg/requestcontext"
	"kuruma/pkg/testutil"
)

type tokenValidator struct {
	accountID id.AccountID
}

func (v tokenValidator) ValidateToken(token string) (*auth.JWTClaims, error) {
	if token != "good" {
		return nil, errors.New("invalid token")
	}
	return &auth.JWTClaims{AccountID: v.accountID.String()}, nil
}

type HandlerSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	service   *mocks.MockService
	router    chi.Router
	accountID id.AccountID
	now       time.Time
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest()    { s.setup() }
func (s *HandlerSuite) SetupSubTest() { s.setup() }

func (s *HandlerSuite) setup() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.accountID = id.NewAccountID()
	s.now = time.Date(2025, time.June, 15, 10, 30, 0, 0, time.UTC)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, logger, tokenValidator{accountID: s.accountID}).Register(s.router)
}

func (s *HandlerSuite) report(counters compliance.Counters) *models.Report {
	status, err := compliance.Evaluate(counters, s.now)
	s.Require().NoError(err)
	return &models.Report{
		Status:               status,
		Message:              compliance.MessageFor(status, language.English),
		RemainingListings:    compliance.RemainingListings(status),
		RemainingAnnualSales: compliance.RemainingAnnualSales(status),
		EvaluatedAt:          s.now,
	}
}

func (s *HandlerSuite) authed(req *http.Request) *http.Request {
	req.Header.Set("Authorization", "Bearer good")
	return req
}

func (s *HandlerSuite) decode(body []byte) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(body, &out))
	return out
}

// ===== Evaluate =====

func (s *HandlerSuite) TestEvaluate() {
	s.Run("returns the report", func() {
		counters := compliance.Counters{AccountType: compliance.AccountTypeGuest, VehiclesSoldThisYear: 1}
		s.service.EXPECT().EvaluateCounters(gomock.Any(), counters).Return(s.report(counters), nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/evaluate", map[string]any{
			"account_type":            "Guest",
			"vehicles_sold_this_year": 1,
			"active_listings":         0,
		}))

		testutil.AssertStatusOK(s.T(), rr)
		body := s.decode(testutil.ReadBody(s.T(), rr))
		status := body["status"].(map[string]any)
		s.Equal("warning", status["warning_level"])
		s.Equal(false, status["requires_license"])
		s.Equal(map[string]any{"remaining": float64(1), "unlimited": false}, body["annual_sales"])
		s.Equal("warning", body["message"].(map[string]any)["type"])
	})

	s.Run("dealer quotas render as unlimited", func() {
		counters := compliance.Counters{AccountType: compliance.AccountTypeDealer, VehiclesSoldThisYear: 10, ActiveListings: 4}
		s.service.EXPECT().EvaluateCounters(gomock.Any(), counters).Return(s.report(counters), nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/evaluate", map[string]any{
			"account_type":            "dealer",
			"vehicles_sold_this_year": 10,
			"active_listings":         4,
		}))

		testutil.AssertStatusOK(s.T(), rr)
		body := s.decode(testutil.ReadBody(s.T(), rr))
		s.Equal(map[string]any{"remaining": nil, "unlimited": true}, body["listings"])
		s.Equal(map[string]any{"remaining": nil, "unlimited": true}, body["annual_sales"])
	})

	s.Run("request time and language reach the service", func() {
		counters := compliance.Counters{AccountType: compliance.AccountTypePrivate}
		s.service.EXPECT().EvaluateCounters(gomock.Any(), counters).
			DoAndReturn(func(ctx context.Context, c compliance.Counters) (*models.Report, error) {
				s.Equal(s.now, requestcontext.Now(ctx))
				s.Equal(language.Japanese, requestcontext.Language(ctx))
				return s.report(c), nil
			})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/evaluate", map[string]any{
			"account_type":            "private",
			"vehicles_sold_this_year": 0,
			"active_listings":         0,
		})
		req = testutil.WithLanguage(testutil.WithRequestTime(req, s.now), language.Japanese)
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, req))
	})

	s.Run("missing counters are a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/evaluate", map[string]any{
			"account_type": "private",
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("negative counters are invalid input", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/evaluate", map[string]any{
			"account_type":            "private",
			"vehicles_sold_this_year": -1,
			"active_listings":         0,
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown account type is invalid input", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/compliance/evaluate", map[string]any{
			"account_type":            "fleet",
			"vehicles_sold_this_year": 0,
			"active_listings":         0,
		}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("malformed JSON is a bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequestWithBody(s.T(), http.MethodPost, "/compliance/evaluate", "{"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
}

// ===== Account-scoped routes =====

func (s *HandlerSuite) TestAuthenticationRequired() {
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/compliance/status"},
		{http.MethodPost, "/listings"},
		{http.MethodDelete, "/listings"},
		{http.MethodPost, "/sales"},
	} {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), tc.method, tc.path))
		s.Equal(http.StatusUnauthorized, rr.Code, "%s %s", tc.method, tc.path)
	}
}

func (s *HandlerSuite) TestStatus() {
	s.Run("loads the authenticated account", func() {
		counters := compliance.Counters{AccountType: compliance.AccountTypePrivate, ActiveListings: 2}
		s.service.EXPECT().Status(gomock.Any(), s.accountID).Return(s.report(counters), nil)

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/compliance/status")))

		testutil.AssertStatusOK(s.T(), rr)
		body := s.decode(testutil.ReadBody(s.T(), rr))
		s.Equal(false, body["status"].(map[string]any)["can_create_new_listing"])
	})

	s.Run("unknown account is not found", func() {
		s.service.EXPECT().Status(gomock.Any(), s.accountID).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "account not found"))

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/compliance/status")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, string(dErrors.CodeNotFound))
	})

	s.Run("internal errors hide their description", func() {
		s.service.EXPECT().Status(gomock.Any(), s.accountID).
			Return(nil, dErrors.Wrap(errors.New("dial tcp: refused"), dErrors.CodeInternal, "failed to load account"))

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/compliance/status")))
		s.Equal(http.StatusInternalServerError, rr.Code)
		body := testutil.UnmarshalErrorResponse(s.T(), rr)
		s.Equal(string(dErrors.CodeInternal), body["error"])
		s.NotContains(body, "error_description")
	})
}

func (s *HandlerSuite) TestListings() {
	s.Run("open returns created", func() {
		counters := compliance.Counters{AccountType: compliance.AccountTypeGuest, ActiveListings: 1}
		s.service.EXPECT().OpenListing(gomock.Any(), s.accountID).Return(s.report(counters), nil)

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/listings")))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("closed gate is forbidden", func() {
		s.service.EXPECT().OpenListing(gomock.Any(), s.accountID).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "listing limit reached for this account type"))

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/listings")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("closing with nothing open is a conflict", func() {
		s.service.EXPECT().CloseListing(gomock.Any(), s.accountID).
			Return(nil, dErrors.New(dErrors.CodeConflict, "no active listings to close"))

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodDelete, "/listings")))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
}

func (s *HandlerSuite) TestRecordSale() {
	s.Run("empty body records a sale now", func() {
		counters := compliance.Counters{AccountType: compliance.AccountTypeGuest, VehiclesSoldThisYear: 1}
		s.service.EXPECT().RecordSale(gomock.Any(), s.accountID, time.Time{}).Return(s.report(counters), nil)

		rr := testutil.DoRequest(s.router, s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/sales")))
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("sold_at is forwarded", func() {
		soldAt := time.Date(2025, time.May, 2, 8, 0, 0, 0, time.UTC)
		counters := compliance.Counters{AccountType: compliance.AccountTypeGuest, VehiclesSoldThisYear: 1, LastSaleDate: &soldAt}
		s.service.EXPECT().RecordSale(gomock.Any(), s.accountID, gomock.Any()).
			DoAndReturn(func(_ any, _ id.AccountID, got time.Time) (*models.Report, error) {
				s.True(soldAt.Equal(got))
				return s.report(counters), nil
			})

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/sales", map[string]any{
			"sold_at": soldAt.Format(time.RFC3339),
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
	})

	s.Run("future sale is rejected", func() {
		s.service.EXPECT().RecordSale(gomock.Any(), s.accountID, gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeInvalidInput, "sold_at cannot be in the future"))

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/sales", map[string]any{
			"sold_at": "2999-01-01T00:00:00Z",
		}))
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})
}

func (s *HandlerSuite) TestRegisterAccount() {
	s.Run("creates an account", func() {
		account := &models.Account{ID: id.NewAccountID(), Type: compliance.AccountTypePrivate, CreatedAt: s.now}
		s.service.EXPECT().RegisterAccount(gomock.Any(), compliance.AccountTypePrivate).Return(account, nil)

		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]any{
			"account_type": " PRIVATE ",
		}))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		resp := testutil.UnmarshalResponse[AccountResponse](s.T(), rr)
		s.Equal(account.ID.String(), resp.ID)
		s.Equal("private", resp.AccountType)
	})

	s.Run("missing type is a validation error", func() {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/accounts", map[string]any{}))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})
}
