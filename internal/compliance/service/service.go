package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"kuruma/internal/compliance"
	"kuruma/internal/compliance/metrics"
	"kuruma/internal/compliance/models"
	id "kuruma/pkg/domain"
	dErrors "kuruma/pkg/domain-errors"
	"kuruma/pkg/platform/audit"
	"kuruma/pkg/platform/sentinel"
	"kuruma/pkg/requestcontext"
)

// loadTimeout bounds the concurrent account/activity loads of one request.
const loadTimeout = 3 * time.Second

type AccountStore interface {
	Create(ctx context.Context, account *models.Account) error
	FindByID(ctx context.Context, accountID id.AccountID) (*models.Account, error)
}

// ActivityStore tracks per-account sales (bucketed by year) and active
// listings. Get returns an empty activity for accounts with no history.
type ActivityStore interface {
	Get(ctx context.Context, accountID id.AccountID, year int) (*models.Activity, error)
	RecordSale(ctx context.Context, accountID id.AccountID, at time.Time) (*models.Activity, error)
	// IncrementListingsBelow adds a listing only while fewer than limit are
	// active, atomically. It returns the resulting (or, when refused,
	// current) count.
	IncrementListingsBelow(ctx context.Context, accountID id.AccountID, limit int) (int, bool, error)
	DecrementListings(ctx context.Context, accountID id.AccountID) (int, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service orchestrates compliance evaluation over stored account activity.
// The evaluation itself stays in the compliance package; this layer loads
// counters, applies the listing gate and emits audit events.
type Service struct {
	accounts       AccountStore
	activity       ActivityStore
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer
	tx             StoreTx
	durableAudit   bool
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithStoreTx commits each mutation together with its audit event. A failed
// audit emit then fails the operation and rolls the mutation back.
func WithStoreTx(tx StoreTx) Option {
	return func(s *Service) {
		if tx != nil {
			s.tx = tx
			s.durableAudit = true
		}
	}
}

// New constructs a Service. Both stores are required.
func New(accounts AccountStore, activity ActivityStore, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, errors.New("account store is required")
	}
	if activity == nil {
		return nil, errors.New("activity store is required")
	}
	s := &Service{
		accounts: accounts,
		activity: activity,
		logger:   slog.Default(),
		tracer:   otel.Tracer("kuruma/compliance"),
		tx:       passthroughTx{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// EvaluateCounters evaluates caller-supplied counters without touching any
// store.
func (s *Service) EvaluateCounters(ctx context.Context, counters compliance.Counters) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.EvaluateCounters")
	defer span.End()

	return s.report(ctx, span, counters, requestcontext.Now(ctx))
}

// Status evaluates the stored activity of an account for the current year.
func (s *Service) Status(ctx context.Context, accountID id.AccountID) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.Status",
		trace.WithAttributes(attribute.String("account_id", accountID.String())))
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)

	account, activity, err := s.load(ctx, accountID, now.Year())
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	report, err := s.report(ctx, span, activity.Counters(account.Type), now)
	if err != nil {
		return nil, err
	}
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	return report, nil
}

// OpenListing applies the listing gate and, when open, counts one more
// active listing. A closed gate yields CodeForbidden. The listing limit is
// enforced by the store in the same step as the increment, so concurrent
// opens cannot exceed it.
func (s *Service) OpenListing(ctx context.Context, accountID id.AccountID) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.OpenListing",
		trace.WithAttributes(attribute.String("account_id", accountID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	account, activity, err := s.load(ctx, accountID, now.Year())
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	status, err := compliance.Evaluate(activity.Counters(account.Type), now)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if !compliance.CanCreateNewListing(status) {
		return nil, s.blockListing(ctx, span, account, status)
	}

	limits, _ := compliance.ThresholdsFor(account.Type)
	var report *models.Report
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		listings, opened, err := s.activity.IncrementListingsBelow(txCtx, accountID, limits.MaxSimultaneousListings)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to open listing")
		}
		activity.ActiveListings = listings
		if !opened {
			// Another request took the last slot since the load above.
			status, err = compliance.Evaluate(activity.Counters(account.Type), now)
			if err != nil {
				return err
			}
			return errListingLimit
		}

		report, err = s.report(txCtx, span, activity.Counters(account.Type), now)
		if err != nil {
			return err
		}
		return s.emitAudit(txCtx, audit.EventListingOpened, accountID, report.Status, "")
	})
	if errors.Is(err, errListingLimit) {
		return nil, s.blockListing(ctx, span, account, status)
	}
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.metrics.IncrementListingGate(account.Type.String(), true)
	return report, nil
}

var errListingLimit = errors.New("listing limit reached")

// blockListing records a refused listing and returns the CodeForbidden error.
func (s *Service) blockListing(ctx context.Context, span trace.Span, account *models.Account, status compliance.Status) error {
	s.metrics.IncrementListingGate(account.Type.String(), false)
	s.logger.InfoContext(ctx, "listing blocked",
		"account_id", account.ID,
		"account_type", account.Type,
		"active_listings", status.ActiveListings,
		"warning_level", status.WarningLevel,
	)
	// The refusal stands even when its audit event cannot be stored.
	_ = s.emitAudit(ctx, audit.EventListingBlocked, account.ID, status, "listing_limit_reached")
	err := dErrors.New(dErrors.CodeForbidden, "listing limit reached for this account type")
	recordError(span, err)
	return err
}

// CloseListing counts one active listing less. Closing with none open
// yields CodeConflict.
func (s *Service) CloseListing(ctx context.Context, accountID id.AccountID) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.CloseListing",
		trace.WithAttributes(attribute.String("account_id", accountID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	account, activity, err := s.load(ctx, accountID, now.Year())
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	var report *models.Report
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		listings, err := s.activity.DecrementListings(txCtx, accountID)
		if err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeConflict, "no active listings to close")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to close listing")
		}

		activity.ActiveListings = listings
		report, err = s.report(txCtx, span, activity.Counters(account.Type), now)
		if err != nil {
			return err
		}
		return s.emitAudit(txCtx, audit.EventListingClosed, accountID, report.Status, "")
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	return report, nil
}

// RecordSale counts a sale in the calendar year of soldAt (interpreted in
// the request's location). A zero soldAt means now; a future soldAt is
// rejected.
func (s *Service) RecordSale(ctx context.Context, accountID id.AccountID, soldAt time.Time) (*models.Report, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.RecordSale",
		trace.WithAttributes(attribute.String("account_id", accountID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	if soldAt.IsZero() {
		soldAt = now
	}
	if soldAt.After(now) {
		err := dErrors.New(dErrors.CodeInvalidInput, "sold_at cannot be in the future")
		recordError(span, err)
		return nil, err
	}
	soldAt = soldAt.In(now.Location())

	account, before, err := s.load(ctx, accountID, now.Year())
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	prev, err := compliance.Evaluate(before.Counters(account.Type), now)
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	var report *models.Report
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		after, err := s.activity.RecordSale(txCtx, accountID, soldAt)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record sale")
		}

		// A back-dated sale from a previous year leaves this year's counters alone.
		if after.Year != now.Year() {
			after, err = s.activity.Get(txCtx, accountID, now.Year())
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activity")
			}
		}

		report, err = s.report(txCtx, span, after.Counters(account.Type), now)
		if err != nil {
			return err
		}
		return s.emitSaleEvents(txCtx, accountID, prev, report.Status)
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.metrics.IncrementSale(account.Type.String())
	return report, nil
}

func (s *Service) emitSaleEvents(ctx context.Context, accountID id.AccountID, prev, next compliance.Status) error {
	if err := s.emitAudit(ctx, audit.EventSaleRecorded, accountID, next, ""); err != nil {
		return err
	}
	if next.WarningLevel.Severity() > prev.WarningLevel.Severity() {
		s.logger.InfoContext(ctx, "compliance level changed",
			"account_id", accountID,
			"from", prev.WarningLevel,
			"to", next.WarningLevel,
		)
		if err := s.emitAudit(ctx, audit.EventComplianceLevelChanged, accountID, next,
			string(prev.WarningLevel)+"->"+string(next.WarningLevel)); err != nil {
			return err
		}
	}
	if next.RequiresLicense && !prev.RequiresLicense {
		s.logger.WarnContext(ctx, "dealer license now required",
			"account_id", accountID,
			"vehicles_sold_this_year", next.VehiclesSoldThisYear,
		)
		if err := s.emitAudit(ctx, audit.EventLicenseRequired, accountID, next, ""); err != nil {
			return err
		}
	}
	return nil
}

// RegisterAccount creates an account of the given type.
func (s *Service) RegisterAccount(ctx context.Context, accountType compliance.AccountType) (*models.Account, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.RegisterAccount",
		trace.WithAttributes(attribute.String("account_type", accountType.String())))
	defer span.End()

	account, err := models.NewAccount(id.NewAccountID(), accountType, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			err = dErrors.New(dErrors.CodeValidation, err.Error())
		}
		recordError(span, err)
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.accounts.Create(txCtx, account); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "account already exists")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create account")
		}
		return s.publish(txCtx, audit.Event{
			AccountID:   account.ID,
			Action:      string(audit.EventAccountRegistered),
			AccountType: account.Type.String(),
		})
	})
	if err != nil {
		recordError(span, err)
		return nil, err
	}

	s.logger.InfoContext(ctx, "account registered",
		"account_id", account.ID,
		"account_type", account.Type,
	)
	return account, nil
}

// load fetches the account and its activity for year concurrently.
func (s *Service) load(ctx context.Context, accountID id.AccountID, year int) (*models.Account, *models.Activity, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)

	var (
		account  *models.Account
		activity *models.Activity
	)

	g.Go(func() error {
		start := time.Now()
		a, err := s.accounts.FindByID(ctx, accountID)
		s.metrics.ObserveLoadLatency("account", time.Since(start))
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "account not found")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load account")
		}
		account = a
		return nil
	})

	g.Go(func() error {
		start := time.Now()
		a, err := s.activity.Get(ctx, accountID, year)
		s.metrics.ObserveLoadLatency("activity", time.Since(start))
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load activity")
		}
		activity = a
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if activity == nil {
		activity = models.EmptyActivity(accountID, year)
	}
	return account, activity, nil
}

func (s *Service) report(ctx context.Context, span trace.Span, counters compliance.Counters, now time.Time) (*models.Report, error) {
	status, err := compliance.Evaluate(counters, now)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.metrics.IncrementEvaluation(status.AccountType.String(), string(status.WarningLevel))
	span.SetAttributes(
		attribute.String("account_type", status.AccountType.String()),
		attribute.String("warning_level", string(status.WarningLevel)),
		attribute.Bool("can_create_new_listing", status.CanCreateNewListing),
	)

	return &models.Report{
		Status:               status,
		Message:              compliance.MessageFor(status, requestcontext.Language(ctx)),
		RemainingListings:    compliance.RemainingListings(status),
		RemainingAnnualSales: compliance.RemainingAnnualSales(status),
		EvaluatedAt:          now,
	}, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.AuditEvent, accountID id.AccountID, status compliance.Status, reason string) error {
	return s.publish(ctx, audit.Event{
		AccountID:    accountID,
		Action:       string(event),
		AccountType:  status.AccountType.String(),
		WarningLevel: string(status.WarningLevel),
		Reason:       reason,
	})
}

// publish hands an event to the audit publisher. With a StoreTx configured
// a failure is returned so the surrounding unit of work rolls back;
// otherwise it is logged and dropped.
func (s *Service) publish(ctx context.Context, event audit.Event) error {
	if s.auditPublisher == nil {
		return nil
	}
	err := s.auditPublisher.Emit(ctx, event)
	if err == nil {
		return nil
	}
	if s.durableAudit {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record audit event")
	}
	s.logger.WarnContext(ctx, "failed to emit audit event",
		"action", event.Action,
		"account_id", event.AccountID,
		"error", err,
	)
	return nil
}

func recordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
