package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"credentialing-backend/internal/audit"
	"credentialing-backend/internal/config"
	"credentialing-backend/internal/metadata"
	"credentialing-backend/internal/store"
)

const auditEmitTimeout = 5 * time.Second

// SaveRequest is one draft save. EmployeeID is only read in ByID mode.
type SaveRequest struct {
	Mode       AddressMode
	EmployeeID int64
	Payload    map[string]any
	RequestID  string
}

type SaveResult struct {
	EmployeeID  int64                     `json:"employeeId"`
	Created     bool                      `json:"created"`
	Timestamp   time.Time                 `json:"timestamp"`
	Collections map[string]ReconcileStats `json:"collections,omitempty"`
	Warnings    []Warning                 `json:"warnings,omitempty"`
}

// Draft is the stored primary record with every collection.
type Draft struct {
	Employee    map[string]any              `json:"employee"`
	Collections map[string][]map[string]any `json:"collections"`
}

// DraftService runs the save pipeline: normalize, validate, alias, then one
// transaction that upserts the primary and reconciles each kind in order.
type DraftService struct {
	store      *store.Store
	reg        *metadata.Registry
	normalizer *Normalizer
	validator  *Validator
	primary    *primaryUpserter
	reconciler *reconciler
	sink       audit.Sink
	metrics    *Metrics
	logger     *slog.Logger
	tracer     trace.Tracer
	txTimeout  time.Duration
	now        func() time.Time
}

type Option func(*DraftService)

func WithLogger(l *slog.Logger) Option { return func(s *DraftService) { s.logger = l } }
func WithAuditSink(a audit.Sink) Option { return func(s *DraftService) { s.sink = a } }
func WithMetrics(m *Metrics) Option { return func(s *DraftService) { s.metrics = m } }
func WithClock(now func() time.Time) Option { return func(s *DraftService) { s.now = now } }
func WithTracer(t trace.Tracer) Option { return func(s *DraftService) { s.tracer = t } }

func NewDraftService(s *store.Store, reg *metadata.Registry, cfg config.DraftsConfig, opts ...Option) (*DraftService, error) {
	svc := &DraftService{
		store:     s,
		reg:       reg,
		sink:      audit.Noop{},
		logger:    slog.Default(),
		tracer:    otel.Tracer("credentialing-backend/engine"),
		txTimeout: cfg.TxTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	validator, err := NewValidator(reg, cfg.MaxItems)
	if err != nil {
		return nil, fmt.Errorf("compile field rules: %w", err)
	}
	threshold := cfg.TempIDThreshold
	if threshold <= 0 {
		threshold = DefaultTempIDThreshold
	}

	svc.validator = validator
	svc.normalizer = NewNormalizer(reg, cfg.NormalizeMaxDepth, svc.logger)
	svc.primary = &primaryUpserter{dialect: s.Dialect, entity: reg.Primary(), logger: svc.logger}
	svc.reconciler = &reconciler{dialect: s.Dialect, tempThreshold: threshold, logger: svc.logger, metrics: svc.metrics}
	return svc, nil
}

// SaveDraft persists a draft atomically. Validation failures never open a
// transaction. The audit event is sent only after commit and its failure
// does not fail the save.
func (s *DraftService) SaveDraft(ctx context.Context, req SaveRequest, ident *metadata.Identity) (result *SaveResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "drafts.SaveDraft", trace.WithAttributes(
		attribute.String("draft.mode", req.Mode.String()),
	))
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = errorOutcome(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		s.metrics.ObserveSave(req.Mode, outcome, time.Since(start))
		span.End()
	}()

	if ident == nil || ident.OwnerKey == "" {
		return nil, UnauthorizedError("Authentication required")
	}
	if req.Mode == ByID && req.EmployeeID <= 0 {
		return nil, NotFoundError(s.reg.Primary().Label, req.EmployeeID)
	}

	normalized := s.normalizer.NormalizePayload(req.Payload)
	input, errs := s.validator.ValidatePayload(normalized)
	if len(errs) > 0 {
		return nil, ValidationError(errs)
	}

	now := s.now().UTC()
	result = &SaveResult{Timestamp: now, Collections: make(map[string]ReconcileStats)}

	err = s.store.RunInTx(ctx, s.txTimeout, func(tx *sql.Tx) error {
		id, created, err := s.primary.Upsert(ctx, tx, ident, req.Mode, req.EmployeeID, input.Fields, now)
		if err != nil {
			return err
		}
		result.EmployeeID = id
		result.Created = created

		kinds := s.reg.Dependents()
		owned := make(map[string]map[int64]bool, len(kinds))
		for _, kind := range kinds {
			if _, ok := input.Collections[kind.Name]; !ok {
				continue
			}
			ids, err := s.reconciler.FetchOwnedIDs(ctx, tx, kind, id)
			if err != nil {
				return err
			}
			owned[kind.Name] = ids
		}

		for _, kind := range kinds {
			items, ok := input.Collections[kind.Name]
			if !ok {
				continue
			}
			stats, warnings, err := s.reconciler.Reconcile(ctx, tx, kind, id, items, owned[kind.Name], now)
			if err != nil {
				return fmt.Errorf("reconcile %s: %w", kind.Name, err)
			}
			result.Collections[kind.Name] = stats
			result.Warnings = append(result.Warnings, warnings...)
		}
		return nil
	})
	if err != nil {
		var appErr *AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.ErrorContext(ctx, "draft save failed",
			"error", err, "owner_key", ident.OwnerKey, "mode", req.Mode.String(), "request_id", req.RequestID)
		return nil, InternalError(err)
	}

	span.SetAttributes(attribute.Int64("draft.employee_id", result.EmployeeID))
	s.emitAudit(ctx, result, ident, req.RequestID)
	return result, nil
}

func (s *DraftService) emitAudit(ctx context.Context, result *SaveResult, ident *metadata.Identity, requestID string) {
	action := audit.ActionDraftUpdated
	if result.Created {
		action = audit.ActionDraftSaved
	}
	event := audit.NewEvent(action, result.EmployeeID, ident.OwnerKey, result.Timestamp)
	event.RequestID = requestID

	// the save is committed; a client disconnect must not drop the event
	emitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditEmitTimeout)
	defer cancel()
	if err := s.sink.Emit(emitCtx, event); err != nil {
		s.metrics.AuditFailed()
		s.logger.WarnContext(ctx, "audit emit failed",
			"error", err, "employee_id", result.EmployeeID, "action", string(action))
	}
}

// LoadDraft reads a draft and all its collections. Reads run outside any
// transaction, one query per kind in parallel.
func (s *DraftService) LoadDraft(ctx context.Context, mode AddressMode, id int64, ident *metadata.Identity) (*Draft, error) {
	ctx, span := s.tracer.Start(ctx, "drafts.LoadDraft")
	defer span.End()

	employee, err := s.loadPrimary(ctx, mode, id, ident)
	if err != nil {
		return nil, err
	}
	employeeID, _ := store.ToInt64(employee["id"])

	kinds := s.reg.Dependents()
	lists := make([][]map[string]any, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		g.Go(func() error {
			rows, err := s.listRows(gctx, kind, employeeID)
			if err != nil {
				return err
			}
			lists[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, InternalError(err)
	}

	draft := &Draft{
		Employee:    s.present(s.reg.Primary(), employee),
		Collections: make(map[string][]map[string]any, len(kinds)),
	}
	for i, kind := range kinds {
		draft.Collections[kind.Name] = lists[i]
	}
	return draft, nil
}

// ListCollection returns one kind of the caller's own draft.
func (s *DraftService) ListCollection(ctx context.Context, kindName string, ident *metadata.Identity) ([]map[string]any, error) {
	kind := s.reg.GetDependent(kindName)
	if kind == nil {
		return nil, NotFoundError("Collection", kindName)
	}
	employee, err := s.loadPrimary(ctx, ByOwner, 0, ident)
	if err != nil {
		return nil, err
	}
	employeeID, _ := store.ToInt64(employee["id"])
	rows, err := s.listRows(ctx, kind, employeeID)
	if err != nil {
		return nil, InternalError(err)
	}
	return rows, nil
}

func (s *DraftService) loadPrimary(ctx context.Context, mode AddressMode, id int64, ident *metadata.Identity) (map[string]any, error) {
	if ident == nil || ident.OwnerKey == "" {
		return nil, UnauthorizedError("Authentication required")
	}
	primary := s.reg.Primary()

	column, value := primary.OwnerColumn, any(ident.OwnerKey)
	if mode == ByID {
		column, value = "id", id
	}
	qr := BuildSelectSQL(s.store.Dialect, primary, column, value, false)
	row, err := store.QueryRow(ctx, s.store.DB, qr.SQL, qr.Params...)
	if errors.Is(err, store.ErrNotFound) {
		if mode == ByID {
			return nil, NotFoundError(primary.Label, id)
		}
		return nil, NotFoundError(primary.Label, "for the current user")
	}
	if err != nil {
		return nil, InternalError(err)
	}
	owner, _ := row[primary.OwnerColumn].(string)
	if err := checkOwnership(ident, accessRead, primary, id, owner); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *DraftService) listRows(ctx context.Context, kind *metadata.Entity, employeeID int64) ([]map[string]any, error) {
	qr := BuildSelectSQL(s.store.Dialect, kind, kind.OwnerColumn, employeeID, false)
	rows, err := store.QueryRows(ctx, s.store.DB, qr.SQL, qr.Params...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind.Table, err)
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.present(kind, row))
	}
	return out, nil
}

// present maps a stored row back to payload names.
func (s *DraftService) present(entity *metadata.Entity, row map[string]any) map[string]any {
	out := make(map[string]any, len(entity.Fields)+5)
	out["id"] = row["id"]
	if entity.Primary {
		out["ownerKey"] = row[entity.OwnerColumn]
		out["status"] = row["status"]
	} else {
		out["employeeId"] = row[entity.OwnerColumn]
	}
	for _, f := range entity.Fields {
		v := row[f.Column()]
		switch f.Type {
		case "date":
			if t, ok := v.(time.Time); ok {
				v = t.Format("2006-01-02")
			}
		case "boolean":
			if n, ok := store.ToInt64(v); ok && s.store.Dialect.NeedsBoolFix() {
				v = n != 0
			}
		}
		out[f.Name] = v
	}
	out["createdAt"] = row["created_at"]
	out["updatedAt"] = row["updated_at"]
	return out
}

func errorOutcome(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Status {
		case 400:
			return "invalid"
		case 401, 403:
			return "forbidden"
		case 404:
			return "not_found"
		case 409:
			return "conflict"
		}
	}
	return "error"
}
