package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-academic-api/internal/repository"
	"github.com/noah-isme/sma-academic-api/pkg/config"
	"github.com/noah-isme/sma-academic-api/pkg/database"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
	"github.com/noah-isme/sma-academic-api/pkg/logger"
)

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TxFunc runs inside an engine transaction and reports how many rows it wrote.
type TxFunc func(ctx context.Context, tx *sqlx.Tx) (int, error)

// ChildSet replaces every child row under one parent key.
// Lock, when set, runs first and only under row lock mode. Prepare runs after the lock and
// may write to the parent (e.g. a new placement). Resolve, when set, derives the desired rows
// inside the transaction instead of taking them from the caller. Delete, Insert and Reload
// are required.
type ChildSet[T any] struct {
	Operation string
	ParentKey string
	Lock      func(ctx context.Context, tx *sqlx.Tx) error
	Prepare   func(ctx context.Context, tx *sqlx.Tx) error
	Resolve   func(ctx context.Context, tx *sqlx.Tx) ([]T, error)
	Delete    func(ctx context.Context, tx *sqlx.Tx) (int64, error)
	Insert    func(ctx context.Context, tx *sqlx.Tx, rows []T) error
	Reload    func(ctx context.Context, tx *sqlx.Tx) ([]T, error)
}

// ReconcileResult is the persisted child set after a committed reconciliation.
type ReconcileResult[T any] struct {
	Rows     []T
	Removed  int64
	Inserted int
}

// Reconciler owns the transaction boundary of every engine write.
type Reconciler struct {
	db       txProvider
	metrics  *MetricsService
	logger   *zap.Logger
	timeout  time.Duration
	lockMode string
}

// NewReconciler constructs the reconciler from the engine configuration.
func NewReconciler(db txProvider, metrics *MetricsService, logger *zap.Logger, cfg config.ReconcileConfig) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.LockMode == "" {
		cfg.LockMode = config.LockModeRow
	}
	return &Reconciler{db: db, metrics: metrics, logger: logger, timeout: cfg.Timeout, lockMode: cfg.LockMode}
}

// LocksRows reports whether parent rows are locked before replacement.
func (r *Reconciler) LocksRows() bool {
	return r.lockMode == config.LockModeRow
}

// InTx runs fn in one bounded transaction. Any error rolls back everything fn wrote.
func (r *Reconciler) InTx(ctx context.Context, operation, parentKey string, fn TxFunc) (err error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	written := 0
	log := logger.FromContext(ctx, r.logger).With(zap.String("operation", operation), zap.String("parent", parentKey))
	defer func() {
		r.metrics.ObserveReconcile(operation, err, written, time.Since(start))
		if err != nil {
			log.Warn("engine operation failed", zap.String("code", appErrors.FromError(err).Code), zap.Error(err))
		}
	}()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return appErrors.Transaction(err, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	written, err = fn(ctx, tx)
	if err != nil {
		written = 0
		return mapTxError(err, fmt.Sprintf("%s failed", operation))
	}
	if err = tx.Commit(); err != nil {
		written = 0
		return appErrors.Transaction(err, "failed to commit transaction")
	}
	log.Info("engine operation committed", zap.Int("rows_written", written), zap.Duration("took", time.Since(start)))
	return nil
}

// Reconcile atomically replaces the children of set.ParentKey with desired. Callers validate
// desired before calling; a failure at any step leaves the prior set untouched.
func Reconcile[T any](ctx context.Context, r *Reconciler, set ChildSet[T], desired []T) (*ReconcileResult[T], error) {
	result := &ReconcileResult[T]{}
	err := r.InTx(ctx, set.Operation, set.ParentKey, func(ctx context.Context, tx *sqlx.Tx) (int, error) {
		if set.Lock != nil && r.LocksRows() {
			if err := set.Lock(ctx, tx); err != nil {
				return 0, err
			}
		}
		if set.Prepare != nil {
			if err := set.Prepare(ctx, tx); err != nil {
				return 0, err
			}
		}
		if set.Resolve != nil {
			resolved, err := set.Resolve(ctx, tx)
			if err != nil {
				return 0, err
			}
			desired = resolved
		}
		removed, err := set.Delete(ctx, tx)
		if err != nil {
			return 0, err
		}
		if len(desired) > 0 {
			if err := set.Insert(ctx, tx, desired); err != nil {
				return 0, err
			}
		}
		rows, err := set.Reload(ctx, tx)
		if err != nil {
			return 0, err
		}
		result.Rows = rows
		result.Removed = removed
		result.Inserted = len(desired)
		return len(desired), nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func mapTxError(err error, message string) error {
	var typed *appErrors.Error
	if errors.As(err, &typed) {
		return typed
	}
	var dup *repository.DuplicateRowError
	if errors.As(err, &dup) {
		return appErrors.WithDetails(appErrors.ErrConstraintViolation, dup.Error(), map[string]string{"table": dup.Table, "key": dup.Key})
	}
	if database.IsUniqueViolation(err) {
		return appErrors.WithDetails(appErrors.ErrConstraintViolation, "unique constraint violated",
			map[string]string{"constraint": database.ConstraintName(err)})
	}
	return appErrors.Transaction(err, message)
}
