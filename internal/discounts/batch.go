package discounts

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/pacing"
)

// BatchOperation is one per-product unit of annotation work.
type BatchOperation func(ctx context.Context, productGID string) error

// BatchError records one failed item without aborting the batch.
type BatchError struct {
	ProductID string
	Err       error
}

// BatchResult summarizes a batch run. TotalProcessed always equals
// SuccessCount plus FailureCount.
type BatchResult struct {
	SuccessCount   int
	FailureCount   int
	Errors         []BatchError
	TotalProcessed int
}

// BatchExecutor drives an operation across a product list strictly
// sequentially, pacing between items to stay inside the upstream rate
// limit. Individual failures are captured, never propagated.
type BatchExecutor struct {
	maxBatchSize int
	gate         pacing.Gate
	logger       *logger.Logger
	validate     *validator.Validate
}

// BatchExecutorParams carries the executor's dependencies.
type BatchExecutorParams struct {
	MaxBatchSize int
	Gate         pacing.Gate
	Logger       *logger.Logger
}

// NewBatchExecutor validates params and builds an executor.
func NewBatchExecutor(params BatchExecutorParams) (*BatchExecutor, error) {
	if params.Logger == nil {
		return nil, errors.New("batch executor requires a logger")
	}
	maxBatchSize := params.MaxBatchSize
	if maxBatchSize <= 0 {
		maxBatchSize = 50
	}
	gate := params.Gate
	if gate == nil {
		gate = pacing.None
	}
	return &BatchExecutor{
		maxBatchSize: maxBatchSize,
		gate:         gate,
		logger:       params.Logger,
		validate:     validator.New(),
	}, nil
}

// Run applies op to every product id, up to the configured batch cap.
// Malformed input fails the whole batch before any upstream call is made.
func (e *BatchExecutor) Run(ctx context.Context, productGIDs []string, op BatchOperation) BatchResult {
	result := BatchResult{}

	if err := e.validate.Var(productGIDs, "omitempty,dive,required"); err != nil {
		invalid := pkgerrors.Wrap(pkgerrors.CodeValidation, err, "malformed product id list")
		for _, productGID := range productGIDs {
			result.Errors = append(result.Errors, BatchError{ProductID: productGID, Err: invalid})
		}
		result.FailureCount = len(productGIDs)
		result.TotalProcessed = len(productGIDs)
		return result
	}

	batch := productGIDs
	if len(batch) > e.maxBatchSize {
		e.logger.Warn(e.logger.WithFields(ctx, map[string]any{
			"requested": len(batch),
			"cap":       e.maxBatchSize,
		}), "product batch truncated to cap")
		batch = batch[:e.maxBatchSize]
	}

	for _, productGID := range batch {
		if err := e.gate.Wait(ctx); err != nil {
			result.FailureCount++
			result.TotalProcessed++
			result.Errors = append(result.Errors, BatchError{ProductID: productGID, Err: err})
			continue
		}
		if err := op(ctx, productGID); err != nil {
			lctx := e.logger.WithProductID(ctx, productGID)
			e.logger.Error(lctx, "batch item failed", err)
			result.FailureCount++
			result.TotalProcessed++
			result.Errors = append(result.Errors, BatchError{ProductID: productGID, Err: err})
			continue
		}
		result.SuccessCount++
		result.TotalProcessed++
	}

	return result
}
