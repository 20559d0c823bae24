package stock

import (
	"context"

	"github.com/stockledger/backend/internal/domain/stock"
)

// TransactionScope provides transactional access to stock repositories.
// Every repository operation performed inside Execute shares one database
// transaction: batch decrements and ledger inserts for a single consume
// call commit together or not at all.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes the repositories bound to the
// current transaction.
type TransactionalRepositories interface {
	// BatchRepo returns the batch repository scoped to the current transaction
	BatchRepo() stock.BatchRepository
	// MovementRepo returns the ledger repository scoped to the current transaction
	MovementRepo() stock.MovementRepository
}

// NoOpTransactionScope runs the function without a real transaction.
// Useful for tests and for backends that manage atomicity themselves.
type NoOpTransactionScope struct {
	batchRepo    stock.BatchRepository
	movementRepo stock.MovementRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope around the given repositories
func NewNoOpTransactionScope(batchRepo stock.BatchRepository, movementRepo stock.MovementRepository) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
	}
}

// Execute runs the function directly
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BatchRepo returns the batch repository
func (s *NoOpTransactionScope) BatchRepo() stock.BatchRepository {
	return s.batchRepo
}

// MovementRepo returns the ledger repository
func (s *NoOpTransactionScope) MovementRepo() stock.MovementRepository {
	return s.movementRepo
}

var (
	_ TransactionScope          = (*NoOpTransactionScope)(nil)
	_ TransactionalRepositories = (*NoOpTransactionScope)(nil)
)
