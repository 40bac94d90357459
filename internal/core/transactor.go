package core

import (
	"context"
	"fmt"

	"tissuecore/pkg/domain"
)

type txKey struct{}

// Transactor is the single transaction boundary of a request. Work passed to
// Transact commits as a whole or not at all; nested calls join the enclosing
// transaction instead of opening a new one.
type Transactor struct {
	store  domain.PersistentStore
	logger Logger
}

// NewTransactor wraps store.
func NewTransactor(store domain.PersistentStore, logger Logger) *Transactor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Transactor{store: store, logger: logger}
}

// TxFromContext returns the transaction active in ctx, if any.
func TxFromContext(ctx context.Context) (domain.Transaction, bool) {
	tx, ok := ctx.Value(txKey{}).(domain.Transaction)
	return tx, ok && tx != nil
}

// InTransaction reports whether ctx carries an active transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := TxFromContext(ctx)
	return ok
}

// Transact runs fn inside a transaction. An error from fn rolls back every
// mutation fn made and is returned unchanged.
func (t *Transactor) Transact(ctx context.Context, fn func(ctx context.Context, tx domain.Transaction) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(ctx, tx)
	}
	res, err := t.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		return fn(context.WithValue(ctx, txKey{}, tx), tx)
	})
	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			t.logger.Warnw("commit rule warning", "rule", v.Rule, "entity", v.Entity, "id", v.EntityID, "message", v.Message)
		}
	}
	return err
}

// View runs fn against committed state, or against the active transaction
// when ctx carries one.
func (t *Transactor) View(ctx context.Context, fn func(view domain.TransactionView) error) error {
	if tx, ok := TxFromContext(ctx); ok {
		return fn(tx)
	}
	return t.store.View(ctx, fn)
}

// PostCommit is the second phase of a request. It runs after commit, outside
// any transaction, and its failure never undoes the commit.
type PostCommit func(ctx context.Context) error

// RequestResult is the externally visible outcome of a request: the created
// operations and the touched labware in their post-request state.
type RequestResult struct {
	Operations []domain.Operation `json:"operations"`
	Labware    []domain.Labware   `json:"labware"`
	// Unstored is set once the post-commit unstore step has run.
	Unstored *bool    `json:"unstored,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Committed is a request whose transaction has committed. After, when set,
// must be run by the caller through Finish.
type Committed struct {
	Result RequestResult
	After  PostCommit
}

// Finish runs the post-commit phase and folds its outcome into the result.
// It refuses to run the phase inside a transaction.
func (c Committed) Finish(ctx context.Context) RequestResult {
	res := c.Result
	if c.After == nil {
		return res
	}
	done := false
	if InTransaction(ctx) {
		res.Unstored = &done
		res.Warnings = append(res.Warnings, "Post-commit step skipped: it cannot run inside a transaction.")
		return res
	}
	if err := c.After(ctx); err != nil {
		res.Unstored = &done
		res.Warnings = append(res.Warnings, err.Error())
		return res
	}
	done = true
	res.Unstored = &done
	return res
}

// requireTx fails when ctx carries no active transaction. Components that
// only make sense within a request boundary call it first.
func requireTx(ctx context.Context, what string) error {
	if !InTransaction(ctx) {
		return fmt.Errorf("%s requires an active transaction", what)
	}
	return nil
}
