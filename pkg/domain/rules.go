package domain

import "context"

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action ChangeAction
	Before any
	After  any
}

// ChangeAction indicates the type of modification performed.
type ChangeAction string

// Change actions. Audit records are never deleted, so there is no delete action.
const (
	ChangeCreate ChangeAction = "create"
	ChangeUpdate ChangeAction = "update"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations stop a commit. These
// are invariant breaches, not user input problems: request validation should
// have rejected the request before the transaction began.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	msg := "transaction blocked by rules"
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			msg += ": " + v.Message
			break
		}
	}
	return msg
}

// Rule defines an evaluation executed within a transaction boundary, after the
// unit of work completes and before it commits.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error)
}

// RulesEngine orchestrates rule evaluation.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine constructs an engine instance.
func NewRulesEngine() *RulesEngine {
	return &RulesEngine{}
}

// Register appends a rule to the engine.
func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Evaluate executes all registered rules and aggregates their results.
func (e *RulesEngine) Evaluate(ctx context.Context, view TransactionView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, err
		}
		combined.Merge(res)
	}
	return combined, nil
}
