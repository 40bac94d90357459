package core

import (
	"context"
	"fmt"

	"tissuecore/pkg/domain"
)

// NewDefaultRulesEngine returns an engine with the commit-time invariants of
// the audit trail and the labware lifecycle registered.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(OperationActionsRule())
	engine.Register(TerminalLabwareRule())
	return engine
}

// OperationActionsRule blocks commits that would leave an operation without
// actions or an action without its operation.
func OperationActionsRule() domain.Rule {
	return operationActionsRule{}
}

type operationActionsRule struct{}

func (operationActionsRule) Name() string { return "operation_actions" }

func (r operationActionsRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Action != domain.ChangeCreate {
			continue
		}
		switch change.Entity {
		case domain.EntityOperation:
			op, ok := change.After.(domain.Operation)
			if !ok {
				continue
			}
			stored, found := view.FindOperation(op.ID)
			if !found || len(stored.Actions) == 0 {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("operation %s has no actions", op.ID),
					Entity:   domain.EntityOperation,
					EntityID: op.ID,
				})
			}
		case domain.EntityAction:
			action, ok := change.After.(domain.Action)
			if !ok {
				continue
			}
			if _, found := view.FindOperation(action.OperationID); !found {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     r.Name(),
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("action %s references missing operation %s", action.ID, action.OperationID),
					Entity:   domain.EntityAction,
					EntityID: action.ID,
				})
			}
		}
	}
	return res, nil
}

// TerminalLabwareRule blocks commits that clear a released, destroyed or
// discarded flag once it has been set.
func TerminalLabwareRule() domain.Rule {
	return terminalLabwareRule{}
}

type terminalLabwareRule struct{}

func (terminalLabwareRule) Name() string { return "terminal_labware" }

func (r terminalLabwareRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	var res domain.Result
	for _, change := range changes {
		if change.Entity != domain.EntityLabware || change.Action != domain.ChangeUpdate {
			continue
		}
		before, okBefore := change.Before.(domain.Labware)
		after, okAfter := change.After.(domain.Labware)
		if !okBefore || !okAfter {
			continue
		}
		if (before.Released && !after.Released) || (before.Destroyed && !after.Destroyed) || (before.Discarded && !after.Discarded) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     r.Name(),
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("labware %s cannot leave the %s state", before.Barcode, before.State()),
				Entity:   domain.EntityLabware,
				EntityID: before.ID,
			})
		}
	}
	return res, nil
}
