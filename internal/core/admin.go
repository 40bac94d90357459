package core

import (
	"context"
	"sort"
	"strings"

	jujuerrors "github.com/juju/errors"

	"tissuecore/internal/validation"
	"tissuecore/pkg/domain"
)

// Table describes one reference-data table to AdminService. Each table
// supplies accessors instead of a subtype.
type Table[T any] struct {
	// Entity names a row in messages, e.g. "release destination".
	Entity string
	Key    func(T) string
	New    func(key string) T
	Find   func(view domain.TransactionView, key string) (T, bool)
	Create func(tx domain.Transaction, item T) (T, error)
	List   func(view domain.TransactionView) []T
	// Enabled and SetEnabled are nil for tables without an enabled flag.
	Enabled    func(T) bool
	SetEnabled func(tx domain.Transaction, item T, enabled bool) (T, error)
	Validator  validation.Validator[string]
}

// AdminService adds, lists, and enables or disables rows of one
// reference-data table. Changes require a user with the admin role.
type AdminService[T any] struct {
	d     *deps
	table Table[T]
}

// NewAdminService binds a table to the shared service dependencies.
func NewAdminService[T any](d *deps, table Table[T]) *AdminService[T] {
	if table.Validator == nil {
		table.Validator = validation.ReferenceName
	}
	return &AdminService[T]{d: d, table: table}
}

// Entity names the rows of the table.
func (s *AdminService[T]) Entity() string { return s.table.Entity }

// Add creates a row keyed by key. Duplicates are reported as problems.
func (s *AdminService[T]) Add(ctx context.Context, username, key string) (T, error) {
	var created T
	err := s.d.handle(ctx, s.requestName("add"), username, func(ctx context.Context) ([]domain.Operation, error) {
		return nil, s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			loadAdmin(tx, username, &problems)
			key = strings.TrimSpace(key)
			if s.table.Validator.Validate(key, &problems) {
				if existing, ok := s.table.Find(tx, key); ok {
					problems.Addf("%s already exists: %q", capitaliseFirst(s.table.Entity), s.table.Key(existing))
				}
			}
			if err := problems.Err("The " + s.table.Entity + " could not be added."); err != nil {
				return err
			}
			var err error
			created, err = s.table.Create(tx, s.table.New(key))
			return err
		})
	})
	return created, err
}

// SetEnabled toggles a row. A missing key is a not-found error.
func (s *AdminService[T]) SetEnabled(ctx context.Context, username, key string, enabled bool) (T, error) {
	var updated T
	if s.table.SetEnabled == nil {
		return updated, jujuerrors.NotSupportedf("enabling %s rows", s.table.Entity)
	}
	err := s.d.handle(ctx, s.requestName("set_enabled"), username, func(ctx context.Context) ([]domain.Operation, error) {
		return nil, s.d.tx.Transact(ctx, func(ctx context.Context, tx domain.Transaction) error {
			var problems domain.Problems
			loadAdmin(tx, username, &problems)
			if err := problems.Err("The " + s.table.Entity + " could not be updated."); err != nil {
				return err
			}
			item, ok := s.table.Find(tx, strings.TrimSpace(key))
			if !ok {
				return notFound("%s %q", s.table.Entity, key)
			}
			var err error
			updated, err = s.table.SetEnabled(tx, item, enabled)
			return err
		})
	})
	return updated, err
}

// List returns the rows ordered by key. Disabled rows are left out unless
// includeDisabled is set.
func (s *AdminService[T]) List(ctx context.Context, includeDisabled bool) ([]T, error) {
	var out []T
	err := s.d.tx.View(ctx, func(view domain.TransactionView) error {
		for _, item := range s.table.List(view) {
			if includeDisabled || s.table.Enabled == nil || s.table.Enabled(item) {
				out = append(out, item)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(s.table.Key(out[i])) < strings.ToLower(s.table.Key(out[j]))
	})
	return out, err
}

func (s *AdminService[T]) requestName(verb string) string {
	return verb + "_" + strings.ReplaceAll(s.table.Entity, " ", "_")
}

func loadAdmin(view domain.TransactionView, username string, problems *domain.Problems) (domain.User, bool) {
	user, ok := loadUser(view, username, problems)
	if ok && user.Role != domain.RoleAdmin {
		problems.Addf("User %q does not have admin privileges.", user.Username)
		return domain.User{}, false
	}
	return user, ok
}

func capitaliseFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DestinationTable is the release destination table.
func DestinationTable() Table[domain.ReleaseDestination] {
	return Table[domain.ReleaseDestination]{
		Entity:  "release destination",
		Key:     func(d domain.ReleaseDestination) string { return d.Name },
		New:     func(key string) domain.ReleaseDestination { return domain.ReleaseDestination{Name: key, Enabled: true} },
		Find:    domain.TransactionView.FindReleaseDestination,
		Create:  domain.Transaction.CreateReleaseDestination,
		List:    domain.TransactionView.ListReleaseDestinations,
		Enabled: func(d domain.ReleaseDestination) bool { return d.Enabled },
		SetEnabled: func(tx domain.Transaction, d domain.ReleaseDestination, enabled bool) (domain.ReleaseDestination, error) {
			return tx.UpdateReleaseDestination(d.ID, func(row *domain.ReleaseDestination) error {
				row.Enabled = enabled
				return nil
			})
		},
	}
}

// RecipientTable is the release recipient table, keyed by username.
func RecipientTable() Table[domain.ReleaseRecipient] {
	return Table[domain.ReleaseRecipient]{
		Entity:  "release recipient",
		Key:     func(r domain.ReleaseRecipient) string { return r.Username },
		New:     func(key string) domain.ReleaseRecipient { return domain.ReleaseRecipient{Username: key, Enabled: true} },
		Find:    domain.TransactionView.FindReleaseRecipient,
		Create:  domain.Transaction.CreateReleaseRecipient,
		List:    domain.TransactionView.ListReleaseRecipients,
		Enabled: func(r domain.ReleaseRecipient) bool { return r.Enabled },
		SetEnabled: func(tx domain.Transaction, r domain.ReleaseRecipient, enabled bool) (domain.ReleaseRecipient, error) {
			return tx.UpdateReleaseRecipient(r.ID, func(row *domain.ReleaseRecipient) error {
				row.Enabled = enabled
				return nil
			})
		},
	}
}

// ReasonTable is the destruction reason table, keyed by reason text.
func ReasonTable() Table[domain.DestructionReason] {
	return Table[domain.DestructionReason]{
		Entity:  "destruction reason",
		Key:     func(r domain.DestructionReason) string { return r.Text },
		New:     func(key string) domain.DestructionReason { return domain.DestructionReason{Text: key, Enabled: true} },
		Find:    domain.TransactionView.FindDestructionReasonByText,
		Create:  domain.Transaction.CreateDestructionReason,
		List:    domain.TransactionView.ListDestructionReasons,
		Enabled: func(r domain.DestructionReason) bool { return r.Enabled },
		SetEnabled: func(tx domain.Transaction, r domain.DestructionReason, enabled bool) (domain.DestructionReason, error) {
			return tx.UpdateDestructionReason(r.ID, func(row *domain.DestructionReason) error {
				row.Enabled = enabled
				return nil
			})
		},
	}
}

// OperationTypeTable is the operation type table. Operation types cannot be
// disabled.
func OperationTypeTable() Table[domain.OperationType] {
	return Table[domain.OperationType]{
		Entity: "operation type",
		Key:    func(ot domain.OperationType) string { return ot.Name },
		New:    func(key string) domain.OperationType { return domain.OperationType{Name: key} },
		Find:   domain.TransactionView.FindOperationType,
		Create: domain.Transaction.CreateOperationType,
		List:   domain.TransactionView.ListOperationTypes,
	}
}
