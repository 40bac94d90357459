package core

import (
	"sort"
	"strings"

	jujuerrors "github.com/juju/errors"

	"tissuecore/internal/validation"
	"tissuecore/pkg/domain"
)

func notFound(format string, args ...any) error {
	return jujuerrors.NotFoundf(format, args...)
}

// IsNotFound reports whether err signals a missing entity.
func IsNotFound(err error) bool {
	return jujuerrors.Is(err, jujuerrors.NotFound)
}

func loadUser(view domain.TransactionView, username string, problems *domain.Problems) (domain.User, bool) {
	username = strings.TrimSpace(username)
	if username == "" {
		problems.Add("No user specified.")
		return domain.User{}, false
	}
	user, ok := view.FindUser(username)
	if !ok {
		problems.Addf("Unknown user: %q", username)
		return domain.User{}, false
	}
	if user.Role == domain.RoleDisabled {
		problems.Addf("User %q is disabled.", user.Username)
		return domain.User{}, false
	}
	return user, true
}

func loadOperationType(view domain.TransactionView, name string, problems *domain.Problems) (domain.OperationType, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		problems.Add("No operation type specified.")
		return domain.OperationType{}, false
	}
	ot, ok := view.FindOperationType(name)
	if !ok {
		problems.Addf("Unknown operation type: %q", name)
		return domain.OperationType{}, false
	}
	return ot, true
}

// loadWork resolves an optional work number. An empty number is not a problem.
func loadWork(view domain.TransactionView, workNumber string, problems *domain.Problems) (domain.Work, bool) {
	workNumber = strings.TrimSpace(workNumber)
	if workNumber == "" {
		return domain.Work{}, false
	}
	work, ok := view.FindWork(workNumber)
	if !ok {
		problems.Addf("Unknown work number: %q", workNumber)
		return domain.Work{}, false
	}
	if work.Status != domain.WorkActive {
		problems.Addf("Work %s cannot be used because it is %s.", work.WorkNumber, work.Status)
		return domain.Work{}, false
	}
	return work, true
}

// barcodeRule canonicalises a raw labware barcode and then checks its shape.
type barcodeRule struct {
	sanitiser  validation.Sanitiser[string]
	validators []validation.Validator[string]
}

func newBarcodeRule(validators ...validation.Validator[string]) barcodeRule {
	return barcodeRule{sanitiser: validation.NewUpperSanitiser("barcode"), validators: validators}
}

func (r barcodeRule) apply(raw string, problems *domain.Problems) (string, bool) {
	bc, ok := validation.SanitiseInto(r.sanitiser, raw, problems)
	if !ok || !validation.All(bc, problems, r.validators...) {
		return "", false
	}
	return bc, true
}

// loadLabware resolves barcodes in request order. Missing, repeated, and
// terminal labware are each reported as one aggregated problem.
func loadLabware(view domain.TransactionView, raw []string, barcode barcodeRule, problems *domain.Problems) []domain.Labware {
	if len(raw) == 0 {
		problems.Add("No labware specified.")
		return nil
	}
	var (
		out      []domain.Labware
		unknown  []string
		repeated []string
		seen     = make(map[string]bool)
		terminal = make(map[string][]string)
	)
	for _, r := range raw {
		bc, ok := barcode.apply(r, problems)
		if !ok {
			continue
		}
		if seen[bc] {
			repeated = append(repeated, bc)
			continue
		}
		seen[bc] = true
		lw, found := view.FindLabwareByBarcode(bc)
		if !found {
			unknown = append(unknown, bc)
			continue
		}
		if lw.Terminal() {
			terminal[lw.State()] = append(terminal[lw.State()], lw.Barcode)
		}
		out = append(out, lw)
	}
	if len(repeated) > 0 {
		problems.Addf("Repeated %s: %s", domain.Pluralise(len(repeated), "barcode", "barcodes"), domain.QuoteList(repeated))
	}
	if len(unknown) > 0 {
		problems.Addf("Unknown labware %s: %s", domain.Pluralise(len(unknown), "barcode", "barcodes"), domain.QuoteList(unknown))
	}
	states := make([]string, 0, len(terminal))
	for state := range terminal {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		problems.Addf("Labware already %s: %s", state, domain.QuoteList(terminal[state]))
	}
	return out
}

// loadSingleLabware resolves one barcode that must name active labware.
func loadSingleLabware(view domain.TransactionView, raw string, barcode barcodeRule, problems *domain.Problems) (domain.Labware, bool) {
	lws := loadLabware(view, []string{raw}, barcode, problems)
	if len(lws) != 1 || lws[0].Terminal() {
		return domain.Labware{}, false
	}
	return lws[0], true
}

// parseAddress parses an address that must lie within the layout.
func parseAddress(raw string, layout domain.LabwareType, owner string, problems *domain.Problems) (domain.Address, bool) {
	addr, err := domain.ParseAddress(raw)
	if err != nil {
		problems.Addf("Invalid address %q.", raw)
		return domain.Address{}, false
	}
	if !layout.Contains(addr) {
		problems.Addf("Address %s is not valid in %s.", addr, owner)
		return domain.Address{}, false
	}
	return addr, true
}

func barcodesOf(labware []domain.Labware) []string {
	out := make([]string, len(labware))
	for i, lw := range labware {
		out[i] = lw.Barcode
	}
	return out
}
