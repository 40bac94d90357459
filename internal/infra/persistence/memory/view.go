package memory

import (
	"sort"
	"strings"

	"tissuecore/pkg/domain"
)

// reader serves every lookup against one state. Both the transaction and the
// read-only view embed it, so a transaction reads its own writes.
type reader struct {
	state *Snapshot
}

type transactionView struct {
	reader
}

func sortByCreated[T any](items []T, base func(T) domain.Base) {
	sort.SliceStable(items, func(i, j int) bool {
		bi, bj := base(items[i]), base(items[j])
		if !bi.CreatedAt.Equal(bj.CreatedAt) {
			return bi.CreatedAt.Before(bj.CreatedAt)
		}
		return bi.ID < bj.ID
	})
}

func values[V any](m map[string]V, clone func(V) V) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	return out
}

func (r reader) FindLabware(id string) (domain.Labware, bool) {
	lw, ok := r.state.Labware[id]
	if !ok {
		return domain.Labware{}, false
	}
	return cloneLabware(lw), true
}

func (r reader) FindLabwareByBarcode(barcode string) (domain.Labware, bool) {
	for _, lw := range r.state.Labware {
		if strings.EqualFold(lw.Barcode, barcode) {
			return cloneLabware(lw), true
		}
	}
	return domain.Labware{}, false
}

func (r reader) ListLabware() []domain.Labware {
	out := values(r.state.Labware, cloneLabware)
	sortByCreated(out, func(l domain.Labware) domain.Base { return l.Base })
	return out
}

func (r reader) FindSample(id string) (domain.Sample, bool) {
	s, ok := r.state.Samples[id]
	if !ok {
		return domain.Sample{}, false
	}
	return cloneSample(s), true
}

func (r reader) FindUser(username string) (domain.User, bool) {
	for _, u := range r.state.Users {
		if strings.EqualFold(u.Username, username) {
			return u, true
		}
	}
	return domain.User{}, false
}

func (r reader) ListUsers() []domain.User {
	out := values(r.state.Users, same[domain.User])
	sortByCreated(out, func(u domain.User) domain.Base { return u.Base })
	return out
}

func (r reader) FindOperationType(name string) (domain.OperationType, bool) {
	for _, ot := range r.state.OperationTypes {
		if strings.EqualFold(ot.Name, name) {
			return cloneOperationType(ot), true
		}
	}
	return domain.OperationType{}, false
}

func (r reader) ListOperationTypes() []domain.OperationType {
	out := values(r.state.OperationTypes, cloneOperationType)
	sortByCreated(out, func(ot domain.OperationType) domain.Base { return ot.Base })
	return out
}

// actionsByOperation groups stored actions by operation id, each group in
// ordinal order.
func (r reader) actionsByOperation() map[string][]domain.Action {
	grouped := make(map[string][]domain.Action)
	for _, a := range r.state.Actions {
		grouped[a.OperationID] = append(grouped[a.OperationID], a)
	}
	for _, acts := range grouped {
		domain.SortActions(acts)
	}
	return grouped
}

func (r reader) FindOperation(id string) (domain.Operation, bool) {
	op, ok := r.state.Operations[id]
	if !ok {
		return domain.Operation{}, false
	}
	cp := cloneOperation(op)
	cp.Actions = nil
	for _, a := range r.state.Actions {
		if a.OperationID == id {
			cp.Actions = append(cp.Actions, a)
		}
	}
	domain.SortActions(cp.Actions)
	return cp, true
}

func (r reader) ListOperations() []domain.Operation {
	grouped := r.actionsByOperation()
	out := make([]domain.Operation, 0, len(r.state.Operations))
	for id, op := range r.state.Operations {
		cp := cloneOperation(op)
		cp.Actions = grouped[id]
		out = append(out, cp)
	}
	sortByCreated(out, func(op domain.Operation) domain.Base { return op.Base })
	return out
}

func (r reader) ListActions() []domain.Action {
	out := values(r.state.Actions, same[domain.Action])
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OperationID != out[j].OperationID {
			return out[i].OperationID < out[j].OperationID
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

func (r reader) FindWork(workNumber string) (domain.Work, bool) {
	for _, w := range r.state.Works {
		if strings.EqualFold(w.WorkNumber, workNumber) {
			return cloneWork(w), true
		}
	}
	return domain.Work{}, false
}

func (r reader) ListWorks() []domain.Work {
	out := values(r.state.Works, cloneWork)
	sortByCreated(out, func(w domain.Work) domain.Base { return w.Base })
	return out
}

func (r reader) FindReleaseDestination(name string) (domain.ReleaseDestination, bool) {
	for _, d := range r.state.Destinations {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return domain.ReleaseDestination{}, false
}

func (r reader) ListReleaseDestinations() []domain.ReleaseDestination {
	out := values(r.state.Destinations, same[domain.ReleaseDestination])
	sortByCreated(out, func(d domain.ReleaseDestination) domain.Base { return d.Base })
	return out
}

func (r reader) FindReleaseRecipient(username string) (domain.ReleaseRecipient, bool) {
	for _, rc := range r.state.Recipients {
		if strings.EqualFold(rc.Username, username) {
			return rc, true
		}
	}
	return domain.ReleaseRecipient{}, false
}

func (r reader) ListReleaseRecipients() []domain.ReleaseRecipient {
	out := values(r.state.Recipients, same[domain.ReleaseRecipient])
	sortByCreated(out, func(rc domain.ReleaseRecipient) domain.Base { return rc.Base })
	return out
}

func (r reader) FindDestructionReason(id string) (domain.DestructionReason, bool) {
	reason, ok := r.state.Reasons[id]
	return reason, ok
}

func (r reader) FindDestructionReasonByText(text string) (domain.DestructionReason, bool) {
	for _, reason := range r.state.Reasons {
		if strings.EqualFold(reason.Text, text) {
			return reason, true
		}
	}
	return domain.DestructionReason{}, false
}

func (r reader) ListDestructionReasons() []domain.DestructionReason {
	out := values(r.state.Reasons, same[domain.DestructionReason])
	sortByCreated(out, func(d domain.DestructionReason) domain.Base { return d.Base })
	return out
}

func (r reader) ListReleases() []domain.Release {
	out := values(r.state.Releases, same[domain.Release])
	sortByCreated(out, func(rel domain.Release) domain.Base { return rel.Base })
	return out
}

func (r reader) ListDestructions() []domain.Destruction {
	out := values(r.state.Destructions, same[domain.Destruction])
	sortByCreated(out, func(d domain.Destruction) domain.Base { return d.Base })
	return out
}

func (r reader) FindReagentPlate(barcode string) (domain.ReagentPlate, bool) {
	for _, p := range r.state.ReagentPlates {
		if strings.EqualFold(p.Barcode, barcode) {
			return p, true
		}
	}
	return domain.ReagentPlate{}, false
}

func (r reader) FindReagentSlot(plateID string, address domain.Address) (domain.ReagentSlot, bool) {
	for _, s := range r.state.ReagentSlots {
		if s.PlateID == plateID && s.Address == address {
			return s, true
		}
	}
	return domain.ReagentSlot{}, false
}

func (r reader) ListReagentActions() []domain.ReagentAction {
	out := values(r.state.ReagentActions, same[domain.ReagentAction])
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r reader) FindPlan(id string) (domain.PlanOperation, bool) {
	p, ok := r.state.Plans[id]
	if !ok {
		return domain.PlanOperation{}, false
	}
	return clonePlan(p), true
}

func (r reader) ListPlans() []domain.PlanOperation {
	out := values(r.state.Plans, clonePlan)
	sortByCreated(out, func(p domain.PlanOperation) domain.Base { return p.Base })
	return out
}

func (r reader) FindStoredFile(id string) (domain.StoredFile, bool) {
	f, ok := r.state.Files[id]
	return f, ok
}

func (r reader) ListStoredFiles(workID string) []domain.StoredFile {
	out := make([]domain.StoredFile, 0)
	for _, f := range r.state.Files {
		if f.WorkID == workID {
			out = append(out, f)
		}
	}
	sortByCreated(out, func(f domain.StoredFile) domain.Base { return f.Base })
	return out
}
