package memory

import (
	"strings"
	"time"

	"github.com/juju/errors"

	"tissuecore/pkg/domain"
)

type transaction struct {
	reader
	store    *Store
	changes  []domain.Change
	now      time.Time
	ordinals map[string]int
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

func (tx *transaction) Snapshot() domain.TransactionView {
	return transactionView{reader{state: tx.state}}
}

func (tx *transaction) stamp(base *domain.Base) {
	if base.ID == "" {
		base.ID = tx.store.newID()
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = tx.now
	}
}

func insert[V any](tx *transaction, bucket map[string]V, entity domain.EntityType, id string, value V, clone func(V) V) (V, error) {
	if _, exists := bucket[id]; exists {
		var zero V
		return zero, errors.AlreadyExistsf("%s %q", entity, id)
	}
	bucket[id] = clone(value)
	tx.recordChange(domain.Change{Entity: entity, Action: domain.ChangeCreate, After: clone(value)})
	return clone(value), nil
}

// modify applies mutator to a copy of the stored record. restore puts back the
// fields callers may not change, starting with the id.
func modify[V any](tx *transaction, bucket map[string]V, entity domain.EntityType, id string, mutator func(*V) error, clone func(V) V, restore func(before V, after *V)) (V, error) {
	var zero V
	current, ok := bucket[id]
	if !ok {
		return zero, errors.NotFoundf("%s %q", entity, id)
	}
	before := clone(current)
	updated := clone(current)
	if err := mutator(&updated); err != nil {
		return zero, err
	}
	restore(before, &updated)
	bucket[id] = clone(updated)
	tx.recordChange(domain.Change{Entity: entity, Action: domain.ChangeUpdate, Before: before, After: clone(updated)})
	return clone(updated), nil
}

func (tx *transaction) CreateLabware(lw domain.Labware) (domain.Labware, error) {
	tx.stamp(&lw.Base)
	lw.Barcode = strings.ToUpper(strings.TrimSpace(lw.Barcode))
	if lw.Barcode == "" {
		return domain.Labware{}, errors.NotValidf("labware without barcode")
	}
	if _, taken := tx.FindLabwareByBarcode(lw.Barcode); taken {
		return domain.Labware{}, errors.AlreadyExistsf("labware barcode %q", lw.Barcode)
	}
	if len(lw.Slots) == 0 {
		for _, addr := range lw.LabwareType.Addresses() {
			lw.Slots = append(lw.Slots, domain.Slot{Address: addr})
		}
	}
	for i := range lw.Slots {
		if lw.Slots[i].ID == "" {
			lw.Slots[i].ID = tx.store.newID()
		}
		lw.Slots[i].LabwareID = lw.ID
	}
	return insert(tx, tx.state.Labware, domain.EntityLabware, lw.ID, lw, cloneLabware)
}

func (tx *transaction) UpdateLabware(id string, mutator func(*domain.Labware) error) (domain.Labware, error) {
	return modify(tx, tx.state.Labware, domain.EntityLabware, id, mutator, cloneLabware, func(before domain.Labware, after *domain.Labware) {
		after.Base = before.Base
		after.Barcode = before.Barcode
		after.LabwareType = before.LabwareType
	})
}

func (tx *transaction) UpdateSlot(labwareID, slotID string, mutator func(*domain.Slot) error) (domain.Slot, error) {
	var updated domain.Slot
	_, err := tx.UpdateLabware(labwareID, func(lw *domain.Labware) error {
		for i := range lw.Slots {
			if lw.Slots[i].ID != slotID {
				continue
			}
			before := lw.Slots[i]
			if err := mutator(&lw.Slots[i]); err != nil {
				return err
			}
			lw.Slots[i].ID = before.ID
			lw.Slots[i].LabwareID = before.LabwareID
			lw.Slots[i].Address = before.Address
			updated = cloneSlot(lw.Slots[i])
			return nil
		}
		return errors.NotFoundf("slot %q in labware %q", slotID, labwareID)
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return updated, nil
}

func (tx *transaction) CreateSample(s domain.Sample) (domain.Sample, error) {
	tx.stamp(&s.Base)
	return insert(tx, tx.state.Samples, domain.EntitySample, s.ID, s, cloneSample)
}

func (tx *transaction) CreateUser(u domain.User) (domain.User, error) {
	tx.stamp(&u.Base)
	if _, taken := tx.FindUser(u.Username); taken {
		return domain.User{}, errors.AlreadyExistsf("user %q", u.Username)
	}
	if u.Role == "" {
		u.Role = domain.RoleNormal
	}
	return insert(tx, tx.state.Users, domain.EntityUser, u.ID, u, same[domain.User])
}

func (tx *transaction) CreateOperationType(ot domain.OperationType) (domain.OperationType, error) {
	tx.stamp(&ot.Base)
	if _, taken := tx.FindOperationType(ot.Name); taken {
		return domain.OperationType{}, errors.AlreadyExistsf("operation type %q", ot.Name)
	}
	return insert(tx, tx.state.OperationTypes, domain.EntityOperationType, ot.ID, ot, cloneOperationType)
}

// CreateOperation stores the operation header. Actions are added afterwards
// through CreateAction; any actions on the argument are ignored.
func (tx *transaction) CreateOperation(op domain.Operation) (domain.Operation, error) {
	tx.stamp(&op.Base)
	ot, ok := tx.state.OperationTypes[op.OperationTypeID]
	if !ok {
		return domain.Operation{}, errors.NotFoundf("operation type %q", op.OperationTypeID)
	}
	op.OperationType = cloneOperationType(ot)
	if op.Performed.IsZero() {
		op.Performed = tx.now
	}
	op.Actions = nil
	return insert(tx, tx.state.Operations, domain.EntityOperation, op.ID, op, cloneOperation)
}

// CreateAction appends an action to an existing operation, assigning the next
// ordinal within that operation.
func (tx *transaction) CreateAction(a domain.Action) (domain.Action, error) {
	if _, ok := tx.state.Operations[a.OperationID]; !ok {
		return domain.Action{}, errors.NotFoundf("operation %q", a.OperationID)
	}
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if tx.ordinals == nil {
		tx.ordinals = make(map[string]int)
	}
	next, seen := tx.ordinals[a.OperationID]
	if !seen {
		for _, existing := range tx.state.Actions {
			if existing.OperationID == a.OperationID && existing.Ordinal >= next {
				next = existing.Ordinal + 1
			}
		}
	}
	a.Ordinal = next
	tx.ordinals[a.OperationID] = next + 1
	if a.SourceSampleID == "" {
		a.SourceSampleID = a.SampleID
	}
	return insert(tx, tx.state.Actions, domain.EntityAction, a.ID, a, same[domain.Action])
}

func (tx *transaction) CreateWork(w domain.Work) (domain.Work, error) {
	tx.stamp(&w.Base)
	if _, taken := tx.FindWork(w.WorkNumber); taken {
		return domain.Work{}, errors.AlreadyExistsf("work %q", w.WorkNumber)
	}
	if w.Status == "" {
		w.Status = domain.WorkActive
	}
	return insert(tx, tx.state.Works, domain.EntityWork, w.ID, w, cloneWork)
}

func (tx *transaction) UpdateWork(id string, mutator func(*domain.Work) error) (domain.Work, error) {
	return modify(tx, tx.state.Works, domain.EntityWork, id, mutator, cloneWork, func(before domain.Work, after *domain.Work) {
		after.Base = before.Base
		after.WorkNumber = before.WorkNumber
	})
}

func (tx *transaction) CreateRelease(r domain.Release) (domain.Release, error) {
	tx.stamp(&r.Base)
	if r.Released.IsZero() {
		r.Released = tx.now
	}
	return insert(tx, tx.state.Releases, domain.EntityRelease, r.ID, r, same[domain.Release])
}

func (tx *transaction) CreateDestruction(d domain.Destruction) (domain.Destruction, error) {
	tx.stamp(&d.Base)
	if d.Destroyed.IsZero() {
		d.Destroyed = tx.now
	}
	return insert(tx, tx.state.Destructions, domain.EntityDestruction, d.ID, d, same[domain.Destruction])
}

func (tx *transaction) CreateReleaseDestination(d domain.ReleaseDestination) (domain.ReleaseDestination, error) {
	tx.stamp(&d.Base)
	if _, taken := tx.FindReleaseDestination(d.Name); taken {
		return domain.ReleaseDestination{}, errors.AlreadyExistsf("release destination %q", d.Name)
	}
	return insert(tx, tx.state.Destinations, domain.EntityReleaseDestination, d.ID, d, same[domain.ReleaseDestination])
}

func (tx *transaction) UpdateReleaseDestination(id string, mutator func(*domain.ReleaseDestination) error) (domain.ReleaseDestination, error) {
	return modify(tx, tx.state.Destinations, domain.EntityReleaseDestination, id, mutator, same[domain.ReleaseDestination],
		func(before domain.ReleaseDestination, after *domain.ReleaseDestination) { after.Base = before.Base })
}

func (tx *transaction) CreateReleaseRecipient(r domain.ReleaseRecipient) (domain.ReleaseRecipient, error) {
	tx.stamp(&r.Base)
	if _, taken := tx.FindReleaseRecipient(r.Username); taken {
		return domain.ReleaseRecipient{}, errors.AlreadyExistsf("release recipient %q", r.Username)
	}
	return insert(tx, tx.state.Recipients, domain.EntityReleaseRecipient, r.ID, r, same[domain.ReleaseRecipient])
}

func (tx *transaction) UpdateReleaseRecipient(id string, mutator func(*domain.ReleaseRecipient) error) (domain.ReleaseRecipient, error) {
	return modify(tx, tx.state.Recipients, domain.EntityReleaseRecipient, id, mutator, same[domain.ReleaseRecipient],
		func(before domain.ReleaseRecipient, after *domain.ReleaseRecipient) { after.Base = before.Base })
}

func (tx *transaction) CreateDestructionReason(r domain.DestructionReason) (domain.DestructionReason, error) {
	tx.stamp(&r.Base)
	if _, taken := tx.FindDestructionReasonByText(r.Text); taken {
		return domain.DestructionReason{}, errors.AlreadyExistsf("destruction reason %q", r.Text)
	}
	return insert(tx, tx.state.Reasons, domain.EntityDestructionReason, r.ID, r, same[domain.DestructionReason])
}

func (tx *transaction) UpdateDestructionReason(id string, mutator func(*domain.DestructionReason) error) (domain.DestructionReason, error) {
	return modify(tx, tx.state.Reasons, domain.EntityDestructionReason, id, mutator, same[domain.DestructionReason],
		func(before domain.DestructionReason, after *domain.DestructionReason) { after.Base = before.Base })
}

func (tx *transaction) CreateReagentPlate(p domain.ReagentPlate) (domain.ReagentPlate, error) {
	tx.stamp(&p.Base)
	if _, taken := tx.FindReagentPlate(p.Barcode); taken {
		return domain.ReagentPlate{}, errors.AlreadyExistsf("reagent plate %q", p.Barcode)
	}
	return insert(tx, tx.state.ReagentPlates, domain.EntityReagentPlate, p.ID, p, same[domain.ReagentPlate])
}

func (tx *transaction) CreateReagentSlot(s domain.ReagentSlot) (domain.ReagentSlot, error) {
	if s.ID == "" {
		s.ID = tx.store.newID()
	}
	if _, ok := tx.state.ReagentPlates[s.PlateID]; !ok {
		return domain.ReagentSlot{}, errors.NotFoundf("reagent plate %q", s.PlateID)
	}
	if _, taken := tx.FindReagentSlot(s.PlateID, s.Address); taken {
		return domain.ReagentSlot{}, errors.AlreadyExistsf("reagent slot %s on plate %q", s.Address, s.PlateID)
	}
	return insert(tx, tx.state.ReagentSlots, domain.EntityReagentSlot, s.ID, s, same[domain.ReagentSlot])
}

func (tx *transaction) UpdateReagentSlot(id string, mutator func(*domain.ReagentSlot) error) (domain.ReagentSlot, error) {
	return modify(tx, tx.state.ReagentSlots, domain.EntityReagentSlot, id, mutator, same[domain.ReagentSlot],
		func(before domain.ReagentSlot, after *domain.ReagentSlot) {
			after.ID = before.ID
			after.PlateID = before.PlateID
			after.Address = before.Address
		})
}

func (tx *transaction) CreateReagentAction(a domain.ReagentAction) (domain.ReagentAction, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, ok := tx.state.Operations[a.OperationID]; !ok {
		return domain.ReagentAction{}, errors.NotFoundf("operation %q", a.OperationID)
	}
	return insert(tx, tx.state.ReagentActions, domain.EntityReagentAction, a.ID, a, same[domain.ReagentAction])
}

func (tx *transaction) CreatePlan(p domain.PlanOperation) (domain.PlanOperation, error) {
	tx.stamp(&p.Base)
	if p.Planned.IsZero() {
		p.Planned = tx.now
	}
	for i := range p.Actions {
		if p.Actions[i].ID == "" {
			p.Actions[i].ID = tx.store.newID()
		}
		p.Actions[i].PlanOperationID = p.ID
	}
	return insert(tx, tx.state.Plans, domain.EntityPlan, p.ID, p, clonePlan)
}

func (tx *transaction) CreateStoredFile(f domain.StoredFile) (domain.StoredFile, error) {
	tx.stamp(&f.Base)
	return insert(tx, tx.state.Files, domain.EntityStoredFile, f.ID, f, same[domain.StoredFile])
}

func (tx *transaction) UpdateStoredFile(id string, mutator func(*domain.StoredFile) error) (domain.StoredFile, error) {
	return modify(tx, tx.state.Files, domain.EntityStoredFile, id, mutator, same[domain.StoredFile],
		func(before domain.StoredFile, after *domain.StoredFile) {
			after.Base = before.Base
			after.BlobKey = before.BlobKey
		})
}
