// Package memory provides the in-memory implementation of the persistence
// store. Durable backends reuse it for transactions and snapshot its state.
package memory

import (
	"tissuecore/pkg/domain"
)

// Snapshot is the full store state. It doubles as the live state inside the
// store and as the unit durable backends persist, one bucket per field.
type Snapshot struct {
	Labware        map[string]domain.Labware            `json:"labware"`
	Samples        map[string]domain.Sample             `json:"samples"`
	Users          map[string]domain.User               `json:"users"`
	OperationTypes map[string]domain.OperationType      `json:"operation_types"`
	Operations     map[string]domain.Operation          `json:"operations"`
	Actions        map[string]domain.Action             `json:"actions"`
	Works          map[string]domain.Work               `json:"works"`
	Releases       map[string]domain.Release            `json:"releases"`
	Destinations   map[string]domain.ReleaseDestination `json:"release_destinations"`
	Recipients     map[string]domain.ReleaseRecipient   `json:"release_recipients"`
	Destructions   map[string]domain.Destruction        `json:"destructions"`
	Reasons        map[string]domain.DestructionReason  `json:"destruction_reasons"`
	ReagentPlates  map[string]domain.ReagentPlate       `json:"reagent_plates"`
	ReagentSlots   map[string]domain.ReagentSlot        `json:"reagent_slots"`
	ReagentActions map[string]domain.ReagentAction      `json:"reagent_actions"`
	Plans          map[string]domain.PlanOperation      `json:"plans"`
	Files          map[string]domain.StoredFile         `json:"files"`
}

// Buckets maps each persistence bucket name to a pointer to its field, so
// durable backends can marshal and unmarshal buckets without a switch per entity.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"labware":              &s.Labware,
		"samples":              &s.Samples,
		"users":                &s.Users,
		"operation_types":      &s.OperationTypes,
		"operations":           &s.Operations,
		"actions":              &s.Actions,
		"works":                &s.Works,
		"releases":             &s.Releases,
		"release_destinations": &s.Destinations,
		"release_recipients":   &s.Recipients,
		"destructions":         &s.Destructions,
		"destruction_reasons":  &s.Reasons,
		"reagent_plates":       &s.ReagentPlates,
		"reagent_slots":        &s.ReagentSlots,
		"reagent_actions":      &s.ReagentActions,
		"plans":                &s.Plans,
		"files":                &s.Files,
	}
}

// BucketNames lists bucket names in a stable order.
func BucketNames() []string {
	return []string{
		"labware", "samples", "users", "operation_types", "operations", "actions", "works",
		"releases", "release_destinations", "release_recipients", "destructions",
		"destruction_reasons", "reagent_plates", "reagent_slots", "reagent_actions", "plans", "files",
	}
}

func newSnapshot() Snapshot {
	return Snapshot{
		Labware:        make(map[string]domain.Labware),
		Samples:        make(map[string]domain.Sample),
		Users:          make(map[string]domain.User),
		OperationTypes: make(map[string]domain.OperationType),
		Operations:     make(map[string]domain.Operation),
		Actions:        make(map[string]domain.Action),
		Works:          make(map[string]domain.Work),
		Releases:       make(map[string]domain.Release),
		Destinations:   make(map[string]domain.ReleaseDestination),
		Recipients:     make(map[string]domain.ReleaseRecipient),
		Destructions:   make(map[string]domain.Destruction),
		Reasons:        make(map[string]domain.DestructionReason),
		ReagentPlates:  make(map[string]domain.ReagentPlate),
		ReagentSlots:   make(map[string]domain.ReagentSlot),
		ReagentActions: make(map[string]domain.ReagentAction),
		Plans:          make(map[string]domain.PlanOperation),
		Files:          make(map[string]domain.StoredFile),
	}
}

func cloneMap[V any](in map[string]V, clone func(V) V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func same[V any](v V) V { return v }

// clone deep-copies the snapshot. Nil buckets (from an older or partial
// snapshot) come back as empty maps.
func (s Snapshot) clone() Snapshot {
	return Snapshot{
		Labware:        cloneMap(s.Labware, cloneLabware),
		Samples:        cloneMap(s.Samples, cloneSample),
		Users:          cloneMap(s.Users, same[domain.User]),
		OperationTypes: cloneMap(s.OperationTypes, cloneOperationType),
		Operations:     cloneMap(s.Operations, cloneOperation),
		Actions:        cloneMap(s.Actions, same[domain.Action]),
		Works:          cloneMap(s.Works, cloneWork),
		Releases:       cloneMap(s.Releases, same[domain.Release]),
		Destinations:   cloneMap(s.Destinations, same[domain.ReleaseDestination]),
		Recipients:     cloneMap(s.Recipients, same[domain.ReleaseRecipient]),
		Destructions:   cloneMap(s.Destructions, same[domain.Destruction]),
		Reasons:        cloneMap(s.Reasons, same[domain.DestructionReason]),
		ReagentPlates:  cloneMap(s.ReagentPlates, same[domain.ReagentPlate]),
		ReagentSlots:   cloneMap(s.ReagentSlots, same[domain.ReagentSlot]),
		ReagentActions: cloneMap(s.ReagentActions, same[domain.ReagentAction]),
		Plans:          cloneMap(s.Plans, clonePlan),
		Files:          cloneMap(s.Files, same[domain.StoredFile]),
	}
}

func cloneIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlot(s domain.Slot) domain.Slot {
	cp := s
	cp.SampleIDs = append([]string(nil), s.SampleIDs...)
	cp.BlockSampleID = cloneStringPtr(s.BlockSampleID)
	cp.BlockHighestSection = cloneIntPtr(s.BlockHighestSection)
	return cp
}

func cloneLabware(l domain.Labware) domain.Labware {
	cp := l
	cp.Slots = make([]domain.Slot, len(l.Slots))
	for i, s := range l.Slots {
		cp.Slots[i] = cloneSlot(s)
	}
	return cp
}

func cloneSample(s domain.Sample) domain.Sample {
	cp := s
	cp.Section = cloneIntPtr(s.Section)
	return cp
}

func cloneOperationType(ot domain.OperationType) domain.OperationType {
	cp := ot
	cp.Flags = append([]domain.OperationTypeFlag(nil), ot.Flags...)
	return cp
}

func cloneOperation(op domain.Operation) domain.Operation {
	cp := op
	cp.OperationType = cloneOperationType(op.OperationType)
	cp.PlanOperationID = cloneStringPtr(op.PlanOperationID)
	cp.Actions = append([]domain.Action(nil), op.Actions...)
	return cp
}

func cloneWork(w domain.Work) domain.Work {
	cp := w
	cp.OperationIDs = append([]string(nil), w.OperationIDs...)
	return cp
}

func clonePlan(p domain.PlanOperation) domain.PlanOperation {
	cp := p
	cp.Actions = make([]domain.PlanAction, len(p.Actions))
	for i, a := range p.Actions {
		a.NewSection = cloneIntPtr(a.NewSection)
		cp.Actions[i] = a
	}
	return cp
}
