// Package domain defines the persistent entities, value types, problem
// collection, and commit-time rule primitives used by tissuecore.
package domain

import (
	"sort"
	"time"
)

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	EntityLabware            EntityType = "labware"
	EntitySample             EntityType = "sample"
	EntityOperation          EntityType = "operation"
	EntityAction             EntityType = "action"
	EntityOperationType      EntityType = "operation_type"
	EntityUser               EntityType = "user"
	EntityWork               EntityType = "work"
	EntityRelease            EntityType = "release"
	EntityReleaseDestination EntityType = "release_destination"
	EntityReleaseRecipient   EntityType = "release_recipient"
	EntityDestruction        EntityType = "destruction"
	EntityDestructionReason  EntityType = "destruction_reason"
	EntityReagentPlate       EntityType = "reagent_plate"
	EntityReagentSlot        EntityType = "reagent_slot"
	EntityReagentAction      EntityType = "reagent_action"
	EntityPlan               EntityType = "plan_operation"
	EntityStoredFile         EntityType = "stored_file"
)

// Well-known operation type names seeded by `tissuecore seed`.
const (
	OpRelease         = "Release"
	OpDestroy         = "Destroy"
	OpCleanOut        = "Clean out"
	OpSection         = "Section"
	OpTransfer        = "Transfer"
	OpReagentTransfer = "Reagent transfer"
)

// OperationTypeFlag marks optional behaviour of an operation type.
type OperationTypeFlag string

// Operation type flags.
const (
	// FlagInPlace marks operations whose actions start and end in the same slot.
	FlagInPlace OperationTypeFlag = "in_place"
	// FlagSourceIsBlock marks operations that consume block samples.
	FlagSourceIsBlock OperationTypeFlag = "source_is_block"
	// FlagDiscardSource marks operations that discard their source labware.
	FlagDiscardSource OperationTypeFlag = "discard_source"
)

// UserRole classifies users.
type UserRole string

// Canonical user roles.
const (
	RoleNormal   UserRole = "normal"
	RoleAdmin    UserRole = "admin"
	RoleDisabled UserRole = "disabled"
)

// WorkStatus enumerates the lifecycle of a Work. Transitions are owned elsewhere;
// request services only read it.
type WorkStatus string

// Canonical work statuses.
const (
	WorkActive    WorkStatus = "active"
	WorkPaused    WorkStatus = "paused"
	WorkCompleted WorkStatus = "completed"
	WorkFailed    WorkStatus = "failed"
	WorkWithdrawn WorkStatus = "withdrawn"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

// LabwareType fixes the slot layout of a piece of labware.
type LabwareType struct {
	Name       string `json:"name"`
	NumRows    int    `json:"num_rows"`
	NumColumns int    `json:"num_columns"`
}

// Contains reports whether the address lies inside the layout.
func (lt LabwareType) Contains(a Address) bool {
	return a.Row >= 1 && a.Row <= lt.NumRows && a.Column >= 1 && a.Column <= lt.NumColumns
}

// Addresses lists every address of the layout in row-major order.
func (lt LabwareType) Addresses() []Address {
	out := make([]Address, 0, lt.NumRows*lt.NumColumns)
	for r := 1; r <= lt.NumRows; r++ {
		for c := 1; c <= lt.NumColumns; c++ {
			out = append(out, Address{Row: r, Column: c})
		}
	}
	return out
}

// Slot is one addressable position within a piece of labware.
type Slot struct {
	ID                  string   `json:"id"`
	LabwareID           string   `json:"labware_id"`
	Address             Address  `json:"address"`
	SampleIDs           []string `json:"sample_ids"`
	BlockSampleID       *string  `json:"block_sample_id,omitempty"`
	BlockHighestSection *int     `json:"block_highest_section,omitempty"`
}

// IsBlock reports whether the slot holds a block.
func (s Slot) IsBlock() bool {
	return s.BlockSampleID != nil
}

// Empty reports whether the slot holds no samples.
func (s Slot) Empty() bool {
	return len(s.SampleIDs) == 0
}

// Labware is a physical container with a fixed grid of slots.
type Labware struct {
	Base
	Barcode     string      `json:"barcode"`
	LabwareType LabwareType `json:"labware_type"`
	Slots       []Slot      `json:"slots"`
	Released    bool        `json:"released"`
	Destroyed   bool        `json:"destroyed"`
	Discarded   bool        `json:"discarded"`
}

// Terminal reports whether a lifecycle flag has been set. Terminal labware can
// not be the subject of further requests.
func (l Labware) Terminal() bool {
	return l.Released || l.Destroyed || l.Discarded
}

// State names the terminal state for problem messages, or "active".
func (l Labware) State() string {
	switch {
	case l.Destroyed:
		return "destroyed"
	case l.Released:
		return "released"
	case l.Discarded:
		return "discarded"
	default:
		return "active"
	}
}

// Empty reports whether no slot holds a sample.
func (l Labware) Empty() bool {
	for _, s := range l.Slots {
		if !s.Empty() {
			return false
		}
	}
	return true
}

// Slot returns the slot at the given address.
func (l Labware) Slot(a Address) (Slot, bool) {
	for _, s := range l.Slots {
		if s.Address == a {
			return s, true
		}
	}
	return Slot{}, false
}

// SlotByID returns the slot with the given id.
func (l Labware) SlotByID(id string) (Slot, bool) {
	for _, s := range l.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

// Sample is an immutable unit of biological material.
type Sample struct {
	Base
	TissueName string `json:"tissue_name"`
	Section    *int   `json:"section,omitempty"`
	BioState   string `json:"bio_state"`
}

// OperationType classifies operations. Looked up by name.
type OperationType struct {
	Base
	Name  string              `json:"name"`
	Flags []OperationTypeFlag `json:"flags,omitempty"`
}

// Has reports whether the operation type carries the flag.
func (ot OperationType) Has(flag OperationTypeFlag) bool {
	for _, f := range ot.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// User performs operations.
type User struct {
	Base
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// Operation is an immutable audit record of a lab action.
type Operation struct {
	Base
	OperationTypeID string        `json:"operation_type_id"`
	OperationType   OperationType `json:"operation_type"`
	UserID          string        `json:"user_id"`
	Performed       time.Time     `json:"performed"`
	PlanOperationID *string       `json:"plan_operation_id,omitempty"`
	Actions         []Action      `json:"actions"`
}

// Action is one sample movement within an operation.
type Action struct {
	ID                   string `json:"id"`
	OperationID          string `json:"operation_id"`
	Ordinal              int    `json:"ordinal"`
	SourceLabwareID      string `json:"source_labware_id"`
	SourceSlotID         string `json:"source_slot_id"`
	DestinationLabwareID string `json:"destination_labware_id"`
	DestinationSlotID    string `json:"destination_slot_id"`
	SampleID             string `json:"sample_id"`
	SourceSampleID       string `json:"source_sample_id"`
}

// SortActions orders actions by their position within the operation.
func SortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool { return actions[i].Ordinal < actions[j].Ordinal })
}

// Work groups operations and files for funding and tracking.
type Work struct {
	Base
	WorkNumber   string     `json:"work_number"`
	Status       WorkStatus `json:"status"`
	OperationIDs []string   `json:"operation_ids"`
}

// ReleaseDestination is reference data naming where released labware goes.
type ReleaseDestination struct {
	Base
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}

// ReleaseRecipient is reference data naming who receives released labware.
type ReleaseRecipient struct {
	Base
	Username string `json:"username"`
	Enabled  bool   `json:"enabled"`
}

// DestructionReason is reference data explaining a destruction.
type DestructionReason struct {
	Base
	Text    string `json:"text"`
	Enabled bool   `json:"enabled"`
}

// Release records one piece of labware leaving the lab.
type Release struct {
	Base
	LabwareID     string    `json:"labware_id"`
	DestinationID string    `json:"destination_id"`
	RecipientID   string    `json:"recipient_id"`
	UserID        string    `json:"user_id"`
	OperationID   string    `json:"operation_id"`
	Released      time.Time `json:"released"`
}

// Destruction records one piece of labware being destroyed.
type Destruction struct {
	Base
	LabwareID   string    `json:"labware_id"`
	ReasonID    string    `json:"reason_id"`
	UserID      string    `json:"user_id"`
	OperationID string    `json:"operation_id"`
	Destroyed   time.Time `json:"destroyed"`
}

// ReagentPlate is the source container of a reagent transfer.
type ReagentPlate struct {
	Base
	Barcode   string `json:"barcode"`
	PlateType string `json:"plate_type"`
}

// ReagentSlot is one address within a reagent plate. A used slot has been
// consumed by an earlier operation.
type ReagentSlot struct {
	ID      string  `json:"id"`
	PlateID string  `json:"plate_id"`
	Address Address `json:"address"`
	Used    bool    `json:"used"`
}

// ReagentAction links a consumed reagent slot to the slot it was transferred into.
type ReagentAction struct {
	ID                string `json:"id"`
	OperationID       string `json:"operation_id"`
	ReagentSlotID     string `json:"reagent_slot_id"`
	DestinationSlotID string `json:"destination_slot_id"`
	// Concentration is an optional canonical decimal, such as "1.50".
	Concentration string `json:"concentration,omitempty"`
}

// PlanOperation is a proposed operation whose section numbers have been reserved.
type PlanOperation struct {
	Base
	OperationTypeID string       `json:"operation_type_id"`
	UserID          string       `json:"user_id"`
	Planned         time.Time    `json:"planned"`
	Actions         []PlanAction `json:"actions"`
}

// PlanAction is one proposed sample movement within a plan.
type PlanAction struct {
	ID                   string `json:"id"`
	PlanOperationID      string `json:"plan_operation_id"`
	SourceLabwareID      string `json:"source_labware_id"`
	SourceSlotID         string `json:"source_slot_id"`
	DestinationLabwareID string `json:"destination_labware_id"`
	DestinationSlotID    string `json:"destination_slot_id"`
	SampleID             string `json:"sample_id"`
	NewSection           *int   `json:"new_section,omitempty"`
}

// StoredFile is a file uploaded against a work. Only the latest upload of a
// given name on a work is active.
type StoredFile struct {
	Base
	Name        string `json:"name"`
	WorkID      string `json:"work_id"`
	UserID      string `json:"user_id"`
	BlobKey     string `json:"blob_key"`
	ContentType string `json:"content_type,omitempty"`
	Active      bool   `json:"active"`
}
