package domain

import "context"

// TransactionView provides read-only access to a consistent snapshot. Lookups
// return copies; mutating them has no effect on the store.
type TransactionView interface {
	FindLabware(id string) (Labware, bool)
	FindLabwareByBarcode(barcode string) (Labware, bool)
	ListLabware() []Labware
	FindSample(id string) (Sample, bool)
	FindUser(username string) (User, bool)
	ListUsers() []User
	FindOperationType(name string) (OperationType, bool)
	ListOperationTypes() []OperationType
	FindOperation(id string) (Operation, bool)
	ListOperations() []Operation
	ListActions() []Action
	FindWork(workNumber string) (Work, bool)
	ListWorks() []Work
	FindReleaseDestination(name string) (ReleaseDestination, bool)
	ListReleaseDestinations() []ReleaseDestination
	FindReleaseRecipient(username string) (ReleaseRecipient, bool)
	ListReleaseRecipients() []ReleaseRecipient
	FindDestructionReason(id string) (DestructionReason, bool)
	FindDestructionReasonByText(text string) (DestructionReason, bool)
	ListDestructionReasons() []DestructionReason
	ListReleases() []Release
	ListDestructions() []Destruction
	FindReagentPlate(barcode string) (ReagentPlate, bool)
	FindReagentSlot(plateID string, address Address) (ReagentSlot, bool)
	ListReagentActions() []ReagentAction
	FindPlan(id string) (PlanOperation, bool)
	ListPlans() []PlanOperation
	FindStoredFile(id string) (StoredFile, bool)
	ListStoredFiles(workID string) []StoredFile
}

// Transaction exposes the mutations a persistence implementation must support
// within an atomic scope. Reads through a Transaction observe its own writes.
type Transaction interface {
	TransactionView
	Snapshot() TransactionView
	CreateLabware(Labware) (Labware, error)
	UpdateLabware(id string, mutator func(*Labware) error) (Labware, error)
	UpdateSlot(labwareID, slotID string, mutator func(*Slot) error) (Slot, error)
	CreateSample(Sample) (Sample, error)
	CreateUser(User) (User, error)
	CreateOperationType(OperationType) (OperationType, error)
	CreateOperation(Operation) (Operation, error)
	CreateAction(Action) (Action, error)
	CreateWork(Work) (Work, error)
	UpdateWork(id string, mutator func(*Work) error) (Work, error)
	CreateRelease(Release) (Release, error)
	CreateDestruction(Destruction) (Destruction, error)
	CreateReleaseDestination(ReleaseDestination) (ReleaseDestination, error)
	UpdateReleaseDestination(id string, mutator func(*ReleaseDestination) error) (ReleaseDestination, error)
	CreateReleaseRecipient(ReleaseRecipient) (ReleaseRecipient, error)
	UpdateReleaseRecipient(id string, mutator func(*ReleaseRecipient) error) (ReleaseRecipient, error)
	CreateDestructionReason(DestructionReason) (DestructionReason, error)
	UpdateDestructionReason(id string, mutator func(*DestructionReason) error) (DestructionReason, error)
	CreateReagentPlate(ReagentPlate) (ReagentPlate, error)
	CreateReagentSlot(ReagentSlot) (ReagentSlot, error)
	UpdateReagentSlot(id string, mutator func(*ReagentSlot) error) (ReagentSlot, error)
	CreateReagentAction(ReagentAction) (ReagentAction, error)
	CreatePlan(PlanOperation) (PlanOperation, error)
	CreateStoredFile(StoredFile) (StoredFile, error)
	UpdateStoredFile(id string, mutator func(*StoredFile) error) (StoredFile, error)
}

// PersistentStore is the minimal abstraction over durable backends. A
// transaction either commits every mutation fn made or none of them.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
