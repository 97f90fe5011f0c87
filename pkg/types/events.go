package types

// ItemState is the per-identifier installation state machine.
// Absent and Installed are the rest states; the intermediate states exist
// only while an operation is in flight.
type ItemState string

const (
	StateAbsent     ItemState = "absent"
	StateFetching   ItemState = "fetching"
	StateExtracting ItemState = "extracting"
	StateInstalled  ItemState = "installed"
	StateFailed     ItemState = "failed"
)

// OpKind names the high-level operations the engine executes.
type OpKind string

const (
	OpInstall      OpKind = "install"
	OpUninstall    OpKind = "uninstall"
	OpSwitchActive OpKind = "switch-active"
)

// Event is the union of notifications the engine emits to its caller.
// The engine never depends on who consumes them.
type Event interface {
	event()
}

// CatalogChanged signals that the set of known or installed HUDs changed.
type CatalogChanged struct{}

// OperationProgress reports incremental progress of an in-flight operation.
type OperationProgress struct {
	ID    string
	Phase ItemState
	// Fraction is 0..1 within the current phase. Negative when the total
	// is unknown (e.g. a download without Content-Length).
	Fraction float64
	// BytesDone and BytesTotal are filled for fetch progress.
	BytesDone  int64
	BytesTotal int64
}

// OperationCompleted reports the terminal result of an operation.
type OperationCompleted struct {
	ID  string
	Op  OpKind
	Err error
}

// PersistenceWarning signals a non-fatal failure to persist catalog state.
// The on-disk installation remains usable; the save is retried on the next
// state-changing operation.
type PersistenceWarning struct {
	Err error
}

func (CatalogChanged) event()     {}
func (OperationProgress) event()  {}
func (OperationCompleted) event() {}
func (PersistenceWarning) event() {}
