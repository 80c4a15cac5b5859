package bulk

import "fmt"

// Op names a bulk operation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpUpsert Op = "upsert"
	OpDelete Op = "delete"
	OpCopy   Op = "copy"
)

// merges reports whether the operation reconciles through a temp table.
func (o Op) merges() bool {
	return o != OpCopy
}

// needsKeys reports whether rows are matched on primary keys.
func (o Op) needsKeys() bool {
	return o == OpUpdate || o == OpUpsert || o == OpDelete
}

// State is a step of a bulk call. A call moves through the states in order;
// copy skips the temp table states.
type State int

const (
	StateStart State = iota
	StateConnectionOpened
	StateMetadataResolved
	StateTempTableCreated
	StateRowsStaged
	StateStatementExecuted
	StateIdentityMapped
	StateTempTableDropped
	StateConnectionClosed
)

var stateNames = [...]string{
	StateStart:             "Start",
	StateConnectionOpened:  "ConnectionOpened",
	StateMetadataResolved:  "MetadataResolved",
	StateTempTableCreated:  "TempTableCreated",
	StateRowsStaged:        "RowsStaged",
	StateStatementExecuted: "StatementExecuted",
	StateIdentityMapped:    "IdentityMapped",
	StateTempTableDropped:  "TempTableDropped",
	StateConnectionClosed:  "ConnectionClosed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}
