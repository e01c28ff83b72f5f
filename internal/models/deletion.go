package models

// DeleteResult is the outcome of a delete request.
type DeleteResult string

const (
	DeleteResultDeleted     DeleteResult = "DELETED"
	DeleteResultDeactivated DeleteResult = "DEACTIVATED"
)

// DependencyCount names a dependent row family and how many rows reference the entity.
type DependencyCount struct {
	Dependency string `json:"dependency"`
	Count      int    `json:"count"`
}

// DeleteOutcome tells the caller whether the row is gone or was only deactivated and why.
type DeleteOutcome struct {
	Entity    EntityKind        `json:"entity"`
	ID        string            `json:"id"`
	Result    DeleteResult      `json:"result"`
	BlockedBy []DependencyCount `json:"blocked_by,omitempty"`
	Removed   map[string]int64  `json:"removed,omitempty"`
}
