package models

import "fmt"

// OwnerType discriminates the two kinds of submission owners.
type OwnerType string

const (
	// OwnerEnrollment marks a submission owned by an individual enrollment.
	OwnerEnrollment OwnerType = "ENROLLMENT"
	// OwnerGroup marks a submission owned by a group.
	OwnerGroup OwnerType = "GROUP"
)

// Owner identifies the logical submitter of a submission: either an individual
// enrollment (ID is the user ID) or a group (ID is the group ID). Exactly one
// owner exists per submitted identity.
type Owner struct {
	Type OwnerType `json:"type"`
	ID   uint64    `json:"id"`
}

// EnrollmentOwner returns the owner for an individual user.
func EnrollmentOwner(userID uint64) Owner {
	return Owner{Type: OwnerEnrollment, ID: userID}
}

// GroupOwner returns the owner for a group.
func GroupOwner(groupID uint64) Owner {
	return Owner{Type: OwnerGroup, ID: groupID}
}

// IsGroup reports whether the owner is a group.
func (o Owner) IsGroup() bool {
	return o.Type == OwnerGroup
}

// String renders the owner for log fields and cache keys.
func (o Owner) String() string {
	return fmt.Sprintf("%s/%d", o.Type, o.ID)
}
