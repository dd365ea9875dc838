package user

import "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/branch"

// Profile is the caller as clients see it: who they are, what they may do
// and the branch they scan for, if any.
type Profile struct {
	ID          int64          `json:"id"`
	Email       string         `json:"email"`
	Name        string         `json:"name"`
	PhoneNumber string         `json:"phone_number,omitempty"`
	Role        string         `json:"role"`
	Permissions []string       `json:"permissions"`
	Branch      *branch.Branch `json:"branch,omitempty"`
}
