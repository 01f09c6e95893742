package domain

import "strings"

// Identity is an authenticated participant as supplied by the authentication
// collaborator at connect time.
type Identity struct {
	ID        uint   `json:"id"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
}

// FullName joins first and last name.
func (i Identity) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(i.FirstName) + " " + strings.TrimSpace(i.LastName))
}

// IsAdmin reports whether the identity carries the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// IsStaff reports whether the identity carries the staff role.
func (i Identity) IsStaff() bool { return i.Role == RoleStaff }

// IsCustomer reports whether the identity carries the customer role.
func (i Identity) IsCustomer() bool { return i.Role == RoleCustomer }

// User converts the identity into a directory row.
func (i Identity) User() *User {
	return &User{
		ID:        i.ID,
		FirstName: i.FirstName,
		LastName:  i.LastName,
		Email:     i.Email,
		Role:      i.Role,
		IsActive:  true,
	}
}
