package users

import "time"

// Role is the coarse capability a user holds.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleAdmin      Role = "admin"
	RoleBackoffice Role = "backoffice"
	RoleSubadmin   Role = "subadmin"
)

// StaffRoles are the back-office roles that receive internal notifications.
var StaffRoles = []Role{RoleAdmin, RoleBackoffice, RoleSubadmin}

// IsValid reports whether r is a known role.
func (r Role) IsValid() bool {
	switch r {
	case RoleCustomer, RoleAdmin, RoleBackoffice, RoleSubadmin:
		return true
	}
	return false
}

// IsStaff reports whether r is a back-office role.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleBackoffice || r == RoleSubadmin
}

// User is the subset of an account this service reads: identity for
// authentication and contact details for notifications.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Name         string    `json:"name" bson:"name"`
	Company      string    `json:"company,omitempty" bson:"company"`
	Email        string    `json:"email" bson:"email"`
	Phone        string    `json:"phone,omitempty" bson:"phone"`
	Role         Role      `json:"role" bson:"role"`
	PasswordHash string    `json:"-" bson:"passwordHash"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}
