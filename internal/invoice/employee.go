package invoice

import "github.com/roach88/billbook/internal/record"

// Role is an employee's permission level.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// ValidRole reports whether r is a known role.
func ValidRole(r Role) bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// CanManage reports whether r may create and edit other employees.
func (r Role) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

// EmployeeStatus is active or inactive.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
)

// Employee is a team member of the account.
type Employee struct {
	ID      string
	Name    string
	Role    Role
	Sites   []string
	Status  EmployeeStatus
	PINHash string
}

// EmployeeFromRecord reads an employee in internal field names.
func EmployeeFromRecord(rec record.Object) Employee {
	e := Employee{
		ID:      rec.ID(),
		Name:    str(rec, "name"),
		Role:    Role(str(rec, "role")),
		Sites:   stringList(rec, "sites"),
		Status:  EmployeeStatus(str(rec, "status")),
		PINHash: str(rec, "pinHash"),
	}
	if !ValidRole(e.Role) {
		e.Role = RoleEmployee
	}
	if e.Status == "" {
		e.Status = EmployeeActive
	}
	return e
}

// ToRecord writes the employee in internal field names.
func (e Employee) ToRecord() record.Object {
	rec := record.Object{}
	putString(rec, record.IDKey, e.ID)
	putString(rec, "name", e.Name)
	putString(rec, "role", string(e.Role))
	putStrings(rec, "sites", e.Sites)
	putString(rec, "status", string(e.Status))
	putString(rec, "pinHash", e.PINHash)
	return rec
}

// AssignedTo reports whether the employee works at site.
func (e Employee) AssignedTo(site string) bool {
	for _, s := range e.Sites {
		if s == site {
			return true
		}
	}
	return false
}
