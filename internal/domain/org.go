package domain

// UnitKind distinguishes the two nested organisational scopes.
type UnitKind string

const (
	UnitBusinessUnit UnitKind = "BUSINESS_UNIT"
	UnitDivision     UnitKind = "DIVISION"
)

// ValidatorRole names the seat a validator occupies on a scope.
type ValidatorRole string

const (
	RoleBUPrincipal       ValidatorRole = "BU_PRINCIPAL"
	RoleBUAdjoint         ValidatorRole = "BU_ADJOINT"
	RoleDivisionPrincipal ValidatorRole = "DIVISION_PRINCIPAL"
	RoleDivisionAdjoint   ValidatorRole = "DIVISION_ADJOINT"
)

// OrgUnit is a Business Unit or Division with its validator assignment.
// A nil PrincipalID/AdjointID means the seat is unassigned.
type OrgUnit struct {
	ID          string   `json:"id" db:"id"`
	Kind        UnitKind `json:"kind" db:"kind"`
	Name        string   `json:"nom" db:"nom"`
	PrincipalID *string  `json:"responsable_principal_id" db:"responsable_principal_id"`
	AdjointID   *string  `json:"responsable_adjoint_id" db:"responsable_adjoint_id"`
}

// Validator is one eligible decision-maker returned by the resolver.
type Validator struct {
	CollaboratorID string        `json:"id"`
	Role           ValidatorRole `json:"role"`
}

// UserRole is the platform role carried by a user account.
type UserRole string

const (
	UserRoleAdmin         UserRole = "ADMIN"
	UserRoleSuperAdmin    UserRole = "SUPER_ADMIN"
	UserRoleDirector      UserRole = "DIRECTOR"
	UserRolePartner       UserRole = "PARTNER"
	UserRoleSeniorPartner UserRole = "SENIOR_PARTNER"
	UserRoleManager       UserRole = "MANAGER"
	UserRoleCollaborator  UserRole = "COLLABORATEUR"
)

// User is a platform account. Notifications are addressed to users.
type User struct {
	ID    string   `json:"id" db:"id"`
	Email string   `json:"email" db:"email"`
	Name  string   `json:"nom" db:"nom"`
	Role  UserRole `json:"role" db:"role"`
}

// Collaborator is a staff record. Validators and requesters are
// collaborators; UserID links back to the account that receives mail.
type Collaborator struct {
	ID             string  `json:"id" db:"id"`
	UserID         *string `json:"user_id" db:"user_id"`
	Name           string  `json:"nom" db:"nom"`
	Email          string  `json:"email" db:"email"`
	BusinessUnitID *string `json:"business_unit_id" db:"business_unit_id"`
}
