package auth

// Principal is any authenticated entity making a request.
type Principal interface {
	GetID() string
	GetName() string
	GetRoles() []string
	// HasRole reports whether the principal carries the given role.
	HasRole(role string) bool
}

// BasePrincipal is a simple implementation of Principal.
type BasePrincipal struct {
	ID    string
	Name  string
	Roles []string
}

func (b *BasePrincipal) GetID() string {
	return b.ID
}

func (b *BasePrincipal) GetName() string {
	return b.Name
}

func (b *BasePrincipal) GetRoles() []string {
	return b.Roles
}

func (b *BasePrincipal) HasRole(role string) bool {
	for _, r := range b.Roles {
		if r == role || r == "admin" {
			return true
		}
	}
	return false
}
