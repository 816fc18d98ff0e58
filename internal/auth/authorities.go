package auth

import "imagevault/internal/model"

// Authorities maps a role to the authorization claims it grants.
func Authorities(role model.Role) []string {
	switch role {
	case model.RoleUser:
		return []string{string(model.RoleUser)}
	default:
		return nil
	}
}
