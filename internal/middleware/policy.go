package middleware

import (
	"net/http"
	"slices"

	"vdt-app/internal/models"
)

// RouteKey identifies a route by method and gin path pattern.
type RouteKey struct {
	Method string
	Path   string
}

// Policy maps each protected route to the roles allowed to call it.
type Policy map[RouteKey][]models.Role

// StudentPolicy gates the student resource. admin holds every
// permission user holds.
var StudentPolicy = Policy{
	{http.MethodGet, "/students"}:        {models.RoleUser, models.RoleAdmin},
	{http.MethodPost, "/students"}:       {models.RoleAdmin},
	{http.MethodPut, "/students/:id"}:    {models.RoleAdmin},
	{http.MethodDelete, "/students/:id"}: {models.RoleAdmin},
}

// Allows reports whether role may call the route. Routes missing from
// the policy allow nobody.
func (p Policy) Allows(route RouteKey, role models.Role) bool {
	return RoleAllowed(role, p[route])
}

// RoleAllowed is the single role check used by every gate.
func RoleAllowed(role models.Role, allowed []models.Role) bool {
	return role.Valid() && slices.Contains(allowed, role)
}
