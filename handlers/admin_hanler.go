package handlers

import (
	"net/http"

	"github.com/Dosada05/tombola/models"
	"github.com/Dosada05/tombola/services"
)

type AdminUserHandler struct {
	userService services.UserService
}

func NewAdminUserHandler(s services.UserService) *AdminUserHandler {
	return &AdminUserHandler{userService: s}
}

// ListUsers handles GET /admin/users?search=&role=&limit=&offset=.
func (h *AdminUserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	actor, ok := currentPrincipal(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := services.ListUsersFilter{Search: q.Get("search")}
	if role := models.UserRole(q.Get("role")); role != "" {
		filter.Role = &role
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		n, err := queryInt(r, name)
		if err != nil {
			badRequestResponse(w, r, err)
			return
		}
		if n != nil {
			*dst = *n
		}
	}

	users, err := h.userService.ListUsers(r.Context(), actor, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	if err := writeJSON(w, http.StatusOK, jsonResponse{"users": users}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
