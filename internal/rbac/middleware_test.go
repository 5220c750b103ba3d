package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/users"
)

func TestRequireAny(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := Middleware{}.RequireStaff()(ok)

	cases := []struct {
		name   string
		p      *auth.Principal
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"customer", &auth.Principal{UserID: "c1", Role: users.RoleCustomer}, http.StatusForbidden},
		{"backoffice", &auth.Principal{UserID: "b1", Role: users.RoleBackoffice}, http.StatusNoContent},
		{"subadmin", &auth.Principal{UserID: "s1", Role: users.RoleSubadmin}, http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.p != nil {
			req = req.WithContext(auth.ContextWithPrincipal(req.Context(), *tc.p))
		}
		res := httptest.NewRecorder()
		gate.ServeHTTP(res, req)
		assert.Equal(t, tc.status, res.Code, tc.name)
	}
}

func TestRequireAdmin(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	gate := Middleware{}.RequireAdmin()(ok)

	req := httptest.NewRequest(http.MethodPut, "/", nil)
	req = req.WithContext(auth.ContextWithPrincipal(req.Context(), auth.Principal{UserID: "b1", Role: users.RoleBackoffice}))
	res := httptest.NewRecorder()
	gate.ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
}

func TestCanAccessCustomerResource(t *testing.T) {
	assert.True(t, CanAccessCustomerResource(auth.Principal{UserID: "c1", Role: users.RoleCustomer}, "c1"))
	assert.False(t, CanAccessCustomerResource(auth.Principal{UserID: "c2", Role: users.RoleCustomer}, "c1"))
	assert.True(t, CanAccessCustomerResource(auth.Principal{UserID: "a1", Role: users.RoleAdmin}, "c1"))
}
