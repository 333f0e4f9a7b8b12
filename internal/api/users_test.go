package api

import (
	"net/http"
	"sync"
	"testing"

	"github.com/ilker/timetable-server/internal/handlers"
	"github.com/ilker/timetable-server/internal/models"
	"github.com/ilker/timetable-server/internal/testutil"
)

type authEnvelope struct {
	Success bool                  `json:"success"`
	Data    handlers.AuthResponse `json:"data"`
}

func (s *testServer) register(t *testing.T, name, email string) handlers.AuthResponse {
	t.Helper()
	rr := s.do(testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": name, "email": email, "password": "secret123"}, ""))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var resp authEnvelope
	testutil.DecodeJSON(t, rr, &resp)
	return resp.Data
}

func (s *testServer) login(t *testing.T, email, password string, want int) handlers.AuthResponse {
	t.Helper()
	rr := s.do(testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/login",
		map[string]string{"email": email, "password": password}, ""))
	testutil.AssertStatus(t, rr, want)
	var resp authEnvelope
	if want == http.StatusOK {
		testutil.DecodeJSON(t, rr, &resp)
	}
	return resp.Data
}

func TestRegisterAndLogin(t *testing.T) {
	s := setupServer(t)

	first := s.register(t, "Admin", "admin@school.example")
	if !first.User.Permissions.Has(models.PermAdmin) || !first.User.Permissions.Has(models.PermTimeTableAdmin) {
		t.Errorf("Expected first user to get every permission, got %v", first.User.Permissions)
	}

	second := s.register(t, "Student", "student@school.example")
	if len(second.User.Permissions) != 0 {
		t.Errorf("Expected no permissions for second user, got %v", second.User.Permissions)
	}

	rr := s.do(testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register",
		map[string]string{"name": "Again", "email": "student@school.example", "password": "secret123"}, ""))
	testutil.AssertStatus(t, rr, http.StatusConflict)

	s.login(t, "student@school.example", "wrong", http.StatusUnauthorized)
	s.login(t, "nobody@school.example", "secret123", http.StatusUnauthorized)
	logged := s.login(t, "student@school.example", "secret123", http.StatusOK)
	if logged.Token == "" || logged.User.ID != second.User.ID {
		t.Errorf("Unexpected login response %+v", logged)
	}

	rr = s.do(testutil.MakeRequest(t, http.MethodGet, "/api/v1/auth/me", nil, logged.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	// The student holds no timetable permission yet.
	rr = s.do(testutil.MakeRequest(t, http.MethodGet, "/api/v1/timetable/grades", nil, logged.Token))
	testutil.AssertStatus(t, rr, http.StatusUnauthorized)
}

func TestUserAdministration(t *testing.T) {
	s := setupServer(t)

	admin := s.register(t, "Admin", "admin@school.example")
	student := s.register(t, "Student", "student@school.example")
	path := "/api/v1/users/" + itoa(student.User.ID)

	rr := s.do(testutil.MakeRequest(t, http.MethodGet, "/api/v1/users", nil, student.Token))
	testutil.AssertStatus(t, rr, http.StatusForbidden)

	rr = s.do(testutil.MakeRequest(t, http.MethodGet, "/api/v1/users", nil, admin.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	var list struct {
		Data []handlers.UserResponse `json:"data"`
		Meta handlers.Meta           `json:"meta"`
	}
	testutil.DecodeJSON(t, rr, &list)
	if len(list.Data) != 2 || list.Meta.Total != 2 {
		t.Errorf("Expected 2 users, got %+v", list)
	}

	rr = s.do(testutil.MakeRequest(t, http.MethodPatch, path+"/permissions",
		map[string]any{"permissions": map[string]bool{"superuser": true}}, admin.Token))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)

	rr = s.do(testutil.MakeRequest(t, http.MethodPatch, path+"/permissions",
		map[string]any{"permissions": map[string]bool{models.PermTimeTable: true}}, admin.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)

	// New permissions come with the next token.
	relogged := s.login(t, "student@school.example", "secret123", http.StatusOK)
	rr = s.do(testutil.MakeRequest(t, http.MethodGet, "/api/v1/timetable/grades", nil, relogged.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "[]" {
		t.Errorf("Expected empty grade list, got %s", rr.Body.String())
	}

	rr = s.do(testutil.MakeRequest(t, http.MethodPatch, path, map[string]any{"is_active": false}, admin.Token))
	testutil.AssertStatus(t, rr, http.StatusOK)
	s.login(t, "student@school.example", "secret123", http.StatusForbidden)

	rr = s.do(testutil.MakeRequest(t, http.MethodPost, "/api/v1/devices",
		map[string]any{"platform": 1, "device_identifier": "apns-token"}, relogged.Token))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	rr = s.do(testutil.MakeRequest(t, http.MethodDelete, path, nil, admin.Token))
	testutil.AssertStatus(t, rr, http.StatusNoContent)
	if n := s.count(t, &models.DeviceRow{}); n != 0 {
		t.Errorf("Expected user's devices to be deleted, got %d", n)
	}

	rr = s.do(testutil.MakeRequest(t, http.MethodGet, path, nil, admin.Token))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
}

func TestConcurrentFirstRegistration(t *testing.T) {
	s := setupServer(t)

	const n = 6
	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := testutil.MakeRequest(t, http.MethodPost, "/api/v1/auth/register", map[string]string{
				"name":     "User " + itoa(uint(i)),
				"email":    "user" + itoa(uint(i)) + "@school.example",
				"password": "secret123",
			}, "")
			codes[i] = s.do(req).Code
		}(i)
	}
	wg.Wait()

	for i, code := range codes {
		if code != http.StatusCreated {
			t.Errorf("Registration %d: expected 201, got %d", i, code)
		}
	}

	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		t.Fatalf("Find failed: %v", err)
	}
	admins := 0
	for _, u := range users {
		if u.IsAdmin() {
			admins++
		}
	}
	if len(users) != n || admins != 1 {
		t.Errorf("Expected %d users and exactly 1 admin, got %d users and %d admins", n, len(users), admins)
	}
}
