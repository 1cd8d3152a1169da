package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	apihttp "github.com/spec-kit/helpdesk-service/internal/api/http"
	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/assignment"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type RouterTestSuite struct {
	suite.Suite
	app    *fiber.App
	users  *repository.MemoryUserStore
	tokens *auth.TokenManager

	employee   domain.User
	itAgent    domain.User
	superAdmin domain.User
}

func TestRouterTestSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}

func (s *RouterTestSuite) SetupTest() {
	logger := zap.NewNop()
	cfg := config.Config{Auth: config.AuthConfig{BcryptCost: bcrypt.MinCost}}

	s.users = repository.NewMemoryUserStore()
	s.employee = s.seed("Erin", domain.RoleEmployee)
	s.itAgent = s.seed("Ivy", domain.RoleIT)
	s.superAdmin = s.seed("Sam", domain.RoleSuperAdmin)

	s.tokens = auth.NewTokenManager("router-secret", 15)
	tickets := repository.NewMemoryTicketStore()
	metrics := observability.NewMetrics()

	// Only Ivy is eligible for IT besides the super-admin; the seed makes
	// the pick reproducible.
	router := assignment.NewRouter(s.users, rand.New(rand.NewPCG(1, 2)), logger)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo: tickets,
		UserRepo:   s.users,
		Assigner:   router,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     logger,
	})

	s.app = fiber.New()
	apihttp.RegisterMiddlewares(s.app, logger, metrics, 5*time.Second)
	apihttp.RegisterRoutes(s.app, apihttp.RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk", "test", nil, nil, metrics),
		Auth:           handlers.NewAuthHandler(service.NewAuthService(cfg, s.users, s.tokens, logger)),
		Tickets:        handlers.NewTicketsHandler(ticketService),
		Users:          handlers.NewUsersHandler(service.NewUserService(s.users, nil, logger)),
		AuthMiddleware: auth.NewAuthMiddleware(s.tokens, s.users),
	})
}

func (s *RouterTestSuite) seed(name string, role domain.Role) domain.User {
	user := &domain.User{Name: name, Email: name + "@example.com", Role: role, IsActive: true}
	s.Require().NoError(s.users.Create(context.Background(), user))
	return *user
}

func (s *RouterTestSuite) token(user domain.User) string {
	token, _, err := s.tokens.GenerateToken(&user)
	s.Require().NoError(err)
	return token
}

func (s *RouterTestSuite) do(method, path, token string, body any) (int, map[string]any) {
	var reader io.Reader
	if body != nil {
		switch v := body.(type) {
		case string:
			reader = bytes.NewBufferString(v)
		default:
			raw, err := json.Marshal(v)
			s.Require().NoError(err)
			reader = bytes.NewReader(raw)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	s.Require().NoError(err)
	defer resp.Body.Close()

	payload := map[string]any{}
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	if len(raw) > 0 {
		s.Require().NoError(json.Unmarshal(raw, &payload), string(raw))
	}
	return resp.StatusCode, payload
}

func data(payload map[string]any) map[string]any {
	out, _ := payload["data"].(map[string]any)
	return out
}

func errorCode(payload map[string]any) string {
	body, _ := payload["error"].(map[string]any)
	code, _ := body["code"].(string)
	return code
}

func (s *RouterTestSuite) createTicket(token string) map[string]any {
	status, payload := s.do(http.MethodPost, "/api/tickets", token, map[string]any{
		"title":       "VPN keeps dropping",
		"description": "The VPN disconnects every ten minutes",
		"category":    "IT",
	})
	s.Require().Equal(http.StatusCreated, status, payload)
	return data(payload)
}

func (s *RouterTestSuite) TestHealth() {
	status, payload := s.do(http.MethodGet, "/health/live", "", nil)
	s.Equal(http.StatusOK, status)
	s.Equal("alive", payload["status"])

	status, payload = s.do(http.MethodGet, "/health/ready", "", nil)
	s.Equal(http.StatusOK, status)
	deps := payload["dependencies"].(map[string]any)
	s.Equal("disabled", deps["postgres"])
	s.Equal("disabled", deps["redis"])
}

func (s *RouterTestSuite) TestRegisterAndLogin() {
	status, payload := s.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name":     "Nora",
		"email":    "nora@example.com",
		"password": "secret1",
	})
	s.Require().Equal(http.StatusCreated, status, payload)
	user := data(payload)["user"].(map[string]any)
	s.Equal("employee", user["role"])
	s.NotContains(user, "passwordHash")

	status, payload = s.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "nora@example.com",
		"password": "secret1",
	})
	s.Require().Equal(http.StatusOK, status, payload)
	token := data(payload)["token"].(string)

	status, payload = s.do(http.MethodGet, "/api/auth/me", token, nil)
	s.Equal(http.StatusOK, status)
	s.Equal("nora@example.com", data(payload)["email"])

	status, payload = s.do(http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "nora@example.com",
		"password": "wrong-one",
	})
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", errorCode(payload))
}

func (s *RouterTestSuite) TestTicketsRequireAuthentication() {
	status, payload := s.do(http.MethodGet, "/api/tickets", "", nil)
	s.Equal(http.StatusUnauthorized, status)
	s.Equal("UNAUTHORIZED", errorCode(payload))

	status, _ = s.do(http.MethodGet, "/api/tickets", "garbage", nil)
	s.Equal(http.StatusUnauthorized, status)
}

func (s *RouterTestSuite) TestTicketFlow() {
	employee := s.token(s.employee)
	agent := s.token(s.itAgent)

	ticket := s.createTicket(employee)
	id := ticket["id"].(string)
	s.Equal("Medium", ticket["priority"])
	s.Equal("Open", ticket["status"])
	s.NotNil(ticket["assigneeId"])

	status, payload := s.do(http.MethodPut, "/api/tickets/"+id, employee, map[string]any{"status": "Resolved"})
	s.Equal(http.StatusForbidden, status)
	s.Equal("PERMISSION_DENIED", errorCode(payload))

	status, payload = s.do(http.MethodPut, "/api/tickets/"+id, agent, map[string]any{"status": "Resolved"})
	s.Require().Equal(http.StatusOK, status, payload)
	s.Equal("Resolved", data(payload)["status"])
	s.NotNil(data(payload)["resolvedAt"])

	status, payload = s.do(http.MethodPost, "/api/tickets/"+id+"/comments", agent, map[string]any{
		"content":    "Replaced the router firmware",
		"isInternal": true,
	})
	s.Require().Equal(http.StatusCreated, status, payload)
	s.Equal(true, data(payload)["isInternal"])

	status, payload = s.do(http.MethodPost, "/api/tickets/"+id+"/comments", employee, map[string]any{
		"content":    "Thanks",
		"isInternal": true,
	})
	s.Require().Equal(http.StatusCreated, status, payload)
	s.Equal(false, data(payload)["isInternal"])

	status, payload = s.do(http.MethodGet, "/api/tickets/"+id, employee, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Len(data(payload)["comments"], 1)

	status, payload = s.do(http.MethodGet, "/api/tickets/"+id, agent, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Len(data(payload)["comments"], 2)
}

func (s *RouterTestSuite) TestTicketErrors() {
	employee := s.token(s.employee)

	status, payload := s.do(http.MethodGet, "/api/tickets/not-a-uuid", employee, nil)
	s.Equal(http.StatusBadRequest, status)
	s.Equal("VALIDATION_FAILED", errorCode(payload))

	status, payload = s.do(http.MethodGet, "/api/tickets/6f1c7a53-0c2e-4f1b-9d53-3a4f5e6d7c8b", employee, nil)
	s.Equal(http.StatusNotFound, status)
	s.Equal("NOT_FOUND", errorCode(payload))

	status, payload = s.do(http.MethodPost, "/api/tickets", employee, "{not json")
	s.Equal(http.StatusBadRequest, status)
	s.Equal("VALIDATION_FAILED", errorCode(payload))

	status, payload = s.do(http.MethodPost, "/api/tickets", employee, map[string]any{
		"title":       "Hey",
		"description": "The VPN disconnects every ten minutes",
		"category":    "IT",
	})
	s.Equal(http.StatusBadRequest, status)
	body := payload["error"].(map[string]any)
	s.Equal("title", body["details"].(map[string]any)["field"])
}

func (s *RouterTestSuite) TestListTicketsPaging() {
	employee := s.token(s.employee)
	for i := 0; i < 3; i++ {
		s.createTicket(employee)
	}

	status, payload := s.do(http.MethodGet, "/api/tickets?limit=2&page=2", employee, nil)
	s.Require().Equal(http.StatusOK, status)
	page := data(payload)
	s.Len(page["tickets"], 1)
	s.EqualValues(3, page["total"])
	s.EqualValues(2, page["totalPages"])
	s.EqualValues(2, page["currentPage"])

	status, payload = s.do(http.MethodGet, "/api/tickets", s.token(s.superAdmin), nil)
	s.Require().Equal(http.StatusOK, status)
	s.EqualValues(3, data(payload)["total"])
}

func (s *RouterTestSuite) TestUserAdministration() {
	employee := s.token(s.employee)
	admin := s.token(s.superAdmin)

	status, payload := s.do(http.MethodGet, "/api/users", employee, nil)
	s.Equal(http.StatusForbidden, status)
	s.Equal("PERMISSION_DENIED", errorCode(payload))

	status, payload = s.do(http.MethodGet, "/api/users?role=it", admin, nil)
	s.Require().Equal(http.StatusOK, status)
	s.Len(payload["data"], 1)

	status, _ = s.do(http.MethodGet, "/api/users?active=maybe", admin, nil)
	s.Equal(http.StatusBadRequest, status)

	status, payload = s.do(http.MethodPatch, "/api/users/"+s.employee.ID, admin, map[string]any{"isActive": false})
	s.Require().Equal(http.StatusOK, status, payload)
	s.Equal(false, data(payload)["isActive"])

	status, _ = s.do(http.MethodGet, "/api/tickets", employee, nil)
	s.Equal(http.StatusUnauthorized, status, "deactivated accounts lose access immediately")
}

func (s *RouterTestSuite) TestMetricsCountRequests() {
	s.do(http.MethodGet, "/health/live", "", nil)
	s.do(http.MethodGet, "/api/tickets", "", nil)

	status, payload := s.do(http.MethodGet, "/health/metrics", "", nil)
	s.Require().Equal(http.StatusOK, status)
	snapshot := data(payload)
	s.NotEmpty(snapshot["requests"])
	s.NotEmpty(snapshot["errors"])
}
