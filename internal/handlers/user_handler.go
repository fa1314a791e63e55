package handlers

import (
	"errors"

	"akun/internal/response"
	"akun/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserHandler handles the administrative user endpoints.
type UserHandler struct {
	service  *services.AccountService
	validate *validator.Validate
	log      *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service *services.AccountService, log *zap.Logger) *UserHandler {
	return &UserHandler{
		service:  service,
		validate: newValidator(),
		log:      log,
	}
}

// RegisterRoutes registers the /user routes, each guarded by requireAuth.
func (h *UserHandler) RegisterRoutes(router fiber.Router, requireAuth fiber.Handler) {
	userRoutes := router.Group("/user")
	userRoutes.Get("/list", requireAuth, h.HandleListUsers)
	userRoutes.Post("/create", requireAuth, h.HandleCreateUser)
	userRoutes.Get("/get-user-info/:id", requireAuth, h.HandleGetUser)
	userRoutes.Put("/update", requireAuth, h.HandleUpdateUser)
	userRoutes.Delete("/delete/:id", requireAuth, h.HandleDeleteUser)
}

// ListQuery holds the paging parameters of /user/list.
type ListQuery struct {
	Search string `json:"search" query:"search" validate:"max=255"`
	Skip   int    `json:"skip" query:"skip" validate:"min=0"`
	Limit  int    `json:"limit" query:"limit" validate:"min=1,max=100"`
}

// HandleListUsers returns one page of users and the matching total.
func (h *UserHandler) HandleListUsers(c *fiber.Ctx) error {
	q := ListQuery{Limit: defaultPageSize}
	if err := c.QueryParser(&q); err != nil {
		return respondError(c, h.log, &validationError{fields: map[string]string{"query": "Invalid query parameters"}})
	}
	if err := check(h.validate, &q); err != nil {
		return respondError(c, h.log, err)
	}

	users, total, err := h.service.ListUsers(c.UserContext(), q.Search, q.Skip, q.Limit)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, users, total)
}

// CreateUserRequest is the body of /user/create. Enabled defaults to true.
type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=20,excludes=@"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Name     string `json:"name" validate:"max=255"`
	Sex      *int   `json:"sex" validate:"omitempty,oneof=0 1"`
	Enabled  *bool  `json:"enabled"`
}

// HandleCreateUser creates a user without a verification code.
func (h *UserHandler) HandleCreateUser(c *fiber.Ctx) error {
	var req CreateUserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	in := services.CreateUserInput{
		Username:   req.Username,
		Password:   req.Password,
		Email:      req.Email,
		Name:       req.Name,
		Sex:        services.SexMale,
		Enabled:    true,
		ClientHost: c.IP(),
	}
	if req.Sex != nil {
		in.Sex = *req.Sex
	}
	if req.Enabled != nil {
		in.Enabled = *req.Enabled
	}

	user, err := h.service.CreateUser(c.UserContext(), in)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, user, 0)
}

// HandleGetUser returns one user. An unknown id yields an empty detail.
func (h *UserHandler) HandleGetUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, h.log, &validationError{fields: map[string]string{"id": "Field 'id' must be a positive integer"}})
	}

	user, err := h.service.GetUser(c.UserContext(), uint(id))
	if errors.Is(err, services.ErrUserNotFound) {
		return response.OK(c, "", 0)
	}
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, user, 0)
}

// UpdateUserRequest is the body of /user/update. Omitted fields are kept and
// an empty password leaves the current one in place.
type UpdateUserRequest struct {
	ID       uint    `json:"id" validate:"required"`
	Name     *string `json:"name" validate:"omitempty,max=255"`
	Email    *string `json:"email" validate:"omitempty,email,max=255"`
	Sex      *int    `json:"sex" validate:"omitempty,oneof=0 1"`
	Enabled  *bool   `json:"enabled"`
	Password string  `json:"password" validate:"omitempty,min=6,max=72"`
}

// HandleUpdateUser updates a user's profile.
func (h *UserHandler) HandleUpdateUser(c *fiber.Ctx) error {
	var req UpdateUserRequest
	if err := bind(c, h.validate, &req); err != nil {
		return respondError(c, h.log, err)
	}

	user, err := h.service.UpdateUser(c.UserContext(), services.UpdateUserInput{
		ID:         req.ID,
		Name:       req.Name,
		Email:      req.Email,
		Sex:        req.Sex,
		Enabled:    req.Enabled,
		Password:   req.Password,
		ClientHost: c.IP(),
	})
	if err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, user, 0)
}

// HandleDeleteUser soft-deletes a user.
func (h *UserHandler) HandleDeleteUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return respondError(c, h.log, &validationError{fields: map[string]string{"id": "Field 'id' must be a positive integer"}})
	}

	if err := h.service.DeleteUser(c.UserContext(), uint(id)); err != nil {
		return respondError(c, h.log, err)
	}
	return response.OK(c, "Successfully deleted user", 0)
}
