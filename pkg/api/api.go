// Package api exposes search, enrollment lifecycle and opinions over HTTP.
package api

import (
	"errors"
	"strconv"
	"strings"

	"github.com/tutorhub/tutorhub/pkg/auth"
	"github.com/tutorhub/tutorhub/pkg/catalog"
	"github.com/tutorhub/tutorhub/pkg/config"
	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/ledger"
	"github.com/tutorhub/tutorhub/pkg/marketplace"
	"github.com/tutorhub/tutorhub/pkg/middleware/authz"
	"github.com/tutorhub/tutorhub/pkg/observability/logger"
	"github.com/tutorhub/tutorhub/pkg/repository"
	"github.com/tutorhub/tutorhub/pkg/search"
	"github.com/tutorhub/tutorhub/pkg/server/router"
	ginrouter "github.com/tutorhub/tutorhub/pkg/server/router/gin"
)

// Handler serves the /api routes.
type Handler struct {
	engine      *search.Engine
	market      *marketplace.Service
	ledger      *ledger.Ledger
	coordinator *repository.Coordinator
	validator   auth.JWTValidator
	rating      config.RatingConfig
	logger      logger.Logger
}

// Deps are the services behind the routes.
type Deps struct {
	Engine      *search.Engine
	Market      *marketplace.Service
	Ledger      *ledger.Ledger
	Coordinator *repository.Coordinator
	Validator   auth.JWTValidator
	Rating      config.RatingConfig
	Logger      logger.Logger
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	return &Handler{
		engine:      d.Engine,
		market:      d.Market,
		ledger:      d.Ledger,
		coordinator: d.Coordinator,
		validator:   d.Validator,
		rating:      d.Rating,
		logger:      d.Logger,
	}
}

// Register mounts every route under /api.
func (h *Handler) Register(r router.Router) {
	authenticated := authz.Authenticate(h.validator, h.logger)
	admin := authz.RequireRole(auth.RoleAdmin)
	tutor := authz.RequireRole(auth.RoleTutor)
	student := authz.RequireRole(auth.RoleStudent)

	api := r.Group("/api")

	students := api.Group("/students", authenticated)
	students.POST("/search", h.searchStudents, authz.RequireRole(auth.RoleAdmin, auth.RoleTutor))
	students.PUT("/:id/deactivate", h.setStudentActive(false), admin)
	students.PUT("/:id/reactivate", h.setStudentActive(true), admin)

	tutors := api.Group("/tutors", authenticated)
	tutors.POST("/search", h.searchTutors, authz.RequireRole(auth.RoleAdmin, auth.RoleStudent))
	tutors.PUT("/:id/validate", h.validateTutor, admin)
	tutors.PUT("/:id/lock", h.lockTutor, admin)

	enrollments := api.Group("/enrollments", authenticated)
	enrollments.POST("/tutor/search", h.searchEnrollments, tutor)
	enrollments.POST("/student/search", h.searchEnrollments, student)
	enrollments.POST("/signup/:id", h.signUp, student)
	enrollments.PUT("/:id/accept", h.accept, tutor)
	enrollments.PUT("/opinion", h.recordOpinion, student)

	public := api.Group("/public")
	public.POST("/tutors/search", h.searchPublicTutors, authz.OptionalAuthenticate(h.validator, h.logger))
	public.GET("/tutors/:id/rating", h.tutorRating)
	public.POST("/opinions/search", h.searchOpinions)
	public.GET("/branches", h.listBranches)
}

// actor resolves the authenticated user to the student or tutor row it owns.
func (h *Handler) actor(c router.Context) (catalog.Actor, error) {
	id, ok := authz.Identity(c.Request().Context())
	if !ok {
		return catalog.Actor{}, controller.NewUnauthorizedError("", "authentication is required", nil)
	}
	a, err := h.market.ResolveActor(c.Request().Context(), id)
	if err != nil {
		return catalog.Actor{}, mapError(err, h.rating)
	}
	return a, nil
}

func pathID(c router.Context, name string) (int64, error) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, controller.NewValidationErrorWithCode("validation.invalid_id", name+" must be a positive integer",
			map[string]any{"field": name}, map[string]any{"field": name, "value": raw})
	}
	return id, nil
}

// bindBody decodes the JSON body into v. An empty body leaves v untouched when
// optional is set.
func bindBody(c router.Context, v any, optional bool) error {
	err := c.Bind(v)
	if err == nil {
		return nil
	}
	if errors.Is(err, ginrouter.ErrEmptyBody) {
		if optional {
			return nil
		}
		return controller.NewValidationErrorWithCode("validation.invalid_body", "request body is required",
			map[string]any{"reason": "empty"}, nil)
	}
	return controller.NewValidationErrorWithCode("validation.invalid_body", "request body is not valid JSON",
		map[string]any{"reason": err.Error()}, nil)
}
