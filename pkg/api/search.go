package api

import (
	"github.com/tutorhub/tutorhub/pkg/catalog"
	"github.com/tutorhub/tutorhub/pkg/controller"
	"github.com/tutorhub/tutorhub/pkg/middleware/authz"
	"github.com/tutorhub/tutorhub/pkg/search"
	"github.com/tutorhub/tutorhub/pkg/server/router"
)

// searchRequest is the body of every search route. Page and limit travel in the query string.
type searchRequest struct {
	Filters map[string]any         `json:"filters"`
	Sort    []search.SortDirective `json:"sort" validate:"omitempty,dive"`
	GroupBy []string               `json:"groupBy"`
}

func (h *Handler) rawSpec(c router.Context, withBody bool) (search.RawSpec, error) {
	raw := search.RawSpec{Page: c.Query("page"), Limit: c.Query("limit")}
	if !withBody {
		return raw, nil
	}
	var req searchRequest
	if err := bindBody(c, &req, true); err != nil {
		return raw, err
	}
	if err := controller.ValidateDTO(&req); err != nil {
		return raw, err
	}
	raw.Filters, raw.Sort, raw.GroupBy = req.Filters, req.Sort, req.GroupBy
	return raw, nil
}

func (h *Handler) runSearch(c router.Context, entity string, scope search.ScopePredicate, withBody bool) error {
	raw, err := h.rawSpec(c, withBody)
	if err != nil {
		return controller.Error(c, err)
	}
	page, err := h.engine.Search(c.Request().Context(), entity, raw, scope)
	if err != nil {
		return controller.Error(c, mapError(err, h.rating))
	}
	return controller.Page(c, page)
}

func (h *Handler) scopedSearch(entity string, scopeFor func(catalog.Actor) (search.ScopePredicate, error)) router.HandlerFunc {
	return func(c router.Context) error {
		a, err := h.actor(c)
		if err != nil {
			return controller.Error(c, err)
		}
		scope, err := scopeFor(a)
		if err != nil {
			return controller.Error(c, mapError(err, h.rating))
		}
		return h.runSearch(c, entity, scope, true)
	}
}

func (h *Handler) searchStudents(c router.Context) error {
	return h.scopedSearch(catalog.Students, catalog.StudentScope)(c)
}

func (h *Handler) searchTutors(c router.Context) error {
	return h.scopedSearch(catalog.Tutors, catalog.TutorScope)(c)
}

func (h *Handler) searchEnrollments(c router.Context) error {
	return h.scopedSearch(catalog.Enrollments, catalog.EnrollmentScope)(c)
}

// searchPublicTutors shows contact columns only to authenticated callers.
func (h *Handler) searchPublicTutors(c router.Context) error {
	entity := catalog.TutorsPublic
	if id, ok := authz.Identity(c.Request().Context()); ok && id.Role.Valid() {
		entity = catalog.TutorsPublicContact
	}
	return h.runSearch(c, entity, catalog.PublicScope(), true)
}

func (h *Handler) searchOpinions(c router.Context) error {
	return h.runSearch(c, catalog.Opinions, catalog.PublicScope(), true)
}

func (h *Handler) listBranches(c router.Context) error {
	return h.runSearch(c, catalog.Branches, catalog.PublicScope(), false)
}
