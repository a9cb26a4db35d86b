package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/entitlement"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/service/search"
	"github.com/brightpath/lms/internal/util"
)

type SearchHandler struct {
	ES       *elasticsearch.Client
	Index    string
	Resolver *entitlement.Resolver
}

type searchHit struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	IsFree     bool    `json:"is_free"`
	Price      float64 `json:"price"`
	Accessible *bool   `json:"accessible,omitempty"`
}

// Handler runs behind OptionalAuthenticate: anonymous callers get the plain
// catalog, logged-in callers also see whether each hit is accessible to them.
func (h *SearchHandler) Handler(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return apperr.New(apperr.CodeValidation, "query parameter q is required")
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	from, size := util.Page(page, size)

	ctx := c.Request().Context()
	total, courses, err := search.Search(ctx, h.ES, h.Index, q, from, size)
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "course search", err)
	}

	caller := authmw.CallerFrom(c)
	hits := make([]searchHit, len(courses))
	for i, course := range courses {
		hits[i] = searchHit{ID: course.ID, Title: course.Title, IsFree: course.IsFree, Price: course.Price}
		if caller != nil {
			decision, err := h.Resolver.CheckCourseAccess(ctx, caller, course.ID)
			if err != nil {
				return err
			}
			hits[i].Accessible = &decision.Granted
		}
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "courses": hits})
}
