package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/entitlement"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/repo"
)

type CourseHandler struct {
	Repo     *repo.GormRepo
	Resolver *entitlement.Resolver
}

// GetCourseAccess returns the entitlement decision without serving content.
// Frontends use it to decide between "start course" and a paywall.
func (h *CourseHandler) GetCourseAccess(c echo.Context) error {
	decision, err := h.Resolver.CheckCourseAccess(c.Request().Context(), authmw.CallerFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

func (h *CourseHandler) GetLessonAccess(c echo.Context) error {
	decision, err := h.Resolver.CheckLessonAccess(c.Request().Context(), authmw.CallerFrom(c), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, decision)
}

// GetCourse serves the course record only when access is granted; denial
// carries the resolver's reason so the client can show why.
func (h *CourseHandler) GetCourse(c echo.Context) error {
	ctx := c.Request().Context()
	courseID := c.Param("id")

	decision, err := h.Resolver.CheckCourseAccess(ctx, authmw.CallerFrom(c), courseID)
	if err != nil {
		return err
	}
	if !decision.Granted {
		if decision.Reason == "Course not found" {
			return apperr.New(apperr.CodeNotFound, decision.Reason)
		}
		return apperr.New(apperr.CodeForbidden, decision.Reason)
	}

	course, err := h.Repo.CourseByID(ctx, courseID)
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "load course", err)
	}
	if course == nil {
		return apperr.New(apperr.CodeNotFound, "Course not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"course": course, "access_type": decision.AccessType})
}

// UpdateCourse gates content mutation on ownership rather than entitlement.
func (h *CourseHandler) UpdateCourse(c echo.Context) error {
	ctx := c.Request().Context()
	course, err := h.Repo.CourseByID(ctx, c.Param("id"))
	if err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "load course", err)
	}
	if course == nil {
		return apperr.New(apperr.CodeNotFound, "Course not found")
	}
	if !entitlement.CanEditCourse(authmw.CallerFrom(c), course) {
		return apperr.New(apperr.CodeForbidden, "Insufficient permissions")
	}

	var req struct {
		Title *string  `json:"title"`
		Price *float64 `json:"price"`
	}
	if err := c.Bind(&req); err != nil {
		return apperr.New(apperr.CodeValidation, "invalid request body")
	}
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if err := h.Repo.DB.WithContext(ctx).Save(course).Error; err != nil {
		return apperr.Wrap(apperr.CodeServiceUnavailable, "update course", err)
	}
	return c.JSON(http.StatusOK, course)
}
