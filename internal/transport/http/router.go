package httpserver

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/handlers"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/models"
)

type Deps struct {
	Gate          *authmw.Gate
	AuthHandler   *handlers.AuthHandler
	CourseHandler *handlers.CourseHandler
	SearchHandler *handlers.SearchHandler
}

func Register(e *echo.Echo, d *Deps) {
	e.HTTPErrorHandler = newErrorHandler(e)

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/refresh", d.AuthHandler.Refresh)
	v1.POST("/logout", d.AuthHandler.Logout, d.Gate.Authenticate)
	v1.POST("/logout-all", d.AuthHandler.LogoutAll, d.Gate.Authenticate)

	v1.GET("/search", d.SearchHandler.Handler, d.Gate.OptionalAuthenticate)

	courses := v1.Group("/courses", d.Gate.OptionalAuthenticate)
	courses.GET("/:id", d.CourseHandler.GetCourse)
	courses.GET("/:id/access", d.CourseHandler.GetCourseAccess)

	v1.GET("/lessons/:id/access", d.CourseHandler.GetLessonAccess, d.Gate.OptionalAuthenticate)

	v1.PATCH("/courses/:id", d.CourseHandler.UpdateCourse,
		d.Gate.Authenticate,
		d.Gate.RequireRole(models.RoleInstructor, models.RoleTenantAdmin),
		d.Gate.LoadFullUser,
	)

	tenant := v1.Group("/tenant", d.Gate.Authenticate, d.Gate.RequireTenant)
	tenant.GET("", func(c echo.Context) error {
		t := authmw.TenantFrom(c)
		if t == nil {
			return apperr.New(apperr.CodeNotFound, "Tenant not found")
		}
		return c.JSON(http.StatusOK, t)
	})

	admin := v1.Group("/admin", d.Gate.Authenticate, d.Gate.RequireSuperAdmin)
	admin.GET("/users/:id", d.AuthHandler.GetUser)
}

// newErrorHandler maps the core's typed failures to their HTTP statuses with
// the stable code in the body. Everything else falls back to echo's default.
func newErrorHandler(e *echo.Echo) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var ae *apperr.Error
		if errors.As(err, &ae) {
			_ = c.JSON(apperr.HTTPStatus(ae.Code), echo.Map{
				"code":    ae.Code,
				"message": ae.Message,
			})
			return
		}
		e.DefaultHTTPErrorHandler(err, c)
	}
}
