package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/entitlement"
	authmw "github.com/brightpath/lms/internal/middleware/auth"
	"github.com/brightpath/lms/internal/models"
	"github.com/brightpath/lms/internal/repo"
	"github.com/brightpath/lms/internal/session"
	"github.com/brightpath/lms/internal/tokens"
)

type courseEnv struct {
	Handler *CourseHandler
	Gate    *authmw.Gate
	DB      *gorm.DB
	E       *echo.Echo
}

func newCourseEnv(t *testing.T) *courseEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.Course{}, &models.Lesson{}, &models.Purchase{},
		&models.Tenant{}, &models.CourseLicense{}, &models.LicenseAssignment{},
	))

	codec := &tokens.Codec{
		AccessSecret:  tokens.AccessSecret("test-access-secret"),
		RefreshSecret: tokens.RefreshSecret("test-refresh-secret"),
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    24 * time.Hour,
	}
	gormRepo := &repo.GormRepo{DB: db}
	manager := &session.Manager{Codec: codec, Store: session.NewMemoryStore()}
	return &courseEnv{
		Handler: &CourseHandler{Repo: gormRepo, Resolver: &entitlement.Resolver{Repo: gormRepo}},
		Gate:    &authmw.Gate{Codec: codec, Manager: manager, Repo: gormRepo},
		DB:      db,
		E:       echo.New(),
	}
}

func (env *courseEnv) getWithToken(t *testing.T, path, paramName, paramValue, token string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	c.SetParamNames(paramName)
	c.SetParamValues(paramValue)
	return c, rec
}

func (env *courseEnv) token(t *testing.T, id tokens.Identity) string {
	t.Helper()
	token, _, _, err := env.Gate.Codec.IssueAccess(id)
	require.NoError(t, err)
	return token
}

func TestGetCourseAccess_AnonymousFreeCourse(t *testing.T) {
	t.Parallel()

	env := newCourseEnv(t)
	require.NoError(t, env.DB.Create(&models.Course{
		ID: "c1", Title: "Intro", InstructorID: "teach-1", IsFree: true, Status: models.CourseStatusPublished,
	}).Error)

	c, rec := env.getWithToken(t, "/courses/c1/access", "id", "c1", "")
	require.NoError(t, env.Gate.OptionalAuthenticate(env.Handler.GetCourseAccess)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var d entitlement.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.False(t, d.Granted)
	assert.Equal(t, "Authentication required for free course access", d.Reason)
}

func TestGetCourse_PurchasedCourse(t *testing.T) {
	t.Parallel()

	env := newCourseEnv(t)
	userID := uuid.NewString()
	require.NoError(t, env.DB.Create(&models.Course{
		ID: "c1", Title: "Paid", InstructorID: "teach-1", Price: 99, Status: models.CourseStatusPublished,
	}).Error)
	require.NoError(t, env.DB.Create(&models.Purchase{
		UserID: userID, CourseID: "c1", Status: models.PurchaseCompleted,
	}).Error)

	token := env.token(t, tokens.Identity{UserID: userID, Role: models.RoleStudent})
	c, rec := env.getWithToken(t, "/courses/c1", "id", "c1", token)
	require.NoError(t, env.Gate.OptionalAuthenticate(env.Handler.GetCourse)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		AccessType string `json:"access_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, entitlement.AccessPurchase, resp.AccessType)
}

func TestGetCourse_DeniedWithReason(t *testing.T) {
	t.Parallel()

	env := newCourseEnv(t)
	require.NoError(t, env.DB.Create(&models.Course{
		ID: "c1", Title: "Paid", InstructorID: "teach-1", Price: 99, Status: models.CourseStatusPublished,
	}).Error)

	token := env.token(t, tokens.Identity{UserID: uuid.NewString(), Role: models.RoleStudent})
	c, _ := env.getWithToken(t, "/courses/c1", "id", "c1", token)
	err := env.Gate.OptionalAuthenticate(env.Handler.GetCourse)(c)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeForbidden, ae.Code)
	assert.Equal(t, "No active purchase or subscription found for this course", ae.Message)
}

func TestGetCourse_NotFound(t *testing.T) {
	t.Parallel()

	env := newCourseEnv(t)
	c, _ := env.getWithToken(t, "/courses/ghost", "id", "ghost", "")
	err := env.Gate.OptionalAuthenticate(env.Handler.GetCourse)(c)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeNotFound, ae.Code)
}

func TestGetLessonAccess_FreeLesson(t *testing.T) {
	t.Parallel()

	env := newCourseEnv(t)
	require.NoError(t, env.DB.Create(&models.Course{
		ID: "c1", Title: "Paid", InstructorID: "teach-1", Price: 99, Status: models.CourseStatusPublished,
	}).Error)
	require.NoError(t, env.DB.Create(&models.Lesson{ID: "l1", CourseID: "c1", Title: "Preview", IsFree: true}).Error)

	c, rec := env.getWithToken(t, "/lessons/l1/access", "id", "l1", "")
	require.NoError(t, env.Gate.OptionalAuthenticate(env.Handler.GetLessonAccess)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var d entitlement.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.True(t, d.Granted)
	assert.Equal(t, entitlement.AccessFree, d.AccessType)
}

func TestUpdateCourse_OwnershipGate(t *testing.T) {
	t.Parallel()

	env := newCourseEnv(t)
	ownerID := uuid.NewString()
	require.NoError(t, env.DB.Create(&models.Course{
		ID: "c1", Title: "Old title", InstructorID: ownerID, Price: 10, Status: models.CourseStatusPublished,
	}).Error)

	patch := func(t *testing.T, token string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodPatch, "/courses/c1", strings.NewReader(`{"title":"New title"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
		rec := httptest.NewRecorder()
		c := env.E.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("c1")
		return rec, env.Gate.Authenticate(env.Handler.UpdateCourse)(c)
	}

	// A non-owning instructor is rejected.
	other := env.token(t, tokens.Identity{UserID: uuid.NewString(), Role: models.RoleInstructor})
	_, err := patch(t, other)
	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, apperr.CodeForbidden, ae.Code)

	// The owner can edit.
	owner := env.token(t, tokens.Identity{UserID: ownerID, Role: models.RoleInstructor})
	rec, err := patch(t, owner)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var course models.Course
	require.NoError(t, env.DB.First(&course, "id = ?", "c1").Error)
	assert.Equal(t, "New title", course.Title)
}
