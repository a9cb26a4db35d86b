// Package entitlement decides whether a caller may access a course or
// lesson, and why. Decisions are values, never errors; the only error a
// resolver returns is a dependency failure, on which callers fail closed.
package entitlement

import (
	"context"
	"fmt"

	"github.com/brightpath/lms/internal/apperr"
	"github.com/brightpath/lms/internal/models"
	"github.com/brightpath/lms/internal/repo"
)

type Decision struct {
	Granted    bool   `json:"granted"`
	AccessType string `json:"access_type,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

const (
	AccessAdmin      = "admin"
	AccessInstructor = "instructor"
	AccessFree       = "free"
	AccessTenant     = "tenant"
	AccessPurchase   = "purchase"
)

// Caller is the authenticated identity, or nil for anonymous requests.
type Caller struct {
	UserID   string
	Role     string
	TenantID *string
}

type Resolver struct {
	Repo *repo.GormRepo
}

// A strategy returns nil to pass the question to the next one in line. The
// precedence order lives in the slice below, not in nested guard clauses, so
// the tenant-failure fallthrough cannot be regressed by an early return.
type strategy func(ctx context.Context, caller *Caller, course *models.Course) (*Decision, error)

func (r *Resolver) strategies() []strategy {
	return []strategy{
		r.superAdminAccess,
		r.instructorAccess,
		r.freeCourseAccess,
		r.authRequired,
		r.tenantAccess,
		r.purchaseAccess,
	}
}

func (r *Resolver) CheckCourseAccess(ctx context.Context, caller *Caller, courseID string) (*Decision, error) {
	course, err := r.Repo.CourseByID(ctx, courseID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "resolve course", err)
	}
	if course == nil {
		return &Decision{Granted: false, Reason: "Course not found"}, nil
	}
	for _, s := range r.strategies() {
		d, err := s(ctx, caller, course)
		if err != nil {
			return nil, err
		}
		if d != nil {
			return d, nil
		}
	}
	return &Decision{Granted: false, Reason: "No active purchase or subscription found for this course"}, nil
}

// CheckLessonAccess resolves through the lesson's parent course, except a
// free lesson is open on its own, independent of course pricing.
func (r *Resolver) CheckLessonAccess(ctx context.Context, caller *Caller, lessonID string) (*Decision, error) {
	lesson, err := r.Repo.LessonByID(ctx, lessonID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "resolve lesson", err)
	}
	if lesson == nil {
		return &Decision{Granted: false, Reason: "Lesson not found"}, nil
	}
	if lesson.IsFree {
		return &Decision{Granted: true, AccessType: AccessFree}, nil
	}
	return r.CheckCourseAccess(ctx, caller, lesson.CourseID)
}

// CanEditCourse gates content mutation. Pure, no I/O.
func CanEditCourse(caller *Caller, course *models.Course) bool {
	if caller == nil || course == nil {
		return false
	}
	switch caller.Role {
	case models.RoleSuperAdmin, models.RoleTenantAdmin:
		return true
	}
	return course.InstructorID == caller.UserID
}

func (r *Resolver) superAdminAccess(_ context.Context, caller *Caller, _ *models.Course) (*Decision, error) {
	if caller != nil && caller.Role == models.RoleSuperAdmin {
		return &Decision{Granted: true, AccessType: AccessAdmin}, nil
	}
	return nil, nil
}

func (r *Resolver) instructorAccess(_ context.Context, caller *Caller, course *models.Course) (*Decision, error) {
	if caller != nil && course.InstructorID == caller.UserID {
		return &Decision{Granted: true, AccessType: AccessInstructor}, nil
	}
	return nil, nil
}

func (r *Resolver) freeCourseAccess(_ context.Context, caller *Caller, course *models.Course) (*Decision, error) {
	if !course.IsFree {
		return nil, nil
	}
	if caller == nil {
		return &Decision{Granted: false, Reason: "Authentication required for free course access"}, nil
	}
	return &Decision{Granted: true, AccessType: AccessFree}, nil
}

func (r *Resolver) authRequired(_ context.Context, caller *Caller, _ *models.Course) (*Decision, error) {
	if caller == nil {
		return &Decision{Granted: false, Reason: "Authentication required"}, nil
	}
	return nil, nil
}

// tenantAccess only ever grants. A failed tenant check yields no decision so
// resolution falls through to the personal purchase check: a user under a
// suspended tenant keeps access bought with their own money.
func (r *Resolver) tenantAccess(ctx context.Context, caller *Caller, course *models.Course) (*Decision, error) {
	if caller == nil || caller.TenantID == nil {
		return nil, nil
	}
	d, err := r.CheckTenantCourseAccess(ctx, *caller.TenantID, caller.UserID, course.ID)
	if err != nil {
		return nil, err
	}
	if d.Granted {
		return d, nil
	}
	return nil, nil
}

func (r *Resolver) purchaseAccess(ctx context.Context, caller *Caller, course *models.Course) (*Decision, error) {
	if caller == nil {
		return nil, nil
	}
	found, err := r.Repo.HasCompletedPurchase(ctx, caller.UserID, course.ID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "resolve purchase", err)
	}
	if found {
		return &Decision{Granted: true, AccessType: AccessPurchase}, nil
	}
	return nil, nil
}

// CheckTenantCourseAccess is the B2B sub-resolution: tenant health, then
// subscription health, then seats, then the course license itself.
func (r *Resolver) CheckTenantCourseAccess(ctx context.Context, tenantID, userID, courseID string) (*Decision, error) {
	tenant, err := r.Repo.TenantByID(ctx, tenantID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "resolve tenant", err)
	}
	if tenant == nil {
		return &Decision{Granted: false, Reason: "Tenant not found"}, nil
	}
	if tenant.Status != models.TenantActive && tenant.Status != models.TenantTrial {
		return &Decision{Granted: false, Reason: fmt.Sprintf("Tenant is %s", tenant.Status)}, nil
	}
	if tenant.SubscriptionStatus != models.SubscriptionActive && tenant.SubscriptionStatus != models.SubscriptionTrialing {
		return &Decision{Granted: false, Reason: fmt.Sprintf("Tenant subscription is %s", tenant.SubscriptionStatus)}, nil
	}
	if tenant.SeatsUsed > tenant.SeatsPurchased {
		return &Decision{Granted: false, Reason: "No available seats"}, nil
	}

	lic, err := r.Repo.ActiveLicense(ctx, tenantID, courseID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "resolve license", err)
	}
	if lic == nil {
		return &Decision{Granted: false, Reason: "No active license for this course"}, nil
	}
	if lic.LicenseType == models.LicenseUnlimited {
		return &Decision{Granted: true, AccessType: AccessTenant}, nil
	}

	assigned, err := r.Repo.HasLicenseAssignment(ctx, lic.ID, userID)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeServiceUnavailable, "resolve license assignment", err)
	}
	if !assigned {
		return &Decision{Granted: false, Reason: "User is not assigned to this course license"}, nil
	}
	return &Decision{Granted: true, AccessType: AccessTenant}, nil
}
