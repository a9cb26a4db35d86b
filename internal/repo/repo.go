// Package repo wraps the gorm read models the core consults. Lookups return
// (nil, nil) when the row is absent; an error always means the database
// itself failed, so callers can fail closed on it.
package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/brightpath/lms/internal/models"
)

type GormRepo struct {
	DB *gorm.DB
}

func (r *GormRepo) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return &user, nil
}

func (r *GormRepo) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return &user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, user *models.User) error {
	if err := r.DB.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *GormRepo) CourseByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&course).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("course lookup: %w", err)
	}
	return &course, nil
}

func (r *GormRepo) LessonByID(ctx context.Context, id string) (*models.Lesson, error) {
	var lesson models.Lesson
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&lesson).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lesson lookup: %w", err)
	}
	return &lesson, nil
}

// HasCompletedPurchase ignores PENDING and REFUNDED rows; a refund on one
// purchase does not cancel a separately completed one.
func (r *GormRepo) HasCompletedPurchase(ctx context.Context, userID, courseID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Purchase{}).
		Where("user_id = ? AND course_id = ? AND status = ?", userID, courseID, models.PurchaseCompleted).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("purchase lookup: %w", err)
	}
	return count > 0, nil
}

func (r *GormRepo) TenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	var tenant models.Tenant
	err := r.DB.WithContext(ctx).Where("id = ?", id).First(&tenant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tenant lookup: %w", err)
	}
	return &tenant, nil
}

func (r *GormRepo) ActiveLicense(ctx context.Context, tenantID, courseID string) (*models.CourseLicense, error) {
	var lic models.CourseLicense
	err := r.DB.WithContext(ctx).
		Where("tenant_id = ? AND course_id = ? AND status = ?", tenantID, courseID, models.LicenseCompleted).
		First(&lic).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("license lookup: %w", err)
	}
	return &lic, nil
}

func (r *GormRepo) HasLicenseAssignment(ctx context.Context, licenseID, userID string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.LicenseAssignment{}).
		Where("license_id = ? AND user_id = ?", licenseID, userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("license assignment lookup: %w", err)
	}
	return count > 0, nil
}
