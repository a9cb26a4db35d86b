package models

import (
	"time"
)

const (
	RoleStudent     = "student"
	RoleInstructor  = "instructor"
	RoleTenantAdmin = "tenant_admin"
	RoleSuperAdmin  = "superadmin"
)

const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
	UserStatusDeleted   = "deleted"
)

type User struct {
	ID           string  `gorm:"primaryKey"               json:"id"`
	Email        string  `gorm:"unique;not null"          json:"email"`
	PasswordHash string  `gorm:"not null"                 json:"-"`
	Role         string  `gorm:"not null"                 json:"role"`
	Status       string  `gorm:"not null;default:active"  json:"status"`
	TenantID     *string `gorm:"index"                    json:"tenant_id,omitempty"`
}

const (
	CourseStatusDraft     = "DRAFT"
	CourseStatusPublished = "PUBLISHED"
	CourseStatusArchived  = "ARCHIVED"
)

type Course struct {
	ID           string  `gorm:"primaryKey"      json:"id"`
	Title        string  `gorm:"not null"        json:"title"`
	InstructorID string  `gorm:"index;not null"  json:"instructor_id"`
	IsFree       bool    `gorm:"default:false"   json:"is_free"`
	Price        float64 `json:"price"`
	Status       string  `gorm:"not null"        json:"status"`
}

type Lesson struct {
	ID       string `gorm:"primaryKey"      json:"id"`
	CourseID string `gorm:"index;not null"  json:"course_id"`
	Title    string `gorm:"not null"        json:"title"`
	IsFree   bool   `gorm:"default:false"   json:"is_free"`
}

const (
	PurchasePending   = "PENDING"
	PurchaseCompleted = "COMPLETED"
	PurchaseRefunded  = "REFUNDED"
)

type Purchase struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"index;not null"           json:"user_id"`
	CourseID  string    `gorm:"index;not null"           json:"course_id"`
	Status    string    `gorm:"not null"                 json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	TenantActive    = "ACTIVE"
	TenantTrial     = "TRIAL"
	TenantSuspended = "SUSPENDED"
	TenantCancelled = "CANCELLED"
)

const (
	SubscriptionActive    = "ACTIVE"
	SubscriptionTrialing  = "TRIALING"
	SubscriptionPastDue   = "PAST_DUE"
	SubscriptionCancelled = "CANCELLED"
)

type Tenant struct {
	ID                 string `gorm:"primaryKey"     json:"id"`
	Name               string `gorm:"not null"       json:"name"`
	Status             string `gorm:"not null"       json:"status"`
	SubscriptionStatus string `gorm:"not null"       json:"subscription_status"`
	SeatsPurchased     int    `gorm:"default:0"      json:"seats_purchased"`
	SeatsUsed          int    `gorm:"default:0"      json:"seats_used"`
}

const (
	LicenseUnlimited = "UNLIMITED"
	LicenseSeats     = "SEATS"
)

// A license counts only once billing has completed it.
const LicenseCompleted = "COMPLETED"

type CourseLicense struct {
	ID          string `gorm:"primaryKey"      json:"id"`
	TenantID    string `gorm:"index;not null"  json:"tenant_id"`
	CourseID    string `gorm:"index;not null"  json:"course_id"`
	LicenseType string `gorm:"not null"        json:"license_type"`
	Status      string `gorm:"not null"        json:"status"`
}

type LicenseAssignment struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	LicenseID string `gorm:"index;not null"           json:"license_id"`
	UserID    string `gorm:"index;not null"           json:"user_id"`
}
