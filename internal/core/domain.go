package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of an application. A deleted
// application has no status: the record is simply gone.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Category identifies a welfare benefit type.
type Category string

const (
	ScholarshipSupport   Category = "scholarship-support"
	FamilyEventSupport   Category = "family-event-support"
	IndustryStudyTour    Category = "industry-study-tour"
	HousingSupport       Category = "housing-support"
	PensionFund          Category = "pension-fund"
	MedicalSupport       Category = "medical-support"
	MaternitySupport     Category = "maternity-support"
	MultiChildSupport    Category = "multi-child-support"
	ConsolationSupport   Category = "consolation-support"
	LivingWelfareSupport Category = "living-welfare-support"
	CulturalActivity     Category = "cultural-activity"
	Vaccination          Category = "vaccination"
)

// Categories lists every known benefit category, in dashboard order.
var Categories = []Category{
	ScholarshipSupport,
	FamilyEventSupport,
	IndustryStudyTour,
	HousingSupport,
	PensionFund,
	MedicalSupport,
	MaternitySupport,
	MultiChildSupport,
	ConsolationSupport,
	LivingWelfareSupport,
	CulturalActivity,
	Vaccination,
}

var (
	ErrNotFound            = errors.New("not found")
	ErrForbidden           = errors.New("forbidden")
	ErrDuplicateSubmission = errors.New("duplicate submission")
	ErrValidation          = errors.New("validation failed")

	ErrNegativeAmount    = fmt.Errorf("%w: amount must be non-negative", ErrValidation)
	ErrUnknownCategory   = fmt.Errorf("%w: unknown category", ErrValidation)
	ErrUnknownStatus     = fmt.Errorf("%w: unknown status", ErrValidation)
	ErrEmptyUser         = fmt.Errorf("%w: empty user id", ErrValidation)
	ErrEmptyRejectReason = fmt.Errorf("%w: reject reason is required", ErrValidation)
	ErrStrayRejectReason = fmt.Errorf("%w: reject reason only allowed on rejected applications", ErrValidation)
)

// Application is one employee's benefit request.
//
// ID, UserID, Category and SubmittedAt are fixed at creation. Amount,
// Status, RejectReason, AttachmentRef and the detail fields change over
// the lifecycle (edit-resubmission, admin review).
type Application struct {
	ID          string
	UserID      string
	Category    Category
	SubmittedAt time.Time

	// Amount is in currency minor units, always >= 0.
	Amount       int64
	Status       Status
	RejectReason string

	// AttachmentRef is an opaque handle into blob storage, may be empty.
	AttachmentRef string

	// Free-form fields carried through unchanged.
	TargetName string
	Account    string
	Detail     string
	Department string
	Rank       string
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

func (a Application) Validate() error {
	if strings.TrimSpace(a.UserID) == "" {
		return ErrEmptyUser
	}
	if !a.Category.Valid() {
		return ErrUnknownCategory
	}
	if a.Amount < 0 {
		return ErrNegativeAmount
	}
	if !a.Status.Valid() {
		return ErrUnknownStatus
	}
	if a.Status == StatusRejected && strings.TrimSpace(a.RejectReason) == "" {
		return ErrEmptyRejectReason
	}
	if a.Status != StatusRejected && a.RejectReason != "" {
		return ErrStrayRejectReason
	}
	return nil
}

// User is an employee referenced by applications. Profile fields are
// pass-through; only Email and Admin matter to the engine.
type User struct {
	ID         string
	Name       string
	Department string
	Rank       string
	JoinDate   string
	Phone      string
	Email      string
	Admin      bool
}
