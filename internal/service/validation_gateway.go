package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/noah-isme/sma-academic-api/internal/models"
	appErrors "github.com/noah-isme/sma-academic-api/pkg/errors"
)

type referenceReader interface {
	Statuses(ctx context.Context, kind models.EntityKind, ids []string) (map[string]bool, error)
}

type classMemberReader interface {
	MemberIDs(ctx context.Context, classID string, studentIDs []string) (map[string]bool, error)
}

type periodReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicPeriod, error)
	FindActive(ctx context.Context) (*models.AcademicPeriod, error)
}

// ReferenceCheck asks the gateway to confirm one reference exists and is active.
// Index is the descriptor position, -1 for references made by the request itself.
type ReferenceCheck struct {
	Index int
	Field string
	Ref   models.EntityRef
}

// TopLevel builds a check for a reference carried by the request itself.
func TopLevel(field string, kind models.EntityKind, id string) ReferenceCheck {
	return ReferenceCheck{Index: -1, Field: field, Ref: models.Ref(kind, id)}
}

// ValidationGateway confirms references before any transaction opens. It never writes.
type ValidationGateway struct {
	refs    referenceReader
	members classMemberReader
	periods periodReader
}

// NewValidationGateway constructs the gateway.
func NewValidationGateway(refs referenceReader, members classMemberReader, periods periodReader) *ValidationGateway {
	return &ValidationGateway{refs: refs, members: members, periods: periods}
}

// Check loads every referenced id with one query per entity family and reports all failures together.
func (g *ValidationGateway) Check(ctx context.Context, checks ...ReferenceCheck) error {
	byKind := make(map[models.EntityKind][]string)
	for _, c := range checks {
		byKind[c.Ref.Kind] = append(byKind[c.Ref.Kind], c.Ref.ID)
	}
	statuses := make(map[models.EntityKind]map[string]bool, len(byKind))
	for kind, ids := range byKind {
		found, err := g.refs.Statuses(ctx, kind, uniqueStrings(ids))
		if err != nil {
			return appErrors.Transaction(err, fmt.Sprintf("failed to load %s references", kind))
		}
		statuses[kind] = found
	}

	var issues []models.ReferenceIssue
	for _, c := range checks {
		active, ok := statuses[c.Ref.Kind][c.Ref.ID]
		switch {
		case !ok:
			issues = append(issues, referenceIssue(c, models.IssueNotFound))
		case !active:
			issues = append(issues, referenceIssue(c, models.IssueInactive))
		}
	}
	return validationError("referenced entities are missing or inactive", issues)
}

// RequireMembers confirms every student is enrolled in the class; studentIDs[i] belongs to descriptor i.
func (g *ValidationGateway) RequireMembers(ctx context.Context, classID string, studentIDs []string) error {
	if len(studentIDs) == 0 {
		return nil
	}
	members, err := g.members.MemberIDs(ctx, classID, uniqueStrings(studentIDs))
	if err != nil {
		return appErrors.Transaction(err, "failed to load class members")
	}
	var issues []models.ReferenceIssue
	for i, id := range studentIDs {
		if !members[id] {
			issues = append(issues, models.ReferenceIssue{
				Index:  i,
				Field:  "studentId",
				Entity: models.EntityStudent,
				ID:     id,
				Reason: models.IssueNotEnrolled,
				Detail: fmt.Sprintf("student is not enrolled in class %s", classID),
			})
		}
	}
	return validationError("students are not enrolled in the class", issues)
}

// ActivePeriod resolves the active period with the latest start date.
func (g *ValidationGateway) ActivePeriod(ctx context.Context) (*models.AcademicPeriod, error) {
	period, err := g.periods.FindActive(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.ErrNoActivePeriod
	}
	if err != nil {
		return nil, appErrors.Transaction(err, "failed to resolve active academic period")
	}
	return period, nil
}

// Period loads an academic period that must exist and, when requireActive is set, be active.
func (g *ValidationGateway) Period(ctx context.Context, id string, requireActive bool) (*models.AcademicPeriod, error) {
	period, err := g.periods.FindByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, validationError("academic period not found", []models.ReferenceIssue{
			referenceIssue(TopLevel("academicPeriodId", models.EntityAcademicPeriod, id), models.IssueNotFound),
		})
	}
	if err != nil {
		return nil, appErrors.Transaction(err, "failed to load academic period")
	}
	if requireActive && !period.IsActive {
		return nil, validationError("academic period is inactive", []models.ReferenceIssue{
			referenceIssue(TopLevel("academicPeriodId", models.EntityAcademicPeriod, id), models.IssueInactive),
		})
	}
	return period, nil
}

func referenceIssue(c ReferenceCheck, reason string) models.ReferenceIssue {
	return models.ReferenceIssue{Index: c.Index, Field: c.Field, Entity: c.Ref.Kind, ID: c.Ref.ID, Reason: reason}
}

// validationError returns nil when issues is empty. A request whose only problems are
// missing top-level entities answers 404, bad input shape 400, otherwise 422.
func validationError(message string, issues []models.ReferenceIssue) error {
	if len(issues) == 0 {
		return nil
	}
	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Index < issues[j].Index })

	status := http.StatusUnprocessableEntity
	allMissingParents := true
	for _, issue := range issues {
		if issue.Reason == models.IssueInvalid {
			status = http.StatusBadRequest
		}
		if issue.Reason != models.IssueNotFound || issue.Index >= 0 {
			allMissingParents = false
		}
	}
	if allMissingParents {
		status = http.StatusNotFound
	}
	err := appErrors.WithDetails(appErrors.ErrValidation, message, issues)
	err.Status = status
	return err
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Exists confirms a row exists regardless of its active flag; used by read models over history.
func (g *ValidationGateway) Exists(ctx context.Context, check ReferenceCheck) error {
	found, err := g.refs.Statuses(ctx, check.Ref.Kind, []string{check.Ref.ID})
	if err != nil {
		return appErrors.Transaction(err, fmt.Sprintf("failed to load %s reference", check.Ref.Kind))
	}
	if _, ok := found[check.Ref.ID]; !ok {
		return validationError(fmt.Sprintf("%s not found", check.Ref.Kind), []models.ReferenceIssue{referenceIssue(check, models.IssueNotFound)})
	}
	return nil
}

func constraintError(message string, issues []models.ReferenceIssue) error {
	if len(issues) == 0 {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrConstraintViolation, message, issues)
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
