package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"medic-workbook/backend/internal/model"
	"medic-workbook/backend/internal/phase"
	pkgerrors "medic-workbook/backend/pkg/errors"
)

// SubmissionRepository submission log data access
type SubmissionRepository interface {
	// Upsert writes sub by (student_id, form_type, form_number).
	// A draft write over a submitted row affects nothing and returns
	// ErrInvalidTransition. On success sub is reloaded from the store.
	Upsert(ctx context.Context, sub *model.Submission) error
	Get(ctx context.Context, studentID string, formType phase.FormType, formNumber int) (*model.Submission, error)
	// ListByStudent returns every record of the student, most recent first.
	ListByStudent(ctx context.Context, studentID string) ([]model.Submission, error)
	Delete(ctx context.Context, studentID string, formType phase.FormType, formNumber int) error
	ListStudentIDs(ctx context.Context) ([]string, error)
}

type submissionRepo struct {
	db *gorm.DB
}

// NewSubmissionRepo creates a SubmissionRepository.
func NewSubmissionRepo(db *gorm.DB) SubmissionRepository {
	return &submissionRepo{db: db}
}

func (r *submissionRepo) Upsert(ctx context.Context, sub *model.Submission) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.IsSubmitted() && sub.SubmittedAt == nil {
		sub.SubmittedAt = &now
	}
	if !sub.IsSubmitted() {
		sub.SubmittedAt = nil
	}

	table := sub.TableName()

	// Status guard lives in the conflict clause so concurrent writers cannot
	// interleave a read and a write: the row is only updated when it is not
	// yet submitted or the incoming write is itself a submit.
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "student_id"}, {Name: "form_type"}, {Name: "form_number"}},
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "status"}, Value: gorm.Expr("excluded.status")},
				{Column: clause.Column{Name: "payload"}, Value: gorm.Expr("excluded.payload")},
				{Column: clause.Column{Name: "submitted_at"}, Value: gorm.Expr("COALESCE(" + table + ".submitted_at, excluded.submitted_at)")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
			Where: clause.Where{Exprs: []clause.Expression{
				gorm.Expr(table+".status <> ? OR excluded.status = ?", model.SubmissionSubmitted, model.SubmissionSubmitted),
			}},
		}).
		Create(sub)
	if result.Error != nil {
		return storeErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrInvalidTransition
	}

	stored, err := r.Get(ctx, sub.StudentID, sub.FormType, sub.FormNumber)
	if err != nil {
		return err
	}
	*sub = *stored
	return nil
}

func (r *submissionRepo) Get(ctx context.Context, studentID string, formType phase.FormType, formNumber int) (*model.Submission, error) {
	var sub model.Submission
	err := r.db.WithContext(ctx).
		Where("student_id = ? AND form_type = ? AND form_number = ?", studentID, formType, formNumber).
		First(&sub).Error
	if err != nil {
		return nil, storeErr(err)
	}
	return &sub, nil
}

func (r *submissionRepo) ListByStudent(ctx context.Context, studentID string) ([]model.Submission, error) {
	var subs []model.Submission
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("updated_at DESC, form_type ASC, form_number ASC").
		Find(&subs).Error
	return subs, storeErr(err)
}

func (r *submissionRepo) Delete(ctx context.Context, studentID string, formType phase.FormType, formNumber int) error {
	result := r.db.WithContext(ctx).
		Where("student_id = ? AND form_type = ? AND form_number = ?", studentID, formType, formNumber).
		Delete(&model.Submission{})
	if result.Error != nil {
		return storeErr(result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *submissionRepo) ListStudentIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&model.Submission{}).
		Distinct("student_id").
		Order("student_id ASC").
		Pluck("student_id", &ids).Error
	return ids, storeErr(err)
}
