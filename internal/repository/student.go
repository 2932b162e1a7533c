package repository

import (
	"context"
	"strings"

	"vdt-app/internal/models"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type StudentRepository interface {
	List(ctx context.Context) ([]models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, id int64, patch models.StudentPatch) error
	Delete(ctx context.Context, id int64) error
}

type studentRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewStudentRepository(db *sqlx.DB, logger *zap.Logger) StudentRepository {
	return &studentRepository{db: db, logger: logger}
}

// List returns every student in store order.
func (r *studentRepository) List(ctx context.Context) ([]models.Student, error) {
	students := []models.Student{}
	query := `SELECT id, name, dob, school FROM students`
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, err
	}
	return students, nil
}

func (r *studentRepository) Create(ctx context.Context, student *models.Student) error {
	query := r.db.Rebind(`INSERT INTO students (name, dob, school) VALUES (?, ?, ?) RETURNING id`)
	return r.db.QueryRowxContext(ctx, query, student.Name, student.DOB, student.School).Scan(&student.ID)
}

// Update writes only the fields set in patch, in a single statement.
func (r *studentRepository) Update(ctx context.Context, id int64, patch models.StudentPatch) error {
	if patch.Empty() {
		return ErrEmptyPatch
	}

	var (
		sets []string
		args []any
	)
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.DOB != nil {
		sets = append(sets, "dob = ?")
		args = append(args, *patch.DOB)
	}
	if patch.School != nil {
		sets = append(sets, "school = ?")
		args = append(args, *patch.School)
	}
	args = append(args, id)

	query := r.db.Rebind(`UPDATE students SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireAffected(result.RowsAffected())
}

func (r *studentRepository) Delete(ctx context.Context, id int64) error {
	query := r.db.Rebind(`DELETE FROM students WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireAffected(result.RowsAffected())
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrStudentNotFound
	}
	return nil
}
