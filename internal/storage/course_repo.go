package storage

import (
	"context"
	"fmt"

	"lectio/internal/models"
)

type CourseRepo struct {
	db *DB
}

func NewCourseRepo(db *DB) *CourseRepo {
	return &CourseRepo{db: db}
}

func (r *CourseRepo) EnsureCourse(ctx context.Context, name string) error {
	_, err := r.db.Pool.Exec(ctx, `INSERT INTO courses (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return fmt.Errorf("ensure course: %w", err)
	}
	return nil
}

func (r *CourseRepo) ListCourses(ctx context.Context) ([]models.Course, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT name, created_at FROM courses ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	defer rows.Close()

	out := make([]models.Course, 0)
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.Name, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return out, nil
}
