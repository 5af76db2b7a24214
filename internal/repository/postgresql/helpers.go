package postgresql

import (
	"context"
	"fmt"
	"strings"

	"github.com/invoiceflow/invoiceflow-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

// execOne runs an UPDATE or DELETE and reports pgx.ErrNoRows when nothing matched
func execOne(ctx context.Context, q database.Querier, query string, args ...any) error {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func orEmptyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func orEmptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// whereBuilder collects positional SQL conditions
type whereBuilder struct {
	conditions []string
	args       []any
}

func newWhere(condition string, args ...any) *whereBuilder {
	w := &whereBuilder{}
	w.add(condition, args...)
	return w
}

// add appends a condition whose placeholders are written as ? and renumbered
func (w *whereBuilder) add(condition string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		condition = strings.Replace(condition, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conditions = append(w.conditions, condition)
}

func (w *whereBuilder) String() string {
	return strings.Join(w.conditions, " AND ")
}

// next returns the next free placeholder index
func (w *whereBuilder) next() int {
	return len(w.args) + 1
}

// paginate normalises page and limit and returns the offset
func paginate(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return limit, (page - 1) * limit
}

// sendBatch executes every queued statement and closes the batch results
func sendBatch(ctx context.Context, q database.Querier, batch *pgx.Batch) error {
	results := q.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("batch statement %d: %w", i, err)
		}
	}
	return results.Close()
}
