package sourcedb

import (
	"context"
	"fmt"
	mrand "math/rand"

	"github.com/google/uuid"

	"github.com/lakeprobe/lakeprobe/pkg/util/rand"
)

// NewUserRow generates a user row with a unique email. Uniqueness matters:
// verification looks rows up by email, so a rerun must never collide with
// rows from earlier runs.
func NewUserRow() map[string]any {
	name := rand.NewName()
	return map[string]any{
		"name":  name,
		"email": fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		"age":   18 + mrand.Intn(62),
	}
}

// SeedUsers inserts n generated users and returns their rows with the
// generated id filled in.
func SeedUsers(ctx context.Context, conn Conn, table string, n int, schema ...string) ([]map[string]any, error) {
	rows := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		row := NewUserRow()
		id, err := InsertRowReturning(ctx, conn, table, row, "id", schema...)
		if err != nil {
			return rows, fmt.Errorf("failed to seed user %d: %w", i+1, err)
		}
		row["id"] = id
		rows = append(rows, row)
	}
	return rows, nil
}
