package orders

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// FormatOrderNumber derives the human-facing number from the row id and
// creation date. The id is assigned by the database, so the number is written
// in a second step inside the creating transaction and never collides.
func FormatOrderNumber(id int64, createdAt time.Time) string {
	return fmt.Sprintf("ORD-%s-%06d", createdAt.UTC().Format("20060102"), id)
}

// placeholderNumber satisfies the unique constraint between the insert and
// the finalize step.
func placeholderNumber() string {
	return "TMP-" + uuid.NewString()
}
