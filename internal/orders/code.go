package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

const codeDayLayout = "20060102"

// NextCode allocates the next human readable order code for the UTC day of
// now, e.g. ORD-20260314-000042. The counter row is upserted inside tx so the
// number is only consumed when the order insert commits.
func NextCode(ctx context.Context, tx *gorm.DB, prefix string, now time.Time) (string, error) {
	if tx == nil {
		return "", fmt.Errorf("transaction required")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "ORD"
	}
	day := now.UTC().Format(codeDayLayout)

	var value int64
	err := tx.WithContext(ctx).Raw(`
INSERT INTO order_sequences (day, value) VALUES (?, 1)
ON CONFLICT (day) DO UPDATE SET value = order_sequences.value + 1
RETURNING value`, day).Scan(&value).Error
	if err != nil {
		return "", fmt.Errorf("allocate order code: %w", err)
	}
	return fmt.Sprintf("%s-%s-%06d", prefix, day, value), nil
}
