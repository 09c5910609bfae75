package geometry

import "fmt"

/*
AmountUsageTracker records which amount blocks have been consumed during one
extraction, and in what role ("subtotal", "tax", "line_total", "discount"...).

Each amount block may be consumed at most once per pipeline run; a second
claim is refused so two extraction passes cannot double-book one printed
number.
*/
type AmountUsageTracker struct {
	used map[int]string // block_id -> role
}

func NewAmountUsageTracker() *AmountUsageTracker {
	return &AmountUsageTracker{used: make(map[int]string)}
}

// Consume claims the block for the given role. It returns false when the
// block was already consumed (in any role).
func (t *AmountUsageTracker) Consume(blockID int, role string) bool {
	if _, taken := t.used[blockID]; taken {
		return false
	}
	t.used[blockID] = role
	return true
}

// RoleOf returns the role a block was consumed under, or "" if free.
func (t *AmountUsageTracker) RoleOf(blockID int) string {
	return t.used[blockID]
}

// UsedCount reports how many amount blocks have been consumed.
func (t *AmountUsageTracker) UsedCount() int {
	return len(t.used)
}

// Summary lists consumed blocks as "id:role" strings, for error logs.
func (t *AmountUsageTracker) Summary() []string {
	out := make([]string, 0, len(t.used))
	for id, role := range t.used {
		out = append(out, fmt.Sprintf("%d:%s", id, role))
	}
	return out
}
