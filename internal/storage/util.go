package storage

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 20
	maxLimit     = 500
)

// generateID generates a new UUID
func generateID() string {
	return uuid.New().String()
}

// timeLayout is fixed width so stored timestamps sort lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// normalizeLimit clamps a requested page size
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLimit
	case limit > maxLimit:
		return maxLimit
	default:
		return limit
	}
}

// prepareAttempt fills defaults on a new attempt
func prepareAttempt(a *Attempt, now time.Time) error {
	if a.ID == "" {
		a.ID = generateID()
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	if !a.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, a.Status)
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.CreatedAt
	return nil
}

// listQuery builds the WHERE clause for ListAttempts. Conditions are written
// with ? placeholders and rebound to $n for postgres.
type listQuery struct {
	dollar bool
	conds  []string
	args   []any
}

func (q *listQuery) add(cond string, args ...any) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

func (q *listQuery) build(filter AttemptFilter, pagination PaginationParams, limit int) (string, []any) {
	if filter.Network != "" {
		q.add("network = ?", filter.Network)
	}
	if filter.Status != "" {
		q.add("status = ?", string(filter.Status))
	}
	if pagination.Cursor != "" {
		q.add("(created_at, id) < (SELECT created_at, id FROM attempts WHERE id = ?)", pagination.Cursor)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, network, chain_id, rpc_url, contract_name, deployer_address, tx_hash, address, block_number, status, error, created_at, updated_at FROM attempts`)
	if len(q.conds) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(q.conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC LIMIT ?")
	q.args = append(q.args, limit+1)

	query := sb.String()
	if q.dollar {
		query = rebind(query)
	}
	return query, q.args
}

// rebind rewrites ? placeholders as $1, $2, ...
func rebind(query string) string {
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteString("$" + strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

// paginate trims the extra probe row and sets the next cursor
func paginate(attempts []Attempt, limit int) *PaginatedResult[Attempt] {
	result := &PaginatedResult[Attempt]{Data: attempts}
	if len(attempts) > limit {
		result.Data = attempts[:limit]
		result.HasMore = true
		result.NextCursor = result.Data[limit-1].ID
	}
	if result.Data == nil {
		result.Data = []Attempt{}
	}
	return result
}
