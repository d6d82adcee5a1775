package core

import "github.com/dkeye/songroom/internal/domain"

// QuotaLedger counts songs per user against the room limit.
// It is not safe for concurrent use; the owning room serializes access.
type QuotaLedger struct {
	max    int
	counts map[domain.UserID]int
}

func NewQuotaLedger(max int) *QuotaLedger {
	return &QuotaLedger{max: max, counts: make(map[domain.UserID]int)}
}

func (q *QuotaLedger) Max() int { return q.max }

func (q *QuotaLedger) Count(u domain.UserID) int { return q.counts[u] }

func (q *QuotaLedger) CanAccept(u domain.UserID) bool {
	return q.counts[u] < q.max
}

func (q *QuotaLedger) RecordInsert(u domain.UserID) {
	q.counts[u]++
}

func (q *QuotaLedger) RecordRemove(u domain.UserID) {
	if q.counts[u] <= 1 {
		delete(q.counts, u)
		return
	}
	q.counts[u]--
}
