package domain

import (
	"fmt"

	"github.com/quilldns/rr-dns/internal/dns/common/utils"
)

// Question is a single DNS question-section entry, carried alongside the
// message ID it belongs to so downstream components don't need to thread
// the two separately.
type Question struct {
	ID    uint16
	Name  string // canonical, absolute
	Type  RRType
	Class RRClass
}

// NewQuestion constructs and validates a Question.
func NewQuestion(id uint16, name string, t RRType, c RRClass) (Question, error) {
	q := Question{ID: id, Name: utils.CanonicalName(name), Type: t, Class: c}
	if err := q.Validate(); err != nil {
		return Question{}, err
	}
	return q, nil
}

func (q Question) Validate() error {
	if q.Name == "" {
		return fmt.Errorf("question name must not be empty")
	}
	if !q.Class.IsValid() {
		return fmt.Errorf("unsupported class: %d", q.Class)
	}
	return nil
}

// CacheKey returns the cache key this question would be answered from.
func (q Question) CacheKey() string {
	return GenerateCacheKey(q.Name, q.Type, q.Class)
}
