package store

import (
	"time"

	"github.com/victornm/quesgenie/internal/domain"
)

func (m *Memory) SetNow(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

func (m *Memory) QuestionConfig(id string) (domain.QuestionConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.configs[id]
	if !ok {
		return domain.QuestionConfig{}, false
	}
	return r.v, true
}
