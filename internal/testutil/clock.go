// Пакет testutil — вспомогательные заглушки для тестов.
package testutil

import (
	"sync"
	"time"
)

// StubClock возвращает фиксированное время. Безопасен для конкурентного использования.
type StubClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewStubClock создаёт StubClock с заданным временем.
func NewStubClock(t time.Time) *StubClock {
	return &StubClock{now: t}
}

// FixedClock возвращает StubClock, установленный на 2026-03-10 09:00:00 UTC.
func FixedClock() *StubClock {
	return NewStubClock(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
}

func (c *StubClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance сдвигает часы вперёд на d.
func (c *StubClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
