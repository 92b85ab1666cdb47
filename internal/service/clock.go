// clock.go — абстракция времени для детерминированных тестов.
package service

import "time"

// Clock — источник текущего времени.
type Clock interface {
	Now() time.Time
}

// RealClock возвращает фактическое текущее время в UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }
