package engine

import "time"

// Timer: взведенный одноразовый таймер.
type Timer interface {
	Stop() bool
}

// Clock абстрагирует время для планировщика; в тестах подменяется ручными часами.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func RealClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }
