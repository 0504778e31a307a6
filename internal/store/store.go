package store

import (
	"sync"
	"sync/atomic"

	"github.com/xela07ax/shuma-dashboard/internal/domain"
)

// Listener получает предыдущее и новое состояние после каждого реального перехода.
// Слушатель не должен вызывать Dispatch/Reset синхронно и не должен блокироваться надолго.
type Listener func(prev, next *State)

type subscription struct {
	id int
	fn Listener
}

// Store: единственный разделяемый мутабельный ресурс рантайма.
// Все компоненты меняют состояние только через Dispatch; применения редьюсера сериализованы мьютексом.
type Store struct {
	mu         sync.Mutex
	state      atomic.Pointer[State]
	initialTab domain.Tab

	// nmu берется до отпускания mu: переходы доставляются в порядке применения.
	nmu sync.Mutex

	lmu       sync.Mutex
	listeners []subscription // copy-on-write, порядок подписки
	nextID    int
}

func New(initialTab domain.Tab) *Store {
	tab := domain.NormalizeTab(string(initialTab))
	s := &Store{initialTab: tab}
	s.state.Store(Initial(tab))
	return s
}

// Dispatch применяет действие и возвращает актуальное состояние. Никогда не паникует и не падает.
// Возврат происходит после доставки перехода всем слушателям.
func (s *Store) Dispatch(a Action) *State {
	s.mu.Lock()
	prev := s.state.Load()
	next := Reduce(prev, a)
	if next == prev {
		s.mu.Unlock()
		return next
	}
	s.commit(prev, next)
	return next
}

// GetState: дешевое синхронное чтение последнего состояния, без блокировок.
func (s *Store) GetState() *State {
	return s.state.Load()
}

// Reset возвращает стор к начальному состоянию (версии снапшотов обнуляются только здесь).
func (s *Store) Reset() *State {
	s.mu.Lock()
	prev := s.state.Load()
	next := Initial(s.initialTab)
	s.commit(prev, next)
	return next
}

// commit вызывается под mu и отпускает его.
func (s *Store) commit(prev, next *State) {
	s.state.Store(next)
	s.nmu.Lock()
	s.mu.Unlock()
	defer s.nmu.Unlock()
	s.notify(prev, next)
}

// Subscribe регистрирует слушателя; возвращает функцию отписки.
func (s *Store) Subscribe(fn Listener) func() {
	s.lmu.Lock()
	id := s.nextID
	s.nextID++
	next := make([]subscription, len(s.listeners), len(s.listeners)+1)
	copy(next, s.listeners)
	s.listeners = append(next, subscription{id: id, fn: fn})
	s.lmu.Unlock()

	return func() {
		s.lmu.Lock()
		defer s.lmu.Unlock()
		kept := make([]subscription, 0, len(s.listeners))
		for _, sub := range s.listeners {
			if sub.id != id {
				kept = append(kept, sub)
			}
		}
		s.listeners = kept
	}
}

func (s *Store) notify(prev, next *State) {
	s.lmu.Lock()
	subs := s.listeners
	s.lmu.Unlock()

	for _, sub := range subs {
		sub.fn(prev, next)
	}
}
