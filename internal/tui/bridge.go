package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/xela07ax/shuma-dashboard/internal/store"
)

// Subscriber: источник изменений стора.
type Subscriber interface {
	Subscribe(fn store.Listener) func()
}

// Sender: часть *tea.Program, нужная мосту.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge пересылает изменения стора и редиректы в программу через program.Send(), безопасно из любых горутин.
type Bridge struct {
	program Sender
}

func NewBridge(program Sender) *Bridge {
	return &Bridge{program: program}
}

// Attach подписывает программу на стор; возвращает отписку.
// Слушатель стора не ждет цикл Update: в программу уходит только последнее состояние.
func (b *Bridge) Attach(sub Subscriber) func() {
	latest := make(chan *store.State, 1)
	done := make(chan struct{})

	go func() {
		for {
			select {
			case s := <-latest:
				b.program.Send(StateMsg{State: s})
			case <-done:
				return
			}
		}
	}()

	unsubscribe := sub.Subscribe(func(_, next *store.State) {
		// писатель один (доставка стора сериализована), поэтому после вычерпывания место есть
		select {
		case <-latest:
		default:
		}
		latest <- next
	})

	return func() {
		unsubscribe()
		close(done)
	}
}

func (b *Bridge) Redirect(loginURL string) {
	b.program.Send(RedirectMsg{URL: loginURL})
}
