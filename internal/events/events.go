// Package events 提供模块之间解耦用的类型化事件总线。
//
// 事件处理函数在 Emit 调用方的调用栈上同步执行，按注册顺序依次调用。
package events

import (
	"github.com/cockroachdb/errors"

	"github.com/foxssake/nohub/internal/model"
	"github.com/foxssake/nohub/pkg/util/merr"
)

// Kind 是事件名称。
type Kind string

const (
	KindSessionClose Kind = "session-close"
	KindLobbyCreate  Kind = "lobby-create"
	KindLobbyDelete  Kind = "lobby-delete"
	KindLobbyChange  Kind = "lobby-change"
)

// Event 是携带负载类型 P 的事件键，保证 On 与 Emit 的负载类型在编译期一致。
type Event[P any] struct {
	kind Kind
}

// NewEvent 声明一个新事件。
func NewEvent[P any](kind Kind) Event[P] {
	return Event[P]{kind: kind}
}

func (e Event[P]) Kind() Kind {
	return e.kind
}

// SessionClosed 是会话关闭事件的负载。
type SessionClosed struct {
	SessionID string
}

var (
	SessionClose = NewEvent[SessionClosed](KindSessionClose)
	LobbyCreate  = NewEvent[model.Lobby](KindLobbyCreate)
	LobbyDelete  = NewEvent[model.Lobby](KindLobbyDelete)
	LobbyChange  = NewEvent[model.LobbyChange](KindLobbyChange)
)

// FailurePolicy 决定处理函数出错时 Emit 的行为。
type FailurePolicy string

const (
	// FailFast 在第一个出错的处理函数处停止，后续处理函数不再执行。
	FailFast FailurePolicy = "fail-fast"
	// Collect 执行全部处理函数，并合并所有错误。
	Collect FailurePolicy = "collect"
)

// ParseFailurePolicy 解析配置中的策略名，空字符串视为 FailFast。
func ParseFailurePolicy(value string) (FailurePolicy, error) {
	switch FailurePolicy(value) {
	case "", FailFast:
		return FailFast, nil
	case Collect:
		return Collect, nil
	default:
		return "", errors.Newf("unknown event failure policy %q", value)
	}
}

// Subscription 是一次注册的句柄，用于 Off 注销。
type Subscription struct {
	kind Kind
	id   uint64
}

type subscriber struct {
	id      uint64
	handler func(any) error
}

// Option 用于配置 Bus。
type Option func(*Bus)

func WithFailurePolicy(policy FailurePolicy) Option {
	return func(b *Bus) {
		b.policy = policy
	}
}

// Bus 是事件总线，不做同步，和仓库一样由事件循环串行访问。
type Bus struct {
	policy      FailurePolicy
	nextID      uint64
	subscribers map[Kind][]subscriber
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{
		policy:      FailFast,
		subscribers: make(map[Kind][]subscriber),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Policy() FailurePolicy {
	return b.policy
}

// On 为事件注册处理函数。
func On[P any](b *Bus, ev Event[P], handler func(P) error) Subscription {
	b.nextID++
	sub := subscriber{
		id: b.nextID,
		handler: func(payload any) error {
			return handler(payload.(P))
		},
	}
	b.subscribers[ev.kind] = append(b.subscribers[ev.kind], sub)
	return Subscription{kind: ev.kind, id: sub.id}
}

// Off 注销处理函数，返回是否找到了对应的注册。
func (b *Bus) Off(sub Subscription) bool {
	subs := b.subscribers[sub.kind]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.kind] = append(subs[:i:i], subs[i+1:]...)
			return true
		}
	}
	return false
}

// Count 返回事件当前的处理函数数量。
func (b *Bus) Count(kind Kind) int {
	return len(b.subscribers[kind])
}

// Emit 同步触发事件。处理函数列表在调用前取快照，处理函数内注册或注销不影响本次分发。
// 处理函数的 panic 不会被恢复。
func Emit[P any](b *Bus, ev Event[P], payload P) error {
	snapshot := b.subscribers[ev.kind]
	var errs []error
	for _, s := range snapshot {
		if err := s.handler(payload); err != nil {
			err = errors.Wrapf(err, "%s handler failed", ev.kind)
			if b.policy != Collect {
				return err
			}
			errs = append(errs, err)
		}
	}
	return merr.Combine(errs...)
}
