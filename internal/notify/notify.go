package notify

import (
	"futures-sim-go/internal/engine"
)

// Notifier 在会话状态变化后收到最新快照。
// 调用发生在会话锁之外，实现不得阻塞太久。
type Notifier interface {
	Notify(sessionID string, snap engine.Snapshot)
}

// Func 函数适配器
type Func func(sessionID string, snap engine.Snapshot)

func (f Func) Notify(sessionID string, snap engine.Snapshot) { f(sessionID, snap) }

// Multi 依次通知多个观察者
type Multi []Notifier

func (m Multi) Notify(sessionID string, snap engine.Snapshot) {
	for _, n := range m {
		if n != nil {
			n.Notify(sessionID, snap)
		}
	}
}

// Nop 什么也不做
type Nop struct{}

func (Nop) Notify(string, engine.Snapshot) {}
