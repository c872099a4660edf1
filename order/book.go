package order

import (
	"fmt"
	"sync"
)

// Book 按提交顺序记录委托，撮合时先提交的先处理。
type Book struct {
	mu     sync.RWMutex
	orders []Order
	index  map[int64]int
	sm     *StateMachine
}

func NewBook() *Book {
	return &Book{index: make(map[int64]int), sm: NewStateMachine()}
}

// Add 追加一笔委托，ID 重复时返回错误。
func (b *Book) Add(o Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.index[o.ID]; ok {
		return fmt.Errorf("duplicate order id %d", o.ID)
	}
	b.index[o.ID] = len(b.orders)
	b.orders = append(b.orders, o)
	return nil
}

func (b *Book) Get(id int64) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	i, ok := b.index[id]
	if !ok {
		return Order{}, false
	}
	return b.orders[i], true
}

// List 返回全部委托（拷贝，按提交顺序）。
func (b *Book) List() []Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Order(nil), b.orders...)
}

// Active 返回仍为 new 的委托 ID，按提交顺序。
func (b *Book) Active() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var ids []int64
	for _, o := range b.orders {
		if b.sm.IsActiveState(o.Status) {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Transition 经状态机校验后更新委托状态。
func (b *Book) Transition(id int64, to Status) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.index[id]
	if !ok {
		return fmt.Errorf("order %d not found", id)
	}
	if err := b.sm.ValidateTransition(b.orders[i].Status, to); err != nil {
		return fmt.Errorf("order %d: %w", id, err)
	}
	b.orders[i].Status = to
	return nil
}

// CancelAll 撤销全部 new 委托，返回撤单数量。没有可撤委托时什么也不做。
func (b *Book) CancelAll() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for i := range b.orders {
		if b.sm.IsActiveState(b.orders[i].Status) {
			b.orders[i].Status = StatusCancelled
			n++
		}
	}
	return n
}

func (b *Book) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.orders)
}

// Reset 用给定委托替换全部内容，nil 表示清空。
func (b *Book) Reset(orders []Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.orders = make([]Order, 0, len(orders))
	b.index = make(map[int64]int, len(orders))
	for _, o := range orders {
		if _, ok := b.index[o.ID]; ok {
			return fmt.Errorf("duplicate order id %d", o.ID)
		}
		b.index[o.ID] = len(b.orders)
		b.orders = append(b.orders, o)
	}
	return nil
}
