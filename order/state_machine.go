package order

import "fmt"

// StateTransition 状态转换
type StateTransition struct {
	From Status
	To   Status
}

// StateMachine 订单状态机：new 只能转到 filled 或 cancelled，两者都是终态。
type StateMachine struct {
	transitions map[StateTransition]bool
}

// NewStateMachine 创建新的状态机
func NewStateMachine() *StateMachine {
	sm := &StateMachine{
		transitions: map[StateTransition]bool{
			{StatusNew, StatusFilled}:    true,
			{StatusNew, StatusCancelled}: true,
		},
	}
	return sm
}

// ValidateTransition 验证状态转换是否合法
func (sm *StateMachine) ValidateTransition(from, to Status) error {
	if !sm.transitions[StateTransition{From: from, To: to}] {
		return fmt.Errorf("illegal state transition: %s -> %s", from, to)
	}
	return nil
}

// IsFinalState 判断是否是终态
func (sm *StateMachine) IsFinalState(status Status) bool {
	return status == StatusFilled || status == StatusCancelled
}

// IsActiveState 判断是否仍可能成交
func (sm *StateMachine) IsActiveState(status Status) bool {
	return status == StatusNew
}
