package engine

import "time"

const (
	// RoundLogCapacity 回合日志最多保留的条数
	RoundLogCapacity = 80
	// RoundLogView 快照里带出的最近条数
	RoundLogView = 40
)

// LogEntry 回合日志
type LogEntry struct {
	Title  string    `json:"title"`
	Detail string    `json:"detail"`
	Time   time.Time `json:"ts"`
}

// RoundLog 定长回合日志，满了淘汰最旧的。
type RoundLog struct {
	entries  []LogEntry
	capacity int
}

func NewRoundLog(capacity int) *RoundLog {
	if capacity <= 0 {
		capacity = RoundLogCapacity
	}
	return &RoundLog{capacity: capacity}
}

func (r *RoundLog) Append(e LogEntry) {
	r.entries = append(r.entries, e)
	if n := len(r.entries); n > r.capacity {
		r.entries = append(r.entries[:0], r.entries[n-r.capacity:]...)
	}
}

// Recent 最近 n 条，按时间先后。
func (r *RoundLog) Recent(n int) []LogEntry {
	if n <= 0 || n > len(r.entries) {
		n = len(r.entries)
	}
	return append([]LogEntry{}, r.entries[len(r.entries)-n:]...)
}

// Entries 全部日志拷贝。
func (r *RoundLog) Entries() []LogEntry {
	return r.Recent(0)
}

func (r *RoundLog) Len() int { return len(r.entries) }

// Reset 用给定日志替换，超出容量的只保留最新部分。
func (r *RoundLog) Reset(entries []LogEntry) {
	r.entries = nil
	for _, e := range entries {
		r.Append(e)
	}
}
