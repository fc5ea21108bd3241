// Package buffer содержит две ограниченные последовательности с разной политикой вытеснения.
// Они намеренно не унифицированы: история решений режется пачкой, журнал активности —
// строго по одной записи. Синхронизацию обеспечивает владелец.
package buffer

// BatchTrimLog держит не больше capacity элементов "в среднем": когда длина превышает
// capacity, за один раз удаляются trim самых старых.
type BatchTrimLog[T any] struct {
	items    []T
	capacity int
	trim     int
}

func NewBatchTrimLog[T any](capacity, trim int) *BatchTrimLog[T] {
	if capacity <= 0 {
		capacity = 1
	}
	if trim <= 0 {
		trim = 1
	}
	if trim > capacity {
		trim = capacity
	}
	return &BatchTrimLog[T]{
		items:    make([]T, 0, capacity+1),
		capacity: capacity,
		trim:     trim,
	}
}

func (l *BatchTrimLog[T]) Append(item T) {
	l.items = append(l.items, item)
	if len(l.items) > l.capacity {
		n := copy(l.items, l.items[l.trim:])
		clear(l.items[n:]) // отпускаем ссылки для GC
		l.items = l.items[:n]
	}
}

func (l *BatchTrimLog[T]) Len() int {
	return len(l.items)
}

// Snapshot — копия от старых к новым.
func (l *BatchTrimLog[T]) Snapshot() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// UpdateLast применяет fn к самому новому элементу, для которого match вернул true.
func (l *BatchTrimLog[T]) UpdateLast(match func(T) bool, fn func(*T)) bool {
	for i := len(l.items) - 1; i >= 0; i-- {
		if match(l.items[i]) {
			fn(&l.items[i])
			return true
		}
	}
	return false
}
