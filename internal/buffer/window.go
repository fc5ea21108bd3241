package buffer

// SlidingWindow — кольцевой буфер фиксированной емкости: каждая вставка сверх
// capacity вытесняет ровно одну самую старую запись.
type SlidingWindow[T any] struct {
	buf  []T
	head int // индекс самого старого элемента
	size int
}

func NewSlidingWindow[T any](capacity int) *SlidingWindow[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &SlidingWindow[T]{buf: make([]T, capacity)}
}

func (w *SlidingWindow[T]) Append(item T) {
	capacity := len(w.buf)
	if w.size < capacity {
		w.buf[(w.head+w.size)%capacity] = item
		w.size++
		return
	}
	w.buf[w.head] = item
	w.head = (w.head + 1) % capacity
}

func (w *SlidingWindow[T]) Len() int {
	return w.size
}

func (w *SlidingWindow[T]) Cap() int {
	return len(w.buf)
}

// Each обходит элементы от старых к новым, пока fn возвращает true.
func (w *SlidingWindow[T]) Each(fn func(T) bool) {
	capacity := len(w.buf)
	for i := 0; i < w.size; i++ {
		if !fn(w.buf[(w.head+i)%capacity]) {
			return
		}
	}
}

// Snapshot — копия от старых к новым.
func (w *SlidingWindow[T]) Snapshot() []T {
	out := make([]T, 0, w.size)
	w.Each(func(item T) bool {
		out = append(out, item)
		return true
	})
	return out
}

// Oldest возвращает самый старый элемент.
func (w *SlidingWindow[T]) Oldest() (T, bool) {
	var zero T
	if w.size == 0 {
		return zero, false
	}
	return w.buf[w.head], true
}
