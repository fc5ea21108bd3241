package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchTrimLogDropsHundredAtOnce(t *testing.T) {
	log := NewBatchTrimLog[int](1000, 100)
	for i := 0; i < 1000; i++ {
		log.Append(i)
	}
	assert.Equal(t, 1000, log.Len())

	log.Append(1000)
	require.Equal(t, 901, log.Len())

	items := log.Snapshot()
	assert.Equal(t, 100, items[0], "oldest hundred must be gone")
	assert.Equal(t, 1000, items[len(items)-1])
}

func TestBatchTrimLogIsNotSlidingWindow(t *testing.T) {
	log := NewBatchTrimLog[int](1000, 100)
	for i := 0; i < 1100; i++ {
		log.Append(i)
	}
	// 1001-я вставка срезала до 901, дальше растем без вытеснения
	assert.Equal(t, 1000, log.Len())
	assert.Equal(t, 100, log.Snapshot()[0])
}

func TestBatchTrimLogUpdateLast(t *testing.T) {
	log := NewBatchTrimLog[string](10, 2)
	log.Append("a")
	log.Append("b")
	log.Append("a")

	ok := log.UpdateLast(func(s string) bool { return s == "a" }, func(s *string) { *s = "A" })
	require.True(t, ok)
	assert.Equal(t, []string{"a", "b", "A"}, log.Snapshot())

	assert.False(t, log.UpdateLast(func(s string) bool { return s == "zzz" }, func(*string) {}))
}

func TestSlidingWindowDropsExactlyOne(t *testing.T) {
	w := NewSlidingWindow[int](10000)
	for i := 0; i < 10001; i++ {
		w.Append(i)
	}
	require.Equal(t, 10000, w.Len())

	oldest, ok := w.Oldest()
	require.True(t, ok)
	assert.Equal(t, 1, oldest)

	w.Append(10001)
	assert.Equal(t, 10000, w.Len())
	oldest, _ = w.Oldest()
	assert.Equal(t, 2, oldest)
}

func TestSlidingWindowOrder(t *testing.T) {
	w := NewSlidingWindow[int](3)
	for i := 1; i <= 5; i++ {
		w.Append(i)
	}
	assert.Equal(t, []int{3, 4, 5}, w.Snapshot())

	var seen []int
	w.Each(func(i int) bool {
		seen = append(seen, i)
		return i < 4
	})
	assert.Equal(t, []int{3, 4}, seen)
}

func TestSlidingWindowEmpty(t *testing.T) {
	w := NewSlidingWindow[string](0)
	assert.Equal(t, 1, w.Cap())
	_, ok := w.Oldest()
	assert.False(t, ok)
	assert.Empty(t, w.Snapshot())
}
