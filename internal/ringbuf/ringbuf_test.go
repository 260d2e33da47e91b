package ringbuf

import (
	"slices"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestRingBuffer_PushAndSlice(t *testing.T) {
	t.Parallel()
	rb := New[string](3)
	rb.Push("a")
	rb.Push("b")

	if got := rb.Slice(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("Slice = %v", got)
	}
	if rb.Len() != 2 || rb.Cap() != 3 {
		t.Errorf("Len/Cap = %d/%d, want 2/3", rb.Len(), rb.Cap())
	}
}

func TestRingBuffer_Overflow(t *testing.T) {
	t.Parallel()
	rb := New[int](3)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}
	if got := rb.Slice(); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("Slice = %v, want [3 4 5]", got)
	}
	if rb.Last() != 5 {
		t.Errorf("Last = %d, want 5", rb.Last())
	}
}

func TestRingBuffer_Tail(t *testing.T) {
	t.Parallel()
	rb := New[int](4)
	for i := 1; i <= 6; i++ {
		rb.Push(i)
	}
	tests := []struct {
		n    int
		want []int
	}{
		{2, []int{5, 6}},
		{4, []int{3, 4, 5, 6}},
		{10, []int{3, 4, 5, 6}},
		{0, []int{3, 4, 5, 6}},
		{-1, []int{3, 4, 5, 6}},
	}
	for _, tt := range tests {
		if got := rb.Tail(tt.n); !slices.Equal(got, tt.want) {
			t.Errorf("Tail(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestRingBuffer_EmptyAndReset(t *testing.T) {
	t.Parallel()
	rb := New[float64](0)
	if rb.Cap() != 1 {
		t.Errorf("capacity should be clamped to 1, got %d", rb.Cap())
	}
	if rb.Last() != 0 || rb.Slice() != nil {
		t.Error("empty buffer should have zero Last and nil Slice")
	}
	rb.Push(1)
	rb.Reset()
	if rb.Len() != 0 || rb.Slice() != nil {
		t.Error("Reset should clear the buffer")
	}
}

func TestRingBuffer_Resize(t *testing.T) {
	t.Parallel()
	rb := New[int](5)
	for i := 1; i <= 5; i++ {
		rb.Push(i)
	}
	rb.Resize(3)
	if got := rb.Slice(); !slices.Equal(got, []int{3, 4, 5}) {
		t.Errorf("after shrink Slice = %v", got)
	}
	rb.Resize(6)
	rb.Push(6)
	if got := rb.Slice(); !slices.Equal(got, []int{3, 4, 5, 6}) {
		t.Errorf("after grow Slice = %v", got)
	}
}

// The buffer always holds exactly the last min(len, cap) pushed values.
func TestRingBuffer_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Slice equals suffix of pushed values", prop.ForAll(
		func(capacity int, values []int) bool {
			rb := New[int](capacity)
			for _, v := range values {
				rb.Push(v)
			}
			start := max(len(values)-capacity, 0)
			return slices.Equal(rb.Slice(), values[start:]) || (len(values) == 0 && rb.Slice() == nil)
		},
		gen.IntRange(1, 32),
		gen.SliceOf(gen.Int()),
	))

	properties.TestingRun(t)
}
