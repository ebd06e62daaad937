package vm

// Stack is the interpreter's single LIFO of signed integers.
//
// Underflow is not an error: popping or peeking an empty stack yields 0
// and leaves the stack empty.
type Stack struct {
	items []int64
}

// NewStack returns an empty stack.
func NewStack() *Stack {
	return &Stack{items: make([]int64, 0, 64)}
}

// Push appends v to the top of the stack.
func (s *Stack) Push(v int64) {
	s.items = append(s.items, v)
}

// Pop removes and returns the top value, or 0 if the stack is empty.
func (s *Stack) Pop() int64 {
	n := len(s.items)
	if n == 0 {
		return 0
	}
	v := s.items[n-1]
	s.items = s.items[:n-1]
	return v
}

// Peek returns the top value without removing it, or 0 if empty.
func (s *Stack) Peek() int64 {
	if len(s.items) == 0 {
		return 0
	}
	return s.items[len(s.items)-1]
}

// Clear removes every value.
func (s *Stack) Clear() {
	s.items = s.items[:0]
}

// Len reports the stack depth.
func (s *Stack) Len() int {
	return len(s.items)
}

// Values returns a copy of the stack contents, bottom first.
func (s *Stack) Values() []int64 {
	out := make([]int64, len(s.items))
	copy(out, s.items)
	return out
}
