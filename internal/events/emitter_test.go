package events

import (
	"reflect"
	"testing"
)

func TestEmitter_EmitOrder(t *testing.T) {
	e := NewEmitter[int]("tick")

	var got []string
	e.On(func(v int) { got = append(got, "a") })
	e.On(func(v int) { got = append(got, "b") })
	e.On(func(v int) { got = append(got, "c") })

	if !e.Emit(1) {
		t.Fatal("Emit returned false with handlers registered")
	}

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("handler order = %v, want %v", got, want)
	}
}

func TestEmitter_NoHandlers(t *testing.T) {
	e := NewEmitter[string]("empty")
	if e.Emit("x") {
		t.Error("Emit returned true with no handlers")
	}
}

func TestEmitter_Off(t *testing.T) {
	e := NewEmitter[int]("tick")

	calls := 0
	off := e.On(func(int) { calls++ })
	e.Emit(1)
	off()
	off()
	e.Emit(2)

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
	if e.Emit(3) {
		t.Error("Emit returned true after handler removed")
	}
}

func TestEmitter_SameFuncTwice(t *testing.T) {
	e := NewEmitter[int]("tick")

	calls := 0
	fn := func(int) { calls++ }
	off1 := e.On(fn)
	e.On(fn)
	off1()

	e.Emit(1)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEmitter_Once(t *testing.T) {
	e := NewEmitter[int]("tick")

	var seen []int
	e.Once(func(v int) { seen = append(seen, v) })
	e.Emit(1)
	e.Emit(2)

	if !reflect.DeepEqual(seen, []int{1}) {
		t.Errorf("seen = %v, want [1]", seen)
	}
}

func TestEmitter_RemoveDuringEmit(t *testing.T) {
	e := NewEmitter[int]("tick")

	calls := 0
	var off func()
	off = e.On(func(int) {
		calls++
		off()
	})

	e.Emit(1)
	e.Emit(2)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEmitter_ReentrantOnce(t *testing.T) {
	e := NewEmitter[int]("tick")

	calls := 0
	e.Once(func(v int) {
		calls++
		if v == 1 {
			e.Emit(2)
		}
	})

	e.Emit(1)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestEmitter_Clear(t *testing.T) {
	e := NewEmitter[int]("tick")
	e.On(func(int) {})
	e.On(func(int) {})
	e.Clear()

	if e.Len() != 0 {
		t.Errorf("Len() = %d, want 0", e.Len())
	}
	if e.Name() != "tick" {
		t.Errorf("Name() = %q, want %q", e.Name(), "tick")
	}
}
