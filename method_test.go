package detour

import (
	"testing"
)

type square struct {
	side float64
}

//go:noinline
func (s square) Area() float64 {
	return s.side * s.side
}

type probe struct {
	polls int
}

//go:noinline
func (p *probe) read(count *int, ok *bool) bool {
	p.polls++
	*count = -1
	*ok = false
	return false
}

func TestMethodExpression(t *testing.T) {
	inj := New(t)

	// type method (square.Area), not instance method (s.Area)
	WhenCalled(inj, square.Area).ReplaceWith(func(s square) float64 { return 10 }).Times(1)

	s := square{side: 5}
	if s.Area() != 10 {
		t.Errorf("Got unexpected result %v", s.Area())
	}

	testError(t, nil, inj.Close())

	if s.Area() != 25 {
		t.Errorf("Got unexpected result %v after restore", s.Area())
	}
}

func TestMethodExpressionArgs(t *testing.T) {
	inj := New(t)

	// the receiver is the first argument
	WhenCalled(inj, square.Area).WhenArgs(square{side: 5}).Return(10.0).Times(1)

	s := square{side: 5}
	if s.Area() != 10 {
		t.Errorf("Got unexpected result %v", s.Area())
	}
	testError(t, nil, inj.Close())
}

func TestPointerMethodAssign(t *testing.T) {
	inj := New(t)

	WhenCalled(inj, (*probe).read).
		Assign(func(p *probe, count *int, ok *bool) { *count = 6; *ok = true }).
		Return(true).
		Times(1)

	p := probe{}
	var count int
	var ok bool
	res := p.read(&count, &ok)

	if !res || count != 6 || !ok {
		t.Errorf("unexpected result %v %d %v", res, count, ok)
	}
	if p.polls != 0 {
		t.Errorf("original body ran %d time(s)", p.polls)
	}
	testError(t, nil, inj.Close())
}

func TestPointerMethodReplace(t *testing.T) {
	inj := New(t)

	// the substitute receives the live receiver and may mutate it
	WhenCalled(inj, (*probe).read).ReplaceWith(func(p *probe, count *int, ok *bool) bool {
		p.polls = 42
		*count = 1
		*ok = true
		return true
	})

	p := probe{}
	var count int
	var ok bool
	if !p.read(&count, &ok) || count != 1 || !ok {
		t.Errorf("unexpected result %d %v", count, ok)
	}
	if p.polls != 42 {
		t.Errorf("receiver not mutated, polls = %d", p.polls)
	}
	testError(t, nil, inj.Close())
}

func TestBoundMethodValue(t *testing.T) {
	inj := New(t)

	s1 := square{side: 5}
	s2 := square{side: 7}

	// a bound method value intercepts calls made through method values only
	WhenCalled(inj, s1.Area).Return(10.0)

	method := s1.Area
	if method() != 10 {
		t.Errorf("Got unexpected result")
	}

	// direct calls do not go through the method-value trampoline
	if s2.Area() != 49 {
		t.Errorf("Got unexpected result")
	}

	testError(t, nil, inj.Close())

	if method() != 25 {
		t.Errorf("Got unexpected result after restore")
	}
}
