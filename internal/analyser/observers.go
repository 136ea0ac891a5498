package analyser

// observers is an ordered callback list. Removal keeps the order of the
// remaining callbacks.
type observers[T any] struct {
	next int
	list []observer[T]
}

type observer[T any] struct {
	id int
	fn func(T)
}

func (o *observers[T]) add(fn func(T)) func() {
	if fn == nil {
		return func() {}
	}
	o.next++
	id := o.next
	o.list = append(o.list, observer[T]{id: id, fn: fn})
	return func() { o.remove(id) }
}

func (o *observers[T]) remove(id int) {
	for i, ob := range o.list {
		if ob.id == id {
			o.list = append(o.list[:i:i], o.list[i+1:]...)
			return
		}
	}
}

func (o *observers[T]) notify(v T) {
	// iterate over a copy so callbacks may unsubscribe themselves
	for _, ob := range append([]observer[T](nil), o.list...) {
		ob.fn(v)
	}
}
