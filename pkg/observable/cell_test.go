package observable

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type item struct{ name string }

func TestCellWrite(t *testing.T) {
	Convey("Given a cell holding a pointer value", t, func() {
		a := &item{name: "a"}
		cell := New(a)
		calls := 0
		cell.Subscribe(Func(func() { calls++ }))

		Convey("When the same reference is written", func() {
			cell.Write(a)

			Convey("Then no observer is notified", func() {
				So(calls, ShouldEqual, 0)
				So(cell.Read(), ShouldEqual, a)
			})
		})

		Convey("When an equal but distinct object is written", func() {
			b := &item{name: "a"}
			cell.Write(b)

			Convey("Then observers are notified once and see the new value", func() {
				So(calls, ShouldEqual, 1)
				So(cell.Read(), ShouldEqual, b)
			})
		})

		Convey("When nil is written twice", func() {
			cell.Write(nil)
			cell.Write(nil)

			Convey("Then only the first write notifies", func() {
				So(calls, ShouldEqual, 1)
				So(cell.Read(), ShouldBeNil)
			})
		})
	})

	Convey("Given a cell with several observers", t, func() {
		cell := New(0)
		var order []string
		cell.Subscribe(Func(func() { order = append(order, "first") }))
		cell.Subscribe(Func(func() { order = append(order, "second") }))
		cell.Subscribe(Func(func() { order = append(order, "third") }))

		Convey("When a new value is written", func() {
			cell.Write(7)

			Convey("Then observers run in subscription order", func() {
				So(order, ShouldResemble, []string{"first", "second", "third"})
			})
		})
	})

	Convey("Given an observer that reads the cell", t, func() {
		cell := New("x")
		var seen string
		cell.Subscribe(Func(func() { seen = cell.Read() }))

		Convey("Then it observes the value that was written", func() {
			cell.Write("y")
			So(seen, ShouldEqual, "y")
		})
	})
}

func TestCellSubscriptions(t *testing.T) {
	Convey("Given a cell and one observer", t, func() {
		cell := New(0)
		calls := 0
		o := Func(func() { calls++ })

		Convey("When the observer subscribes twice", func() {
			cell.Subscribe(o)
			cell.Subscribe(o)
			cell.Write(1)

			Convey("Then it is registered once", func() {
				So(cell.Observers(), ShouldEqual, 1)
				So(calls, ShouldEqual, 1)
			})
		})

		Convey("When the disposer is called", func() {
			dispose := cell.Subscribe(o)
			dispose()
			cell.Write(1)

			Convey("Then the observer is no longer notified", func() {
				So(calls, ShouldEqual, 0)
				So(cell.Observers(), ShouldEqual, 0)
			})

			Convey("Then calling it again is harmless", func() {
				other := Func(func() {})
				cell.Subscribe(other)
				dispose()
				So(cell.Observers(), ShouldEqual, 1)
			})
		})

		Convey("When an unknown observer is unsubscribed", func() {
			cell.Subscribe(o)
			cell.Unsubscribe(Func(func() {}))

			Convey("Then existing subscriptions are untouched", func() {
				So(cell.Observers(), ShouldEqual, 1)
			})
		})

		Convey("When the middle observer unsubscribes", func() {
			var order []int
			first := Func(func() { order = append(order, 1) })
			middle := Func(func() { order = append(order, 2) })
			last := Func(func() { order = append(order, 3) })
			cell.Subscribe(first)
			cell.Subscribe(middle)
			cell.Subscribe(last)
			cell.Unsubscribe(middle)
			cell.Write(5)

			Convey("Then the remaining observers keep their order", func() {
				So(order, ShouldResemble, []int{1, 3})
			})
		})
	})
}

func TestBinding(t *testing.T) {
	Convey("Given a binding over two cells", t, func() {
		a := New(0)
		b := New("")
		renders := 0
		binding := Bind(func() { renders++ }, a, b)

		Convey("When it is not mounted", func() {
			a.Write(1)

			Convey("Then nothing is rendered", func() {
				So(renders, ShouldEqual, 0)
				So(binding.Mounted(), ShouldBeFalse)
			})
		})

		Convey("When it is mounted twice and written to", func() {
			binding.Mount()
			binding.Mount()
			a.Write(1)
			b.Write("x")

			Convey("Then each change renders once", func() {
				So(renders, ShouldEqual, 2)
				So(a.Observers(), ShouldEqual, 1)
				So(b.Observers(), ShouldEqual, 1)
			})
		})

		Convey("When it is mounted then unmounted", func() {
			binding.Mount()
			binding.Unmount()
			binding.Unmount()
			a.Write(2)

			Convey("Then no subscriptions are left behind", func() {
				So(renders, ShouldEqual, 0)
				So(a.Observers(), ShouldEqual, 0)
				So(b.Observers(), ShouldEqual, 0)
			})
		})
	})
}
