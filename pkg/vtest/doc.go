// Package vtest provides an in-memory rendering target for testing code
// that drives a vdom.Reconciler.
//
// Mirror implements vdom.Adapter with plain Go structs, enforces the
// adapter contract (parents mounted before children, children destroyed
// before parents, no use after destroy) and can inject failures.
//
// # Quick Start
//
//	m := vtest.NewMirror()
//	r := vdom.NewReconciler[*vtest.Element](m, m.Root())
//	if _, err := r.Update(tree); err != nil {
//	    t.Fatal(err)
//	}
//	if got, want := m.Snapshot(), vtest.Render(tree); got != want {
//	    t.Errorf("output = %s, want %s", got, want)
//	}
//
// # Random Documents
//
// RandomDocument generates seeded documents from a small tag vocabulary so
// two documents share enough structure to exercise every patch type.
package vtest
