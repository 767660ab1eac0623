package fetch

// Attempt counts the physical sends of one logical request. It lives next to the
// request, never inside it, so a Request can be reused and shared.
type Attempt struct {
	n int
}

// Next records one more physical send and returns its 1-based number.
func (a *Attempt) Next() int {
	a.n++
	return a.n
}

// Number returns how many sends have been made so far.
func (a *Attempt) Number() int {
	return a.n
}
