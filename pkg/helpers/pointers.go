package helpers

// PtrOf returns a pointer to a copy of t. Handy for optional config fields:
//
//	opts.Temperature = helpers.PtrOf(0.4)
func PtrOf[T any](t T) *T { return &t }

// ValueOr dereferences p, or returns fallback when p is nil.
func ValueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
