package util

// Page turns 1-based page/size query params into an offset and limit,
// clamping size to at most 100 hits per request.
func Page(page, size int) (from, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	return (page - 1) * size, size
}
