package pagination

// cursor is the offset bookkeeping for the next request.
type cursor struct {
	offset  int
	limit   int
	hasMore bool
}

func newCursor(limit int) cursor {
	return cursor{limit: limit, hasMore: true}
}

// advance moves past the n items the server returned.
func (c *cursor) advance(n int, hasMore bool) {
	c.offset += n
	c.hasMore = hasMore
}

func (c *cursor) reset() {
	*c = newCursor(c.limit)
}
