package service

// Pagination bounds the page sizes listing operations accept
type Pagination struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultPagination is used when no limits are configured
var DefaultPagination = Pagination{DefaultPageSize: 15, MaxPageSize: 100}

// normalize clamps page to at least 1 and pageSize to (0, MaxPageSize]
func (p Pagination) normalize(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = p.DefaultPageSize
	}
	if p.MaxPageSize > 0 && pageSize > p.MaxPageSize {
		pageSize = p.MaxPageSize
	}
	return page, pageSize
}
