package viewmodel

const DefaultPageSize = 10

type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

// Paginate returns the 1-based window page of list. Pages past the end are
// clamped to the last page; an empty list yields page 1 of 1 with no items.
func Paginate[T any](list []T, page int, size int) Page[T] {
	if size <= 0 {
		size = DefaultPageSize
	}
	total := len(list)
	pages := (total + size - 1) / size
	if pages == 0 {
		pages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > pages {
		page = pages
	}

	start := (page - 1) * size
	end := min(start+size, total)
	items := make([]T, 0, end-start)
	items = append(items, list[start:end]...)

	return Page[T]{
		Items:      items,
		Page:       page,
		PageSize:   size,
		TotalItems: total,
		TotalPages: pages,
	}
}
