package wirebridge

// Page is one fetched page of a paginated query result.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// PagedList is the value shape stored for list-type cache entries: an ordered
// sequence of pages, newest first. Newly arrived items are appended to page 0;
// pagination appends whole pages at the tail. Items keep arrival order within
// a page and are never re-sorted.
//
// All operations are pure: they return a new list and share no page item
// slices with the input, so cache writes are always full-entry replaces.
type PagedList[T any] struct {
	Pages []Page[T]
}

// Empty reports whether the list holds no pages.
func (l PagedList[T]) Empty() bool {
	return len(l.Pages) == 0
}

// Len returns the total item count across all pages.
func (l PagedList[T]) Len() int {
	total := 0
	for _, page := range l.Pages {
		total += len(page.Items)
	}

	return total
}

// clonePages copies the page slice and every item slice.
func clonePages[T any](pages []Page[T]) []Page[T] {
	if len(pages) == 0 {
		return nil
	}

	cloned := make([]Page[T], len(pages))
	for idx, page := range pages {
		cloned[idx] = Page[T]{
			Items:   append([]T(nil), page.Items...),
			HasMore: page.HasMore,
		}
	}

	return cloned
}

// AppendNewest appends item to the first page, creating the page when the
// list is empty. When exists matches any item on any page the list is
// returned unchanged, making the operation idempotent against duplicate
// delivery.
func AppendNewest[T any](list PagedList[T], item T, exists func(T) bool) PagedList[T] {
	if exists != nil {
		if _, found := Find(list, exists); found {
			return list
		}
	}

	if list.Empty() {
		return PagedList[T]{Pages: []Page[T]{{Items: []T{item}}}}
	}

	pages := clonePages(list.Pages)
	pages[0].Items = append(pages[0].Items, item)

	return PagedList[T]{Pages: pages}
}

// PrependNewest inserts item at the head of the first page, creating the page
// when the list is empty. Duplicate-safe like AppendNewest.
func PrependNewest[T any](list PagedList[T], item T, exists func(T) bool) PagedList[T] {
	if exists != nil {
		if _, found := Find(list, exists); found {
			return list
		}
	}

	if list.Empty() {
		return PagedList[T]{Pages: []Page[T]{{Items: []T{item}}}}
	}

	pages := clonePages(list.Pages)
	pages[0].Items = append([]T{item}, pages[0].Items...)

	return PagedList[T]{Pages: pages}
}

// MutateByID applies patch to every item matched across all pages, leaving
// positions and all other items untouched. The second return reports whether
// anything matched.
func MutateByID[T any](list PagedList[T], match func(T) bool, patch func(T) T) (PagedList[T], bool) {
	if list.Empty() {
		return list, false
	}

	pages := clonePages(list.Pages)
	matched := false
	for pageIdx := range pages {
		for itemIdx, item := range pages[pageIdx].Items {
			if !match(item) {
				continue
			}
			pages[pageIdx].Items[itemIdx] = patch(item)
			matched = true
		}
	}
	if !matched {
		return list, false
	}

	return PagedList[T]{Pages: pages}, true
}

// RemoveWhere filters out every matched item, preserving page structure.
// Pages left empty are retained so pagination offsets stay stable.
func RemoveWhere[T any](list PagedList[T], match func(T) bool) (PagedList[T], bool) {
	if list.Empty() {
		return list, false
	}

	pages := make([]Page[T], len(list.Pages))
	removed := false
	for pageIdx, page := range list.Pages {
		kept := make([]T, 0, len(page.Items))
		for _, item := range page.Items {
			if match(item) {
				removed = true
				continue
			}
			kept = append(kept, item)
		}
		pages[pageIdx] = Page[T]{Items: kept, HasMore: page.HasMore}
	}
	if !removed {
		return list, false
	}

	return PagedList[T]{Pages: pages}, true
}

// AppendOlderPage appends a freshly fetched page of older data at the tail.
func AppendOlderPage[T any](list PagedList[T], page Page[T]) PagedList[T] {
	pages := clonePages(list.Pages)
	pages = append(pages, Page[T]{
		Items:   append([]T(nil), page.Items...),
		HasMore: page.HasMore,
	})

	return PagedList[T]{Pages: pages}
}

// Find returns the first item matched in page order.
func Find[T any](list PagedList[T], match func(T) bool) (T, bool) {
	for _, page := range list.Pages {
		for _, item := range page.Items {
			if match(item) {
				return item, true
			}
		}
	}

	var zero T

	return zero, false
}

// Items flattens the list in page order, mainly for tests and display.
func Items[T any](list PagedList[T]) []T {
	flattened := make([]T, 0, list.Len())
	for _, page := range list.Pages {
		flattened = append(flattened, page.Items...)
	}

	return flattened
}
