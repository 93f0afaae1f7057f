package document

import "github.com/roach88/billbook/internal/invoice"

const (
	FirstPageItems        = 7
	ContinuationPageItems = 12
)

// Page is one printed page of a document.
type Page struct {
	Number int // 1-based
	Total  int
	Items  []invoice.LineItem
	// Offset is the index of Items[0] in the full item list.
	Offset int
}

// IsFirst reports whether p carries the address block.
func (p Page) IsFirst() bool { return p.Number == 1 }

// IsLast reports whether p carries totals and signature.
func (p Page) IsLast() bool { return p.Number == p.Total }

// Paginate splits items into pages. Zero items yield one empty page.
func Paginate(items []invoice.LineItem) []Page {
	total := PageCount(len(items))
	pages := make([]Page, 0, total)

	offset := 0
	for n := 1; n <= total; n++ {
		size := ContinuationPageItems
		if n == 1 {
			size = FirstPageItems
		}
		end := min(offset+size, len(items))
		pages = append(pages, Page{
			Number: n,
			Total:  total,
			Items:  items[offset:end],
			Offset: offset,
		})
		offset = end
	}
	return pages
}

// PageCount returns how many pages n items need.
func PageCount(n int) int {
	if n <= FirstPageItems {
		return 1
	}
	rest := n - FirstPageItems
	return 1 + (rest+ContinuationPageItems-1)/ContinuationPageItems
}
