// Package shared holds listing helpers common to the masterdata packages.
package shared

// ListFilters captures the common query knobs of masterdata listings.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool
}

// Offset converts page/limit into a SQL offset.
func (f ListFilters) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.PerPage()
}

// PerPage returns the sanitized page size.
func (f ListFilters) PerPage() int {
	if f.Limit < 1 {
		return 20
	}
	return f.Limit
}
