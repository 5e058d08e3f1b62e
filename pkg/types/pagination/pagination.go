package pagination

import (
	"fmt"

	"github.com/egfanboy/mediapire-common/exceptions"
)

type Pagination struct {
	CurrentPage  int  `json:"currentPage"`
	NextPage     *int `json:"nextPage"`
	PreviousPage *int `json:"previousPage"`
	Total        int  `json:"total"`
}

type PaginatedResponse[T any] struct {
	Results    []T        `json:"results"`
	Pagination Pagination `json:"pagination"`
}

// NewPaginatedResponse slices one page out of data. The first page of an empty list is an empty page.
func NewPaginatedResponse[T any](data []T, pagination ApiPaginationParams) (result PaginatedResponse[T], err error) {
	err = pagination.Validate()
	if err != nil {
		return
	}

	startIndex := (pagination.Page - 1) * pagination.Limit

	if startIndex > 0 && startIndex >= len(data) {
		err = exceptions.NewBadRequestException(fmt.Errorf("no page %d for current data", pagination.Page))
		return
	}

	endIndex := min(startIndex+pagination.Limit, len(data))

	paginatedData := make([]T, 0, endIndex-startIndex)
	paginatedData = append(paginatedData, data[startIndex:endIndex]...)

	p := Pagination{
		CurrentPage: pagination.Page,
		Total:       len(data),
	}

	if pagination.Page > 1 {
		previous := pagination.Page - 1
		p.PreviousPage = &previous
	}

	if endIndex < len(data) {
		next := pagination.Page + 1
		p.NextPage = &next
	}

	return PaginatedResponse[T]{
		Results:    paginatedData,
		Pagination: p,
	}, nil
}
