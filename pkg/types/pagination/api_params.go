package pagination

import (
	"errors"
	"strconv"

	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-common/router"
)

const (
	pageQueryParamName  = "page"
	limitQueryParamName = "limit"

	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
)

var (
	PageQueryParam  = router.QueryParam{Name: pageQueryParamName, Required: false}
	LimitQueryParam = router.QueryParam{Name: limitQueryParamName, Required: false}
)

type ApiPaginationParams struct {
	Page  int
	Limit int
}

func (p ApiPaginationParams) Validate() error {
	if p.Page < 1 {
		return exceptions.NewBadRequestException(errors.New("invalid page parameter. Must be 1 or greater"))
	}

	if p.Limit < 1 || p.Limit > maxLimit {
		return exceptions.NewBadRequestException(errors.New("invalid page limit. Must be between 1 and 100"))
	}

	return nil
}

func NewApiPaginationParams(p router.RouteParams) (ApiPaginationParams, error) {
	return ParsePaginationParams(p.Params[pageQueryParamName], p.Params[limitQueryParamName])
}

// ParsePaginationParams reads raw page and limit values, empty values fall back to the first page of 10.
func ParsePaginationParams(page, limit string) (result ApiPaginationParams, err error) {
	result = ApiPaginationParams{Page: defaultPage, Limit: defaultLimit}

	if page != "" {
		result.Page, err = strconv.Atoi(page)
		if err != nil {
			err = exceptions.NewBadRequestException(err)
			return
		}
	}

	if limit != "" {
		result.Limit, err = strconv.Atoi(limit)
		if err != nil {
			err = exceptions.NewBadRequestException(err)
			return
		}
	}

	err = result.Validate()

	return
}
