package types

import (
	"errors"
	"regexp"

	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-common/router"
)

const (
	sortByQueryParamName = "sortBy"
)

var (
	QueryParamSortBy = router.QueryParam{Name: sortByQueryParamName, Required: false}
	sortRegEx        = regexp.MustCompile(`^(?P<order>asc|desc)\((?P<field>[^)]+)\)$`)
)

type ApiFilteringParams struct {
	SortByField *string
	SortByOrder *string
}

func NewApiFilteringParams(p router.RouteParams) (ApiFilteringParams, error) {
	sortBy, ok := p.Params[sortByQueryParamName]
	if !ok || sortBy == "" {
		return ApiFilteringParams{}, nil
	}

	return ParseSortBy(sortBy)
}

// ParseSortBy reads the asc(field) / desc(field) notation.
func ParseSortBy(sortBy string) (ApiFilteringParams, error) {
	match := sortRegEx.FindStringSubmatch(sortBy)
	if match == nil {
		return ApiFilteringParams{}, exceptions.NewBadRequestException(errors.New("sortBy query param does not match expected format"))
	}

	order := match[sortRegEx.SubexpIndex("order")]
	field := match[sortRegEx.SubexpIndex("field")]

	return ApiFilteringParams{SortByField: &field, SortByOrder: &order}, nil
}
