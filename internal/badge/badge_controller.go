package badge

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/egfanboy/badge-builder/internal/app"
	"github.com/egfanboy/badge-builder/internal/auth"
	"github.com/egfanboy/badge-builder/internal/media"
	"github.com/egfanboy/badge-builder/internal/post"
	"github.com/egfanboy/badge-builder/pkg/types"
	"github.com/egfanboy/badge-builder/pkg/types/pagination"
	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-common/router"
	"github.com/rs/zerolog/log"
)

const (
	builderBasePath = "/badge-builder"
	postsBasePath   = "/posts"

	paramPostId       = "postId"
	queryParamPostId  = "postId"
	queryParamWidth   = "width"
	queryParamHeight  = "height"
	formFieldPostId   = "post_id"
	formFieldImage    = "image"
	formFieldIconMeta = "icon_meta"
	formFieldAllData  = "all_data"
)

type badgeController struct {
	builders []func() router.RouteBuilder
	service  BadgeApi
}

func (c badgeController) GetApis() (routes []router.RouteBuilder) {
	for _, b := range c.builders {
		routes = append(routes, b())
	}

	return
}

func parsePostId(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPostId, raw)
	}

	return id, nil
}

func parseDimension(p router.RouteParams, name string) (int, error) {
	raw, ok := p.Params[name]
	if !ok || raw == "" {
		return 0, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, exceptions.NewBadRequestException(fmt.Errorf("invalid %s %q", name, raw))
	}

	return v, nil
}

// toApiError maps service errors onto http status codes for the json endpoints.
func toApiError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, post.ErrNotFound):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusNotFound}
	case errors.Is(err, ErrForbidden):
		return &exceptions.ApiException{Err: err, StatusCode: http.StatusForbidden}
	case errors.Is(err, ErrInvalidPostId),
		errors.Is(err, media.ErrInvalidImageUrl),
		errors.Is(err, media.ErrUnsupportedImage),
		errors.Is(err, media.ErrInvalidSort):
		return exceptions.NewBadRequestException(err)
	default:
		return err
	}
}

func callbackFailure(err error) types.CallbackResponse {
	message := "Could not save the badge"

	switch {
	case errors.Is(err, ErrForbidden):
		message = "You are not allowed to edit this post"
	case errors.Is(err, ErrInvalidPostId), errors.Is(err, post.ErrNotFound):
		message = "Unknown post"
	case errors.Is(err, media.ErrInvalidImageUrl), errors.Is(err, media.ErrUnsupportedImage):
		message = "The badge image url is not valid"
	case errors.Is(err, media.ErrDownload):
		message = "The badge image could not be downloaded"
	case errors.Is(err, media.ErrStorage):
		message = "The badge image could not be stored"
	}

	return types.CallbackResponse{Success: false, Data: types.CallbackError{Message: message}}
}

func (c badgeController) getBuilderLink() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(builderBasePath + "/link").
		SetReturnCode(http.StatusOK).
		AddQueryParam(router.QueryParam{Name: queryParamPostId, Required: true}).
		AddQueryParam(router.QueryParam{Name: queryParamWidth, Required: false}).
		AddQueryParam(router.QueryParam{Name: queryParamHeight, Required: false}).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			postId, err := parsePostId(p.Params[queryParamPostId])
			if err != nil {
				return nil, exceptions.NewBadRequestException(err)
			}

			width, err := parseDimension(p, queryParamWidth)
			if err != nil {
				return nil, err
			}

			height, err := parseDimension(p, queryParamHeight)
			if err != nil {
				return nil, err
			}

			link, err := c.service.GetBuilderLink(request.Context(), postId, LinkSize{Width: width, Height: height})

			return link, toApiError(err)
		})
}

// saveBadge is called by the builder through the CMS admin once the user saved a badge.
// Failures are reported inside the envelope, the admin ajax channel always expects a 200.
func (c badgeController) saveBadge() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodPost).
		SetPath(builderBasePath + "/save").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			postId, err := parsePostId(request.FormValue(formFieldPostId))
			if err != nil {
				return callbackFailure(err), nil
			}

			result, err := c.service.SaveBadge(
				request.Context(),
				SaveBadgeRequest{
					PostId:    postId,
					Image:     request.FormValue(formFieldImage),
					IconMeta:  request.FormValue(formFieldIconMeta),
					BadgeMeta: request.FormValue(formFieldAllData),
				},
				auth.UserId(request),
			)
			if err != nil {
				log.Err(err).Msgf("Failed to save badge for post %d", postId)
				return callbackFailure(err), nil
			}

			return types.CallbackResponse{Success: true, Data: result}, nil
		})
}

func (c badgeController) getMetabox() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(fmt.Sprintf("%s/{%s}/metabox", postsBasePath, paramPostId)).
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			postId, err := parsePostId(p.Params[paramPostId])
			if err != nil {
				return nil, exceptions.NewBadRequestException(err)
			}

			metabox, err := c.service.RenderMetabox(request.Context(), postId)

			return metabox, toApiError(err)
		})
}

func (c badgeController) listBadges() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(fmt.Sprintf("%s/{%s}/badges", postsBasePath, paramPostId)).
		SetReturnCode(http.StatusOK).
		AddQueryParam(pagination.PageQueryParam).
		AddQueryParam(pagination.LimitQueryParam).
		AddQueryParam(types.QueryParamSortBy).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			postId, err := parsePostId(p.Params[paramPostId])
			if err != nil {
				return nil, exceptions.NewBadRequestException(err)
			}

			page, err := pagination.NewApiPaginationParams(p)
			if err != nil {
				return nil, err
			}

			filtering, err := types.NewApiFilteringParams(p)
			if err != nil {
				return nil, err
			}

			badges, err := c.service.ListBadges(request.Context(), postId, filtering, page)

			return badges, toApiError(err)
		})
}

func NewController(service BadgeApi) app.Controller {
	c := badgeController{service: service}

	c.builders = append(c.builders, c.getBuilderLink, c.saveBadge, c.getMetabox, c.listBadges)

	return c
}
