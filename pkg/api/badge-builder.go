package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/egfanboy/badge-builder/internal/utils"
	"github.com/egfanboy/badge-builder/pkg/types"
)

const headerCmsUser = "X-Cms-User"

// SaveBadgeForm mirrors the fields the badge builder posts back to the CMS.
type SaveBadgeForm struct {
	PostId   int64
	Image    string
	IconMeta string
	AllData  string
}

// BadgeBuilderApi is used by CMS hosts to call the badge builder service.
type BadgeBuilderApi interface {
	GetBuilderLink(ctx context.Context, postId int64) (types.BuilderLink, error)
	SaveBadge(ctx context.Context, userId string, form SaveBadgeForm) (types.SaveBadgeResult, error)
	GetSettings(ctx context.Context) (types.BadgeBuilderSettings, error)
}

type badgeBuilderClient struct {
	baseUrl string
	token   string
	http    *http.Client
}

func (c *badgeBuilderClient) do(ctx context.Context, method, p string, body io.Reader, contentType string, headers map[string]string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseUrl+"/api/v1"+p, body)
	if err != nil {
		return err
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s returned status code %d", method, p, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(result)
}

func (c *badgeBuilderClient) GetBuilderLink(ctx context.Context, postId int64) (link types.BuilderLink, err error) {
	err = c.do(ctx, http.MethodGet, fmt.Sprintf("/badge-builder/link?postId=%d", postId), nil, "", nil, &link)
	return
}

func (c *badgeBuilderClient) SaveBadge(ctx context.Context, userId string, form SaveBadgeForm) (types.SaveBadgeResult, error) {
	values := url.Values{
		"post_id":   {strconv.FormatInt(form.PostId, 10)},
		"image":     {form.Image},
		"icon_meta": {form.IconMeta},
		"all_data":  {form.AllData},
	}

	var envelope types.CallbackResponse

	err := c.do(
		ctx,
		http.MethodPost,
		"/badge-builder/save",
		strings.NewReader(values.Encode()),
		"application/x-www-form-urlencoded",
		map[string]string{headerCmsUser: userId},
		&envelope,
	)
	if err != nil {
		return types.SaveBadgeResult{}, err
	}

	if !envelope.Success {
		failure, convErr := utils.ConvertStruct[interface{}, types.CallbackError](envelope.Data)
		if convErr != nil || failure.Message == "" {
			return types.SaveBadgeResult{}, errors.New("badge could not be saved")
		}

		return types.SaveBadgeResult{}, errors.New(failure.Message)
	}

	return utils.ConvertStruct[interface{}, types.SaveBadgeResult](envelope.Data)
}

func (c *badgeBuilderClient) GetSettings(ctx context.Context) (settings types.BadgeBuilderSettings, err error) {
	err = c.do(ctx, http.MethodGet, "/settings", nil, "", nil, &settings)
	return
}

func NewBadgeBuilderClient(baseUrl, token string, httpClient *http.Client) BadgeBuilderApi {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &badgeBuilderClient{baseUrl: strings.TrimRight(baseUrl, "/"), token: token, http: httpClient}
}
