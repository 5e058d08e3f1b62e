package credly

import (
	"encoding/json"
	"fmt"
	"html"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultWidth    = 960
	DefaultHeight   = 540
	DefaultLinkText = "Use Credly Badge Builder"
	EditLinkText    = "Edit in Credly Badge Builder"
)

type EmbedRequest struct {
	Width  int
	Height int
	// marshalled as JSON, nil becomes null
	Continue any
	LinkText string
}

func (r EmbedRequest) withDefaults() EmbedRequest {
	if r.Width == 0 {
		r.Width = DefaultWidth
	}

	if r.Height == 0 {
		r.Height = DefaultHeight
	}

	if r.LinkText == "" {
		r.LinkText = DefaultLinkText
	}

	return r
}

type EmbedLink struct {
	Url      string
	Width    int
	Height   int
	LinkText string
}

// LinkFilter rewrites the rendered link markup before it is handed to the admin UI.
type LinkFilter func(markup string, link EmbedLink) string

const linkClassAttr = `class="thickbox badge-builder-link"`

// ExtraClassFilter appends css classes to the class attribute of the builder link.
func ExtraClassFilter(classes ...string) LinkFilter {
	var extra []string
	for _, c := range classes {
		c = strings.TrimSpace(c)
		if c != "" {
			extra = append(extra, html.EscapeString(c))
		}
	}

	return func(markup string, link EmbedLink) string {
		if len(extra) == 0 {
			return markup
		}

		replacement := strings.TrimSuffix(linkClassAttr, `"`) + " " + strings.Join(extra, " ") + `"`

		return strings.Replace(markup, linkClassAttr, replacement, 1)
	}
}

func (c *client) BuildEmbedLink(token string, req EmbedRequest) (*EmbedLink, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	req = req.withDefaults()

	continuePayload, err := json.Marshal(req.Continue)
	if err != nil {
		return nil, fmt.Errorf("failed to encode continue payload: %w", err)
	}

	// same parameter order as the widget documents it
	query := strings.Join([]string{
		"continue=" + rawUrlEncode(string(continuePayload)),
		"TB_iframe=true",
		"width=" + strconv.Itoa(req.Width),
		"height=" + strconv.Itoa(req.Height),
	}, "&")

	return &EmbedLink{
		Url:      c.endpoint("embed/"+url.PathEscape(token)) + "?" + query,
		Width:    req.Width,
		Height:   req.Height,
		LinkText: req.LinkText,
	}, nil
}

// rfc 3986 encoding, spaces become %20 and not +
func rawUrlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

func RenderLink(link EmbedLink, filters ...LinkFilter) string {
	markup := fmt.Sprintf(
		`<a href="%s" `+linkClassAttr+` data-width="%d" data-height="%d">%s</a>`,
		html.EscapeString(link.Url),
		link.Width,
		link.Height,
		html.EscapeString(link.LinkText),
	)

	for _, filter := range filters {
		markup = filter(markup, link)
	}

	return markup
}
