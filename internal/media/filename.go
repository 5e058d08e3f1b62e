package media

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var imageNamePattern = regexp.MustCompile(`(?i)[^?]+\.(jpe?g|jpe|gif|png)\b`)

// ImageFileName derives the stored file name from the path of an image url.
func ImageFileName(imageUrl *url.URL) (string, error) {
	match := imageNamePattern.FindString(imageUrl.Path)
	if match == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedImage, imageUrl.Redacted())
	}

	return path.Base(match), nil
}

// UrlPolicy decides which image urls the save callback may download.
type UrlPolicy struct {
	// exact hosts, subdomains included. Empty allows any host.
	AllowedHosts  []string
	AllowInsecure bool
}

func (p UrlPolicy) Validate(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: no image url given", ErrInvalidImageUrl)
	}

	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImageUrl, err)
	}

	switch u.Scheme {
	case "https":
	case "http":
		if !p.AllowInsecure {
			return nil, fmt.Errorf("%w: plain http image urls are not allowed", ErrInvalidImageUrl)
		}
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidImageUrl, u.Scheme)
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidImageUrl)
	}

	if u.User != nil {
		return nil, fmt.Errorf("%w: credentials in image urls are not allowed", ErrInvalidImageUrl)
	}

	if !p.hostAllowed(host) {
		return nil, fmt.Errorf("%w: host %s is not allowed", ErrInvalidImageUrl, host)
	}

	return u, nil
}

func (p UrlPolicy) hostAllowed(host string) bool {
	if len(p.AllowedHosts) == 0 {
		return true
	}

	for _, allowed := range p.AllowedHosts {
		allowed = strings.ToLower(strings.TrimSpace(allowed))
		if allowed == "" {
			continue
		}

		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}

	return false
}
