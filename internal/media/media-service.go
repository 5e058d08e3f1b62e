package media

import (
	"context"

	"github.com/egfanboy/badge-builder/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ImageImporter downloads a remote image and sideloads it into the media library of a post.
type ImageImporter interface {
	SideloadImage(ctx context.Context, imageUrl string, postId int64) (int64, error)
}

type importer struct {
	policy     UrlPolicy
	downloader Downloader
	library    Sideloader
	metrics    *metrics.Metrics
}

func (i *importer) SideloadImage(ctx context.Context, imageUrl string, postId int64) (id int64, err error) {
	defer func() {
		i.metrics.ObserveSideload(metrics.Result(err))
	}()

	u, err := i.policy.Validate(imageUrl)
	if err != nil {
		return 0, err
	}

	// checked before downloading so unsupported files never hit the network
	name, err := ImageFileName(u)
	if err != nil {
		return 0, err
	}

	tmpPath, err := i.downloader.Download(ctx, u.String())
	if err != nil {
		log.Err(err).Msgf("Failed to download image for post %d", postId)
		return 0, err
	}

	defer RemoveTemp(tmpPath)

	id, err = i.library.Sideload(ctx, SideloadFile{TmpPath: tmpPath, Name: name, SourceUrl: u.String()}, postId)
	if err != nil {
		log.Err(err).Msgf("Failed to sideload %s for post %d", name, postId)
		return 0, err
	}

	return id, nil
}

func NewImageImporter(policy UrlPolicy, downloader Downloader, library Sideloader, m *metrics.Metrics) ImageImporter {
	return &importer{policy: policy, downloader: downloader, library: library, metrics: m}
}
