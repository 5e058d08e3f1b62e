package media

import (
	"errors"
	"time"

	"github.com/egfanboy/badge-builder/pkg/types"
)

const (
	// attachments created by the badge builder save callback
	SourceBadgeBuilder = "credly-badge-builder"
)

var (
	ErrInvalidImageUrl  = errors.New("invalid image url")
	ErrUnsupportedImage = errors.New("image url has no supported image extension")
	ErrDownload         = errors.New("failed to download image")
	ErrStorage          = errors.New("failed to store image in the media library")
	ErrNotFound         = errors.New("attachment not found")
	ErrInvalidSort      = errors.New("invalid sortBy field")
)

type Attachment struct {
	Id        int64     `json:"id" bson:"_id"`
	PostId    int64     `json:"postId" bson:"post_id"`
	FileName  string    `json:"fileName" bson:"file_name"`
	ObjectKey string    `json:"-" bson:"object_key"`
	Url       string    `json:"url" bson:"url"`
	MimeType  string    `json:"mimeType" bson:"mime_type"`
	Size      int64     `json:"size" bson:"size"`
	SourceUrl string    `json:"sourceUrl" bson:"source_url"`
	Source    string    `json:"source" bson:"source"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

func (a Attachment) ToApiResponse(thumbnailId int64) types.BadgeAttachment {
	return types.BadgeAttachment{
		Id:          a.Id,
		PostId:      a.PostId,
		FileName:    a.FileName,
		Url:         a.Url,
		MimeType:    a.MimeType,
		Size:        a.Size,
		SourceUrl:   a.SourceUrl,
		CreatedAt:   a.CreatedAt,
		IsThumbnail: a.Id == thumbnailId,
	}
}

// SideloadFile is a downloaded file waiting to be stored in the media library.
type SideloadFile struct {
	TmpPath   string
	Name      string
	SourceUrl string
}
