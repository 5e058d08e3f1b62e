package render

import (
	"bytes"
	"html/template"

	"github.com/egfanboy/badge-builder/internal/media"
)

const thumbnailTemplate = `{{- if .Thumbnail -}}
<p class="hide-if-no-js"><a href="#" id="set-post-thumbnail" data-post-id="{{.PostId}}"><img src="{{.Thumbnail.Url}}" alt="{{.Thumbnail.FileName}}" class="attachment-post-thumbnail" data-attachment-id="{{.Thumbnail.Id}}"></a></p>
<p class="hide-if-no-js"><a href="#" id="remove-post-thumbnail" data-post-id="{{.PostId}}">{{.RemoveText}}</a></p>
{{- else -}}
<p class="hide-if-no-js"><a href="#" id="set-post-thumbnail" data-post-id="{{.PostId}}">{{.SetText}}</a></p>
{{- end -}}`

// ThumbnailRenderer renders the featured image box of a post.
type ThumbnailRenderer interface {
	Render(postId int64, thumbnail *media.Attachment) (string, error)
}

type thumbnailView struct {
	PostId     int64
	Thumbnail  *media.Attachment
	SetText    string
	RemoveText string
}

type templateRenderer struct {
	tpl *template.Template
}

func (r *templateRenderer) Render(postId int64, thumbnail *media.Attachment) (string, error) {
	var buf bytes.Buffer

	err := r.tpl.Execute(&buf, thumbnailView{
		PostId:     postId,
		Thumbnail:  thumbnail,
		SetText:    "Set featured image",
		RemoveText: "Remove featured image",
	})
	if err != nil {
		return "", err
	}

	return buf.String(), nil
}

func NewThumbnailRenderer() ThumbnailRenderer {
	return &templateRenderer{tpl: template.Must(template.New("thumbnail").Parse(thumbnailTemplate))}
}
