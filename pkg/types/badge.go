package types

import "time"

// BuilderLink is the badge builder entry point of a post. Available is false when no session token
// could be obtained, the admin UI then hides the link.
type BuilderLink struct {
	Available bool   `json:"available"`
	Url       string `json:"url,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	LinkText  string `json:"linkText,omitempty"`
	Html      string `json:"html,omitempty"`
}

type Metabox struct {
	PostId      int64  `json:"postId"`
	ThumbnailId int64  `json:"thumbnailId"`
	Html        string `json:"html"`
}

type SaveBadgeResult struct {
	AttachmentId int64  `json:"attachment_id"`
	MetaboxHtml  string `json:"metabox_html"`
}

// CallbackResponse is the envelope the CMS admin expects from ajax handlers.
type CallbackResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

type CallbackError struct {
	Message string `json:"message"`
}

type BadgeAttachment struct {
	Id          int64     `json:"id"`
	PostId      int64     `json:"postId"`
	FileName    string    `json:"fileName"`
	Url         string    `json:"url"`
	MimeType    string    `json:"mimeType"`
	Size        int64     `json:"size"`
	SourceUrl   string    `json:"sourceUrl"`
	CreatedAt   time.Time `json:"createdAt"`
	IsThumbnail bool      `json:"isThumbnail"`
}
