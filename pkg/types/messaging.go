package types

const (
	TopicBadgeSaved        = "badge.saved"
	TopicAttachmentDeleted = "attachment.deleted"
)

type BadgeSavedMessage struct {
	PostId       int64  `json:"postId"`
	AttachmentId int64  `json:"attachmentId"`
	UserId       string `json:"userId"`
}

type AttachmentDeletedMessage struct {
	AttachmentId int64 `json:"attachmentId"`
}
