package post

import "errors"

var ErrNotFound = errors.New("post not found")

type Post struct {
	Id       int64    `json:"id" bson:"_id"`
	Type     string   `json:"type" bson:"type"`
	Title    string   `json:"title" bson:"title"`
	AuthorId string   `json:"authorId" bson:"author_id"`
	Editors  []string `json:"editors" bson:"editors"`
	// 0 when the post has no featured image
	ThumbnailId int64 `json:"thumbnailId" bson:"thumbnail_id"`
}

func (p Post) HasThumbnail() bool {
	return p.ThumbnailId > 0
}

func (p Post) CanBeEditedBy(userId string) bool {
	if userId == "" {
		return false
	}

	if p.AuthorId == userId {
		return true
	}

	for _, editor := range p.Editors {
		if editor == userId {
			return true
		}
	}

	return false
}

// IsOfType reports whether the post type is one of types.
func (p Post) IsOfType(types []string) bool {
	for _, t := range types {
		if t == p.Type {
			return true
		}
	}

	return false
}
