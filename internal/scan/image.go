package scan

import (
	"mime"
	"strings"
)

// Image is a binary payload selected or dropped by the user.
type Image struct {
	Name      string `json:"name,omitempty"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
}

// IsImage reports whether the declared media type is in the image category.
func (i Image) IsImage() bool {
	mediaType, _, err := mime.ParseMediaType(i.MediaType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(i.MediaType))
	}
	return strings.HasPrefix(mediaType, "image/")
}

// Size returns the payload length in bytes.
func (i Image) Size() int {
	return len(i.Data)
}

func (i Image) clone() *Image {
	data := make([]byte, len(i.Data))
	copy(data, i.Data)
	i.Data = data
	return &i
}
