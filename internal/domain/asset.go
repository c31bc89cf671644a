package domain

import "time"

// ImageFile is one rendition of a processed image: a specific scale and
// format produced by the image processor for a single input.
type ImageFile struct {
	Name       string `bson:"name"`
	Width      int32  `bson:"width"`
	Height     int32  `bson:"height"`
	FrameCount int32  `bson:"frame_count"`
	SizeBytes  int64  `bson:"size_bytes"`
}

// ImageSet is the complete output of one image-processor job: the input it
// was given and every rendition it produced. A nil/zero ImageSet on an
// owning document means processing hasn't completed yet.
type ImageSet struct {
	InputFile ImageFile   `bson:"input"`
	Outputs   []ImageFile `bson:"outputs"`
}

// NewImageSet builds the ImageSet the image pipeline writes onto an owning
// document once a success callback is applied (§4.9).
func NewImageSet(input ImageFile, outputs []ImageFile) ImageSet {
	return ImageSet{InputFile: input, Outputs: outputs}
}

// Emote is a single uploaded image entitlement, owned by a user and
// referenced from EmoteSetEmote rows by id.
type Emote struct {
	ID        string    `bson:"_id"`
	OwnerID   string    `bson:"owner_id"`
	Name      string    `bson:"name"`
	Flags     int64     `bson:"flags"`
	ImageSet  *ImageSet `bson:"image_set,omitempty"`
	Pending   bool      `bson:"pending"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Badge is a grantable decoration, entitled via an entitlement edge.
type Badge struct {
	ID        string    `bson:"_id"`
	Name      string    `bson:"name"`
	ImageSet  *ImageSet `bson:"image_set,omitempty"`
	Pending   bool      `bson:"pending"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// PaintLayer is one layer of a Paint's composited image (a paint may be a
// pure gradient with no image layers, or a layered image paint processed by
// the image pipeline one layer at a time).
type PaintLayer struct {
	ID       string    `bson:"id"`
	ImageSet *ImageSet `bson:"image_set,omitempty"`
	Pending  bool      `bson:"pending"`
}

// Paint is a grantable cosmetic style, entitled via an entitlement edge.
type Paint struct {
	ID        string       `bson:"_id"`
	Name      string       `bson:"name"`
	Layers    []PaintLayer `bson:"layers"`
	CreatedAt time.Time    `bson:"created_at"`
	UpdatedAt time.Time    `bson:"updated_at"`
}
