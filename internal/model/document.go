package model

import "time"

// Document is the metadata record of one uploaded file.
// It always lives in the namespace of its owner and is never updated in place.
type Document struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Filename    string    `json:"filename"`
	StorageRef  string    `json:"storage_ref"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
