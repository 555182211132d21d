package models

import "time"

// MaterialType is the closed set of supported course-material kinds.
type MaterialType string

const (
	MaterialNotes    MaterialType = "notes"
	MaterialVideo    MaterialType = "video"
	MaterialAudio    MaterialType = "audio"
	MaterialDocument MaterialType = "document"
)

// ValidMaterialType reports whether the raw value names a known material type.
func ValidMaterialType(raw string) bool {
	switch MaterialType(raw) {
	case MaterialNotes, MaterialVideo, MaterialAudio, MaterialDocument:
		return true
	default:
		return false
	}
}

// Material is an uploaded course material. Records are immutable once created;
// only the teacher owning the subject may create one. FileURL is an opaque
// reference into blob storage.
type Material struct {
	ID          string       `db:"id" json:"id"`
	Title       string       `db:"title" json:"title"`
	Description string       `db:"description" json:"description"`
	Type        MaterialType `db:"type" json:"type"`
	FileURL     string       `db:"file_url" json:"file_url"`
	SubjectID   string       `db:"subject_id" json:"subject_id"`
	CreatedBy   string       `db:"created_by" json:"created_by"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// MaterialDetail joins uploader and subject context for responses.
type MaterialDetail struct {
	Material
	UploaderName string `db:"uploader_name" json:"uploader_name"`
	SubjectName  string `db:"subject_name" json:"subject_name"`
}
