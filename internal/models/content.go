package models

import (
	"bytes"
	"encoding/json"
	"time"
)

type Stage string

const (
	StageIdea      Stage = "Idea"
	StagePlanning  Stage = "Planning"
	StageRecording Stage = "Recording"
	StageEditing   Stage = "Editing"
	StagePublished Stage = "Published"
)

// Stages lists the pipeline in board order.
var Stages = []Stage{StageIdea, StagePlanning, StageRecording, StageEditing, StagePublished}

func (s Stage) Valid() bool {
	for _, st := range Stages {
		if s == st {
			return true
		}
	}
	return false
}

type ContentType string

const (
	ContentTypeShort ContentType = "Short"
	ContentTypeLong  ContentType = "Long"
)

func (t ContentType) Valid() bool {
	return t == ContentTypeShort || t == ContentTypeLong
}

type ContentItem struct {
	ID                int64       `json:"id"`
	Title             string      `json:"title"`
	Description       *string     `json:"description"`
	Script            *string     `json:"script"`
	ThumbnailIdea     *string     `json:"thumbnailIdea"`
	ResourcesLinks    *string     `json:"resourcesLinks"`
	Stage             Stage       `json:"stage"`
	ContentType       ContentType `json:"contentType"`
	PlannedDate       *time.Time  `json:"plannedDate"`
	YoutubeLiveLink   *string     `json:"youtubeLiveLink"`
	InstagramLiveLink *string     `json:"instagramLiveLink"`
	CreatedAt         time.Time   `json:"createdAt"`
	UpdatedAt         time.Time   `json:"updatedAt"`
	UserID            *int64      `json:"userId"`
	Creator           *string     `json:"creator,omitempty"`
}

// Clone returns a deep copy so stores never hand out shared pointers.
func (c *ContentItem) Clone() *ContentItem {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Description = cloneString(c.Description)
	cp.Script = cloneString(c.Script)
	cp.ThumbnailIdea = cloneString(c.ThumbnailIdea)
	cp.ResourcesLinks = cloneString(c.ResourcesLinks)
	cp.YoutubeLiveLink = cloneString(c.YoutubeLiveLink)
	cp.InstagramLiveLink = cloneString(c.InstagramLiveLink)
	cp.Creator = cloneString(c.Creator)
	if c.PlannedDate != nil {
		t := *c.PlannedDate
		cp.PlannedDate = &t
	}
	if c.UserID != nil {
		id := *c.UserID
		cp.UserID = &id
	}
	return &cp
}

// OwnedBy reports whether the record belongs to the given user.
// Unowned records belong to nobody.
func (c *ContentItem) OwnedBy(userID int64) bool {
	return c.UserID != nil && *c.UserID == userID
}

type CreateContentRequest struct {
	Title             string  `json:"title"`
	Description       *string `json:"description"`
	Script            *string `json:"script"`
	ThumbnailIdea     *string `json:"thumbnailIdea"`
	ResourcesLinks    *string `json:"resourcesLinks"`
	Stage             *string `json:"stage"`
	ContentType       string  `json:"contentType"`
	PlannedDate       *string `json:"plannedDate"`
	YoutubeLiveLink   *string `json:"youtubeLiveLink"`
	InstagramLiveLink *string `json:"instagramLiveLink"`
	// FinalLiveLink is the single link field of the first schema revision.
	FinalLiveLink *string `json:"finalLiveLink"`
}

// UpdateContentRequest carries a partial update. Each field distinguishes
// "absent" from "explicit null".
type UpdateContentRequest struct {
	Title             Optional[string] `json:"title"`
	Description       Optional[string] `json:"description"`
	Script            Optional[string] `json:"script"`
	ThumbnailIdea     Optional[string] `json:"thumbnailIdea"`
	ResourcesLinks    Optional[string] `json:"resourcesLinks"`
	Stage             Optional[string] `json:"stage"`
	ContentType       Optional[string] `json:"contentType"`
	PlannedDate       Optional[string] `json:"plannedDate"`
	YoutubeLiveLink   Optional[string] `json:"youtubeLiveLink"`
	InstagramLiveLink Optional[string] `json:"instagramLiveLink"`
	FinalLiveLink     Optional[string] `json:"finalLiveLink"`
}

type UpdateStageRequest struct {
	Stage string `json:"stage"`
}

type ListOptions struct {
	Stage       Stage
	ContentType ContentType
	Sort        string
}

const (
	SortNewest       = "newest"
	SortOldest       = "oldest"
	SortLastModified = "lastModified"
	SortPlannedDate  = "plannedDate"
	SortTitle        = "titleAZ"
)

// Board maps every stage to its items.
type Board map[Stage][]*ContentItem

// MarshalJSON writes the stages in pipeline order.
func (b Board) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, st := range Stages {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(string(st))
		buf.Write(key)
		buf.WriteByte(':')
		items := b[st]
		if items == nil {
			items = []*ContentItem{}
		}
		val, err := json.Marshal(items)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// CalendarDay groups scheduled items by their planned day.
type CalendarDay struct {
	Date     string         `json:"date"`
	Contents []*ContentItem `json:"contents"`
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// MarshalJSON emits only the fields that were set so a partial update
// round-trips through the client unchanged.
func (r UpdateContentRequest) MarshalJSON() ([]byte, error) {
	m := make(map[string]Optional[string])
	add := func(key string, o Optional[string]) {
		if o.Set {
			m[key] = o
		}
	}
	add("title", r.Title)
	add("description", r.Description)
	add("script", r.Script)
	add("thumbnailIdea", r.ThumbnailIdea)
	add("resourcesLinks", r.ResourcesLinks)
	add("stage", r.Stage)
	add("contentType", r.ContentType)
	add("plannedDate", r.PlannedDate)
	add("youtubeLiveLink", r.YoutubeLiveLink)
	add("instagramLiveLink", r.InstagramLiveLink)
	add("finalLiveLink", r.FinalLiveLink)
	return json.Marshal(m)
}
