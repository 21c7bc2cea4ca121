package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/araddon/dateparse"

	"planboard-backend/internal/models"
)

const minTitleLength = 3

func validateTitle(title string) (string, string) {
	t := strings.TrimSpace(title)
	if t == "" {
		return "", "Title is required"
	}
	if utf8.RuneCountInString(t) < minTitleLength {
		return "", fmt.Sprintf("Title must be at least %d characters", minTitleLength)
	}
	return t, ""
}

func parseStage(s string) (models.Stage, string) {
	st := models.Stage(s)
	if !st.Valid() {
		return "", "Stage must be one of Idea, Planning, Recording, Editing, Published"
	}
	return st, ""
}

func parseContentType(s string) (models.ContentType, string) {
	ct := models.ContentType(s)
	if !ct.Valid() {
		return "", "Content type must be Short or Long"
	}
	return ct, ""
}

// parsePlannedDate accepts ISO dates and timestamps. Empty means unscheduled.
func parsePlannedDate(s *string) (*time.Time, string) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, ""
	}
	t, err := dateparse.ParseIn(strings.TrimSpace(*s), time.UTC)
	if err != nil {
		return nil, "Planned date must be an ISO date"
	}
	t = t.UTC()
	return &t, ""
}

// normalizeLink returns nil for an empty link and rejects anything that is
// not an absolute http(s) URL.
func normalizeLink(s *string) (*string, string) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, ""
	}
	v := strings.TrimSpace(*s)
	u, err := url.ParseRequestURI(v)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, "Must be a valid URL"
	}
	return &v, ""
}

func normalizeText(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := *s
	return &v
}

// buildContent validates a create request and returns the record to persist.
func buildContent(req models.CreateContentRequest) (*models.ContentItem, error) {
	fields := make(map[string]string)
	c := &models.ContentItem{
		Description:    normalizeText(req.Description),
		Script:         normalizeText(req.Script),
		ThumbnailIdea:  normalizeText(req.ThumbnailIdea),
		ResourcesLinks: normalizeText(req.ResourcesLinks),
		Stage:          models.StageIdea,
	}

	if title, msg := validateTitle(req.Title); msg != "" {
		fields["title"] = msg
	} else {
		c.Title = title
	}

	if req.Stage != nil && *req.Stage != "" {
		if st, msg := parseStage(*req.Stage); msg != "" {
			fields["stage"] = msg
		} else {
			c.Stage = st
		}
	}

	if req.ContentType == "" {
		fields["contentType"] = "Content type is required"
	} else if ct, msg := parseContentType(req.ContentType); msg != "" {
		fields["contentType"] = msg
	} else {
		c.ContentType = ct
	}

	if d, msg := parsePlannedDate(req.PlannedDate); msg != "" {
		fields["plannedDate"] = msg
	} else {
		c.PlannedDate = d
	}

	youtube := req.YoutubeLiveLink
	youtubeField := "youtubeLiveLink"
	if youtube == nil && req.FinalLiveLink != nil {
		youtube = req.FinalLiveLink
		youtubeField = "finalLiveLink"
	}
	if link, msg := normalizeLink(youtube); msg != "" {
		fields[youtubeField] = msg
	} else {
		c.YoutubeLiveLink = link
	}

	if link, msg := normalizeLink(req.InstagramLiveLink); msg != "" {
		fields["instagramLiveLink"] = msg
	} else {
		c.InstagramLiveLink = link
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return c, nil
}

// contentPatch is a validated partial update ready to be merged.
type contentPatch struct {
	apply []func(c *models.ContentItem)
}

func (p *contentPatch) Apply(c *models.ContentItem) {
	for _, fn := range p.apply {
		fn(c)
	}
}

// buildPatch validates only the fields present in req.
func buildPatch(req models.UpdateContentRequest) (*contentPatch, error) {
	fields := make(map[string]string)
	p := &contentPatch{}
	add := func(fn func(c *models.ContentItem)) { p.apply = append(p.apply, fn) }

	if req.Title.Set {
		var raw string
		if req.Title.Value != nil {
			raw = *req.Title.Value
		}
		if title, msg := validateTitle(raw); msg != "" {
			fields["title"] = msg
		} else {
			add(func(c *models.ContentItem) { c.Title = title })
		}
	}

	text := func(o models.Optional[string], set func(c *models.ContentItem, v *string)) {
		if !o.Set {
			return
		}
		v := normalizeText(o.Value)
		add(func(c *models.ContentItem) { set(c, v) })
	}
	text(req.Description, func(c *models.ContentItem, v *string) { c.Description = v })
	text(req.Script, func(c *models.ContentItem, v *string) { c.Script = v })
	text(req.ThumbnailIdea, func(c *models.ContentItem, v *string) { c.ThumbnailIdea = v })
	text(req.ResourcesLinks, func(c *models.ContentItem, v *string) { c.ResourcesLinks = v })

	if req.Stage.Set {
		if req.Stage.Value == nil {
			fields["stage"] = "Stage cannot be null"
		} else if st, msg := parseStage(*req.Stage.Value); msg != "" {
			fields["stage"] = msg
		} else {
			add(func(c *models.ContentItem) { c.Stage = st })
		}
	}

	if req.ContentType.Set {
		if req.ContentType.Value == nil {
			fields["contentType"] = "Content type cannot be null"
		} else if ct, msg := parseContentType(*req.ContentType.Value); msg != "" {
			fields["contentType"] = msg
		} else {
			add(func(c *models.ContentItem) { c.ContentType = ct })
		}
	}

	if req.PlannedDate.Set {
		if d, msg := parsePlannedDate(req.PlannedDate.Value); msg != "" {
			fields["plannedDate"] = msg
		} else {
			add(func(c *models.ContentItem) { c.PlannedDate = d })
		}
	}

	youtube, youtubeField := req.YoutubeLiveLink, "youtubeLiveLink"
	if !youtube.Set && req.FinalLiveLink.Set {
		youtube, youtubeField = req.FinalLiveLink, "finalLiveLink"
	}
	link := func(o models.Optional[string], field string, set func(c *models.ContentItem, v *string)) {
		if !o.Set {
			return
		}
		v, msg := normalizeLink(o.Value)
		if msg != "" {
			fields[field] = msg
			return
		}
		add(func(c *models.ContentItem) { set(c, v) })
	}
	link(youtube, youtubeField, func(c *models.ContentItem, v *string) { c.YoutubeLiveLink = v })
	link(req.InstagramLiveLink, "instagramLiveLink", func(c *models.ContentItem, v *string) { c.InstagramLiveLink = v })

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}
	return p, nil
}
