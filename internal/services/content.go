package services

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"planboard-backend/internal/models"
	"planboard-backend/internal/repository"
)

type ContentStore interface {
	List(ctx context.Context, f repository.ContentFilter) ([]*models.ContentItem, error)
	GetByID(ctx context.Context, id int64) (*models.ContentItem, error)
	Create(ctx context.Context, c *models.ContentItem) error
	Update(ctx context.Context, id int64, fn func(c *models.ContentItem) error) (*models.ContentItem, error)
	Delete(ctx context.Context, id int64, check func(c *models.ContentItem) error) error
}

type UserLookup interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// ContentService is the only mutation path for content items. Every
// successful mutation is followed by one change notification.
type ContentService struct {
	store    ContentStore
	users    UserLookup
	notifier ChangeNotifier
	demoMode bool
}

func NewContentService(store ContentStore, users UserLookup, notifier ChangeNotifier, demoMode bool) *ContentService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &ContentService{store: store, users: users, notifier: notifier, demoMode: demoMode}
}

func (s *ContentService) List(ctx context.Context, auth models.AuthContext, opts models.ListOptions) ([]*models.ContentItem, error) {
	if err := s.requireCaller(auth); err != nil {
		return nil, err
	}
	if err := validateListOptions(opts); err != nil {
		return nil, err
	}

	filter := repository.ContentFilter{Stage: opts.Stage, ContentType: opts.ContentType}
	if auth.Authenticated() && !auth.IsAdmin() {
		filter.OwnerID = auth.UserID
	}

	items, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	sortContents(items, opts.Sort)
	s.fillCreators(ctx, items...)
	return items, nil
}

func (s *ContentService) Get(ctx context.Context, auth models.AuthContext, id int64) (*models.ContentItem, error) {
	if err := s.requireCaller(auth); err != nil {
		return nil, err
	}

	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, translateStoreError(err)
	}
	if err := canView(auth, c); err != nil {
		return nil, err
	}
	s.fillCreators(ctx, c)
	return c, nil
}

func (s *ContentService) Create(ctx context.Context, auth models.AuthContext, req models.CreateContentRequest) (*models.ContentItem, error) {
	if err := s.requireWriter(auth); err != nil {
		return nil, err
	}

	c, err := buildContent(req)
	if err != nil {
		return nil, err
	}
	if auth.Authenticated() {
		id := *auth.UserID
		c.UserID = &id
	}

	if err := s.store.Create(ctx, c); err != nil {
		return nil, err
	}
	s.notify(ctx)
	s.fillCreators(ctx, c)
	return c, nil
}

// Update applies a partial patch. A missing id is reported before the
// caller's role is checked.
func (s *ContentService) Update(ctx context.Context, auth models.AuthContext, id int64, req models.UpdateContentRequest) (*models.ContentItem, error) {
	if err := s.requireCaller(auth); err != nil {
		return nil, err
	}

	patch, err := buildPatch(req)
	if err != nil {
		return nil, err
	}

	c, err := s.store.Update(ctx, id, func(existing *models.ContentItem) error {
		if err := canModify(auth, existing); err != nil {
			return err
		}
		patch.Apply(existing)
		return nil
	})
	if err != nil {
		return nil, translateStoreError(err)
	}
	s.notify(ctx)
	s.fillCreators(ctx, c)
	return c, nil
}

// UpdateStage moves an item to another stage. Every transition is legal.
func (s *ContentService) UpdateStage(ctx context.Context, auth models.AuthContext, id int64, stage string) (*models.ContentItem, error) {
	if stage == "" {
		return nil, &ValidationError{Fields: map[string]string{"stage": "Stage is required"}}
	}
	return s.Update(ctx, auth, id, models.UpdateContentRequest{Stage: models.Some(stage)})
}

func (s *ContentService) Delete(ctx context.Context, auth models.AuthContext, id int64) error {
	if err := s.requireCaller(auth); err != nil {
		return err
	}

	err := s.store.Delete(ctx, id, func(existing *models.ContentItem) error {
		return canModify(auth, existing)
	})
	if err != nil {
		return translateStoreError(err)
	}
	s.notify(ctx)
	return nil
}

// Board groups the visible items by stage. Every stage is present.
func (s *ContentService) Board(ctx context.Context, auth models.AuthContext, sortBy string) (models.Board, error) {
	items, err := s.List(ctx, auth, models.ListOptions{Sort: sortBy})
	if err != nil {
		return nil, err
	}

	board := make(models.Board, len(models.Stages))
	for _, st := range models.Stages {
		board[st] = []*models.ContentItem{}
	}
	for _, c := range items {
		board[c.Stage] = append(board[c.Stage], c)
	}
	return board, nil
}

// Calendar buckets scheduled items by planned day. from and to are
// inclusive and compared by day.
func (s *ContentService) Calendar(ctx context.Context, auth models.AuthContext, from, to *time.Time) ([]models.CalendarDay, error) {
	if from != nil && to != nil && dayOf(*from) > dayOf(*to) {
		return nil, &ValidationError{Fields: map[string]string{"from": "From must not be after to"}}
	}

	items, err := s.List(ctx, auth, models.ListOptions{Sort: models.SortPlannedDate})
	if err != nil {
		return nil, err
	}

	days := []models.CalendarDay{}
	index := make(map[string]int)
	for _, c := range items {
		if c.PlannedDate == nil {
			continue
		}
		day := dayOf(*c.PlannedDate)
		if from != nil && day < dayOf(*from) {
			continue
		}
		if to != nil && day > dayOf(*to) {
			continue
		}
		i, ok := index[day]
		if !ok {
			i = len(days)
			index[day] = i
			days = append(days, models.CalendarDay{Date: day})
		}
		days[i].Contents = append(days[i].Contents, c)
	}
	return days, nil
}

func (s *ContentService) requireCaller(auth models.AuthContext) error {
	if !auth.Authenticated() && !s.demoMode {
		return errAuthRequired
	}
	return nil
}

func (s *ContentService) requireWriter(auth models.AuthContext) error {
	if err := s.requireCaller(auth); err != nil {
		return err
	}
	if !auth.CanWrite() {
		return errReadOnly
	}
	return nil
}

func (s *ContentService) notify(ctx context.Context) {
	if err := s.notifier.NotifyContentChanged(ctx); err != nil {
		log.Printf("content: change notification failed: %v", err)
	}
}

// fillCreators sets the owner's username on each item. Missing owners are
// left blank.
func (s *ContentService) fillCreators(ctx context.Context, items ...*models.ContentItem) {
	if s.users == nil {
		return
	}
	names := make(map[int64]*string)
	for _, c := range items {
		if c.UserID == nil {
			continue
		}
		name, ok := names[*c.UserID]
		if !ok {
			if u, err := s.users.GetByID(ctx, *c.UserID); err == nil {
				username := u.Username
				name = &username
			}
			names[*c.UserID] = name
		}
		if name != nil {
			v := *name
			c.Creator = &v
		}
	}
}

// canView: admins and anonymous demo callers see everything, other callers
// see unowned records and their own.
func canView(auth models.AuthContext, c *models.ContentItem) error {
	if auth.IsAdmin() || !auth.Authenticated() {
		return nil
	}
	if c.UserID != nil && !c.OwnedBy(*auth.UserID) {
		return errAccessDenied
	}
	return nil
}

// canModify: viewers modify nothing. Admins modify anything, anonymous
// demo callers only unowned records, everybody else only their own.
func canModify(auth models.AuthContext, c *models.ContentItem) error {
	if !auth.CanWrite() {
		return errReadOnly
	}
	if auth.IsAdmin() {
		return nil
	}
	if !auth.Authenticated() {
		if c.UserID != nil {
			return errAccessDenied
		}
		return nil
	}
	if !c.OwnedBy(*auth.UserID) {
		return errAccessDenied
	}
	return nil
}

func translateStoreError(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return errContentNotFound
	}
	return err
}

func validateListOptions(opts models.ListOptions) error {
	fields := make(map[string]string)
	if opts.Stage != "" && !opts.Stage.Valid() {
		fields["stage"] = "Stage must be one of Idea, Planning, Recording, Editing, Published"
	}
	if opts.ContentType != "" && !opts.ContentType.Valid() {
		fields["type"] = "Content type must be Short or Long"
	}
	switch opts.Sort {
	case "", models.SortNewest, models.SortOldest, models.SortLastModified, models.SortPlannedDate, models.SortTitle:
	default:
		fields["sort"] = "Sort must be one of newest, oldest, lastModified, plannedDate, titleAZ"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func sortContents(items []*models.ContentItem, by string) {
	var less func(a, b *models.ContentItem) bool
	switch by {
	case models.SortNewest:
		less = func(a, b *models.ContentItem) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
	case models.SortOldest:
		less = func(a, b *models.ContentItem) bool {
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		}
	case models.SortPlannedDate:
		// Unscheduled items go last.
		less = func(a, b *models.ContentItem) bool {
			switch {
			case a.PlannedDate == nil && b.PlannedDate == nil:
				return a.ID < b.ID
			case a.PlannedDate == nil:
				return false
			case b.PlannedDate == nil:
				return true
			case !a.PlannedDate.Equal(*b.PlannedDate):
				return a.PlannedDate.Before(*b.PlannedDate)
			}
			return a.ID < b.ID
		}
	case models.SortTitle:
		less = func(a, b *models.ContentItem) bool {
			ta, tb := strings.ToLower(a.Title), strings.ToLower(b.Title)
			if ta != tb {
				return ta < tb
			}
			return a.ID < b.ID
		}
	default:
		less = func(a, b *models.ContentItem) bool {
			if !a.UpdatedAt.Equal(b.UpdatedAt) {
				return a.UpdatedAt.After(b.UpdatedAt)
			}
			return a.ID > b.ID
		}
	}
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
}

func dayOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
