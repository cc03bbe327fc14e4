package service

import (
	"context"
	"coupon-manager/internal/model"
	"coupon-manager/internal/repository"
	"coupon-manager/internal/validator"
	"fmt"
	"strconv"
	"sync"
	"time"

	ierr "coupon-manager/pkg/errors"
	"coupon-manager/pkg/logger"

	"github.com/oklog/ulid/v2"
	"github.com/samber/lo"
)

var (
	addHints = validator.Hints{
		"":         "Please fill in all fields for the new coupon.",
		"required": "Please fill in all fields for the new coupon.",
		"datetime": "Expiry date must be a calendar date (YYYY-MM-DD).",
	}
	editHints = validator.Hints{
		"":         "Please fill in all fields for the coupon update.",
		"required": "Please fill in all fields for the coupon update.",
		"datetime": "Expiry date must be a calendar date (YYYY-MM-DD).",
	}
)

// Gateway is the remote endpoint used to seed the collection and to obtain ids
type Gateway interface {
	ListPosts(ctx context.Context, limit int) ([]model.Post, error)
	CreatePost(ctx context.Context, post model.Post) (*model.Post, error)
	UpdatePost(ctx context.Context, post model.Post) (*model.Post, error)
}

// Notifier receives the non-blocking messages meant for the user
type Notifier interface {
	Notify(level model.NoticeLevel, message string)
}

type nopNotifier struct{}

func (nopNotifier) Notify(model.NoticeLevel, string) {}

// CouponService owns the coupon collection and applies validated mutations.
// Add and Edit call the remote endpoint first and only touch the collection
// once that call succeeded. SoftDelete and Restore are local only.
type CouponService struct {
	repo      repository.CouponRepository
	gateway   Gateway // nil when the remote endpoint is disabled
	notifier  Notifier
	logger    *logger.Logger
	seedLimit int
	userID    int
	now       func() time.Time
	newID     func() string

	idMu   sync.Mutex
	issued map[string]struct{} // every id handed out, survives ReplaceAll

	initOnce    sync.Once
	mu          sync.RWMutex
	state       model.InitState
	completedAt *time.Time
}

// Option configures a CouponService
type Option func(*CouponService)

// WithGateway enables the remote endpoint
func WithGateway(g Gateway) Option {
	return func(s *CouponService) {
		s.gateway = g
	}
}

// WithNotifier sets where user-facing notices go. nil keeps notices off.
func WithNotifier(n Notifier) Option {
	return func(s *CouponService) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *CouponService) {
		s.logger = l
	}
}

// WithSeedLimit sets how many posts are fetched at startup
func WithSeedLimit(limit int) Option {
	return func(s *CouponService) {
		s.seedLimit = limit
	}
}

// WithUserID sets the user id sent with created and updated posts
func WithUserID(userID int) Option {
	return func(s *CouponService) {
		s.userID = userID
	}
}

// WithClock overrides the time source used for seeded expiry dates
func WithClock(now func() time.Time) Option {
	return func(s *CouponService) {
		s.now = now
	}
}

// WithIDGenerator overrides the local id generator
func WithIDGenerator(newID func() string) Option {
	return func(s *CouponService) {
		s.newID = newID
	}
}

// NewCouponService creates a new coupon service
func NewCouponService(repo repository.CouponRepository, opts ...Option) *CouponService {
	s := &CouponService{
		repo:      repo,
		notifier:  nopNotifier{},
		logger:    logger.NewNop(),
		seedLimit: 5,
		userID:    1,
		now:       time.Now,
		newID:     func() string { return ulid.Make().String() },
		issued:    make(map[string]struct{}),
		state:     model.InitStatePending,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Initialize fills the collection from the remote endpoint. It runs once;
// later calls return nil without doing anything. On failure the collection
// is left untouched and an error notice is posted. There is no retry.
func (s *CouponService) Initialize(ctx context.Context) error {
	var err error
	s.initOnce.Do(func() {
		err = s.initialize(ctx)
	})
	return err
}

func (s *CouponService) initialize(ctx context.Context) error {
	if s.gateway == nil {
		s.logger.Infow("remote endpoint disabled, starting with an empty collection")
		s.setState(model.InitStateReady)
		return nil
	}

	posts, err := s.gateway.ListPosts(ctx, s.seedLimit)
	if err != nil {
		s.logger.Errorw("error fetching coupons", "error", err)
		s.notifier.Notify(model.NoticeError, "Failed to load coupons.")
		s.setState(model.InitStateFailed)
		return err
	}

	coupons := s.couponsFromPosts(posts, s.now())
	if err := s.repo.ReplaceAll(ctx, coupons); err != nil {
		s.logger.Errorw("error storing fetched coupons", "error", err)
		s.notifier.Notify(model.NoticeError, "Failed to load coupons.")
		s.setState(model.InitStateFailed)
		return err
	}

	s.logger.Infow("coupons loaded", "count", len(coupons))
	s.setState(model.InitStateReady)
	return nil
}

func (s *CouponService) setState(state model.InitState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	s.state = state
	s.completedAt = &now
}

// Add validates draft, registers it with the remote endpoint and appends
// the new coupon to the collection.
func (s *CouponService) Add(ctx context.Context, draft model.CouponDraft) (*model.Coupon, error) {
	draft = draft.Normalize()
	if err := validator.ValidateRequest(draft, addHints); err != nil {
		return nil, err
	}

	coupon := &model.Coupon{
		Code:        draft.Code,
		ExpiryDate:  draft.ExpiryDate,
		Description: draft.Description,
		IsDeleted:   false,
	}

	if s.gateway != nil {
		created, err := s.gateway.CreatePost(ctx, model.Post{
			UserID: s.userID,
			Title:  draft.Description,
			Body:   draft.Code,
		})
		if err != nil {
			s.logger.Errorw("error adding coupon", "code", draft.Code, "error", err)
			s.notifier.Notify(model.NoticeError, "Failed to add coupon.")
			return nil, err
		}
		coupon.RemoteID = created.ID
	}

	if err := s.appendWithFreshID(ctx, coupon); err != nil {
		s.logger.Errorw("error storing coupon", "code", draft.Code, "error", err)
		s.notifier.Notify(model.NoticeError, "Failed to add coupon.")
		return nil, err
	}

	s.logger.Infow("coupon added", "id", coupon.ID, "code", coupon.Code)
	s.notifier.Notify(model.NoticeSuccess, "Coupon added successfully!")
	return coupon, nil
}

// appendWithFreshID assigns an id that was never issued before and appends
func (s *CouponService) appendWithFreshID(ctx context.Context, coupon *model.Coupon) error {
	id, err := s.allocateID(coupon.RemoteID)
	if err != nil {
		return err
	}
	coupon.ID = id
	return s.repo.Append(ctx, coupon)
}

// allocateID uses the remote id when it was never issued and a local id
// otherwise. Ids stay reserved after their coupon leaves the collection.
func (s *CouponService) allocateID(remoteID int) (string, error) {
	if remoteID > 0 {
		if id := strconv.Itoa(remoteID); s.reserveID(id) {
			return id, nil
		}
		s.logger.Debugw("remote id already issued, allocating a local id", "remote_id", remoteID)
	}

	id := s.newID()
	if !s.reserveID(id) {
		return "", ierr.NewError("generated id already issued").
			WithHint("Could not allocate a coupon id").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrAlreadyExists)
	}
	return id, nil
}

// reserveID records id as issued and reports false if it already was
func (s *CouponService) reserveID(id string) bool {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	if _, used := s.issued[id]; used {
		return false
	}
	s.issued[id] = struct{}{}
	return true
}

// Edit replaces the code, expiry date and description of coupon id.
// ID, IsDeleted and RemoteID are never changed.
func (s *CouponService) Edit(ctx context.Context, id string, draft model.CouponDraft) (*model.Coupon, error) {
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		s.logger.Warnw("edit of unknown coupon", "id", id)
		return nil, err
	}

	draft = draft.Normalize()
	if err := validator.ValidateRequest(draft, editHints); err != nil {
		return nil, err
	}

	if s.gateway != nil && current.RemoteID > 0 {
		_, err := s.gateway.UpdatePost(ctx, model.Post{
			ID:     current.RemoteID,
			UserID: s.userID,
			Title:  draft.Description,
			Body:   draft.Code,
		})
		if err != nil {
			s.logger.Errorw("error updating coupon", "id", id, "error", err)
			s.notifier.Notify(model.NoticeError, "Failed to update coupon.")
			return nil, err
		}
	}

	updated, err := s.repo.Modify(ctx, id, func(c *model.Coupon) {
		c.Apply(draft)
	})
	if err != nil {
		s.logger.Errorw("error storing coupon update", "id", id, "error", err)
		s.notifier.Notify(model.NoticeError, "Failed to update coupon.")
		return nil, err
	}

	s.notifier.Notify(model.NoticeSuccess, "Coupon updated successfully!")
	return updated, nil
}

// SoftDelete marks coupon id as deleted. Deleting a deleted coupon is a no-op.
func (s *CouponService) SoftDelete(ctx context.Context, id string) (*model.Coupon, error) {
	deleted, err := s.repo.Modify(ctx, id, func(c *model.Coupon) {
		c.IsDeleted = true
	})
	if err != nil {
		s.logger.Warnw("delete of unknown coupon", "id", id)
		return nil, err
	}

	s.notifier.Notify(model.NoticeSuccess, "Coupon marked as deleted!")
	return deleted, nil
}

// Restore marks coupon id as active again. Restoring an active coupon is a no-op.
func (s *CouponService) Restore(ctx context.Context, id string) (*model.Coupon, error) {
	restored, err := s.repo.Modify(ctx, id, func(c *model.Coupon) {
		c.IsDeleted = false
	})
	if err != nil {
		s.logger.Warnw("restore of unknown coupon", "id", id)
		return nil, err
	}

	s.notifier.Notify(model.NoticeSuccess, fmt.Sprintf("Coupon \"%s\" restored!", restored.Code))
	return restored, nil
}

// Get retrieves a single coupon
func (s *CouponService) Get(ctx context.Context, id string) (*model.Coupon, error) {
	return s.repo.Get(ctx, id)
}

// ListActive returns the coupons that are not deleted, in collection order
func (s *CouponService) ListActive(ctx context.Context) ([]*model.Coupon, error) {
	return s.repo.List(ctx, model.CouponFilter{Deleted: lo.ToPtr(false)})
}

// ListDeleted returns the soft-deleted coupons, in collection order
func (s *CouponService) ListDeleted(ctx context.Context) ([]*model.Coupon, error) {
	return s.repo.List(ctx, model.CouponFilter{Deleted: lo.ToPtr(true)})
}

// Status reports the startup fetch state and partition sizes
func (s *CouponService) Status(ctx context.Context) (*model.StoreStatus, error) {
	active, err := s.repo.Count(ctx, model.CouponFilter{Deleted: lo.ToPtr(false)})
	if err != nil {
		return nil, err
	}
	deleted, err := s.repo.Count(ctx, model.CouponFilter{Deleted: lo.ToPtr(true)})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	status := &model.StoreStatus{
		State:   s.state,
		Active:  active,
		Deleted: deleted,
	}
	if s.completedAt != nil {
		status.CompletedAt = lo.ToPtr(*s.completedAt)
	}
	return status, nil
}
