package service

import (
	"context"
	"coupon-manager/internal/model"
	"coupon-manager/internal/repository"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	ierr "coupon-manager/pkg/errors"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeGateway answers like the placeholder endpoint: every create gets
// the same id unless nextID is changed.
type fakeGateway struct {
	mu        sync.Mutex
	posts     []model.Post
	nextID    int
	listErr   error
	createErr error
	updateErr error
	listLimit int
	created   []model.Post
	updated   []model.Post
}

func (g *fakeGateway) ListPosts(_ context.Context, limit int) ([]model.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listLimit = limit
	if g.listErr != nil {
		return nil, g.listErr
	}
	return g.posts, nil
}

func (g *fakeGateway) CreatePost(_ context.Context, post model.Post) (*model.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, post)
	post.ID = g.nextID
	return &post, nil
}

func (g *fakeGateway) UpdatePost(_ context.Context, post model.Post) (*model.Post, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.updateErr != nil {
		return nil, g.updateErr
	}
	g.updated = append(g.updated, post)
	return &post, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	notices []model.Notice
}

func (n *recordingNotifier) Notify(level model.NoticeLevel, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, model.Notice{Level: level, Message: message})
}

func (n *recordingNotifier) last() model.Notice {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.notices) == 0 {
		return model.Notice{}
	}
	return n.notices[len(n.notices)-1]
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.notices)
}

type CouponServiceSuite struct {
	suite.Suite
	ctx      context.Context
	repo     repository.CouponRepository
	gateway  *fakeGateway
	notifier *recordingNotifier
	service  *CouponService
	seq      int
}

func TestCouponService(t *testing.T) {
	suite.Run(t, new(CouponServiceSuite))
}

// 23:30 at UTC-5 is already the next day in UTC
var testNow = time.Date(2024, 3, 10, 23, 30, 0, 0, time.FixedZone("EST", -5*60*60))

func (s *CouponServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = repository.NewCouponRepository()
	s.gateway = &fakeGateway{nextID: 101}
	s.notifier = &recordingNotifier{}
	s.seq = 0
	s.service = NewCouponService(s.repo,
		WithGateway(s.gateway),
		WithNotifier(s.notifier),
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string {
			s.seq++
			return fmt.Sprintf("local-%d", s.seq)
		}),
	)
}

func (s *CouponServiceSuite) seed(n int) {
	for i := 1; i <= n; i++ {
		s.gateway.posts = append(s.gateway.posts, model.Post{ID: i, UserID: 1, Title: "t", Body: "b"})
	}
	s.Require().NoError(s.service.Initialize(s.ctx))
}

func validDraft() model.CouponDraft {
	return model.CouponDraft{
		Code:        "SHIPFREE",
		ExpiryDate:  "2024-12-31",
		Description: "Free shipping",
	}
}

func (s *CouponServiceSuite) TestInitializeSeedsFromPosts() {
	s.seed(5)

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 5)
	s.Equal(5, s.gateway.listLimit)

	s.Equal("1", active[0].ID)
	s.Equal("DEAL10", active[0].Code)
	s.Equal("2024-03-12", active[0].ExpiryDate)
	s.Equal("Get 10% off your next purchase of electronics.", active[0].Description)
	s.False(active[0].IsDeleted)

	s.Equal("5", active[4].ID)
	s.Equal("DEAL50", active[4].Code)
	s.Equal("2024-03-16", active[4].ExpiryDate)
	s.Equal("Buy one get one free on selected drinks.", active[4].Description)

	deleted, err := s.service.ListDeleted(s.ctx)
	s.Require().NoError(err)
	s.Empty(deleted)

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.InitStateReady, status.State)
	s.Equal(5, status.Active)
	s.NotNil(status.CompletedAt)
}

func (s *CouponServiceSuite) TestInitializeFallbackDescription() {
	s.seed(7)

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 7)
	s.Equal("DEAL60", active[5].Code)
	s.Equal("Special offer, enjoy!", active[5].Description)
	s.Equal("Special offer, enjoy!", active[6].Description)
}

func (s *CouponServiceSuite) TestInitializeSkipsRepeatedPostIDs() {
	s.gateway.posts = []model.Post{{ID: 1}, {ID: 1}, {ID: 2}, {}}
	s.Require().NoError(s.service.Initialize(s.ctx))

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 3)
	s.Equal("1", active[0].ID)
	s.Equal("2", active[1].ID)
	s.Equal("DEAL30", active[1].Code)
	s.Equal("local-1", active[2].ID)
	s.Zero(active[2].RemoteID)
}

func (s *CouponServiceSuite) TestInitializeFailureLeavesCollectionEmpty() {
	s.gateway.listErr = ierr.NewError("boom").Mark(ierr.ErrExternalCall)

	err := s.service.Initialize(s.ctx)
	s.Require().Error(err)
	s.True(ierr.IsExternalCall(err))

	active, _ := s.service.ListActive(s.ctx)
	s.Empty(active)
	s.Equal(model.NoticeError, s.notifier.last().Level)
	s.Equal("Failed to load coupons.", s.notifier.last().Message)

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.InitStateFailed, status.State)

	// the store stays usable
	_, err = s.service.Add(s.ctx, validDraft())
	s.NoError(err)
}

func (s *CouponServiceSuite) TestInitializeRunsOnce() {
	s.seed(2)
	s.gateway.posts = append(s.gateway.posts, model.Post{ID: 3})

	s.NoError(s.service.Initialize(s.ctx))
	active, _ := s.service.ListActive(s.ctx)
	s.Len(active, 2)
}

func (s *CouponServiceSuite) TestInitializeReplacesExistingCollection() {
	_, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)

	s.seed(2)
	active, _ := s.service.ListActive(s.ctx)
	s.Require().Len(active, 2)
	s.Equal("DEAL10", active[0].Code)
}

func (s *CouponServiceSuite) TestInitializeOffline() {
	svc := NewCouponService(repository.NewCouponRepository())
	s.Require().NoError(svc.Initialize(s.ctx))

	status, err := svc.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.InitStateReady, status.State)
	s.Zero(status.Active)
}

func (s *CouponServiceSuite) TestStatusPendingBeforeInitialize() {
	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.InitStatePending, status.State)
	s.Nil(status.CompletedAt)
}

func (s *CouponServiceSuite) TestAdd() {
	s.seed(5)

	coupon, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	s.Equal("101", coupon.ID)
	s.Equal(101, coupon.RemoteID)
	s.Equal("SHIPFREE", coupon.Code)
	s.False(coupon.IsDeleted)

	active, _ := s.service.ListActive(s.ctx)
	s.Require().Len(active, 6)
	s.Equal("101", active[5].ID)

	s.Require().Len(s.gateway.created, 1)
	s.Equal(model.Post{UserID: 1, Title: "Free shipping", Body: "SHIPFREE"}, s.gateway.created[0])
	s.Equal(model.Notice{Level: model.NoticeSuccess, Message: "Coupon added successfully!"}, s.notifier.last())
}

func (s *CouponServiceSuite) TestAddTrimsFields() {
	coupon, err := s.service.Add(s.ctx, model.CouponDraft{
		Code:        "  SHIPFREE ",
		ExpiryDate:  " 2024-12-31",
		Description: "Free shipping  ",
	})
	s.Require().NoError(err)
	s.Equal("SHIPFREE", coupon.Code)
	s.Equal("2024-12-31", coupon.ExpiryDate)
	s.Equal("Free shipping", coupon.Description)
}

func (s *CouponServiceSuite) TestAddRepeatedRemoteIDGetsLocalID() {
	first, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	second, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)

	s.Equal("101", first.ID)
	s.Equal("local-1", second.ID)
	s.Equal(101, second.RemoteID)
}

func (s *CouponServiceSuite) TestIDsAreNotReusedAcrossInitialize() {
	s.gateway.posts = []model.Post{{ID: 1}}

	first, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	s.Equal("101", first.ID)

	s.Require().NoError(s.service.Initialize(s.ctx))
	_, err = s.service.Get(s.ctx, first.ID)
	s.True(ierr.IsNotFound(err))

	second, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)
	s.Equal(101, second.RemoteID)

	_, err = s.service.Get(s.ctx, first.ID)
	s.True(ierr.IsNotFound(err))
}

func (s *CouponServiceSuite) TestSeededPostIDAlreadyIssued() {
	s.gateway.nextID = 1
	added, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	s.Equal("1", added.ID)

	s.gateway.posts = []model.Post{{ID: 1}, {ID: 2}}
	s.Require().NoError(s.service.Initialize(s.ctx))

	active, err := s.service.ListActive(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 2)
	s.Equal("local-1", active[0].ID)
	s.Equal(1, active[0].RemoteID)
	s.Equal("2", active[1].ID)
}

func (s *CouponServiceSuite) TestNilNotifierIsIgnored() {
	svc := NewCouponService(repository.NewCouponRepository(), WithNotifier(nil))

	s.NotPanics(func() {
		_, err := svc.Add(s.ctx, validDraft())
		s.NoError(err)
	})
}

func (s *CouponServiceSuite) TestAddValidation() {
	s.seed(5)

	tests := []struct {
		name  string
		draft model.CouponDraft
		hint  string
	}{
		{
			name:  "missing_code",
			draft: model.CouponDraft{ExpiryDate: "2024-12-31", Description: "x"},
			hint:  "Please fill in all fields for the new coupon.",
		},
		{
			name:  "whitespace_description",
			draft: model.CouponDraft{Code: "A", ExpiryDate: "2024-12-31", Description: "   "},
			hint:  "Please fill in all fields for the new coupon.",
		},
		{
			name:  "empty_draft",
			draft: model.CouponDraft{},
			hint:  "Please fill in all fields for the new coupon.",
		},
		{
			name:  "malformed_expiry",
			draft: model.CouponDraft{Code: "A", ExpiryDate: "31/12/2024", Description: "x"},
			hint:  "Expiry date must be a calendar date (YYYY-MM-DD).",
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			before := s.notifier.count()

			_, err := s.service.Add(s.ctx, tt.draft)
			s.Require().Error(err)
			s.True(ierr.IsValidation(err))
			s.Equal(tt.hint, ierr.DisplayMessage(err, ""))

			s.Equal(before, s.notifier.count())
			s.Empty(s.gateway.created)
			active, _ := s.service.ListActive(s.ctx)
			s.Len(active, 5)
		})
	}
}

func (s *CouponServiceSuite) TestAddRemoteFailure() {
	s.seed(5)
	s.gateway.createErr = ierr.NewError("down").Mark(ierr.ErrExternalCall)

	_, err := s.service.Add(s.ctx, validDraft())
	s.Require().Error(err)
	s.True(ierr.IsExternalCall(err))

	active, _ := s.service.ListActive(s.ctx)
	s.Len(active, 5)
	s.Equal(model.Notice{Level: model.NoticeError, Message: "Failed to add coupon."}, s.notifier.last())
}

func (s *CouponServiceSuite) TestAddOfflineUsesLocalIDs() {
	svc := NewCouponService(repository.NewCouponRepository())

	first, err := svc.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	second, err := svc.Add(s.ctx, validDraft())
	s.Require().NoError(err)

	s.NotEmpty(first.ID)
	s.NotEqual(first.ID, second.ID)
	s.Zero(first.RemoteID)
}

func (s *CouponServiceSuite) TestEdit() {
	s.seed(5)

	draft := model.CouponDraft{Code: "DEAL20X", ExpiryDate: "2025-01-01", Description: "Better deal"}
	updated, err := s.service.Edit(s.ctx, "2", draft)
	s.Require().NoError(err)
	s.Equal("2", updated.ID)
	s.Equal("DEAL20X", updated.Code)
	s.Equal("2025-01-01", updated.ExpiryDate)
	s.Equal("Better deal", updated.Description)

	active, _ := s.service.ListActive(s.ctx)
	s.Require().Len(active, 5)
	s.Equal("DEAL20X", active[1].Code)
	s.Equal("DEAL10", active[0].Code)

	s.Require().Len(s.gateway.updated, 1)
	s.Equal(model.Post{ID: 2, UserID: 1, Title: "Better deal", Body: "DEAL20X"}, s.gateway.updated[0])
	s.Equal(model.Notice{Level: model.NoticeSuccess, Message: "Coupon updated successfully!"}, s.notifier.last())
}

func (s *CouponServiceSuite) TestEditKeepsDeletedFlag() {
	s.seed(2)
	_, err := s.service.SoftDelete(s.ctx, "1")
	s.Require().NoError(err)

	updated, err := s.service.Edit(s.ctx, "1", validDraft())
	s.Require().NoError(err)
	s.True(updated.IsDeleted)

	deleted, _ := s.service.ListDeleted(s.ctx)
	s.Require().Len(deleted, 1)
	s.Equal("SHIPFREE", deleted[0].Code)
}

func (s *CouponServiceSuite) TestEditValidation() {
	s.seed(5)

	_, err := s.service.Edit(s.ctx, "1", model.CouponDraft{Code: "", ExpiryDate: "2025-01-01", Description: "x"})
	s.Require().Error(err)
	s.True(ierr.IsValidation(err))
	s.Equal("Please fill in all fields for the coupon update.", ierr.DisplayMessage(err, ""))

	current, err := s.service.Get(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal("DEAL10", current.Code)
	s.Empty(s.gateway.updated)
}

func (s *CouponServiceSuite) TestEditUnknownID() {
	s.seed(1)

	// unknown id wins over an invalid draft
	_, err := s.service.Edit(s.ctx, "999", model.CouponDraft{})
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))
	s.Empty(s.gateway.updated)
}

func (s *CouponServiceSuite) TestEditOnEmptyCollection() {
	_, err := s.service.Edit(s.ctx, "999", validDraft())
	s.Require().Error(err)
	s.True(ierr.IsNotFound(err))

	status, err := s.service.Status(s.ctx)
	s.Require().NoError(err)
	s.Zero(status.Active)
	s.Zero(status.Deleted)
	s.Empty(s.gateway.updated)
}

func (s *CouponServiceSuite) TestEditRemoteFailure() {
	s.seed(3)
	s.gateway.updateErr = ierr.NewError("down").Mark(ierr.ErrExternalCall)

	_, err := s.service.Edit(s.ctx, "3", validDraft())
	s.Require().Error(err)
	s.True(ierr.IsExternalCall(err))

	current, _ := s.service.Get(s.ctx, "3")
	s.Equal("DEAL30", current.Code)
	s.Equal(model.Notice{Level: model.NoticeError, Message: "Failed to update coupon."}, s.notifier.last())
}

func (s *CouponServiceSuite) TestEditLocalOnlyCouponSkipsRemote() {
	s.gateway.nextID = 0
	added, err := s.service.Add(s.ctx, validDraft())
	s.Require().NoError(err)
	s.Equal("local-1", added.ID)

	_, err = s.service.Edit(s.ctx, added.ID, model.CouponDraft{Code: "B", ExpiryDate: "2025-02-02", Description: "d"})
	s.Require().NoError(err)
	s.Empty(s.gateway.updated)
}

func (s *CouponServiceSuite) TestSoftDeleteAndRestore() {
	s.seed(5)

	deleted, err := s.service.SoftDelete(s.ctx, "1")
	s.Require().NoError(err)
	s.True(deleted.IsDeleted)
	s.Equal(model.Notice{Level: model.NoticeSuccess, Message: "Coupon marked as deleted!"}, s.notifier.last())

	active, _ := s.service.ListActive(s.ctx)
	s.Len(active, 4)
	removed, _ := s.service.ListDeleted(s.ctx)
	s.Require().Len(removed, 1)
	s.Equal("1", removed[0].ID)

	restored, err := s.service.Restore(s.ctx, "1")
	s.Require().NoError(err)
	s.False(restored.IsDeleted)
	s.Equal(model.Notice{Level: model.NoticeSuccess, Message: `Coupon "DEAL10" restored!`}, s.notifier.last())

	// original position is kept
	active, _ = s.service.ListActive(s.ctx)
	s.Require().Len(active, 5)
	s.Equal("1", active[0].ID)
	removed, _ = s.service.ListDeleted(s.ctx)
	s.Empty(removed)
}

func (s *CouponServiceSuite) TestRestoreKeepsFields() {
	s.seed(3)
	_, err := s.service.Edit(s.ctx, "2", model.CouponDraft{Code: "KEEP", ExpiryDate: "2025-05-05", Description: "kept"})
	s.Require().NoError(err)

	before, err := s.service.Get(s.ctx, "2")
	s.Require().NoError(err)

	_, err = s.service.SoftDelete(s.ctx, "2")
	s.Require().NoError(err)
	_, err = s.service.Restore(s.ctx, "2")
	s.Require().NoError(err)

	after, err := s.service.Get(s.ctx, "2")
	s.Require().NoError(err)
	if diff := cmp.Diff(before, after); diff != "" {
		s.Failf("restore changed the coupon", "(-before +after):\n%s", diff)
	}
}

func (s *CouponServiceSuite) TestSoftDeleteIsIdempotent() {
	s.seed(2)

	_, err := s.service.SoftDelete(s.ctx, "2")
	s.Require().NoError(err)
	_, err = s.service.SoftDelete(s.ctx, "2")
	s.Require().NoError(err)

	removed, _ := s.service.ListDeleted(s.ctx)
	s.Len(removed, 1)

	restored, err := s.service.Restore(s.ctx, "1")
	s.Require().NoError(err)
	s.False(restored.IsDeleted)
}

func (s *CouponServiceSuite) TestDeleteAndRestoreUnknownID() {
	s.seed(1)

	_, err := s.service.SoftDelete(s.ctx, "404")
	s.True(ierr.IsNotFound(err))
	_, err = s.service.Restore(s.ctx, "404")
	s.True(ierr.IsNotFound(err))

	active, _ := s.service.ListActive(s.ctx)
	s.Len(active, 1)
}

func (s *CouponServiceSuite) TestListsAreSnapshots() {
	s.seed(1)

	active, _ := s.service.ListActive(s.ctx)
	active[0].Code = "MUTATED"

	current, err := s.service.Get(s.ctx, "1")
	s.Require().NoError(err)
	s.Equal("DEAL10", current.Code)
}

func (s *CouponServiceSuite) TestPartitionsCoverCollection() {
	s.seed(5)
	for _, id := range []string{"1", "3", "5"} {
		_, err := s.service.SoftDelete(s.ctx, id)
		s.Require().NoError(err)
	}
	_, err := s.service.Restore(s.ctx, "3")
	s.Require().NoError(err)

	active, _ := s.service.ListActive(s.ctx)
	removed, _ := s.service.ListDeleted(s.ctx)
	s.Len(active, 3)
	s.Len(removed, 2)

	ids := make(map[string]bool)
	for _, c := range append(active, removed...) {
		s.False(ids[c.ID], "id %s listed twice", c.ID)
		ids[c.ID] = true
	}
	s.Len(ids, 5)
}

func TestConcurrentAddsGetUniqueIDs(t *testing.T) {
	gateway := &fakeGateway{nextID: 101}
	svc := NewCouponService(repository.NewCouponRepository(), WithGateway(gateway))

	const workers = 50
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Add(context.Background(), model.CouponDraft{
				Code:        "C" + strconv.Itoa(i),
				ExpiryDate:  "2025-01-01",
				Description: "concurrent",
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	active, err := svc.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, workers)

	seen := make(map[string]struct{}, workers)
	for _, c := range active {
		seen[c.ID] = struct{}{}
	}
	assert.Len(t, seen, workers)
}
