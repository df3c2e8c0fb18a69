package quotes

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/shared"
)

const testCatalog = `
version: "%s"
website:
  base_cost: %d
  entries:
    - {key: blog, label: Blog, unit_price: 8000, recurrence: one_time}
    - {key: care_basic, label: Basic care plan, unit_price: 3000, recurrence: monthly}
software:
  audit_price: 50000
  discovery_fee: 25000
  tiers:
    simple: {min: 150000, max: 300000}
    medium: {min: 300000, max: 700000}
    complex: {min: 700000, max: 1500000}
`

func catalogVersion(t require.TestingT, version string, base int) *pricing.Catalog {
	cat, err := pricing.ParseCatalog([]byte(fmt.Sprintf(testCatalog, version, base)))
	require.NoError(t, err)
	return cat
}

type QuoteServiceSuite struct {
	suite.Suite

	ctx      context.Context
	repo     *memoryRepo
	history  *memoryHistory
	notifier *recordingNotifier
	catalogs *pricing.CatalogStore
	service  *Service
	owner    shared.Actor
	admin    shared.Actor
	now      time.Time
}

func TestQuoteServiceSuite(t *testing.T) {
	suite.Run(t, new(QuoteServiceSuite))
}

func (s *QuoteServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.repo = newMemoryRepo()
	s.history = &memoryHistory{}
	s.notifier = &recordingNotifier{}
	s.catalogs = pricing.NewCatalogStore(catalogVersion(s.T(), "v1", 30000))
	s.now = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	s.service = NewService(s.repo, s.catalogs, Options{
		Notifier: s.notifier,
		History:  s.history,
		Clock:    func() time.Time { return s.now },
	})
	s.owner = shared.Actor{UserID: uuid.New(), Role: shared.RoleClient}
	s.admin = shared.Actor{UserID: uuid.New(), Role: shared.RoleAdmin}
}

func (s *QuoteServiceSuite) draft(sel pricing.Selection) *Quote {
	q, err := s.service.CreateDraft(s.ctx, s.owner, sel)
	s.Require().NoError(err)
	return q
}

func (s *QuoteServiceSuite) accepted(sel pricing.Selection) *Quote {
	q := s.draft(sel)
	_, err := s.service.Submit(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	_, err = s.service.StartReview(s.ctx, s.admin, q.ID)
	s.Require().NoError(err)
	q, err = s.service.Accept(s.ctx, s.admin, q.ID)
	s.Require().NoError(err)
	return q
}

func (s *QuoteServiceSuite) TestCreateDraftPricesSelection() {
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{HasBlog: true, CarePlan: pricing.TierBasic}))

	s.Equal(StatusDraft, q.Status)
	s.Equal(s.owner.UserID, q.UserID)
	s.Equal(pricing.ServiceWebsite, q.ServiceType)
	s.Equal(pricing.KES(38000), q.OneTimeTotal)
	s.Equal(pricing.KES(3000), q.MonthlyTotal)
	s.Equal(pricing.KES(36000), q.YearlyTotal)
	s.Equal("v1", q.CatalogVersion)
	s.Len(q.Pricing.Breakdown, 3)
}

func (s *QuoteServiceSuite) TestCreateDraftRejectsBadSelection() {
	_, err := s.service.CreateDraft(s.ctx, s.owner, pricing.Selection{ServiceType: pricing.ServiceWebsite})
	s.Require().ErrorIs(err, shared.ErrInvalidInput)
	s.Require().ErrorIs(err, pricing.ErrInvalidSelection)

	_, err = s.service.CreateDraft(s.ctx, s.owner, pricing.NewWebsiteSelection(pricing.WebsiteSelection{HasGallery: true}))
	s.Require().ErrorIs(err, shared.ErrInvalidState)
	s.Require().ErrorIs(err, pricing.ErrUnknownCatalogKey)
}

func (s *QuoteServiceSuite) TestDraftRepricesThenFreezesOnSubmit() {
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	s.Equal(pricing.KES(30000), q.OneTimeTotal)

	s.catalogs.Replace(catalogVersion(s.T(), "v2", 40000))
	updated, err := s.service.UpdateSelection(s.ctx, s.owner, q.ID, pricing.NewWebsiteSelection(pricing.WebsiteSelection{HasBlog: true}))
	s.Require().NoError(err)
	s.Equal(pricing.KES(48000), updated.OneTimeTotal)
	s.Equal("v2", updated.CatalogVersion)

	submitted, err := s.service.Submit(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	s.Equal(StatusSubmitted, submitted.Status)
	s.Equal(pricing.KES(48000), submitted.OneTimeTotal)
	s.Require().NotNil(submitted.SubmittedAt)

	s.catalogs.Replace(catalogVersion(s.T(), "v3", 99000))
	got, err := s.service.Get(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	s.Equal(pricing.KES(48000), got.OneTimeTotal)
	s.Equal("v2", got.CatalogVersion)
	s.Equal(submitted.Pricing, got.Pricing)

	_, err = s.service.UpdateSelection(s.ctx, s.owner, q.ID, pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	s.Require().ErrorIs(err, ErrQuoteFrozen)
}

func (s *QuoteServiceSuite) TestSubmitNotifies() {
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	_, err := s.service.Submit(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)

	s.Require().Len(s.notifier.events, 1)
	ev := s.notifier.events[0]
	s.Equal(q.ID, ev.QuoteID)
	s.Equal(pricing.KES(30000), ev.OneTimeTotal)
	s.Equal(s.now, ev.SubmittedAt)
}

func (s *QuoteServiceSuite) TestSubmitSurvivesNotifierFailure() {
	s.notifier.err = errors.New("queue down")
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))

	submitted, err := s.service.Submit(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	s.Equal(StatusSubmitted, submitted.Status)
}

func (s *QuoteServiceSuite) TestRolesPerTransition() {
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	stranger := shared.Actor{UserID: uuid.New(), Role: shared.RoleClient}

	_, err := s.service.Submit(s.ctx, stranger, q.ID)
	s.Require().ErrorIs(err, ErrNotOwner)
	_, err = s.service.Submit(s.ctx, s.admin, q.ID)
	s.Require().ErrorIs(err, ErrNotOwner)

	_, err = s.service.StartReview(s.ctx, s.admin, q.ID)
	s.Require().ErrorIs(err, ErrInvalidTransition)

	_, err = s.service.Submit(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	_, err = s.service.StartReview(s.ctx, s.owner, q.ID)
	s.Require().ErrorIs(err, ErrAdminOnly)

	_, err = s.service.Accept(s.ctx, s.admin, q.ID)
	s.Require().ErrorIs(err, ErrInvalidTransition)

	reviewed, err := s.service.StartReview(s.ctx, s.admin, q.ID)
	s.Require().NoError(err)
	s.Equal(StatusInReview, reviewed.Status)
	s.Require().NotNil(reviewed.ReviewedBy)
	s.Equal(s.admin.UserID, *reviewed.ReviewedBy)

	_, err = s.service.Accept(s.ctx, s.owner, q.ID)
	s.Require().ErrorIs(err, ErrAdminOnly)
}

func (s *QuoteServiceSuite) TestRejectIsTerminal() {
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	_, err := s.service.Submit(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	_, err = s.service.StartReview(s.ctx, s.admin, q.ID)
	s.Require().NoError(err)

	_, err = s.service.Reject(s.ctx, s.admin, q.ID, "  ")
	s.Require().ErrorIs(err, shared.ErrInvalidInput)

	rejected, err := s.service.Reject(s.ctx, s.admin, q.ID, "budget too low")
	s.Require().NoError(err)
	s.Equal(StatusRejected, rejected.Status)
	s.Equal("budget too low", rejected.RejectionReason)
	s.Require().NotNil(rejected.DecidedAt)

	_, err = s.service.Accept(s.ctx, s.admin, q.ID)
	s.Require().ErrorIs(err, ErrInvalidTransition)

	_, err = s.service.ConvertToProject(s.ctx, s.admin, q.ID, "")
	s.Require().ErrorIs(err, ErrNotConvertible)
}

func (s *QuoteServiceSuite) TestConvertCreatesProject() {
	q := s.accepted(pricing.NewWebsiteSelection(pricing.WebsiteSelection{HasBlog: true, CarePlan: pricing.TierBasic}))

	_, err := s.service.ConvertToProject(s.ctx, s.owner, q.ID, "")
	s.Require().ErrorIs(err, ErrAdminOnly)

	p, err := s.service.ConvertToProject(s.ctx, s.admin, q.ID, "Acme site")
	s.Require().NoError(err)
	s.Equal("Acme site", p.Name)
	s.Equal(q.ID, p.QuoteID)
	s.Equal(s.owner.UserID, p.UserID)
	s.Equal(pricing.KES(38000), p.ContractValue)
	s.True(p.HasCarePlan)
	s.Equal("PENDING", string(p.Status))

	stored, err := s.service.Get(s.ctx, s.admin, q.ID)
	s.Require().NoError(err)
	s.Require().NotNil(stored.ProjectID)
	s.Equal(p.ID, *stored.ProjectID)

	_, err = s.service.ConvertToProject(s.ctx, s.admin, q.ID, "")
	s.Require().ErrorIs(err, ErrAlreadyConverted)
	s.Require().ErrorIs(err, shared.ErrConflict)
	s.Len(s.repo.projectsForQuote(q.ID), 1)
}

func (s *QuoteServiceSuite) TestConvertDefaultsName() {
	q := s.accepted(pricing.NewSoftwareSelection(pricing.SoftwareSelection{ProjectType: pricing.ProjectAudit}))

	p, err := s.service.ConvertToProject(s.ctx, s.admin, q.ID, " ")
	s.Require().NoError(err)
	s.Contains(p.Name, "software project")
	s.Equal(pricing.KES(50000), p.ContractValue)
	s.False(p.HasCarePlan)
}

func (s *QuoteServiceSuite) TestConcurrentConversionCreatesOneProject() {
	q := s.accepted(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))

	const attempts = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.service.ConvertToProject(s.ctx, s.admin, q.ID, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyConverted):
				conflicts++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	s.Equal(attempts-1, conflicts)
	s.Len(s.repo.projectsForQuote(q.ID), 1)
}

func (s *QuoteServiceSuite) TestConvertRespectsRedisLock() {
	mr := miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s.T().Cleanup(func() { _ = client.Close() })
	locker := shared.NewLocker(client, time.Minute)
	s.service.locker = locker

	q := s.accepted(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))

	release, err := locker.Acquire(s.ctx, shared.ConvertLockKey(q.ID))
	s.Require().NoError(err)
	_, err = s.service.ConvertToProject(s.ctx, s.admin, q.ID, "")
	s.Require().ErrorIs(err, ErrConversionInProgress)
	s.Empty(s.repo.projectsForQuote(q.ID))

	release(s.ctx)
	_, err = s.service.ConvertToProject(s.ctx, s.admin, q.ID, "")
	s.Require().NoError(err)
	s.False(mr.Exists(shared.ConvertLockKey(q.ID)), "lock released after conversion")
}

func (s *QuoteServiceSuite) TestGetAndList() {
	q := s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	other := shared.Actor{UserID: uuid.New(), Role: shared.RoleClient}
	_, err := s.service.CreateDraft(s.ctx, other, pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	s.Require().NoError(err)

	_, err = s.service.Get(s.ctx, other, q.ID)
	s.Require().ErrorIs(err, ErrNotOwner)
	_, err = s.service.Get(s.ctx, s.admin, q.ID)
	s.Require().NoError(err)
	_, err = s.service.Get(s.ctx, s.owner, uuid.New())
	s.Require().ErrorIs(err, shared.ErrNotFound)

	mine, err := s.service.ListMine(s.ctx, s.owner)
	s.Require().NoError(err)
	s.Len(mine, 1)

	_, err = s.service.ListAll(s.ctx, s.owner)
	s.Require().ErrorIs(err, ErrAdminOnly)
	all, err := s.service.ListAll(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *QuoteServiceSuite) TestHistoryTracksTransitions() {
	q := s.accepted(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))

	entries, err := s.service.History(s.ctx, s.owner, q.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	var path []string
	for _, e := range entries {
		path = append(path, e.To)
	}
	s.Equal([]string{"DRAFT", "SUBMITTED", "IN_REVIEW", "ACCEPTED"}, path)
	s.Equal(s.admin.UserID, entries[3].ActorID)
}

func (s *QuoteServiceSuite) TestFunnel() {
	s.accepted(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))
	s.draft(pricing.NewWebsiteSelection(pricing.WebsiteSelection{}))

	f, err := s.service.Funnel(s.ctx, s.admin)
	s.Require().NoError(err)
	s.Equal(2, f.Total)
	s.Equal(1, f.ByStatus[StatusAccepted])
	s.Equal(1, f.ByStatus[StatusDraft])
	s.Equal("100", f.AcceptanceRate.String())

	_, err = s.service.Funnel(s.ctx, s.owner)
	s.Require().ErrorIs(err, ErrAdminOnly)
}
