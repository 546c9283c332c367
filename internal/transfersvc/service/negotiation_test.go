package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubmgr/transfer-services/internal/comm"
	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
	"github.com/clubmgr/transfer-services/internal/transfersvc/store/memory"
)

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []comm.BidEvent
}

func (p *recordingPublisher) PublishBidEvent(event comm.BidEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	svc    *NegotiationService
	events *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewStore()
	events := &recordingPublisher{}
	svc := NewNegotiationService(s, s, s).WithEvents(events)
	return &fixture{store: s, svc: svc, events: events}
}

func (f *fixture) addClub(t *testing.T, clubID string, balance int64) {
	t.Helper()
	require.NoError(t, f.store.CreateAccount(context.Background(), clubID, balance))
}

func (f *fixture) addPlayer(t *testing.T, playerID, clubID string) {
	t.Helper()
	require.NoError(t, f.store.SetOwner(context.Background(), playerID, clubID))
}

func (f *fixture) balance(t *testing.T, clubID string) int64 {
	t.Helper()
	balance, err := f.store.GetBalance(context.Background(), clubID)
	require.NoError(t, err)
	return balance
}

func (f *fixture) owner(t *testing.T, playerID string) string {
	t.Helper()
	owner, err := f.store.OwnerOf(context.Background(), playerID)
	require.NoError(t, err)
	return owner
}

func TestProposeValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := f.svc.Propose(ctx, "buyer", "p1", 0, "offer")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
		_, err = f.svc.Propose(ctx, "buyer", "p1", -5, "offer")
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	})

	t.Run("missing description", func(t *testing.T) {
		_, err := f.svc.Propose(ctx, "buyer", "p1", 100, "   ")
		assert.ErrorIs(t, err, models.ErrMissingDescription)
	})

	t.Run("self bid", func(t *testing.T) {
		_, err := f.svc.Propose(ctx, "seller", "p1", 100, "offer")
		assert.ErrorIs(t, err, models.ErrSelfBid)
	})

	t.Run("unassigned player", func(t *testing.T) {
		_, err := f.svc.Propose(ctx, "buyer", "free-agent", 100, "offer")
		assert.ErrorIs(t, err, models.ErrPlayerUnassigned)
	})

	t.Run("valid proposal records proposal-time seller", func(t *testing.T) {
		bid, err := f.svc.Propose(ctx, "buyer", "p1", 100, "good player")
		require.NoError(t, err)
		assert.Equal(t, models.BidPending, bid.State)
		assert.Equal(t, "seller", bid.SellerClubID)
		assert.NotZero(t, bid.ID)
		// no reservation at proposal time
		assert.Equal(t, int64(1000), f.balance(t, "buyer"))
	})
}

func TestFullNegotiation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 100000000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bid, err := f.svc.Propose(ctx, "buyer", "p1", 50000000, "star striker")
	require.NoError(t, err)

	bid, err = f.svc.SellerDecision(ctx, bid.ID, "seller", true)
	require.NoError(t, err)
	assert.Equal(t, models.BidSellerAccepted, bid.State)
	assert.NotNil(t, bid.SellerDecisionAt)
	// still no reservation after acceptance
	assert.Equal(t, int64(100000000), f.balance(t, "buyer"))

	bid, err = f.svc.AdminDecision(ctx, bid.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.BidApproved, bid.State)
	assert.NotNil(t, bid.AdminDecisionAt)

	assert.Equal(t, int64(50000000), f.balance(t, "buyer"))
	assert.Equal(t, int64(50000000), f.balance(t, "seller"))
	assert.Equal(t, "buyer", f.owner(t, "p1"))

	assert.Equal(t, []string{
		comm.EventBidProposed,
		comm.EventSellerAccepted,
		comm.EventTransferDone,
	}, f.events.types())
}

func TestAdminOverrideMakesBidConflict(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 100000000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bid, err := f.svc.Propose(ctx, "buyer", "p1", 50000000, "star striker")
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bid.ID, "seller", true)
	require.NoError(t, err)

	// admin reassigns the player directly before approving
	require.NoError(t, f.store.SetOwner(ctx, "p1", "third"))

	_, err = f.svc.AdminDecision(ctx, bid.ID, true)
	assert.ErrorIs(t, err, models.ErrOwnershipConflict)

	assert.Equal(t, int64(100000000), f.balance(t, "buyer"))
	assert.Equal(t, int64(0), f.balance(t, "seller"))
	assert.Equal(t, "third", f.owner(t, "p1"))

	// left for the admin to resolve, not terminal
	stored, err := f.svc.Get(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidSellerAccepted, stored.State)
}

func TestInsufficientFundsAtSettlement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 10000000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	// proposing beyond the balance is allowed, funds are only checked
	// at settlement
	bid, err := f.svc.Propose(ctx, "buyer", "p1", 50000000, "stretch offer")
	require.NoError(t, err)

	_, err = f.svc.SellerDecision(ctx, bid.ID, "seller", true)
	require.NoError(t, err)
	assert.Equal(t, int64(10000000), f.balance(t, "buyer"))

	_, err = f.svc.AdminDecision(ctx, bid.ID, true)
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)

	stored, err := f.svc.Get(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidFailedInsufficient, stored.State)

	assert.Equal(t, int64(10000000), f.balance(t, "buyer"))
	assert.Equal(t, int64(0), f.balance(t, "seller"))
	assert.Equal(t, "seller", f.owner(t, "p1"))

	t.Run("terminal, no retry", func(t *testing.T) {
		_, err := f.svc.AdminDecision(ctx, bid.ID, true)
		assert.ErrorIs(t, err, models.ErrInvalidState)
	})
}

func TestCompetingBids(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "bidder-a", 1000)
	f.addClub(t, "bidder-b", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bidA, err := f.svc.Propose(ctx, "bidder-a", "p1", 500, "offer a")
	require.NoError(t, err)
	bidB, err := f.svc.Propose(ctx, "bidder-b", "p1", 600, "offer b")
	require.NoError(t, err)

	_, err = f.svc.SellerDecision(ctx, bidA.ID, "seller", true)
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bidB.ID, "seller", false)
	require.NoError(t, err)

	_, err = f.svc.AdminDecision(ctx, bidA.ID, true)
	require.NoError(t, err)

	storedB, err := f.svc.Get(ctx, bidB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidSellerRejected, storedB.State)

	// a rejected bid can never be decided again
	_, err = f.svc.AdminDecision(ctx, bidB.ID, true)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	assert.Equal(t, "bidder-a", f.owner(t, "p1"))
}

func TestStaleBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bid, err := f.svc.Propose(ctx, "buyer", "p1", 500, "offer")
	require.NoError(t, err)

	require.NoError(t, f.store.SetOwner(ctx, "p1", "third"))

	t.Run("old owner cannot decide", func(t *testing.T) {
		_, err := f.svc.SellerDecision(ctx, bid.ID, "seller", true)
		assert.ErrorIs(t, err, models.ErrStaleBid)
	})

	t.Run("new owner cannot act on the stale bid either", func(t *testing.T) {
		_, err := f.svc.SellerDecision(ctx, bid.ID, "third", true)
		assert.ErrorIs(t, err, models.ErrStaleBid)
	})

	stored, err := f.svc.Get(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidPending, stored.State)
}

func TestIdempotentTerminalDecisions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bid, err := f.svc.Propose(ctx, "buyer", "p1", 500, "offer")
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bid.ID, "seller", true)
	require.NoError(t, err)
	_, err = f.svc.AdminDecision(ctx, bid.ID, true)
	require.NoError(t, err)

	buyerBalance := f.balance(t, "buyer")
	sellerBalance := f.balance(t, "seller")

	_, err = f.svc.SellerDecision(ctx, bid.ID, "buyer", false)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.svc.AdminDecision(ctx, bid.ID, true)
	assert.ErrorIs(t, err, models.ErrInvalidState)
	_, err = f.svc.AdminDecision(ctx, bid.ID, false)
	assert.ErrorIs(t, err, models.ErrInvalidState)

	assert.Equal(t, buyerBalance, f.balance(t, "buyer"))
	assert.Equal(t, sellerBalance, f.balance(t, "seller"))
	assert.Equal(t, "buyer", f.owner(t, "p1"))
}

func TestAdminReject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bid, err := f.svc.Propose(ctx, "buyer", "p1", 500, "offer")
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bid.ID, "seller", true)
	require.NoError(t, err)

	bid, err = f.svc.AdminDecision(ctx, bid.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.BidRejected, bid.State)

	assert.Equal(t, int64(1000), f.balance(t, "buyer"))
	assert.Equal(t, "seller", f.owner(t, "p1"))
}

func TestConcurrentAdminApprovals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "buyer", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bid, err := f.svc.Propose(ctx, "buyer", "p1", 500, "offer")
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bid.ID, "seller", true)
	require.NoError(t, err)

	const attempts = 8
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AdminDecision(ctx, bid.ID, true)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, models.ErrInvalidState)
		}
	}
	assert.Equal(t, 1, succeeded)

	// exactly one settlement applied
	assert.Equal(t, int64(500), f.balance(t, "buyer"))
	assert.Equal(t, int64(500), f.balance(t, "seller"))
	assert.Equal(t, "buyer", f.owner(t, "p1"))
}

func TestConcurrentSettlementsSamePlayer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addClub(t, "bidder-a", 1000)
	f.addClub(t, "bidder-b", 1000)
	f.addClub(t, "seller", 0)
	f.addPlayer(t, "p1", "seller")

	bidA, err := f.svc.Propose(ctx, "bidder-a", "p1", 500, "offer a")
	require.NoError(t, err)
	bidB, err := f.svc.Propose(ctx, "bidder-b", "p1", 700, "offer b")
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bidA.ID, "seller", true)
	require.NoError(t, err)
	_, err = f.svc.SellerDecision(ctx, bidB.ID, "seller", true)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, id := range []int64{bidA.ID, bidB.ID} {
		wg.Add(1)
		go func(i int, id int64) {
			defer wg.Done()
			_, errs[i] = f.svc.AdminDecision(ctx, id, true)
		}(i, id)
	}
	wg.Wait()

	// one settles, the other sees the player already gone
	okCount, conflictCount := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			okCount++
		case assert.ErrorIs(t, err, models.ErrOwnershipConflict):
			conflictCount++
		}
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, conflictCount)

	// money moved exactly once and ownership is single
	total := f.balance(t, "bidder-a") + f.balance(t, "bidder-b") + f.balance(t, "seller")
	assert.Equal(t, int64(2000), total)
	owner := f.owner(t, "p1")
	assert.Contains(t, []string{"bidder-a", "bidder-b"}, owner)
}

func TestConservationAcrossSettlements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	clubs := []string{"club-a", "club-b", "club-c", "club-d"}
	for _, c := range clubs {
		f.addClub(t, c, 100000)
	}
	players := []string{"p1", "p2", "p3", "p4", "p5", "p6"}
	for i, p := range players {
		f.addPlayer(t, p, clubs[i%len(clubs)])
	}

	for round := 0; round < 20; round++ {
		p := players[round%len(players)]
		owner := f.owner(t, p)
		bidder := clubs[(round+1)%len(clubs)]
		if bidder == owner {
			bidder = clubs[(round+2)%len(clubs)]
		}

		bid, err := f.svc.Propose(ctx, bidder, p, int64(1000+round*17), "round offer")
		require.NoError(t, err)
		_, err = f.svc.SellerDecision(ctx, bid.ID, owner, true)
		require.NoError(t, err)
		_, err = f.svc.AdminDecision(ctx, bid.ID, true)
		require.NoError(t, err)
	}

	var total int64
	for _, c := range clubs {
		balance := f.balance(t, c)
		assert.GreaterOrEqual(t, balance, int64(0))
		total += balance
	}
	assert.Equal(t, int64(400000), total)

	for _, p := range players {
		assert.NotEmpty(t, f.owner(t, p))
	}
}
