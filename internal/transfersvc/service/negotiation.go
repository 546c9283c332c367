package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/clubmgr/transfer-services/internal/comm"
	"github.com/clubmgr/transfer-services/internal/transfersvc/models"
)

// BidStore holds bids and enforces state transitions as compare-and-set
// updates, so concurrent decisions on the same bid cannot both apply.
type BidStore interface {
	Create(ctx context.Context, bid *models.Bid) error
	Get(ctx context.Context, id int64) (*models.Bid, error)
	UpdateState(ctx context.Context, id int64, from, to models.BidState, decidedAt time.Time) error
	ListByState(ctx context.Context, state models.BidState) ([]*models.Bid, error)
	ListByBidder(ctx context.Context, clubID string) ([]*models.Bid, error)
	ListIncoming(ctx context.Context, clubID string) ([]*models.Bid, error)
	List(ctx context.Context) ([]*models.Bid, error)
}

// Settler applies a seller-accepted bid as one atomic unit: owner
// re-check, funds check, debit, credit, roster move, bid finalization.
type Settler interface {
	Settle(ctx context.Context, bid *models.Bid) error
}

// EventPublisher fans a bid transition out to external collaborators
// (notification service, live dashboards). Fire and forget.
type EventPublisher interface {
	PublishBidEvent(event comm.BidEvent)
}

// AuditRecorder keeps the transfer log.
type AuditRecorder interface {
	Record(ctx context.Context, entry *models.TransferLog) error
}

// NegotiationService drives a bid from proposal through the seller and
// admin decisions to settlement.
type NegotiationService struct {
	bids    BidStore
	roster  RosterStore
	settler Settler
	events  EventPublisher
	audit   AuditRecorder
}

func NewNegotiationService(bids BidStore, roster RosterStore, settler Settler) *NegotiationService {
	return &NegotiationService{bids: bids, roster: roster, settler: settler}
}

// WithEvents wires the notification publisher. Optional.
func (s *NegotiationService) WithEvents(events EventPublisher) *NegotiationService {
	s.events = events
	return s
}

// WithAudit wires the transfer log recorder. Optional.
func (s *NegotiationService) WithAudit(audit AuditRecorder) *NegotiationService {
	s.audit = audit
	return s
}

// Propose creates a pending bid by bidderClubID for playerID. The
// current owner is recorded as the seller; no funds are reserved.
func (s *NegotiationService) Propose(ctx context.Context, bidderClubID, playerID string, amount int64, description string) (*models.Bid, error) {
	if amount <= 0 {
		return nil, models.ErrInvalidAmount
	}
	if strings.TrimSpace(description) == "" {
		return nil, models.ErrMissingDescription
	}

	owner, err := s.roster.OwnerOf(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner of player %s: %w", playerID, err)
	}
	if owner == "" {
		return nil, models.ErrPlayerUnassigned
	}
	if owner == bidderClubID {
		return nil, models.ErrSelfBid
	}

	bid := &models.Bid{
		BidderClubID: bidderClubID,
		PlayerID:     playerID,
		SellerClubID: owner,
		Amount:       amount,
		Description:  description,
		State:        models.BidPending,
	}
	if err := s.bids.Create(ctx, bid); err != nil {
		return nil, err
	}

	log.Infof("bid %d proposed: %s offers %d for player %s of %s",
		bid.ID, bidderClubID, amount, playerID, owner)
	s.notify(ctx, bid, comm.EventBidProposed, "")
	return bid, nil
}

// SellerDecision accepts or rejects a pending bid. The acting club must
// be the current owner of the player; if ownership moved since the
// proposal the bid is stale and stays pending for the admin to find.
func (s *NegotiationService) SellerDecision(ctx context.Context, bidID int64, actingClubID string, accept bool) (*models.Bid, error) {
	bid, err := s.bids.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.State != models.BidPending {
		return nil, models.ErrInvalidState
	}

	owner, err := s.roster.OwnerOf(ctx, bid.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner of player %s: %w", bid.PlayerID, err)
	}
	if owner != actingClubID || owner != bid.SellerClubID {
		return nil, models.ErrStaleBid
	}

	to := models.BidSellerRejected
	event := comm.EventSellerRejected
	if accept {
		to = models.BidSellerAccepted
		event = comm.EventSellerAccepted
	}
	if err := s.bids.UpdateState(ctx, bidID, models.BidPending, to, time.Now()); err != nil {
		return nil, err
	}

	bid, err = s.bids.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	log.Infof("bid %d seller decision by %s: %s", bidID, actingClubID, to)
	s.notify(ctx, bid, event, "")
	return bid, nil
}

// AdminDecision resolves a seller-accepted bid. Approval settles money
// and roster atomically; a funds shortfall makes the bid terminal, an
// ownership conflict leaves it seller_accepted for the admin to
// resolve by hand.
func (s *NegotiationService) AdminDecision(ctx context.Context, bidID int64, approve bool) (*models.Bid, error) {
	bid, err := s.bids.Get(ctx, bidID)
	if err != nil {
		return nil, err
	}
	if bid.State != models.BidSellerAccepted {
		return nil, models.ErrInvalidState
	}

	if !approve {
		if err := s.bids.UpdateState(ctx, bidID, models.BidSellerAccepted, models.BidRejected, time.Now()); err != nil {
			return nil, err
		}
		bid, err = s.bids.Get(ctx, bidID)
		if err != nil {
			return nil, err
		}
		log.Infof("bid %d rejected by admin", bidID)
		s.notify(ctx, bid, comm.EventBidRejected, "")
		return bid, nil
	}

	err = s.settler.Settle(ctx, bid)
	switch {
	case err == nil:
		bid, err = s.bids.Get(ctx, bidID)
		if err != nil {
			return nil, err
		}
		log.Infof("bid %d settled: player %s moved %s -> %s for %d",
			bidID, bid.PlayerID, bid.SellerClubID, bid.BidderClubID, bid.Amount)
		s.notify(ctx, bid, comm.EventTransferDone, "")
		return bid, nil

	case errors.Is(err, models.ErrInsufficientFunds):
		// Terminal, never retried. Money and roster are untouched.
		if updErr := s.bids.UpdateState(ctx, bidID, models.BidSellerAccepted, models.BidFailedInsufficient, time.Now()); updErr != nil {
			return nil, updErr
		}
		bid, getErr := s.bids.Get(ctx, bidID)
		if getErr != nil {
			return nil, getErr
		}
		log.Warnf("bid %d failed: bidder %s cannot cover %d", bidID, bid.BidderClubID, bid.Amount)
		s.notify(ctx, bid, comm.EventTransferFailed, "insufficient_funds")
		return bid, models.ErrInsufficientFunds

	case errors.Is(err, models.ErrInvalidState):
		// Another decision won the race; nothing changed here.
		return nil, models.ErrInvalidState

	case errors.Is(err, models.ErrOwnershipConflict):
		log.Warnf("bid %d conflicted: player %s no longer owned by %s", bidID, bid.PlayerID, bid.SellerClubID)
		s.notify(ctx, bid, comm.EventTransferFailed, "ownership_conflict")
		return bid, models.ErrOwnershipConflict

	default:
		return nil, fmt.Errorf("failed to settle bid %d: %w", bidID, err)
	}
}

func (s *NegotiationService) Get(ctx context.Context, bidID int64) (*models.Bid, error) {
	return s.bids.Get(ctx, bidID)
}

func (s *NegotiationService) ListByState(ctx context.Context, state models.BidState) ([]*models.Bid, error) {
	return s.bids.ListByState(ctx, state)
}

func (s *NegotiationService) ListByBidder(ctx context.Context, clubID string) ([]*models.Bid, error) {
	return s.bids.ListByBidder(ctx, clubID)
}

func (s *NegotiationService) ListIncoming(ctx context.Context, clubID string) ([]*models.Bid, error) {
	return s.bids.ListIncoming(ctx, clubID)
}

func (s *NegotiationService) List(ctx context.Context) ([]*models.Bid, error) {
	return s.bids.List(ctx)
}

// notify publishes the transition event and records the audit entry.
// Failures are logged, never surfaced: delivery belongs to external
// collaborators.
func (s *NegotiationService) notify(ctx context.Context, bid *models.Bid, eventType, reason string) {
	if s.events != nil {
		s.events.PublishBidEvent(comm.BidEvent{
			Type:         eventType,
			BidID:        bid.ID,
			PlayerID:     bid.PlayerID,
			BidderClubID: bid.BidderClubID,
			SellerClubID: bid.SellerClubID,
			Amount:       comm.FormatAmount(bid.Amount),
			State:        string(bid.State),
			Reason:       reason,
			At:           time.Now(),
		})
	}
	if s.audit != nil {
		entry := &models.TransferLog{
			BidID:        bid.ID,
			PlayerID:     bid.PlayerID,
			BidderClubID: bid.BidderClubID,
			SellerClubID: bid.SellerClubID,
			Amount:       bid.Amount,
			State:        string(bid.State),
			Reason:       reason,
			At:           time.Now(),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			log.Errorf("failed to record transfer log for bid %d: %s", bid.ID, err)
		}
	}
}
