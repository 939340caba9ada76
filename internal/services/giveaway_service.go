package services

import (
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/google/logger"
	"github.com/jonboulle/clockwork"

	"giveaway/internal/models"
	"giveaway/internal/storage"
	"giveaway/internal/units"
)

const maxDescriptionLength = 280

// serviceFeeCap is the upper bound on the service fee: 10 whole tokens.
var serviceFeeCap = new(big.Int).Mul(big.NewInt(10), units.One())

// Options configures a GiveawayService.
type Options struct {
	// OwnerAccountID is the contract owner: receives service fees and is
	// the only caller allowed to use the admin operations.
	OwnerAccountID string
	// CloseRequiresDistributed restricts close_event to fully distributed
	// events; when false, closing is legal from Calculated onward.
	CloseRequiresDistributed bool
	// WhitelistedTokens seeds the reward-token whitelist.
	WhitelistedTokens []string
}

// GiveawayService is the event ledger and payout engine: it stores events,
// enforces the Pending -> Calculated -> Distributed lifecycle, accounts for
// escrowed deposits, and distributes rewards to drawn winners in batches.
//
// All mutating operations are serialized behind the mutex; each call either
// fully applies its transition or fails with no visible mutation, except
// distribution whose unit of atomicity is the individual payout. Time gates
// are checked lazily against the injected clock.
type GiveawayService struct {
	mu       sync.RWMutex
	store    storage.Store
	treasury Treasury
	entropy  EntropySource
	clock    clockwork.Clock

	ownerAccountID           string
	closeRequiresDistributed bool

	active      bool
	whitelisted map[string]bool
	nextEventID uint64
}

// NewGiveawayService creates the engine on top of the given store, treasury,
// entropy source, and clock. The next event id resumes from the store.
func NewGiveawayService(store storage.Store, treasury Treasury, entropy EntropySource, clock clockwork.Clock, opts Options) (*GiveawayService, error) {
	count, err := store.EventCount()
	if err != nil {
		return nil, err
	}
	whitelisted := make(map[string]bool, len(opts.WhitelistedTokens))
	for _, token := range opts.WhitelistedTokens {
		whitelisted[token] = true
	}
	return &GiveawayService{
		store:                    store,
		treasury:                 treasury,
		entropy:                  entropy,
		clock:                    clock,
		ownerAccountID:           opts.OwnerAccountID,
		closeRequiresDistributed: opts.CloseRequiresDistributed,
		active:                   true,
		whitelisted:              whitelisted,
		nextEventID:              count,
	}, nil
}

// ServiceFee returns the fee charged on top of a reward pool:
// min(10 whole tokens, 1% of the pool).
func ServiceFee(totalRewards models.Balance) models.Balance {
	fee := new(big.Int).Div(totalRewards.BigInt(), big.NewInt(100))
	if fee.Cmp(serviceFeeCap) > 0 {
		fee.Set(serviceFeeCap)
	}
	return models.NewBalance(fee)
}

// AddEvent validates the input and the attached deposit, escrows the funds,
// and persists a new Pending event, returning its id.
func (s *GiveawayService) AddEvent(caller string, input models.EventInput, attachedDeposit models.Balance) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assertActive(); err != nil {
		return 0, err
	}
	if err := validateEventInput(input); err != nil {
		return 0, err
	}
	if input.RewardsTokenID != nil && !s.whitelisted[*input.RewardsTokenID] {
		return 0, Errf(KindInvalidInput, "token %s is not whitelisted", *input.RewardsTokenID)
	}

	total := sumRewards(input.Rewards)
	required := total.Add(ServiceFee(total))
	if attachedDeposit.Cmp(required) != 0 {
		return 0, Errf(KindInsufficientDeposit,
			"attached deposit %s does not match rewards plus service fee %s", attachedDeposit, required)
	}

	if err := s.treasury.Withdraw(caller, attachedDeposit); err != nil {
		return 0, err
	}

	eventID := s.nextEventID
	ev := &models.Event{
		OwnerAccountID:                caller,
		Status:                        models.EventStatusPending,
		Rewards:                       input.Rewards,
		RewardsTokenID:                input.RewardsTokenID,
		Participants:                  input.Participants,
		AllowDuplicateParticipants:    input.AllowDuplicateParticipants,
		AddParticipantsStartTimestamp: input.AddParticipantsStartTimestamp,
		AddParticipantsEndTimestamp:   input.AddParticipantsEndTimestamp,
		EventTimestamp:                input.EventTimestamp,
		Title:                         input.Title,
		Description:                   input.Description,
		Escrow:                        attachedDeposit,
	}
	if err := s.store.PutEvent(eventID, ev); err != nil {
		// Hand the escrowed deposit back; the event was never created.
		if refundErr := s.treasury.Transfer(caller, nil, attachedDeposit); refundErr != nil {
			logger.Errorf("failed to refund deposit to %s after store error: %v", caller, refundErr)
		}
		return 0, err
	}
	s.nextEventID++

	logger.Infof("event %d created by %s (%d rewards, %d participants)",
		eventID, caller, len(input.Rewards), len(input.Participants))
	return eventID, nil
}

func validateEventInput(input models.EventInput) error {
	if input.Title == "" {
		return Errf(KindInvalidInput, "title must not be empty")
	}
	if input.Description == "" {
		return Errf(KindInvalidInput, "description must not be empty")
	}
	if len(input.Description) > maxDescriptionLength {
		return Errf(KindInvalidInput, "description length exceeds %d characters", maxDescriptionLength)
	}
	if len(input.Rewards) == 0 {
		return Errf(KindInvalidInput, "rewards must not be empty")
	}
	for i, reward := range input.Rewards {
		if reward.Sign() <= 0 {
			return Errf(KindInvalidInput, "reward %d must be positive", i)
		}
	}
	if input.AddParticipantsStartTimestamp >= input.AddParticipantsEndTimestamp {
		return Errf(KindInvalidInput, "add-participants window start must precede its end")
	}
	if input.AddParticipantsEndTimestamp > input.EventTimestamp {
		return Errf(KindInvalidInput, "add-participants window must close by the event timestamp")
	}
	return nil
}

func sumRewards(rewards []models.Balance) models.Balance {
	var total models.Balance
	for _, r := range rewards {
		total = total.Add(r)
	}
	return total
}

// GetEvent returns the event with the given id.
func (s *GiveawayService) GetEvent(eventID uint64) (*models.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getEvent(eventID)
}

func (s *GiveawayService) getEvent(eventID uint64) (*models.Event, error) {
	ev, ok, err := s.store.GetEvent(eventID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Errf(KindNotFound, "no event with id %d", eventID)
	}
	return ev, nil
}

// GetEvents returns events in insertion order, paginated. A page shorter
// than limit signals the end of the collection.
func (s *GiveawayService) GetEvents(fromIndex, limit uint64) ([]storage.IndexedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListEvents(fromIndex, limit)
}

// GetEventsToFinalize returns the Pending events within the index window
// whose draw time has passed.
func (s *GiveawayService) GetEventsToFinalize(fromIndex, limit uint64) ([]storage.IndexedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, err := s.store.ListEvents(fromIndex, limit)
	if err != nil {
		return nil, err
	}
	now := models.TimestampFromTime(s.clock.Now())
	var due []storage.IndexedEvent
	for _, item := range page {
		if item.Event.Status == models.EventStatusPending && item.Event.EventTimestamp <= now {
			due = append(due, item)
		}
	}
	return due, nil
}

// NextEventID returns the id the next AddEvent call will assign.
func (s *GiveawayService) NextEventID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextEventID
}

// InsertParticipants appends participants to a Pending event. Owner-only,
// legal only inside the add-participants window. When duplicates are
// disallowed, identities already present are rejected.
func (s *GiveawayService) InsertParticipants(caller string, eventID uint64, participants []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assertActive(); err != nil {
		return err
	}
	ev, err := s.getEvent(eventID)
	if err != nil {
		return err
	}
	if ev.OwnerAccountID != caller {
		return Errf(KindUnauthorized, "account %s does not own event %d", caller, eventID)
	}
	if ev.Status != models.EventStatusPending {
		return Errf(KindWindowClosed, "event %d is already finalized", eventID)
	}
	now := models.TimestampFromTime(s.clock.Now())
	if now > ev.AddParticipantsEndTimestamp || now < ev.AddParticipantsStartTimestamp {
		return Errf(KindWindowClosed, "participants may only be added between %d and %d",
			ev.AddParticipantsStartTimestamp, ev.AddParticipantsEndTimestamp)
	}

	if !ev.AllowDuplicateParticipants {
		present := make(map[string]bool, len(ev.Participants)+len(participants))
		for _, p := range ev.Participants {
			present[p] = true
		}
		for _, p := range participants {
			if present[p] {
				return Errf(KindInvalidInput, "participant %s is already registered", p)
			}
			present[p] = true
		}
	}

	ev.Participants = append(ev.Participants, participants...)
	return s.store.PutEvent(eventID, ev)
}

// FinalizeEvent computes the winner assignment and moves the event from
// Pending to Calculated. Owner-only, single-shot, legal only once the draw
// time has passed. The service fee leaves escrow here, credited to the
// contract owner.
func (s *GiveawayService) FinalizeEvent(caller string, eventID uint64) (*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assertActive(); err != nil {
		return nil, err
	}
	ev, err := s.getEvent(eventID)
	if err != nil {
		return nil, err
	}
	if ev.OwnerAccountID != caller {
		return nil, Errf(KindUnauthorized, "account %s does not own event %d", caller, eventID)
	}
	if ev.Status != models.EventStatusPending {
		if ev.FinalizedTimestamp != nil {
			return nil, Errf(KindAlreadyFinalized, "event %d was finalized at %d", eventID, *ev.FinalizedTimestamp)
		}
		return nil, Errf(KindAlreadyFinalized, "event %d is already finalized", eventID)
	}
	now := models.TimestampFromTime(s.clock.Now())
	if now < ev.EventTimestamp {
		return nil, Errf(KindTooEarly, "event %d draw time is %d", eventID, ev.EventTimestamp)
	}
	if len(ev.Participants) == 0 {
		return nil, Errf(KindNoParticipants, "event %d has no participants", eventID)
	}

	seed, err := s.entropy.Seed()
	if err != nil {
		return nil, err
	}
	payouts := assignPayouts(ev.Rewards, ev.Participants, ev.AllowDuplicateParticipants, ev.RewardsTokenID, seed)

	// The fee transfer goes first: it has no stored side effects, so a
	// failure here leaves the event untouched. The writes after it are
	// unwound on failure, keeping winners invisible unless the event record
	// flips to Calculated.
	fee := ServiceFee(sumRewards(ev.Rewards))
	if err := s.treasury.Transfer(s.ownerAccountID, nil, fee); err != nil {
		return nil, err
	}
	for idx, p := range payouts {
		if err := s.store.PutPayout(eventID, uint64(idx), p); err != nil {
			s.unwindFinalize(eventID, fee)
			return nil, err
		}
	}

	ev.Escrow = ev.Escrow.Sub(fee)
	ev.Status = models.EventStatusCalculated
	ev.FinalizedTimestamp = &now
	ev.DrawSeed = hex.EncodeToString(seed[:])
	if err := s.store.PutEvent(eventID, ev); err != nil {
		s.unwindFinalize(eventID, fee)
		return nil, err
	}

	logger.Infof("event %d finalized: %d winners drawn from %d participants",
		eventID, len(payouts), len(ev.Participants))
	return ev, nil
}

// unwindFinalize reverts the side effects of a finalize whose write phase
// failed: stored winner slots are discarded and the fee credit is pulled
// back, so the event stays a clean Pending and a retry starts from scratch.
func (s *GiveawayService) unwindFinalize(eventID uint64, fee models.Balance) {
	if err := s.store.DeletePayouts(eventID); err != nil {
		logger.Errorf("failed to discard payouts for event %d during unwind: %v", eventID, err)
	}
	if err := s.treasury.Withdraw(s.ownerAccountID, fee); err != nil {
		logger.Errorf("failed to reclaim the service fee for event %d during unwind: %v", eventID, err)
	}
}

// PayoutFailure records one winner slot whose transfer failed during a batch.
type PayoutFailure struct {
	Kind      ErrorKind `json:"kind"`
	Index     uint64    `json:"index"`
	AccountID string    `json:"account_id"`
	Message   string    `json:"message"`
}

// DistributionReport summarizes one distribute_payouts batch.
type DistributionReport struct {
	EventID uint64             `json:"event_id"`
	Paid    uint64             `json:"paid"`
	Skipped uint64             `json:"skipped"`
	Failed  []PayoutFailure    `json:"failed,omitempty"`
	Status  models.EventStatus `json:"status"`
}

// DistributePayouts pays the winner slots in [fromIndex, fromIndex+limit).
// A zero limit drains everything from fromIndex. Already-paid slots are
// skipped, so overlapping retries never double-pay; a failed transfer is
// recorded in the report and left Pending for a later retry. When the last
// slot completes, the event moves to Distributed.
func (s *GiveawayService) DistributePayouts(caller string, eventID, fromIndex, limit uint64) (*DistributionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assertActive(); err != nil {
		return nil, err
	}
	ev, err := s.getEvent(eventID)
	if err != nil {
		return nil, err
	}
	if ev.OwnerAccountID != caller {
		return nil, Errf(KindUnauthorized, "account %s does not own event %d", caller, eventID)
	}
	if ev.Status == models.EventStatusPending {
		return nil, Errf(KindNotReady, "event %d has not been finalized", eventID)
	}

	total, err := s.store.PayoutCount(eventID)
	if err != nil {
		return nil, err
	}
	end := total
	if limit > 0 && fromIndex+limit < total {
		end = fromIndex + limit
	}

	report := &DistributionReport{EventID: eventID}
	for idx := fromIndex; idx < end; idx++ {
		p, ok, err := s.store.GetPayout(eventID, idx)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if p.Status == models.PayoutStatusComplete {
			report.Skipped++
			continue
		}
		if err := s.treasury.Transfer(p.AccountID, p.TokenID, p.Amount); err != nil {
			report.Failed = append(report.Failed, PayoutFailure{
				Kind:      KindPartialTransferFailure,
				Index:     idx,
				AccountID: p.AccountID,
				Message:   err.Error(),
			})
			continue
		}
		p.Status = models.PayoutStatusComplete
		if err := s.store.PutPayout(eventID, idx, p); err != nil {
			return nil, err
		}
		ev.Escrow = ev.Escrow.Sub(p.Amount)
		report.Paid++
	}

	if drained, err := s.allPayoutsComplete(eventID, total); err != nil {
		return nil, err
	} else if drained {
		ev.Status = models.EventStatusDistributed
	}
	if err := s.store.PutEvent(eventID, ev); err != nil {
		return nil, err
	}
	report.Status = ev.Status

	logger.Infof("event %d distribution batch [%d,%d): paid=%d skipped=%d failed=%d status=%s",
		eventID, fromIndex, end, report.Paid, report.Skipped, len(report.Failed), ev.Status)
	return report, nil
}

func (s *GiveawayService) allPayoutsComplete(eventID, total uint64) (bool, error) {
	payouts, err := s.store.ListPayouts(eventID, 0, total)
	if err != nil {
		return false, err
	}
	for _, item := range payouts {
		if item.Payout.Status != models.PayoutStatusComplete {
			return false, nil
		}
	}
	return true, nil
}

// CloseEvent refunds the unassigned escrow remainder to the event owner.
// Rejected while Pending; with CloseRequiresDistributed set, also rejected
// until the event is fully Distributed. Assigned-but-unpaid payouts stay
// escrowed. Closing an already-closed event is a no-op.
func (s *GiveawayService) CloseEvent(caller string, eventID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.assertActive(); err != nil {
		return err
	}
	ev, err := s.getEvent(eventID)
	if err != nil {
		return err
	}
	if ev.OwnerAccountID != caller {
		return Errf(KindUnauthorized, "account %s does not own event %d", caller, eventID)
	}
	if ev.Status == models.EventStatusPending {
		return Errf(KindNotReady, "event %d has not been finalized", eventID)
	}
	if s.closeRequiresDistributed && ev.Status != models.EventStatusDistributed {
		return Errf(KindNotReady, "event %d has not been fully distributed", eventID)
	}
	if ev.Closed {
		return nil
	}

	total, err := s.store.PayoutCount(eventID)
	if err != nil {
		return err
	}
	payouts, err := s.store.ListPayouts(eventID, 0, total)
	if err != nil {
		return err
	}
	var reserved models.Balance
	for _, item := range payouts {
		if item.Payout.Status == models.PayoutStatusPending {
			reserved = reserved.Add(item.Payout.Amount)
		}
	}
	remainder := ev.Escrow.Sub(reserved)

	if remainder.Sign() > 0 {
		if err := s.treasury.Transfer(ev.OwnerAccountID, nil, remainder); err != nil {
			return err
		}
		ev.Escrow = ev.Escrow.Sub(remainder)
	}
	ev.Closed = true
	if err := s.store.PutEvent(eventID, ev); err != nil {
		return err
	}

	logger.Infof("event %d closed, refunded %s to %s", eventID, remainder, ev.OwnerAccountID)
	return nil
}

// GetPayouts returns the computed winner slots in [fromIndex,
// fromIndex+limit), with their distribution status.
func (s *GiveawayService) GetPayouts(eventID, fromIndex, limit uint64) ([]storage.IndexedPayout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.getEvent(eventID); err != nil {
		return nil, err
	}
	return s.store.ListPayouts(eventID, fromIndex, limit)
}

// SetActive toggles the global kill switch. Contract-owner only.
func (s *GiveawayService) SetActive(caller string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.ownerAccountID {
		return Errf(KindUnauthorized, "account %s is not the contract owner", caller)
	}
	s.active = active
	return nil
}

// WhitelistToken allows a reward token id. Contract-owner only.
func (s *GiveawayService) WhitelistToken(caller, tokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if caller != s.ownerAccountID {
		return Errf(KindUnauthorized, "account %s is not the contract owner", caller)
	}
	s.whitelisted[tokenID] = true
	return nil
}

// IsWhitelistedToken reports whether the token id is accepted for rewards.
func (s *GiveawayService) IsWhitelistedToken(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.whitelisted[tokenID]
}

func (s *GiveawayService) assertActive() error {
	if !s.active {
		return Errf(KindContractDisabled, "the contract is disabled")
	}
	return nil
}
