package models

// EventStatus is the lifecycle state of a giveaway event. Transitions are
// one-directional: Pending -> Calculated -> Distributed.
type EventStatus string

const (
	EventStatusPending     EventStatus = "Pending"
	EventStatusCalculated  EventStatus = "Calculated"
	EventStatusDistributed EventStatus = "Distributed"
)

// Event is one giveaway round: a reward pool, a participant pool, and a draw
// schedule. Everything except participants, status, payouts progress, and the
// escrow balance is immutable after creation.
type Event struct {
	OwnerAccountID string      `json:"owner_account_id"`
	Status         EventStatus `json:"status"`

	// Rewards is the ordered list of reward amounts, one per winner slot.
	Rewards        []Balance `json:"rewards"`
	RewardsTokenID *string   `json:"rewards_token_id"`

	Participants               []string `json:"participants"`
	AllowDuplicateParticipants bool     `json:"allow_duplicate_participants"`

	AddParticipantsStartTimestamp Timestamp  `json:"add_participants_start_timestamp"`
	AddParticipantsEndTimestamp   Timestamp  `json:"add_participants_end_timestamp"`
	EventTimestamp                Timestamp  `json:"event_timestamp"`
	FinalizedTimestamp            *Timestamp `json:"finalized_timestamp"`

	Title       string `json:"title"`
	Description string `json:"description"`

	// DrawSeed is the hex-encoded entropy recorded at finalize time. The
	// winner selection is stored alongside it, so the draw is re-derivable
	// for audit without being re-run.
	DrawSeed string `json:"draw_seed,omitempty"`

	// Escrow is the portion of the attached deposit still held by the
	// engine: rewards plus service fee at creation, drained by the fee
	// transfer at finalize, payouts at distribution, and the remainder
	// refund at close.
	Escrow Balance `json:"escrow"`

	Closed bool `json:"closed"`
}

// EventInput is the caller-supplied portion of a new event.
type EventInput struct {
	Rewards        []Balance `json:"rewards"`
	RewardsTokenID *string   `json:"rewards_token_id"`

	Participants               []string `json:"participants"`
	AllowDuplicateParticipants bool     `json:"allow_duplicate_participants"`

	AddParticipantsStartTimestamp Timestamp `json:"add_participants_start_timestamp"`
	AddParticipantsEndTimestamp   Timestamp `json:"add_participants_end_timestamp"`
	EventTimestamp                Timestamp `json:"event_timestamp"`

	Title       string `json:"title"`
	Description string `json:"description"`
}

// PayoutStatus tracks whether a single winner slot has been paid.
type PayoutStatus string

const (
	PayoutStatusPending  PayoutStatus = "Pending"
	PayoutStatusComplete PayoutStatus = "Complete"
)

// Payout is one winner slot assignment: a participant identity, the reward
// amount it won, and its distribution progress. Assignments are immutable
// once computed at finalize time; only Status changes afterwards.
type Payout struct {
	AccountID string       `json:"account_id"`
	Amount    Balance      `json:"amount"`
	TokenID   *string      `json:"token_id"`
	Status    PayoutStatus `json:"status"`
}
