package services

import (
	"reflect"
	"testing"

	"giveaway/internal/models"
)

func amounts(t *testing.T, values ...int64) []models.Balance {
	t.Helper()
	out := make([]models.Balance, 0, len(values))
	for _, v := range values {
		out = append(out, models.BalanceFromInt64(v))
	}
	return out
}

func TestAssignPayouts_Deterministic(t *testing.T) {
	rewards := amounts(t, 200, 300, 100)
	participants := []string{"a", "b", "c", "d"}
	seed := [32]byte{1, 2, 3}

	first := assignPayouts(rewards, participants, false, nil, seed)
	second := assignPayouts(rewards, participants, false, nil, seed)
	if !reflect.DeepEqual(first, second) {
		t.Error("same seed and inputs produced different assignments")
	}
}

func TestAssignPayouts_LargestRewardFirst(t *testing.T) {
	rewards := amounts(t, 100, 300, 200)
	payouts := assignPayouts(rewards, []string{"a", "b", "c"}, false, nil, [32]byte{9})

	if len(payouts) != 3 {
		t.Fatalf("expected 3 payouts, got %d", len(payouts))
	}
	for i := 1; i < len(payouts); i++ {
		if payouts[i-1].Amount.Cmp(payouts[i].Amount) < 0 {
			t.Errorf("slot %d amount %s is larger than slot %d amount %s",
				i, payouts[i].Amount, i-1, payouts[i-1].Amount)
		}
	}
	if payouts[0].Amount.Cmp(models.BalanceFromInt64(300)) != 0 {
		t.Errorf("slot 0 should carry the largest reward, got %s", payouts[0].Amount)
	}
}

func TestAssignPayouts_DistinctWinnersByDefault(t *testing.T) {
	rewards := amounts(t, 100, 100, 100)
	participants := []string{"a", "b", "a", "b", "a"}

	for s := byte(0); s < 16; s++ {
		payouts := assignPayouts(rewards, participants, false, nil, [32]byte{s})
		if len(payouts) != 2 {
			t.Fatalf("seed %d: 2 distinct identities, expected 2 payouts, got %d", s, len(payouts))
		}
		if payouts[0].AccountID == payouts[1].AccountID {
			t.Errorf("seed %d: identity %s won twice with duplicates disallowed", s, payouts[0].AccountID)
		}
	}
}

func TestAssignPayouts_DuplicatesMayWinMultipleSlots(t *testing.T) {
	rewards := amounts(t, 300, 200)
	payouts := assignPayouts(rewards, []string{"a", "a"}, true, nil, [32]byte{5})

	if len(payouts) != 2 {
		t.Fatalf("expected 2 payouts, got %d", len(payouts))
	}
	for i, p := range payouts {
		if p.AccountID != "a" {
			t.Errorf("slot %d went to %s, want a", i, p.AccountID)
		}
	}
}

func TestAssignPayouts_MoreRewardsThanParticipants(t *testing.T) {
	rewards := amounts(t, 300, 200, 100)
	payouts := assignPayouts(rewards, []string{"a"}, false, nil, [32]byte{5})

	if len(payouts) != 1 {
		t.Fatalf("expected the surplus rewards to stay unassigned, got %d payouts", len(payouts))
	}
	if payouts[0].Amount.Cmp(models.BalanceFromInt64(300)) != 0 {
		t.Errorf("sole winner should take the largest reward, got %s", payouts[0].Amount)
	}
}

func TestAssignPayouts_TokenCarriedThrough(t *testing.T) {
	token := "usdt.token"
	payouts := assignPayouts(amounts(t, 100), []string{"a"}, false, &token, [32]byte{})

	if payouts[0].TokenID == nil || *payouts[0].TokenID != token {
		t.Errorf("payout token = %v, want %s", payouts[0].TokenID, token)
	}
	if payouts[0].Status != models.PayoutStatusPending {
		t.Errorf("fresh payout status = %s, want Pending", payouts[0].Status)
	}
}
