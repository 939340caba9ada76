package services

import (
	"encoding/binary"
	"math/rand"
	"sort"

	"giveaway/internal/models"
)

// assignPayouts maps rewards onto participants: rewards are taken in
// descending amount order (largest remaining reward first) and handed to a
// seeded random permutation of the participant list. When duplicates are
// disallowed an identity is only eligible for one slot, so with fewer
// distinct participants than rewards the surplus rewards stay unassigned.
//
// The function is a pure deterministic function of its inputs and the seed;
// the caller records the result, so a draw can be audited from stored state.
func assignPayouts(rewards []models.Balance, participants []string, allowDuplicates bool, tokenID *string, seed [32]byte) []*models.Payout {
	sorted := append([]models.Balance(nil), rewards...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Cmp(sorted[j]) > 0
	})

	order := rand.New(rand.NewSource(seedToInt64(seed))).Perm(len(participants))

	payouts := make([]*models.Payout, 0, len(sorted))
	seen := make(map[string]bool, len(participants))
	for _, idx := range order {
		if len(payouts) == len(sorted) {
			break
		}
		account := participants[idx]
		if !allowDuplicates && seen[account] {
			continue
		}
		seen[account] = true
		payouts = append(payouts, &models.Payout{
			AccountID: account,
			Amount:    sorted[len(payouts)],
			TokenID:   tokenID,
			Status:    models.PayoutStatusPending,
		})
	}
	return payouts
}

func seedToInt64(seed [32]byte) int64 {
	// Fold the full seed into the PRNG source word.
	v := binary.BigEndian.Uint64(seed[0:8])
	v ^= binary.BigEndian.Uint64(seed[8:16])
	v ^= binary.BigEndian.Uint64(seed[16:24])
	v ^= binary.BigEndian.Uint64(seed[24:32])
	return int64(v)
}
