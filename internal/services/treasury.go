package services

import (
	"math/big"
	"sync"

	"giveaway/internal/models"
)

// Treasury is the funds boundary of the engine: deposits are withdrawn from
// the caller at event creation and payouts are transferred out during
// distribution. In production this fronts the chain's transfer primitive;
// the default implementation is an in-process ledger.
type Treasury interface {
	// Withdraw debits amount from the account, failing without effect when
	// the balance is insufficient.
	Withdraw(accountID string, amount models.Balance) error
	// Transfer credits amount to the account.
	Transfer(accountID string, tokenID *string, amount models.Balance) error
}

// Ledger is an in-process Treasury keeping one balance per account. Token
// balances are kept per (account, token) pair; the native token uses the
// empty token key.
type Ledger struct {
	mu       sync.RWMutex
	balances map[string]*big.Int
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{balances: make(map[string]*big.Int)}
}

func balanceKey(accountID string, tokenID *string) string {
	if tokenID == nil {
		return accountID
	}
	return accountID + "\x00" + *tokenID
}

// Credit adds funds to an account's native balance, creating the account if
// needed.
func (l *Ledger) Credit(accountID string, amount models.Balance) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(balanceKey(accountID, nil), amount.BigInt())
}

func (l *Ledger) add(key string, delta *big.Int) {
	cur, ok := l.balances[key]
	if !ok {
		cur = new(big.Int)
		l.balances[key] = cur
	}
	cur.Add(cur, delta)
}

// Withdraw implements Treasury.
func (l *Ledger) Withdraw(accountID string, amount models.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey(accountID, nil)
	cur, ok := l.balances[key]
	if !ok || cur.Cmp(amount.BigInt()) < 0 {
		return Errf(KindInsufficientDeposit, "account %s cannot cover %s", accountID, amount)
	}
	cur.Sub(cur, amount.BigInt())
	return nil
}

// Transfer implements Treasury.
func (l *Ledger) Transfer(accountID string, tokenID *string, amount models.Balance) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.add(balanceKey(accountID, tokenID), amount.BigInt())
	return nil
}

// Balance returns the account's native balance.
func (l *Ledger) Balance(accountID string) models.Balance {
	return l.TokenBalance(accountID, nil)
}

// TokenBalance returns the account's balance for the given token.
func (l *Ledger) TokenBalance(accountID string, tokenID *string) models.Balance {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cur, ok := l.balances[balanceKey(accountID, tokenID)]
	if !ok {
		return models.Balance{}
	}
	return models.NewBalance(cur)
}
