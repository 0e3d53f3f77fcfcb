package bank

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyvault/tallyvault/internal/ledger"
	"github.com/tallyvault/tallyvault/internal/notification"
	"github.com/tallyvault/tallyvault/internal/pin"
	"github.com/tallyvault/tallyvault/internal/reconcile"
)

// Business-rule rejections. These are reported synchronously to the caller
// and never mutate any state.
var (
	ErrInsufficientBalance  = errors.New("insufficient balance")
	ErrOutOfStock           = errors.New("prize out of stock")
	ErrRedemptionCapReached = errors.New("active redemption cap reached")
	ErrVaultExists          = errors.New("vault already minted")
	ErrNoVault              = errors.New("vault not minted yet")
	ErrNotAgent             = errors.New("account is not an agent")
	ErrAlreadyReversed      = errors.New("transaction already reversed")
	ErrAmountNotPositive    = errors.New("amount must be positive")
	ErrUnknownTransaction   = errors.New("unknown transaction")
	ErrUnknownMetric        = errors.New("unknown metric")
)

// RedemptionCap is the number of simultaneously active redemptions one agent
// may hold. Reversed redemptions free their slot.
const RedemptionCap = 2

// Service implements the business actions: every action validates first,
// appends immutable transactions and a feed entry, then write-through
// flushes so the poller's next cycle cannot undo it.
type Service struct {
	store    *ledger.Store
	syncer   *ledger.Syncer
	pins     *pin.Verifier
	notifier notification.Notifier
	now      func() time.Time
}

// NewService builds the action service.
func NewService(store *ledger.Store, syncer *ledger.Syncer, pins *pin.Verifier, notifier notification.Notifier) *Service {
	return &Service{
		store:    store,
		syncer:   syncer,
		pins:     pins,
		notifier: notifier,
		now:      time.Now,
	}
}

// Mint creates the single system vault account and funds it with the genesis
// credit. It can succeed at most once per deployment.
func (s *Service) Mint(ctx context.Context, name string, amount int64) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, ErrAmountNotPositive
	}
	if _, ok := s.store.Vault(); ok {
		return ledger.Transaction{}, ErrVaultExists
	}

	vault := ledger.Account{ID: uuid.NewString(), Name: name, Role: ledger.RoleSystem}
	if err := s.store.AddAccount(vault); err != nil {
		return ledger.Transaction{}, err
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindCredit,
		Amount:   amount,
		Memo:     ledger.MemoMint,
		Category: ledger.CategoryMint,
		Date:     s.now().UTC(),
		ToID:     vault.ID,
	}
	s.store.AppendTransaction(tx)
	s.notify(ctx, fmt.Sprintf("Vault %q minted with %d points", name, amount))
	s.syncer.Flush(ctx)
	return tx, nil
}

// EnrollInput captures data required to add an agent.
type EnrollInput struct {
	Name string
	PIN  string
}

// Enroll adds an agent account with a hashed PIN.
func (s *Service) Enroll(ctx context.Context, input EnrollInput) (ledger.Account, error) {
	if input.Name == "" {
		return ledger.Account{}, fmt.Errorf("agent name is required")
	}

	// Hash before touching any state; the PIN table is only written once the
	// account exists, so a rejected enroll mutates nothing.
	hash, err := s.pins.Hash(input.PIN)
	if err != nil {
		return ledger.Account{}, err
	}
	account := ledger.Account{ID: uuid.NewString(), Name: input.Name, Role: ledger.RoleAgent}
	if err := s.store.AddAccount(account); err != nil {
		return ledger.Account{}, err
	}
	s.store.SetPIN(account.ID, hash)
	s.notify(ctx, fmt.Sprintf("Agent %q enrolled", input.Name))
	s.syncer.Flush(ctx)
	return account, nil
}

// AwardInput captures a credit to an agent.
type AwardInput struct {
	AccountID string
	Amount    int64
	Memo      string
}

// Award credits points to an agent. The vault is recorded as the source for
// provenance; only the credit side affects balances.
func (s *Service) Award(ctx context.Context, input AwardInput) (ledger.Transaction, error) {
	if input.Amount <= 0 {
		return ledger.Transaction{}, ErrAmountNotPositive
	}
	account, err := s.agent(input.AccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	vault, ok := s.store.Vault()
	if !ok {
		return ledger.Transaction{}, ErrNoVault
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindCredit,
		Amount:   input.Amount,
		Memo:     input.Memo,
		Category: ledger.CategoryAward,
		Date:     s.now().UTC(),
		FromID:   vault.ID,
		ToID:     account.ID,
	}
	s.store.AppendTransaction(tx)
	s.notify(ctx, fmt.Sprintf("%s earned %d points (%s)", account.Name, input.Amount, input.Memo))
	s.syncer.Flush(ctx)
	return tx, nil
}

// RedeemInput captures a prize redemption request.
type RedeemInput struct {
	AccountID string
	Prize     string
	Amount    int64
	PIN       string
}

// Redeem posts a redemption debit after the PIN check and the three hard
// preconditions: stock on hand, sufficient balance, and the active
// redemption cap (only active, unreversed redemptions count against it).
func (s *Service) Redeem(ctx context.Context, input RedeemInput) (ledger.Transaction, error) {
	if input.Amount <= 0 {
		return ledger.Transaction{}, ErrAmountNotPositive
	}
	account, err := s.agent(input.AccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.pins.Verify(account.ID, input.PIN); err != nil {
		return ledger.Transaction{}, err
	}

	txs := s.store.Transactions()
	if s.store.StockOf(input.Prize) <= 0 {
		return ledger.Transaction{}, ErrOutOfStock
	}
	if reconcile.Balance(txs, account.ID) < input.Amount {
		return ledger.Transaction{}, ErrInsufficientBalance
	}
	if reconcile.ActiveRedemptionCount(txs, account.ID) >= RedemptionCap {
		return ledger.Transaction{}, ErrRedemptionCapReached
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindDebit,
		Amount:   input.Amount,
		Memo:     ledger.PrefixRedeem + input.Prize,
		Category: ledger.CategoryRedemption,
		Date:     s.now().UTC(),
		FromID:   account.ID,
	}
	s.store.AppendTransaction(tx)
	s.store.AdjustStock(input.Prize, -1)
	s.notify(ctx, fmt.Sprintf("%s redeemed %q for %d points", account.Name, input.Prize, input.Amount))
	s.syncer.Flush(ctx)
	return tx, nil
}

// ReverseRedemption compensates an active redemption with a matching credit
// and restores the prize stock. Reversing twice is rejected.
func (s *Service) ReverseRedemption(ctx context.Context, transactionID string) (ledger.Transaction, error) {
	txs := s.store.Transactions()
	redemption, err := findTransaction(txs, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if ledger.Classify(redemption) != ledger.CategoryRedemption {
		return ledger.Transaction{}, fmt.Errorf("transaction %s is not a redemption", transactionID)
	}
	if !reconcile.ActiveRedemption(txs, redemption) {
		return ledger.Transaction{}, ErrAlreadyReversed
	}
	account, err := s.store.Account(redemption.FromID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	prize := ledger.Label(redemption)
	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindCredit,
		Amount:   redemption.Amount,
		Memo:     ledger.PrefixRedemptionReversal + prize,
		Category: ledger.CategoryRedemptionReversal,
		Date:     s.now().UTC(),
		ToID:     account.ID,
	}
	s.store.AppendTransaction(tx)
	s.store.AdjustStock(prize, 1)
	s.notify(ctx, fmt.Sprintf("Redemption of %q by %s reversed", prize, account.Name))
	s.syncer.Flush(ctx)
	return tx, nil
}

// WithdrawInput captures a PIN-gated manual withdrawal.
type WithdrawInput struct {
	AccountID string
	Amount    int64
	Label     string
	PIN       string
}

// Withdraw debits points from an agent outside the prize flow.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (ledger.Transaction, error) {
	if input.Amount <= 0 {
		return ledger.Transaction{}, ErrAmountNotPositive
	}
	account, err := s.agent(input.AccountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if err := s.pins.Verify(account.ID, input.PIN); err != nil {
		return ledger.Transaction{}, err
	}
	if reconcile.Balance(s.store.Transactions(), account.ID) < input.Amount {
		return ledger.Transaction{}, ErrInsufficientBalance
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindDebit,
		Amount:   input.Amount,
		Memo:     ledger.PrefixWithdraw + input.Label,
		Category: ledger.CategoryWithdrawal,
		Date:     s.now().UTC(),
		FromID:   account.ID,
	}
	s.store.AppendTransaction(tx)
	s.notify(ctx, fmt.Sprintf("%s withdrew %d points (%s)", account.Name, input.Amount, input.Label))
	s.syncer.Flush(ctx)
	return tx, nil
}

// ReverseSale nullifies an active earned credit with a matching correction
// debit of the same amount.
func (s *Service) ReverseSale(ctx context.Context, transactionID string) (ledger.Transaction, error) {
	txs := s.store.Transactions()
	credit, err := findTransaction(txs, transactionID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	if !reconcile.ActiveSale(txs, credit) {
		return ledger.Transaction{}, ErrAlreadyReversed
	}
	account, err := s.store.Account(credit.ToID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindDebit,
		Amount:   credit.Amount,
		Memo:     ledger.PrefixSaleReversal + credit.Memo,
		Category: ledger.CategorySaleReversal,
		Date:     s.now().UTC(),
		FromID:   account.ID,
	}
	s.store.AppendTransaction(tx)
	s.notify(ctx, fmt.Sprintf("Sale %q to %s reversed", credit.Memo, account.Name))
	s.syncer.Flush(ctx)
	return tx, nil
}

// CorrectWithdrawal posts a manual correction debit against an account.
func (s *Service) CorrectWithdrawal(ctx context.Context, accountID string, amount int64, label string) (ledger.Transaction, error) {
	if amount <= 0 {
		return ledger.Transaction{}, ErrAmountNotPositive
	}
	account, err := s.agent(accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindDebit,
		Amount:   amount,
		Memo:     ledger.PrefixWithdrawCorrection + label,
		Category: ledger.CategoryWithdrawCorrection,
		Date:     s.now().UTC(),
		FromID:   account.ID,
	}
	s.store.AppendTransaction(tx)
	s.notify(ctx, fmt.Sprintf("Correction of %d points posted for %s (%s)", amount, account.Name, label))
	s.syncer.Flush(ctx)
	return tx, nil
}

// ResetBalance zeroes an account's balance with a balance-reset debit. The
// underlying history stays in the ledger for audit.
func (s *Service) ResetBalance(ctx context.Context, accountID string) (ledger.Transaction, error) {
	account, err := s.agent(accountID)
	if err != nil {
		return ledger.Transaction{}, err
	}
	balance := reconcile.Balance(s.store.Transactions(), account.ID)
	if balance <= 0 {
		return ledger.Transaction{}, ErrInsufficientBalance
	}

	tx := ledger.Transaction{
		ID:       uuid.NewString(),
		Kind:     ledger.KindDebit,
		Amount:   balance,
		Memo:     ledger.PrefixBalanceReset,
		Category: ledger.CategoryBalanceReset,
		Date:     s.now().UTC(),
		FromID:   account.ID,
	}
	s.store.AppendTransaction(tx)
	s.notify(ctx, fmt.Sprintf("Balance of %s reset", account.Name))
	s.syncer.Flush(ctx)
	return tx, nil
}

// ResetHistory hides everything before now from the account's visible
// history and derived metrics. The ledger itself is untouched.
func (s *Service) ResetHistory(ctx context.Context, accountID string) error {
	account, err := s.store.Account(accountID)
	if err != nil {
		return err
	}
	s.store.SetEpoch(account.ID, s.now().UTC())
	s.notify(ctx, fmt.Sprintf("History of %s reset", account.Name))
	s.syncer.Flush(ctx)
	return nil
}

// ResetMetric restarts one named metric series from now.
func (s *Service) ResetMetric(ctx context.Context, metric string) error {
	switch metric {
	case ledger.MetricEarned30d, ledger.MetricSpent30d:
	default:
		return ErrUnknownMetric
	}
	s.store.SetMetricEpoch(metric, s.now().UTC())
	s.notify(ctx, fmt.Sprintf("Metric %s reset", metric))
	s.syncer.Flush(ctx)
	return nil
}

// SeedStock sets the remaining count for a prize.
func (s *Service) SeedStock(ctx context.Context, prize string, count int) error {
	if count < 0 {
		return fmt.Errorf("stock count must not be negative")
	}
	current := s.store.StockOf(prize)
	s.store.AdjustStock(prize, count-current)
	s.syncer.Flush(ctx)
	return nil
}

func (s *Service) agent(accountID string) (ledger.Account, error) {
	account, err := s.store.Account(accountID)
	if err != nil {
		return ledger.Account{}, err
	}
	if account.Role != ledger.RoleAgent {
		return ledger.Account{}, ErrNotAgent
	}
	return account, nil
}

func (s *Service) notify(ctx context.Context, text string) {
	if s.notifier != nil {
		s.notifier.Send(ctx, s.now().UTC(), text)
	}
}

func findTransaction(txs []ledger.Transaction, id string) (ledger.Transaction, error) {
	for _, tx := range txs {
		if tx.ID == id {
			return tx, nil
		}
	}
	return ledger.Transaction{}, ErrUnknownTransaction
}
