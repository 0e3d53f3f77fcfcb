package bank

import (
	"context"
	"testing"
	"time"

	"github.com/tallyvault/tallyvault/internal/kvsync"
	"github.com/tallyvault/tallyvault/internal/ledger"
	"github.com/tallyvault/tallyvault/internal/logging"
	"github.com/tallyvault/tallyvault/internal/notification"
	"github.com/tallyvault/tallyvault/internal/pin"
	"github.com/tallyvault/tallyvault/internal/reconcile"
	"github.com/tallyvault/tallyvault/internal/snapshot"
)

type fixture struct {
	svc    *Service
	store  *ledger.Store
	remote snapshot.Store
}

// newFixture wires the full chain onto an in-memory snapshot store, with a
// clock that steps one second per action so reversal ordering is stable.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	remote := snapshot.NewMemoryStore()
	engine := kvsync.New(remote, kvsync.NewTTLCache(time.Millisecond), time.Hour, logging.Discard())
	store := ledger.NewStore()
	syncer := ledger.NewSyncer(engine, store, logging.Discard())
	svc := NewService(store, syncer, pin.NewVerifier(store), notification.NewFeedNotifier(store, logging.Discard()))

	clock := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, store: store, remote: remote}
}

// enrolled mints the vault and enrolls one agent with 500 points.
func (f *fixture) enrolled(t *testing.T) ledger.Account {
	t.Helper()
	ctx := context.Background()
	if _, err := f.svc.Mint(ctx, "Vault", 8000); err != nil {
		t.Fatalf("mint: %v", err)
	}
	account, err := f.svc.Enroll(ctx, EnrollInput{Name: "Ana", PIN: "1234"})
	if err != nil {
		t.Fatalf("enroll: %v", err)
	}
	if _, err := f.svc.Award(ctx, AwardInput{AccountID: account.ID, Amount: 500, Memo: "Full Evaluation"}); err != nil {
		t.Fatalf("award: %v", err)
	}
	return account
}

func TestMintSucceedsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tx, err := f.svc.Mint(ctx, "Vault", 8000)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if tx.Category != ledger.CategoryMint || tx.Amount != 8000 {
		t.Fatalf("unexpected mint transaction: %+v", tx)
	}
	if _, err := f.svc.Mint(ctx, "Vault", 8000); err != ErrVaultExists {
		t.Fatalf("expected ErrVaultExists, got %v", err)
	}
}

func TestEnrollRejectedPINMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Mint(ctx, "Vault", 8000); err != nil {
		t.Fatalf("mint: %v", err)
	}

	_, err := f.svc.Enroll(ctx, EnrollInput{Name: "Ana", PIN: "12"})
	if err != pin.ErrTooShort {
		t.Fatalf("expected ErrTooShort, got %v", err)
	}
	if len(f.store.Accounts()) != 1 {
		t.Fatalf("rejected enroll must not add accounts, got %d", len(f.store.Accounts()))
	}
	if len(f.store.PINs()) != 0 {
		t.Fatalf("rejected enroll must not touch the PIN table, got %d entries", len(f.store.PINs()))
	}
}

func TestAwardRequiresVaultAndAgent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Award(ctx, AwardInput{AccountID: "x", Amount: 10}); err != ledger.ErrUnknownAccount {
		t.Fatalf("expected ErrUnknownAccount, got %v", err)
	}

	account := f.enrolled(t)
	vault, _ := f.store.Vault()
	if _, err := f.svc.Award(ctx, AwardInput{AccountID: vault.ID, Amount: 10}); err != ErrNotAgent {
		t.Fatalf("expected ErrNotAgent for vault target, got %v", err)
	}
	if got := reconcile.Balance(f.store.Transactions(), account.ID); got != 500 {
		t.Fatalf("expected balance 500, got %d", got)
	}
}

func TestRedeemHappyPath(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)
	f.svc.SeedStock(ctx, "Test Prize", 1)

	tx, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 500, PIN: "1234"})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if tx.Memo != "Redeem: Test Prize" {
		t.Fatalf("unexpected memo %q", tx.Memo)
	}
	if got := reconcile.Balance(f.store.Transactions(), account.ID); got != 0 {
		t.Fatalf("expected balance 0 after redeem, got %d", got)
	}
	if f.store.StockOf("Test Prize") != 0 {
		t.Fatalf("expected stock decremented, got %d", f.store.StockOf("Test Prize"))
	}

	// The action is flushed to the remote snapshot synchronously.
	remote, err := f.remote.Read(ctx)
	if err != nil {
		t.Fatalf("read remote: %v", err)
	}
	if _, ok := remote[ledger.KeyLedger]; !ok {
		t.Fatal("expected ledger flushed to remote store")
	}
}

func TestRedeemWrongPINMutatesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)
	f.svc.SeedStock(ctx, "Test Prize", 1)
	before := len(f.store.Transactions())

	_, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 500, PIN: "0000"})
	if err != pin.ErrMismatch {
		t.Fatalf("expected ErrMismatch, got %v", err)
	}
	if len(f.store.Transactions()) != before {
		t.Fatal("rejected action must not append transactions")
	}
	if f.store.StockOf("Test Prize") != 1 {
		t.Fatal("rejected action must not touch stock")
	}
}

func TestRedeemPreconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)

	if _, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 100, PIN: "1234"}); err != ErrOutOfStock {
		t.Fatalf("expected ErrOutOfStock, got %v", err)
	}

	f.svc.SeedStock(ctx, "Test Prize", 5)
	if _, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 600, PIN: "1234"}); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
}

func TestRedemptionCapCountsOnlyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)
	f.svc.SeedStock(ctx, "Test Prize", 5)

	first, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 100, PIN: "1234"})
	if err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 100, PIN: "1234"}); err != nil {
		t.Fatalf("second redeem: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 100, PIN: "1234"}); err != ErrRedemptionCapReached {
		t.Fatalf("expected cap at %d, got %v", RedemptionCap, err)
	}

	// Reversing frees a slot.
	if _, err := f.svc.ReverseRedemption(ctx, first.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if _, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 100, PIN: "1234"}); err != nil {
		t.Fatalf("expected freed slot to allow redeem, got %v", err)
	}
}

func TestReverseRedemptionRestoresStockAndBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)
	f.svc.SeedStock(ctx, "Test Prize", 1)

	redemption, err := f.svc.Redeem(ctx, RedeemInput{AccountID: account.ID, Prize: "Test Prize", Amount: 500, PIN: "1234"})
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if _, err := f.svc.ReverseRedemption(ctx, redemption.ID); err != nil {
		t.Fatalf("reverse: %v", err)
	}

	if got := reconcile.Balance(f.store.Transactions(), account.ID); got != 500 {
		t.Fatalf("expected balance restored to 500, got %d", got)
	}
	if f.store.StockOf("Test Prize") != 1 {
		t.Fatalf("expected stock restored, got %d", f.store.StockOf("Test Prize"))
	}
	if _, err := f.svc.ReverseRedemption(ctx, redemption.ID); err != ErrAlreadyReversed {
		t.Fatalf("expected ErrAlreadyReversed, got %v", err)
	}
	if _, err := f.svc.ReverseRedemption(ctx, "no-such-tx"); err != ErrUnknownTransaction {
		t.Fatalf("expected ErrUnknownTransaction, got %v", err)
	}
}

func TestWithdrawAndReverseSale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)

	if _, err := f.svc.Withdraw(ctx, WithdrawInput{AccountID: account.ID, Amount: 200, Label: "cash", PIN: "1234"}); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if got := reconcile.Balance(f.store.Transactions(), account.ID); got != 300 {
		t.Fatalf("expected balance 300, got %d", got)
	}

	var sale ledger.Transaction
	for _, tx := range f.store.Transactions() {
		if ledger.Classify(tx) == ledger.CategoryAward {
			sale = tx
		}
	}
	if _, err := f.svc.ReverseSale(ctx, sale.ID); err != nil {
		t.Fatalf("reverse sale: %v", err)
	}
	if reconcile.ActiveSale(f.store.Transactions(), sale) {
		t.Fatal("expected reversed sale to be inactive")
	}
	if got := reconcile.Balance(f.store.Transactions(), account.ID); got != -200 {
		t.Fatalf("expected balance -200 after reversal debit, got %d", got)
	}
	if _, err := f.svc.ReverseSale(ctx, sale.ID); err != ErrAlreadyReversed {
		t.Fatalf("expected ErrAlreadyReversed, got %v", err)
	}
}

func TestResetBalanceAndHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	account := f.enrolled(t)

	if _, err := f.svc.ResetBalance(ctx, account.ID); err != nil {
		t.Fatalf("reset balance: %v", err)
	}
	if got := reconcile.Balance(f.store.Transactions(), account.ID); got != 0 {
		t.Fatalf("expected balance 0 after reset, got %d", got)
	}
	// Nothing left to reset.
	if _, err := f.svc.ResetBalance(ctx, account.ID); err != ErrInsufficientBalance {
		t.Fatalf("expected ErrInsufficientBalance on empty account, got %v", err)
	}

	if err := f.svc.ResetHistory(ctx, account.ID); err != nil {
		t.Fatalf("reset history: %v", err)
	}
	if got := reconcile.History(f.store.Transactions(), account.ID, f.store.Epochs()); len(got) != 0 {
		t.Fatalf("expected empty visible history, got %d entries", len(got))
	}
	// The raw ledger is untouched.
	if len(f.store.Transactions()) == 0 {
		t.Fatal("history reset must not delete transactions")
	}
}

func TestResetMetricValidatesName(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if err := f.svc.ResetMetric(ctx, "bogus"); err != ErrUnknownMetric {
		t.Fatalf("expected ErrUnknownMetric, got %v", err)
	}
	if err := f.svc.ResetMetric(ctx, ledger.MetricEarned30d); err != nil {
		t.Fatalf("reset metric: %v", err)
	}
	if _, ok := f.store.MetricEpochs()[ledger.MetricEarned30d]; !ok {
		t.Fatal("expected metric epoch recorded")
	}
}

func TestActionsFeedNotifications(t *testing.T) {
	f := newFixture(t)
	f.enrolled(t)

	feed := f.store.Notifications()
	if len(feed) != 3 {
		t.Fatalf("expected 3 feed entries (mint, enroll, award), got %d", len(feed))
	}
}
