package reconcile

import (
	"testing"
	"time"

	"github.com/tallyvault/tallyvault/internal/ledger"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"José  Álvarez", "jose alvarez"},
		{"JOSE ALVAREZ", "jose alvarez"},
		{"jose-alvarez", "jose alvarez"},
		{"  O'Brien ", "o brien"},
		{"Zoë", "zoe"},
		{"Ana", "ana"},
	}
	for _, c := range cases {
		if got := NormalizeName(c.in); got != c.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestLeaderboardGroupsByNormalizedName(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	accounts := []ledger.Account{
		{ID: "v", Name: "Vault", Role: ledger.RoleSystem},
		{ID: "a1", Name: "José Álvarez", Role: ledger.RoleAgent},
		{ID: "a2", Name: "jose alvarez", Role: ledger.RoleAgent},
		{ID: "b1", Name: "Ana", Role: ledger.RoleAgent},
	}
	txs := []ledger.Transaction{
		credit("s1", "a1", 300, "Work", base),
		credit("s2", "a2", 200, "More Work", base.Add(time.Hour)),
		credit("s3", "b1", 400, "Other Work", base.Add(2*time.Hour)),
		credit("m", "v", 8000, ledger.MemoMint, base),
	}

	entries := Leaderboard(accounts, txs, nil)
	if len(entries) != 2 {
		t.Fatalf("expected 2 grouped entries, got %+v", entries)
	}
	if entries[0].Name != "José Álvarez" || entries[0].Earned != 500 {
		t.Fatalf("expected grouped leader with 500, got %+v", entries[0])
	}
	if entries[1].Name != "Ana" || entries[1].Earned != 400 {
		t.Fatalf("expected Ana with 400, got %+v", entries[1])
	}
}

func TestLeaderboardTiesKeepAccountOrder(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	accounts := []ledger.Account{
		{ID: "a1", Name: "First", Role: ledger.RoleAgent},
		{ID: "a2", Name: "Second", Role: ledger.RoleAgent},
	}
	txs := []ledger.Transaction{
		credit("s1", "a1", 100, "Work", base),
		credit("s2", "a2", 100, "Work", base),
	}

	entries := Leaderboard(accounts, txs, nil)
	if entries[0].Name != "First" || entries[1].Name != "Second" {
		t.Fatalf("expected stable tie order, got %+v", entries)
	}
}

func TestLeaderboardRespectsEpochs(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	accounts := []ledger.Account{
		{ID: "a1", Name: "Ana", Role: ledger.RoleAgent},
		{ID: "a2", Name: "Bea", Role: ledger.RoleAgent},
	}
	txs := []ledger.Transaction{
		credit("s1", "a1", 500, "Work", base),
		credit("s2", "a2", 300, "Work", base),
	}
	epochs := map[string]time.Time{"a1": base.Add(time.Hour)}

	entries := Leaderboard(accounts, txs, epochs)
	if entries[0].Name != "Bea" || entries[0].Earned != 300 {
		t.Fatalf("expected epoch to zero Ana, got %+v", entries)
	}
	if entries[1].Name != "Ana" || entries[1].Earned != 0 {
		t.Fatalf("expected Ana at 0, got %+v", entries[1])
	}
}
