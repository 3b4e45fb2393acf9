package persist

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/cuebet/pool-arena/internal/arena/ledger"
)

type savedBalance struct {
	userID  string
	balance int64
}

type recordingAccounts struct{ saves chan savedBalance }

func (r recordingAccounts) SaveUserAccount(_ context.Context, userID string, balance int64) error {
	r.saves <- savedBalance{userID: userID, balance: balance}
	return nil
}

func TestAccountSinkMirrorsResultingBalance(t *testing.T) {
	repo := recordingAccounts{saves: make(chan savedBalance, 16)}
	led := ledger.New(zap.NewNop(), AccountSink{Repo: repo})
	defer led.Close()

	led.Deposit("u1", 500, "seed")
	if _, _, err := led.Escrow("u1", "w1", 200, ""); err != nil {
		t.Fatalf("escrow: %v", err)
	}

	// cada mutação grava o saldo resultante, na ordem em que aconteceu
	want := []savedBalance{
		{userID: "u1", balance: 500},
		{userID: "u1", balance: 300},
	}
	for i, w := range want {
		select {
		case got := <-repo.saves:
			if got != w {
				t.Fatalf("save %d: expected %+v, got %+v", i, w, got)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("save %d never reached the account repo", i)
		}
	}
}
