package handler

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"clickearn/internal/app"
	"clickearn/internal/service"
)

// WalletHandler handles balance, wallet and withdraw.
type WalletHandler struct {
	app *app.App
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(a *app.App) *WalletHandler {
	return &WalletHandler{app: a}
}

// HandleBalance shows the balance.
func (h *WalletHandler) HandleBalance(c *Context) error {
	balance, err := h.app.GetBalance(c.Context())
	if err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("💰 Balance: %s", money(balance))
}

// HandleWallet shows the wallet dashboard and recent transactions.
func (h *WalletHandler) HandleWallet(c *Context) error {
	ctx := c.Context()
	sum, err := h.app.Summary(ctx)
	if err != nil {
		return c.Reply(Describe(err))
	}
	rec, err := h.app.Wallet(ctx)
	if err != nil {
		return c.Reply(Describe(err))
	}

	var b strings.Builder
	b.WriteString("📊 Wallet\n")
	b.WriteString("━━━━━━━━━━━━━━━\n")
	fmt.Fprintf(&b, "💰 Balance:      %s\n", money(sum.Balance))
	fmt.Fprintf(&b, "📈 Total earned: %s (%d credits)\n", money(sum.TotalEarned), sum.TransactionCount)
	fmt.Fprintf(&b, "🎯 Withdraw at:  %s (%s%%)\n", money(sum.Threshold), sum.Progress.String())
	if sum.CanWithdraw {
		b.WriteString("✅ You can withdraw, type 'withdraw'\n")
	} else {
		fmt.Fprintf(&b, "   %s to go\n", money(sum.ToThreshold))
	}
	if sum.WithdrawCount > 0 {
		fmt.Fprintf(&b, "🏦 Pending withdrawals: %d totalling %s\n", sum.WithdrawCount, money(sum.PendingWithdrawals))
	}

	if len(sum.Completions) > 0 {
		ids := make([]string, 0, len(sum.Completions))
		for id := range sum.Completions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		b.WriteString("Completions:")
		for _, id := range ids {
			fmt.Fprintf(&b, " %s×%d", id, sum.Completions[id])
		}
		b.WriteString("\n")
	}

	// Five most recent, newest first.
	txs := rec.Transactions
	if len(txs) > 0 {
		b.WriteString("Recent:\n")
	}
	for i := len(txs) - 1; i >= 0 && i >= len(txs)-5; i-- {
		tx := txs[i]
		fmt.Fprintf(&b, "  %s  +%s  %s\n", tx.Timestamp.Local().Format("2006-01-02 15:04"), money(tx.Amount), tx.Description)
	}
	b.WriteString("━━━━━━━━━━━━━━━")

	return c.Reply(b.String())
}

// HandleWithdraw requests a withdrawal of the whole balance.
func (h *WalletHandler) HandleWithdraw(c *Context) error {
	req, err := h.app.RequestWithdrawal(c.Context())
	if errors.Is(err, service.ErrInsufficientBalance) {
		return c.Replyf("%s (need %s)", Describe(err), money(h.app.WithdrawThreshold()))
	}
	if err != nil {
		return c.Reply(Describe(err))
	}
	return c.Replyf("🏦 Withdrawal of %s requested (%s), status %s", money(req.Amount), req.ID, req.Status)
}
