package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"wallet-ledger/internal/adapter/storage/memory"
	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ledger wires the real services over the memory store.
type ledger struct {
	store      *memory.Store
	accounts   *memory.AccountRepo
	history    *memory.HistoryRepo
	products   *memory.ProductRepo
	dispatcher *OperationDispatcherImpl
	accountSvc ports.AccountService
	catalog    ports.CatalogService
}

func newLedger(t *testing.T) *ledger {
	t.Helper()
	s := memory.NewStore()
	l := &ledger{
		store:    s,
		accounts: memory.NewAccountRepo(s),
		history:  memory.NewHistoryRepo(s),
		products: memory.NewProductRepo(s),
	}
	identities := memory.NewIdentityRepo(s)
	resolver := NewAccountResolver(l.accounts, identities, zerolog.Nop())
	engine := NewTransferEngine(l.accounts, NewTransactionRecorder(l.history), memory.NewTransactor(s), DefaultRetryPolicy, zerolog.Nop())
	l.dispatcher = NewOperationDispatcher(resolver, engine, l.accounts, identities, l.products, nil, IdempotencyTTL{}, zerolog.Nop())
	l.accountSvc = NewAccountService(l.accounts, l.history, identities, resolver, zerolog.Nop())
	l.catalog = NewCatalogService(l.products, resolver, zerolog.Nop())
	return l
}

// user registers an identity holding role kind with an account at balance.
func (l *ledger) user(t *testing.T, name string, kind domain.Kind, balance string) (*domain.User, *domain.Account) {
	t.Helper()
	u := &domain.User{ID: uuid.New(), Username: name, Email: name + "@example.com"}
	l.store.AddUser(*u, kind.Role())
	a := domain.NewAccount(u.ID, kind)
	a.Balance = dec(balance)
	require.NoError(t, l.accounts.Create(context.Background(), a))
	return u, a
}

func (l *ledger) balance(t *testing.T, id uuid.UUID) string {
	t.Helper()
	a, err := l.accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.Balance.StringFixed(2)
}

func (l *ledger) entries(t *testing.T, id uuid.UUID) []domain.HistoryEntry {
	t.Helper()
	e, _, err := l.history.ListByAccount(context.Background(), ports.HistoryListParams{AccountID: id, Page: 1, PageSize: 100})
	require.NoError(t, err)
	return e
}

func TestLedger_CashInScenario(t *testing.T) {
	l := newLedger(t)
	agentUser, agent := l.user(t, "agent1", domain.KindAgent, "100.00")
	consumerUser, consumer := l.user(t, "con1", domain.KindConsumer, "0.00")

	res, err := l.dispatcher.Execute(context.Background(), ports.OperationRequest{
		Kind:              domain.OperationCashIn,
		Actor:             agentUser.ID,
		Amount:            dec("40.00"),
		CounterpartyEmail: consumerUser.Email,
	})
	require.NoError(t, err)
	assert.Equal(t, "60.00", res.NewSourceBalance.StringFixed(2))
	assert.Equal(t, "40.00", res.NewDestinationBalance.StringFixed(2))

	assert.Equal(t, "60.00", l.balance(t, agent.ID))
	assert.Equal(t, "40.00", l.balance(t, consumer.ID))

	agentEntries := l.entries(t, agent.ID)
	consumerEntries := l.entries(t, consumer.ID)
	require.Len(t, agentEntries, 1)
	require.Len(t, consumerEntries, 1)
	assert.Equal(t, "Cash-in to Consumer: con1@example.com", agentEntries[0].Description)
	assert.Equal(t, "Cash-in from Agent: agent1@example.com", consumerEntries[0].Description)
	assert.Equal(t, agentEntries[0].OperationID, consumerEntries[0].OperationID)
	assert.Equal(t, "40.00", agentEntries[0].Amount.StringFixed(2))
}

func TestLedger_PurchaseInsufficientFunds(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	consumerUser, consumer := l.user(t, "con1", domain.KindConsumer, "10.00")
	merchantUser, merchant := l.user(t, "shop1", domain.KindMerchant, "0.00")

	product, err := l.catalog.CreateProduct(ctx, ports.CreateProductRequest{
		Merchant: merchantUser.ID, Name: "Headphones", Price: dec("15.00"),
	})
	require.NoError(t, err)
	assert.Equal(t, merchant.ID, product.OwnerID)

	res, err := l.dispatcher.Execute(ctx, ports.OperationRequest{
		Kind:      domain.OperationPurchase,
		Actor:     consumerUser.ID,
		ProductID: product.ID,
	})
	assert.Nil(t, res)
	assert.Equal(t, apperror.KindInsufficientFunds, apperror.KindOf(err))
	assert.Equal(t, apperror.Result{ErrorKind: apperror.KindInsufficientFunds, Message: "Insufficient balance"}, apperror.ResultOf(err))

	assert.Equal(t, "10.00", l.balance(t, consumer.ID))
	assert.Equal(t, "0.00", l.balance(t, merchant.ID))
	assert.Empty(t, l.entries(t, consumer.ID))
	assert.Empty(t, l.entries(t, merchant.ID))
}

func TestLedger_PurchaseSuccess(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	consumerUser, consumer := l.user(t, "con1", domain.KindConsumer, "20.00")
	merchantUser, merchant := l.user(t, "shop1", domain.KindMerchant, "1.00")

	product, err := l.catalog.CreateProduct(ctx, ports.CreateProductRequest{
		Merchant: merchantUser.ID, Name: "Headphones", Price: dec("15.00"),
	})
	require.NoError(t, err)

	_, err = l.dispatcher.Execute(ctx, ports.OperationRequest{
		Kind: domain.OperationPurchase, Actor: consumerUser.ID, ProductID: product.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "5.00", l.balance(t, consumer.ID))
	assert.Equal(t, "16.00", l.balance(t, merchant.ID))
	assert.Equal(t, "Purchase: Headphones from shop1", l.entries(t, consumer.ID)[0].Description)
	assert.Equal(t, "Sale: Headphones to con1", l.entries(t, merchant.ID)[0].Description)
}

func TestLedger_PurchaseAfterPriceUpdate(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	consumerUser, consumer := l.user(t, "con1", domain.KindConsumer, "20.00")
	merchantUser, merchant := l.user(t, "shop1", domain.KindMerchant, "0.00")
	rivalUser, _ := l.user(t, "shop2", domain.KindMerchant, "0.00")

	product, err := l.catalog.CreateProduct(ctx, ports.CreateProductRequest{
		Merchant: merchantUser.ID, Name: "Tom & Jerry's DVD", Price: dec("15.00"),
	})
	require.NoError(t, err)

	_, err = l.catalog.UpdateProduct(ctx, ports.UpdateProductRequest{
		Merchant: rivalUser.ID, ProductID: product.ID, Name: "Hijacked", Price: dec("0.01"),
	})
	assertAppError(t, err, "AUTH_002")

	_, err = l.catalog.UpdateProduct(ctx, ports.UpdateProductRequest{
		Merchant: merchantUser.ID, ProductID: product.ID, Name: product.Name, Price: dec("7.25"),
	})
	require.NoError(t, err)

	_, err = l.dispatcher.Execute(ctx, ports.OperationRequest{
		Kind: domain.OperationPurchase, Actor: consumerUser.ID, ProductID: product.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "12.75", l.balance(t, consumer.ID))
	assert.Equal(t, "7.25", l.balance(t, merchant.ID))
	assert.Equal(t, "Purchase: Tom & Jerry's DVD from shop1", l.entries(t, consumer.ID)[0].Description)

	require.NoError(t, l.catalog.DeleteProduct(ctx, merchantUser.ID, product.ID))
	_, err = l.dispatcher.Execute(ctx, ports.OperationRequest{
		Kind: domain.OperationPurchase, Actor: consumerUser.ID, ProductID: product.ID,
	})
	assertAppError(t, err, "LED_005")
	assert.Len(t, l.entries(t, consumer.ID), 1, "history survives the product")
}

func TestLedger_CashOutUnknownAgent(t *testing.T) {
	l := newLedger(t)
	consumerUser, consumer := l.user(t, "con1", domain.KindConsumer, "50.00")
	// registered, but holds no agent account
	l.user(t, "plain", domain.KindConsumer, "0.00")

	for _, email := range []string{"nobody@example.com", "plain@example.com"} {
		_, err := l.dispatcher.Execute(context.Background(), ports.OperationRequest{
			Kind:              domain.OperationCashOut,
			Actor:             consumerUser.ID,
			Amount:            dec("25.00"),
			CounterpartyEmail: email,
		})
		assert.Equal(t, apperror.KindCounterpartyNotFound, apperror.KindOf(err), email)
	}

	assert.Equal(t, "50.00", l.balance(t, consumer.ID))
	assert.Empty(t, l.entries(t, consumer.ID))
}

func TestLedger_UtilityPaymentIsDebitOnly(t *testing.T) {
	l := newLedger(t)
	agentUser, agent := l.user(t, "agent1", domain.KindAgent, "30.00")

	res, err := l.dispatcher.Execute(context.Background(), ports.OperationRequest{
		Kind:      domain.OperationUtilityPayment,
		Actor:     agentUser.ID,
		ActorKind: domain.KindAgent,
		Amount:    dec("12.25"),
		Utility:   domain.UtilityBill{Type: domain.UtilityElectricity, MeterNumber: "MTR-1"},
	})
	require.NoError(t, err)
	assert.Nil(t, res.NewDestinationBalance)
	assert.Equal(t, "17.75", l.balance(t, agent.ID))

	entries := l.entries(t, agent.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, "Utility Payment: Electricity for MTR-1", entries[0].Description)
}

func TestLedger_ConcurrentCashIns(t *testing.T) {
	const n = 20
	amount := dec("5.00")

	l := newLedger(t)
	agentUser, agent := l.user(t, "agent1", domain.KindAgent, amount.Mul(decimal.NewFromInt(n-1)).StringFixed(2))

	consumers := make([]*domain.Account, n)
	emails := make([]string, n)
	for i := range n {
		u, a := l.user(t, fmt.Sprintf("con%d", i), domain.KindConsumer, "0.00")
		consumers[i], emails[i] = a, u.Email
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.dispatcher.Execute(context.Background(), ports.OperationRequest{
				Kind:              domain.OperationCashIn,
				Actor:             agentUser.ID,
				Amount:            amount,
				CounterpartyEmail: emails[i],
			})
		}(i)
	}
	wg.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperror.KindOf(err) == apperror.KindInsufficientFunds:
			insufficient++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, n-1, succeeded)
	assert.Equal(t, 1, insufficient)

	assert.Equal(t, "0.00", l.balance(t, agent.ID))
	credited := decimal.Zero
	for _, c := range consumers {
		a, _ := l.accounts.GetByID(context.Background(), c.ID)
		credited = credited.Add(a.Balance)
	}
	assert.Equal(t, amount.Mul(decimal.NewFromInt(n-1)).StringFixed(2), credited.StringFixed(2))
	assert.Len(t, l.entries(t, agent.ID), n-1)
}

func TestLedger_ConservationAcrossMixedOperations(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	agentUser, agent := l.user(t, "agent1", domain.KindAgent, "500.00")
	consumerUser, consumer := l.user(t, "con1", domain.KindConsumer, "0.00")

	total := func() decimal.Decimal {
		a, _ := l.accounts.GetByID(ctx, agent.ID)
		c, _ := l.accounts.GetByID(ctx, consumer.ID)
		return a.Balance.Add(c.Balance)
	}
	before := total()

	ops := []ports.OperationRequest{
		{Kind: domain.OperationCashIn, Actor: agentUser.ID, Amount: dec("120.10"), CounterpartyEmail: consumerUser.Email},
		{Kind: domain.OperationCashOut, Actor: consumerUser.ID, Amount: dec("20.05"), CounterpartyEmail: agentUser.Email},
		{Kind: domain.OperationCashOut, Actor: consumerUser.ID, Amount: dec("1000"), CounterpartyEmail: agentUser.Email},
		{Kind: domain.OperationCashIn, Actor: agentUser.ID, Amount: dec("0.01"), CounterpartyEmail: consumerUser.Email},
	}
	for _, op := range ops {
		_, _ = l.dispatcher.Execute(ctx, op)
		assert.True(t, total().Equal(before), "two-party transfers conserve funds")
	}
	assert.Equal(t, "100.06", l.balance(t, consumer.ID))
	assert.Equal(t, "399.94", l.balance(t, agent.ID))
}

func TestLedger_OpenAccountAndHistory(t *testing.T) {
	l := newLedger(t)
	ctx := context.Background()
	id := uuid.New()
	l.store.AddUser(domain.User{ID: id, Username: "dual", Email: "dual@example.com"}, domain.RoleConsumer)

	acct, err := l.accountSvc.OpenAccount(ctx, id, domain.KindConsumer)
	require.NoError(t, err)
	assert.True(t, acct.Balance.IsZero())

	_, err = l.accountSvc.OpenAccount(ctx, id, domain.KindConsumer)
	assertAppError(t, err, "LED_008")
	assert.Equal(t, apperror.KindDuplicate, apperror.KindOf(err))

	_, err = l.accountSvc.OpenAccount(ctx, id, domain.KindAgent)
	assertAppError(t, err, "AUTH_002")

	agentUser, _ := l.user(t, "agent1", domain.KindAgent, "10.00")
	for _, amt := range []string{"1.00", "2.00", "3.00"} {
		_, err := l.dispatcher.Execute(ctx, ports.OperationRequest{
			Kind: domain.OperationCashIn, Actor: agentUser.ID, Amount: dec(amt), CounterpartyEmail: "dual@example.com",
		})
		require.NoError(t, err)
	}

	got, err := l.accountSvc.GetBalance(ctx, id, domain.KindConsumer)
	require.NoError(t, err)
	again, err := l.accountSvc.GetBalance(ctx, id, domain.KindConsumer)
	require.NoError(t, err)
	assert.Equal(t, "6.00", got.Balance.StringFixed(2))
	assert.True(t, got.Balance.Equal(again.Balance), "repeated reads agree")

	page, total, err := l.accountSvc.ListHistory(ctx, id, domain.KindConsumer, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, page, 2)
	assert.Equal(t, "3.00", page[0].Amount.StringFixed(2), "newest first")

	_, _, err = l.accountSvc.ListHistory(ctx, id, domain.KindMerchant, 1, 10)
	assertAppError(t, err, "LED_003")
}
