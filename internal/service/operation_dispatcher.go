package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-ledger/internal/core/domain"
	"wallet-ledger/internal/core/ports"
	"wallet-ledger/pkg/apperror"
	"wallet-ledger/pkg/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IdempotencyTTL sets how long idempotency keys live in the store.
type IdempotencyTTL struct {
	// Result is how long a completed result is replayed.
	Result time.Duration
	// Claim is how long an in-flight marker survives a crashed request.
	Claim time.Duration
}

var DefaultIdempotencyTTL = IdempotencyTTL{Result: 24 * time.Hour, Claim: 30 * time.Second}

// OperationDispatcherImpl implements ports.OperationDispatcher.
type OperationDispatcherImpl struct {
	resolver    ports.AccountResolver
	engine      ports.TransferEngine
	accounts    ports.AccountRepository
	identities  ports.IdentityRepository
	products    ports.ProductRepository
	idempotency ports.IdempotencyStore // nil disables Idempotency-Key handling
	ttl         IdempotencyTTL
	log         zerolog.Logger
}

// NewOperationDispatcher creates a new OperationDispatcherImpl.
func NewOperationDispatcher(
	resolver ports.AccountResolver,
	engine ports.TransferEngine,
	accounts ports.AccountRepository,
	identities ports.IdentityRepository,
	products ports.ProductRepository,
	idempotency ports.IdempotencyStore,
	ttl IdempotencyTTL,
	log zerolog.Logger,
) *OperationDispatcherImpl {
	if ttl.Result <= 0 {
		ttl.Result = DefaultIdempotencyTTL.Result
	}
	if ttl.Claim <= 0 {
		ttl.Claim = DefaultIdempotencyTTL.Claim
	}
	return &OperationDispatcherImpl{
		resolver:    resolver,
		engine:      engine,
		accounts:    accounts,
		identities:  identities,
		products:    products,
		idempotency: idempotency,
		ttl:         ttl,
		log:         log,
	}
}

// plan is a resolved transfer plus the success message to report.
type plan struct {
	spec    ports.TransferSpec
	message string
}

// Execute validates req, checks the actor's role, and runs the matching transfer.
func (d *OperationDispatcherImpl) Execute(ctx context.Context, req ports.OperationRequest) (*domain.OperationResult, error) {
	start := time.Now()
	label := "unknown"
	if _, ok := domain.ParseOperationKind(string(req.Kind)); ok {
		label = string(req.Kind)
	}

	result, replayed, err := d.execute(ctx, req)

	outcome := metrics.OutcomeSuccess
	switch {
	case err != nil:
		outcome = string(apperror.KindOf(err))
	case replayed:
		outcome = metrics.OutcomeReplay
	}
	metrics.OperationsTotal.WithLabelValues(label, outcome).Inc()
	metrics.OperationDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())

	return result, err
}

func (d *OperationDispatcherImpl) execute(ctx context.Context, req ports.OperationRequest) (*domain.OperationResult, bool, error) {
	sourceKind, err := validateRequest(req)
	if err != nil {
		return nil, false, err
	}

	allowed, err := d.identities.HasRole(ctx, req.Actor, sourceKind.Role())
	if err != nil {
		return nil, false, apperror.InternalError(fmt.Errorf("check role: %w", err))
	}
	if !allowed {
		return nil, false, apperror.ErrForbidden(fmt.Sprintf("%s role required", sourceKind))
	}

	var key string
	if req.IdempotencyKey != "" && d.idempotency != nil {
		key = domain.BuildIdempotencyKey(req.Actor, req.IdempotencyKey)
		if cached := d.lookupResult(ctx, key); cached != nil {
			return cached, true, nil
		}
		claimed, err := d.idempotency.Claim(ctx, key, d.ttl.Claim)
		if err != nil {
			// store unavailable: run without the guarantee
			d.log.Warn().Err(err).Str("key", key).Msg("idempotency claim failed, continuing without it")
			key = ""
		} else if !claimed {
			metrics.IdempotencyChecksTotal.WithLabelValues("in_flight").Inc()
			return nil, false, apperror.ErrDuplicateOperation()
		}
	}

	result, err := d.run(ctx, req, sourceKind)
	if key == "" {
		return result, false, err
	}

	if err != nil {
		if rerr := d.idempotency.Release(ctx, key); rerr != nil {
			d.log.Warn().Err(rerr).Str("key", key).Msg("failed to release idempotency claim")
		}
		return nil, false, err
	}
	d.storeResult(ctx, key, result)
	return result, false, nil
}

func (d *OperationDispatcherImpl) run(ctx context.Context, req ports.OperationRequest, sourceKind domain.Kind) (*domain.OperationResult, error) {
	var (
		p   *plan
		err error
	)
	switch req.Kind {
	case domain.OperationCashIn:
		p, err = d.planCashIn(ctx, req)
	case domain.OperationCashOut:
		p, err = d.planCashOut(ctx, req)
	case domain.OperationUtilityPayment:
		p, err = d.planUtility(ctx, req, sourceKind)
	case domain.OperationPurchase:
		p, err = d.planPurchase(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	p.spec.OperationID = uuid.New()
	p.spec.Operation = req.Kind

	res, err := d.engine.Transfer(ctx, p.spec)
	if err != nil {
		return nil, err
	}

	return &domain.OperationResult{
		Success:               true,
		OperationID:           res.OperationID,
		Operation:             req.Kind,
		Amount:                p.spec.Amount,
		NewSourceBalance:      res.SourceBalance,
		NewDestinationBalance: res.DestinationBalance,
		Message:               p.message,
	}, nil
}

// validateRequest checks the operation-specific fields and returns the kind
// of account the operation is paid from.
func validateRequest(req ports.OperationRequest) (domain.Kind, error) {
	if _, ok := domain.ParseOperationKind(string(req.Kind)); !ok {
		return "", apperror.Validation(fmt.Sprintf("Unsupported operation kind %q", req.Kind))
	}
	if req.Actor == uuid.Nil {
		return "", apperror.Validation("Actor identity is required")
	}

	if req.Kind != domain.OperationPurchase && !domain.ValidAmount(req.Amount) {
		return "", apperror.ErrInvalidAmount()
	}

	switch req.Kind {
	case domain.OperationCashIn:
		if req.CounterpartyEmail == "" {
			return "", apperror.Validation("Consumer email is required")
		}
		return domain.KindAgent, nil
	case domain.OperationCashOut:
		if req.CounterpartyEmail == "" {
			return "", apperror.Validation("Agent email is required")
		}
		return domain.KindConsumer, nil
	case domain.OperationUtilityPayment:
		if req.ActorKind != domain.KindAgent && req.ActorKind != domain.KindConsumer {
			return "", apperror.Validation("Utility payments are made from an agent or consumer account")
		}
		if err := req.Utility.Validate(); err != nil {
			return "", apperror.Validation(err.Error())
		}
		return req.ActorKind, nil
	default: // purchase
		if req.ProductID == uuid.Nil {
			return "", apperror.Validation("Product id is required")
		}
		return domain.KindConsumer, nil
	}
}

func (d *OperationDispatcherImpl) planCashIn(ctx context.Context, req ports.OperationRequest) (*plan, error) {
	agent, err := d.resolver.Resolve(ctx, req.Actor, domain.KindAgent)
	if err != nil {
		return nil, err
	}
	consumer, consumerUser, err := d.resolver.ResolveCounterparty(ctx, req.CounterpartyEmail, domain.KindConsumer)
	if err != nil {
		return nil, err
	}
	actor, err := d.actorIdentity(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	return &plan{
		spec: ports.TransferSpec{
			Source:                 agent.ID,
			Destination:            &consumer.ID,
			Amount:                 req.Amount,
			SourceDescription:      "Cash-in to Consumer: " + consumerUser.Email,
			DestinationDescription: "Cash-in from Agent: " + actor.Email,
		},
		message: fmt.Sprintf("Successfully cashed-in %s to %s.", req.Amount.StringFixed(domain.MoneyScale), consumerUser.Email),
	}, nil
}

func (d *OperationDispatcherImpl) planCashOut(ctx context.Context, req ports.OperationRequest) (*plan, error) {
	consumer, err := d.resolver.Resolve(ctx, req.Actor, domain.KindConsumer)
	if err != nil {
		return nil, err
	}
	agent, agentUser, err := d.resolver.ResolveCounterparty(ctx, req.CounterpartyEmail, domain.KindAgent)
	if err != nil {
		return nil, err
	}
	actor, err := d.actorIdentity(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	return &plan{
		spec: ports.TransferSpec{
			Source:                 consumer.ID,
			Destination:            &agent.ID,
			Amount:                 req.Amount,
			SourceDescription:      "Cash-out to Agent: " + agentUser.Email,
			DestinationDescription: "Cash-out from Consumer: " + actor.Email,
		},
		message: fmt.Sprintf("Cash-out to agent %s successful.", agentUser.Email),
	}, nil
}

func (d *OperationDispatcherImpl) planUtility(ctx context.Context, req ports.OperationRequest, payer domain.Kind) (*plan, error) {
	account, err := d.resolver.Resolve(ctx, req.Actor, payer)
	if err != nil {
		return nil, err
	}

	prefix := "Payment"
	if payer == domain.KindAgent {
		prefix = "Utility Payment"
	}
	desc := fmt.Sprintf("%s: %s", prefix, req.Utility.Type.Title())
	if ref := req.Utility.Reference(); ref != "" {
		desc += " for " + ref
	}

	return &plan{
		spec: ports.TransferSpec{
			Source:            account.ID,
			Amount:            req.Amount,
			SourceDescription: desc,
		},
		message: fmt.Sprintf("%s payment successful.", req.Utility.Type.Title()),
	}, nil
}

func (d *OperationDispatcherImpl) planPurchase(ctx context.Context, req ports.OperationRequest) (*plan, error) {
	product, err := d.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get product: %w", err))
	}
	if product == nil {
		return nil, apperror.ErrNotFound("Product")
	}

	consumer, err := d.resolver.Resolve(ctx, req.Actor, domain.KindConsumer)
	if err != nil {
		return nil, err
	}

	merchant, err := d.accounts.GetByID(ctx, product.OwnerID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant account: %w", err))
	}
	if merchant == nil || merchant.Kind != domain.KindMerchant {
		d.log.Warn().Str("product_id", product.ID.String()).Msg("product owner has no merchant account")
		return nil, apperror.ErrCounterpartyNotFound(domain.KindMerchant.Title())
	}
	merchantUser, err := d.identities.GetByID(ctx, merchant.Owner)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get merchant identity: %w", err))
	}
	if merchantUser == nil {
		return nil, apperror.ErrCounterpartyNotFound(domain.KindMerchant.Title())
	}
	actor, err := d.actorIdentity(ctx, req.Actor)
	if err != nil {
		return nil, err
	}

	return &plan{
		spec: ports.TransferSpec{
			Source:                 consumer.ID,
			Destination:            &merchant.ID,
			Amount:                 product.Price,
			SourceDescription:      fmt.Sprintf("Purchase: %s from %s", product.Name, merchantUser.Username),
			DestinationDescription: fmt.Sprintf("Sale: %s to %s", product.Name, actor.Username),
		},
		message: fmt.Sprintf("Successfully purchased '%s'.", product.Name),
	}, nil
}

func (d *OperationDispatcherImpl) actorIdentity(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	u, err := d.identities.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get actor identity: %w", err))
	}
	if u == nil {
		return nil, apperror.ErrNotFound("Identity")
	}
	return u, nil
}

// lookupResult returns a previously stored result for key. Store errors are
// logged and treated as a miss.
func (d *OperationDispatcherImpl) lookupResult(ctx context.Context, key string) *domain.OperationResult {
	cached, err := d.idempotency.Get(ctx, key)
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("idempotency lookup failed")
		return nil
	}
	if cached == nil {
		metrics.IdempotencyChecksTotal.WithLabelValues("miss").Inc()
		return nil
	}
	var result domain.OperationResult
	if err := json.Unmarshal(cached, &result); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable idempotency entry")
		return nil
	}
	metrics.IdempotencyChecksTotal.WithLabelValues("hit").Inc()
	return &result
}

// storeResult caches a committed result (best-effort).
func (d *OperationDispatcherImpl) storeResult(ctx context.Context, key string, result *domain.OperationResult) {
	data, err := json.Marshal(result)
	if err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("failed to marshal operation result")
		return
	}
	if err := d.idempotency.Set(ctx, key, data, d.ttl.Result); err != nil {
		d.log.Warn().Err(err).Str("key", key).Msg("failed to cache operation result")
	}
}
