package resolve

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/boomhq/convlink/pkg/identifier"
)

// Orchestrator races the internal resolver endpoint against the local
// resolution chain. The internal branch runs under retry + circuit breaker;
// the fallback branch starts after HedgeDelay (immediately when the internal
// endpoint is unconfigured or errors first). The first branch to produce a
// UUID wins; a branch that loses the race is left to finish in the
// background so its cache backfill still lands.
type Orchestrator struct {
	internal *InternalClient
	chain    *Chain
	retry    *RetryPolicy
	breaker  *Breaker
	minter   *identifier.Minter

	HedgeDelay time.Duration
	AllowMint  bool
}

type OrchestratorOptions struct {
	HedgeDelay time.Duration
	AllowMint  bool
}

func NewOrchestrator(internal *InternalClient, chain *Chain, retry *RetryPolicy, breaker *Breaker, minter *identifier.Minter, opts OrchestratorOptions) *Orchestrator {
	if retry == nil {
		retry = NewRetryPolicy(0, 0, 0)
	}
	if breaker == nil {
		breaker = NewBreaker(0, 0)
	}
	if minter == nil {
		minter = identifier.NewMinter(identifier.DefaultNamespace)
	}
	hedge := opts.HedgeDelay
	if hedge <= 0 {
		hedge = 150 * time.Millisecond
	}
	return &Orchestrator{
		internal:   internal,
		chain:      chain,
		retry:      retry,
		breaker:    breaker,
		minter:     minter,
		HedgeDelay: hedge,
		AllowMint:  opts.AllowMint,
	}
}

// Resolve resolves raw to a canonical UUID, or nil when nothing matched and
// minting is disallowed.
func (o *Orchestrator) Resolve(ctx context.Context, raw string, payload any) *Result {
	id, ok := identifier.Classify(raw)
	if !ok {
		return nil
	}
	// Already canonical: no racing.
	if id.Kind == identifier.KindUUID {
		return &Result{UUID: id.UUID, Source: SourceDirect}
	}

	// Branches run on a context that survives the caller so a losing
	// branch's side effects (alias backfill) are not torn down mid-write.
	bg := context.WithoutCancel(ctx)

	useInternal := o.internal.Configured()
	var internalCh chan *Result
	if useInternal {
		internalCh = make(chan *Result, 1)
		go func() { internalCh <- o.resolveInternal(bg, raw) }()
	}

	fallbackCh := make(chan *Result, 1)
	fallbackStarted := false
	startFallback := func() {
		if fallbackStarted {
			return
		}
		fallbackStarted = true
		go func() { fallbackCh <- o.chain.Resolve(bg, raw, payload) }()
	}

	hedge := time.NewTimer(o.HedgeDelay)
	defer hedge.Stop()
	if !useInternal {
		startFallback()
	}

	internalPending := useInternal
	fallbackPending := true
	for internalPending || fallbackPending {
		select {
		case res := <-internalCh:
			internalPending = false
			if res != nil && res.UUID != "" {
				return res
			}
			// Internal miss or error: the fallback chain is now the only
			// hope, start it without waiting out the hedge interval.
			startFallback()
		case res := <-fallbackCh:
			fallbackPending = false
			if res != nil && res.UUID != "" && !res.Minted {
				return res
			}
		case <-hedge.C:
			startFallback()
		case <-ctx.Done():
			log.Debug().Str("raw", raw).Msg("resolution abandoned by caller")
			return nil
		}
	}

	if o.AllowMint {
		u, err := o.minter.Mint(id)
		if err != nil {
			return nil
		}
		return &Result{UUID: u.String(), Minted: true, Source: SourceMinted}
	}
	return nil
}

// resolveInternal runs the internal endpoint call with retry wrapped around
// the circuit breaker.
// nil means miss or unrecoverable failure; the orchestrator treats both the
// same way.
func (o *Orchestrator) resolveInternal(ctx context.Context, raw string) *Result {
	var uuid string
	err := o.retry.Do(ctx, func(ctx context.Context) error {
		err := o.breaker.Do(ctx, func(ctx context.Context) error {
			u, err := o.internal.Resolve(ctx, raw)
			uuid = u
			return err
		})
		if errors.Is(err, ErrCircuitOpen) {
			// The breaker already decided the backend is down; retrying
			// inside the cool-down window is pure spin.
			return Terminal(err)
		}
		return err
	})
	if err != nil {
		log.Debug().Err(err).Str("raw", raw).Msg("internal resolver branch failed")
		return nil
	}
	if uuid == "" {
		return nil
	}
	return &Result{UUID: uuid, Source: SourceInternal}
}
