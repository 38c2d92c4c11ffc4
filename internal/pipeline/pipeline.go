// Package pipeline turns upstream log notifications into published token
// creation events: it gates on the create log marker, schedules transaction
// fetches across a bounded worker pool, decodes create instructions and
// publishes the assembled events to the broadcast hub.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/DivineUX23/pump-fun-monitor/internal/domain"
	"github.com/DivineUX23/pump-fun-monitor/internal/hub"
	"github.com/DivineUX23/pump-fun-monitor/internal/observability"
	"github.com/DivineUX23/pump-fun-monitor/internal/pumpfun"
	"github.com/DivineUX23/pump-fun-monitor/internal/solana"
)

const (
	// DefaultMaxInflightFetch bounds simultaneous transaction fetches.
	DefaultMaxInflightFetch = 16
	// DefaultQueueHighWater is the soft cap on queued signatures; past it
	// the oldest queued signatures are shed.
	DefaultQueueHighWater = 1024

	notFoundRetries    = 3
	notFoundRetryDelay = 500 * time.Millisecond
)

// Config configures the pipeline.
type Config struct {
	ProgramID        string
	MaxInflightFetch int
	QueueHighWater   int
	// VerifyReserves fetches the bonding curve account after a create and
	// logs a warning when its reserves differ from the published initial
	// constants. The published event is unaffected.
	VerifyReserves bool
}

// Pipeline consumes log notifications and publishes TokenCreatedEvents.
type Pipeline struct {
	rpc     solana.RPCClient
	hub     *hub.Hub
	decoder *pumpfun.Decoder
	cfg     Config
	log     *logrus.Entry

	queue chan string

	// now is swappable in tests.
	now func() time.Time
}

// New creates a pipeline publishing to h.
func New(rpc solana.RPCClient, h *hub.Hub, cfg Config, log *logrus.Entry) *Pipeline {
	if cfg.MaxInflightFetch <= 0 {
		cfg.MaxInflightFetch = DefaultMaxInflightFetch
	}
	if cfg.QueueHighWater <= 0 {
		cfg.QueueHighWater = DefaultQueueHighWater
	}
	if cfg.ProgramID == "" {
		cfg.ProgramID = pumpfun.ProgramID
	}
	return &Pipeline{
		rpc:     rpc,
		hub:     h,
		decoder: pumpfun.NewDecoder(log),
		cfg:     cfg,
		log:     log,
		queue:   make(chan string, cfg.QueueHighWater),
		now:     time.Now,
	}
}

// Run consumes notifs until the channel closes or ctx is cancelled. Fetch
// workers drain in-flight work before Run returns.
func (p *Pipeline) Run(ctx context.Context, notifs <-chan solana.LogNotification) error {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.MaxInflightFetch; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.fetchWorker(ctx)
		}()
	}

	defer func() {
		close(p.queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-notifs:
			if !ok {
				return nil
			}
			p.handleNotification(notif)
		}
	}
}

// handleNotification gates on the create marker and enqueues the signature.
func (p *Pipeline) handleNotification(notif solana.LogNotification) {
	observability.RecordNotification()

	if notif.Err != nil {
		observability.RecordDrop("failed_tx")
		return
	}
	if !hasCreateMarker(notif.Logs) {
		observability.RecordDrop("no_create_marker")
		return
	}

	// Non-blocking enqueue with shedding: the upstream log stream can
	// replay nothing, so past the high-water mark the oldest queued
	// signature gives way to the newest.
	for {
		select {
		case p.queue <- notif.Signature:
			observability.SetQueueDepth(len(p.queue))
			return
		default:
		}
		select {
		case old := <-p.queue:
			observability.RecordShed()
			p.log.WithField("signature", old).Warn("fetch queue full, shedding oldest signature")
		default:
		}
	}
}

// hasCreateMarker reports whether any log line equals the create marker,
// ignoring leading whitespace.
func hasCreateMarker(logs []string) bool {
	for _, line := range logs {
		if strings.TrimLeft(line, " \t") == pumpfun.CreateLogMarker {
			return true
		}
	}
	return false
}

// fetchWorker drains the signature queue.
func (p *Pipeline) fetchWorker(ctx context.Context) {
	for sig := range p.queue {
		observability.SetQueueDepth(len(p.queue))
		p.processSignature(ctx, sig)
		if ctx.Err() != nil {
			return
		}
	}
}

// processSignature fetches the transaction and publishes at most one event.
func (p *Pipeline) processSignature(ctx context.Context, signature string) {
	tx, err := p.fetchWithRetry(ctx, signature)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		p.log.WithError(err).WithField("signature", signature).Warn("dropping signature after failed fetch")
		observability.RecordDrop("fetch_failed")
		return
	}

	event := p.buildEvent(tx)
	if event == nil {
		return
	}

	p.hub.Publish(event)
	observability.RecordEventPublished()
	p.log.WithFields(logrus.Fields{
		"name":   event.Token.Name,
		"symbol": event.Token.Symbol,
		"mint":   event.Token.MintAddress,
	}).Info("token creation published")

	if p.cfg.VerifyReserves {
		p.verifyReserves(ctx, event.PumpData.BondingCurve)
	}
}

// fetchWithRetry retries NotFound with a short linear backoff; transient
// failures are already retried with exponential backoff inside the client.
func (p *Pipeline) fetchWithRetry(ctx context.Context, signature string) (*solana.Transaction, error) {
	var lastErr error
	for attempt := 0; attempt <= notFoundRetries; attempt++ {
		if attempt > 0 {
			observability.RecordFetchRetry()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(notFoundRetryDelay * time.Duration(attempt)):
			}
		}

		tx, err := p.rpc.GetTransaction(ctx, signature)
		if err == nil {
			return tx, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, solana.ErrNotFound) {
			return nil, err
		}
	}
	return nil, lastErr
}

// buildEvent walks top-level then inner instructions in order and assembles
// an event from the first create that decodes. Subsequent creates in the
// same transaction are ignored.
func (p *Pipeline) buildEvent(tx *solana.Transaction) *domain.TokenCreatedEvent {
	if tx == nil || tx.Message == nil {
		return nil
	}
	keys := tx.Message.AccountKeys

	var instructions []solana.CompiledInstruction
	instructions = append(instructions, tx.Message.Instructions...)
	if tx.Meta != nil {
		for _, inner := range tx.Meta.InnerInstructions {
			instructions = append(instructions, inner.Instructions...)
		}
	}

	for i := range instructions {
		ix := &instructions[i]
		if ix.ProgramID(keys) != p.cfg.ProgramID {
			continue
		}

		ins, applicable, err := p.decoder.DecodeCreate(ix.Data, ix.ResolveAccounts(keys))
		if !applicable {
			continue
		}
		if err != nil {
			p.log.WithError(err).WithField("signature", tx.Signature).Warn("create instruction failed to decode")
			observability.RecordDecodeFailure()
			continue
		}

		if raw, err := solana.DecodePubkey(ins.Creator); err == nil && !solana.IsOnCurve(raw) {
			p.log.WithField("creator", ins.Creator).Debug("creator account is off-curve")
		}

		return &domain.TokenCreatedEvent{
			EventType:            domain.EventTypeTokenCreated,
			Timestamp:            domain.NewEventTime(p.now()),
			TransactionSignature: tx.Signature,
			Token: domain.TokenDetails{
				MintAddress: ins.Mint,
				Name:        ins.Name,
				Symbol:      ins.Symbol,
				URI:         ins.URI,
				Creator:     ins.Creator,
				Supply:      pumpfun.InitialSupply,
				Decimals:    pumpfun.TokenDecimals,
			},
			PumpData: domain.PumpFunData{
				BondingCurve:         ins.BondingCurve,
				VirtualSolReserves:   pumpfun.InitialVirtualSolReserves,
				VirtualTokenReserves: pumpfun.InitialVirtualTokenReserves,
			},
		}
	}

	return nil
}

// verifyReserves cross-checks the published constants against the bonding
// curve account. Failures only log; the event is already out.
func (p *Pipeline) verifyReserves(ctx context.Context, bondingCurve string) {
	info, err := p.rpc.GetAccountInfo(ctx, bondingCurve)
	if err != nil || info == nil {
		p.log.WithError(err).WithField("account", bondingCurve).Debug("bonding curve fetch failed")
		return
	}
	curve, err := pumpfun.DecodeBondingCurve(info.Data)
	if err != nil {
		p.log.WithError(err).WithField("account", bondingCurve).Debug("bonding curve decode failed")
		return
	}
	if curve.VirtualSolReserves != pumpfun.InitialVirtualSolReserves ||
		curve.VirtualTokenReserves != pumpfun.InitialVirtualTokenReserves {
		p.log.WithFields(logrus.Fields{
			"account":      bondingCurve,
			"solReserves":  curve.VirtualSolReserves,
			"tokReserves":  curve.VirtualTokenReserves,
		}).Warn("bonding curve reserves differ from initial constants")
	}
}
