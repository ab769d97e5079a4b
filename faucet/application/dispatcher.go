package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"token-faucet/faucet/domain"
)

// DispatcherConfig é o valor imutável de configuração do despacho, montado
// uma vez no startup e passado explicitamente (nada de config global mutável).
type DispatcherConfig struct {
	ChainID       string
	AddressPrefix string
	Amount        domain.Coin
	Fee           domain.Coin
	GasLimit      uint64
	Memo          string

	// DispatchTimeout limita a seção exclusiva inteira (aquisição + chain).
	DispatchTimeout time.Duration

	// ValidateRecipient permite injetar validação sintática completa (bech32
	// com checksum). Se nil, vale a checagem de prefixo/forma básica.
	ValidateRecipient func(address string) error
}

// Dispatcher serializa as tentativas de crédito da conta custodial.
//
// Máquina de estados de um request:
// Received → Validated → Admitted → Dispatching → {Succeeded | Failed}.
// Nenhum caminho volta a um estado anterior; Failed é terminal e vai para o
// chamador — retry é decisão de quem chama, nunca interna.
type Dispatcher struct {
	cfg   DispatcherConfig
	quota domain.QuotaGate
	order *AccountOrderState
	chain domain.ChainClient
	from  string
	log   zerolog.Logger

	// fatal guarda o primeiro erro de configuração visto no dispatch.
	// Erros de configuração se repetem deterministicamente, então novas
	// tentativas curto-circuitam até o operador corrigir e reiniciar.
	mu    sync.Mutex
	fatal error
}

func NewDispatcher(cfg DispatcherConfig, quota domain.QuotaGate, order *AccountOrderState, chain domain.ChainClient, custodialAddress string, log zerolog.Logger) *Dispatcher {
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = 15 * time.Second
	}
	if cfg.ValidateRecipient == nil {
		prefix := cfg.AddressPrefix
		cfg.ValidateRecipient = func(address string) error {
			if !strings.HasPrefix(address, prefix+"1") || len(address) < len(prefix)+7 || len(address) > 90 {
				return fmt.Errorf("%w: want prefix %q", domain.ErrInvalidRecipient, prefix)
			}
			return nil
		}
	}
	return &Dispatcher{
		cfg:   cfg,
		quota: quota,
		order: order,
		chain: chain,
		from:  custodialAddress,
		log:   log,
	}
}

func (d *Dispatcher) fatalErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fatal
}

func (d *Dispatcher) latch(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fatal == nil {
		d.fatal = err
	}
}

// Disburse valida, admite pela cota e despacha uma transferência fixa para
// recipient, tudo dentro dos guards descritos no tipo.
func (d *Dispatcher) Disburse(ctx context.Context, recipient, origin string) domain.Outcome {
	fail := func(err error) domain.Outcome {
		return domain.Outcome{Recipient: recipient, At: time.Now(), Err: err}
	}

	// 1) validação sintática: sem efeito colateral nenhum quando falha
	if err := d.cfg.ValidateRecipient(recipient); err != nil {
		if !errors.Is(err, domain.ErrInvalidRecipient) {
			err = fmt.Errorf("%w: %v", domain.ErrInvalidRecipient, err)
		}
		return fail(err)
	}

	if err := d.fatalErr(); err != nil {
		return fail(err)
	}

	// 2) admissão: endereço E origem precisam caber na janela.
	// Reserva não é devolvida se um guard posterior falhar (anti-abuso).
	for _, gate := range []struct {
		subject string
		kind    domain.SubjectKind
	}{
		{recipient, domain.SubjectAddress},
		{origin, domain.SubjectOrigin},
	} {
		allowed, err := d.quota.CheckAndReserve(ctx, gate.subject, gate.kind)
		if err != nil {
			d.log.Error().Err(err).Str("subject", gate.subject).Msg("quota store failure, denying")
			return fail(err)
		}
		if !allowed {
			return fail(fmt.Errorf("%w: %s %q", domain.ErrQuotaExceeded, gate.kind, gate.subject))
		}
	}

	// 3) seção exclusiva, limitada por timeout: segurar o token sem limite
	// pararia todos os créditos pendentes
	dctx, cancel := context.WithTimeout(ctx, d.cfg.DispatchTimeout)
	defer cancel()

	var txHash string
	var usedSeq uint64
	err := d.order.WithToken(dctx, func(tok domain.OrderToken) error {
		id, err := d.chain.ChainID(dctx)
		if err != nil {
			return fmt.Errorf("querying chain identity: %w", err)
		}
		if id != d.cfg.ChainID {
			return fmt.Errorf("%w: connected to %q, expected %q", domain.ErrChainIdentityMismatch, id, d.cfg.ChainID)
		}

		hash, err := d.chain.SendTransfer(dctx, domain.Transfer{
			From:     d.from,
			To:       recipient,
			Amount:   d.cfg.Amount,
			Fee:      d.cfg.Fee,
			GasLimit: d.cfg.GasLimit,
			Memo:     d.cfg.Memo,
			Token:    tok,
		})
		if err != nil {
			// contexto para o operador; o chamador só vê falha opaca
			return fmt.Errorf("sending %s%s to %s: %w", d.cfg.Amount.Amount, d.cfg.Amount.Denom, recipient, err)
		}
		txHash = hash
		usedSeq = tok.Sequence
		return nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: dispatch timed out: %v", domain.ErrNetworkFailure, err)
		}
		if domain.IsConfigError(err) {
			d.latch(err)
			d.log.Error().Err(err).Msg("configuration error, dispatch disabled until restart")
		} else {
			d.log.Error().Err(err).Str("recipient", recipient).Str("origin", origin).Msg("dispatch failed")
		}
		// 4) sem reembolso: a tentativa falhada consumiu a vaga da janela
		return fail(err)
	}

	d.quota.Commit(ctx, recipient, domain.SubjectAddress)
	d.quota.Commit(ctx, origin, domain.SubjectOrigin)

	d.log.Info().
		Str("recipient", recipient).
		Str("origin", origin).
		Str("txhash", txHash).
		Uint64("sequence", usedSeq).
		Str("amount", d.cfg.Amount.Amount+d.cfg.Amount.Denom).
		Msg("transfer dispatched")

	return domain.Outcome{OK: true, TxHash: txHash, Recipient: recipient, At: time.Now()}
}
