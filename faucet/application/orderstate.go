package application

import (
	"context"
	"errors"
	"fmt"

	"token-faucet/faucet/domain"
)

// TokenSource busca o token de ordenação fresco na chain (lookup da conta
// custodial). Chamado só quando o cache está vazio ou foi invalidado.
type TokenSource func(ctx context.Context) (domain.OrderToken, error)

// AccountOrderState é o dono exclusivo do token de ordenação da conta
// custodial. É a única seção crítica global do sistema.
//
// A exclusividade vem de um semáforo de canal com capacidade 1; a espera é
// limitada pelo ctx do chamador (uma espera sem limite aqui seria outage
// total, não falha local).
type AccountOrderState struct {
	sem   chan struct{}
	fetch TokenSource

	// token só é lido/escrito por quem ocupa o semáforo.
	token *domain.OrderToken
}

func NewAccountOrderState(fetch TokenSource) *AccountOrderState {
	return &AccountOrderState{
		sem:   make(chan struct{}, 1),
		fetch: fetch,
	}
}

// WithToken executa fn com posse exclusiva do token atual.
//
//   - cache vazio/invalidado: busca estado fresco via fetch antes de chamar fn
//   - fn retorna nil: a sequence em cache avança exatamente 1
//   - fn retorna erro: o cache é invalidado — a falha pode ou não ter
//     consumido a sequence on-chain, então o próximo ocupante rebusca em vez
//     de arriscar reuso
//
// Se o ctx encerra antes de adquirir o semáforo, retorna ctx.Err() sem tocar
// no cache.
func (s *AccountOrderState) WithToken(ctx context.Context, fn func(domain.OrderToken) error) error {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("waiting for dispatch slot: %w", ctx.Err())
	}
	defer func() { <-s.sem }()

	if s.token == nil {
		tok, err := s.fetch(ctx)
		if err != nil {
			return err
		}
		s.token = &tok
	}

	if err := fn(*s.token); err != nil {
		s.token = nil
		return err
	}

	s.token.Sequence++
	return nil
}

// NewChainTokenSource monta o TokenSource padrão: lookup da conta custodial
// no cliente da chain. Conta ausente vira ErrAccountNotFunded — é erro de
// configuração/funding, não condição transitória por request.
func NewChainTokenSource(chain domain.ChainClient, custodialAddress string) TokenSource {
	return func(ctx context.Context) (domain.OrderToken, error) {
		acc, err := chain.Account(ctx, custodialAddress)
		if err != nil {
			if errors.Is(err, domain.ErrAccountNotFound) {
				return domain.OrderToken{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFunded, custodialAddress)
			}
			return domain.OrderToken{}, fmt.Errorf("refreshing order token: %w", err)
		}
		return domain.OrderToken{AccountNumber: acc.AccountNumber, Sequence: acc.Sequence}, nil
	}
}
