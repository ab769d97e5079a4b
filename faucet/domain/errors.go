package domain

import "errors"

// Taxonomia fechada de erros do fluxo de crédito.
//
// A comparação é sempre estrutural (errors.Is), nunca por substring da mensagem.
// Camadas externas embrulham com %w para acrescentar contexto sem quebrar o match.
var (
	// ErrInvalidRecipient: endereço malformado ou com prefixo errado.
	// Erro do chamador; nenhuma cota nem interação com a chain acontece.
	ErrInvalidRecipient = errors.New("invalid recipient address")

	// ErrQuotaExceeded: limite da janela estourado para endereço ou origem.
	ErrQuotaExceeded = errors.New("quota exceeded")

	// ErrQuotaStoreUnavailable: o store de cotas falhou. O limiter "fail closed":
	// sem conseguir contar, ele nega.
	ErrQuotaStoreUnavailable = errors.New("quota store unavailable")

	// ErrChainIdentityMismatch: o nó conectado não é a chain configurada.
	// Erro de configuração; trava novos dispatches até correção.
	ErrChainIdentityMismatch = errors.New("chain identity mismatch")

	// ErrAccountNotFunded: a conta custodial não existe on-chain (nunca recebeu fundos).
	// Erro de configuração/funding; também trava novos dispatches.
	ErrAccountNotFunded = errors.New("custodial account not found on chain")

	// ErrAccountNotFound: consulta de conta retornou vazio. Usado pelo cliente
	// da chain; o dispatcher traduz para ErrAccountNotFunded quando a conta
	// ausente é a custodial.
	ErrAccountNotFound = errors.New("account not found")

	// ErrNetworkFailure: falha de transporte/timeout falando com a chain.
	ErrNetworkFailure = errors.New("network failure")

	// ErrBroadcastRejected: o nó aceitou a conexão mas recusou a transação.
	ErrBroadcastRejected = errors.New("broadcast rejected by chain")
)

// IsConfigError diz se o erro é determinístico de configuração: vai se repetir
// em toda tentativa, então o dispatcher desliga o caminho de dispatch.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrChainIdentityMismatch) || errors.Is(err, ErrAccountNotFunded)
}
