package domain

import "context"

// OrderToken é o par (account number, sequence) exigido pela chain para
// aceitar a próxima transação da conta custodial. Estritamente crescente,
// sem buracos. Nunca circula fora da seção exclusiva do AccountOrderState.
type OrderToken struct {
	AccountNumber uint64
	Sequence      uint64
}

// Coin é um valor em uma denominação da chain.
//
// A ordem dos campos segue a forma canônica do sign doc (chaves em ordem
// alfabética); não reordenar.
type Coin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

// Account é o estado on-chain mínimo de uma conta.
type Account struct {
	Address       string
	AccountNumber uint64
	Sequence      uint64
}

// Transfer descreve uma transferência única da conta custodial.
type Transfer struct {
	From     string
	To       string
	Amount   Coin
	Fee      Coin
	GasLimit uint64
	Memo     string
	Token    OrderToken
}

// ChainClient é o colaborador externo que fala com o nó da chain.
//
// Falhas esperadas: ErrAccountNotFound quando a conta não existe,
// ErrNetworkFailure para problemas de transporte e ErrBroadcastRejected
// quando o nó recusa a transação.
type ChainClient interface {
	ChainID(ctx context.Context) (string, error)
	Account(ctx context.Context, address string) (Account, error)
	AllBalances(ctx context.Context, address string) ([]Coin, error)
	SendTransfer(ctx context.Context, tx Transfer) (txHash string, err error)
}

// Signer é o colaborador de assinatura derivado da frase secreta.
type Signer interface {
	Address() string
	// PubKey retorna a chave pública comprimida (33 bytes).
	PubKey() []byte
	// Sign assina o digest dos bytes canônicos e retorna a forma compacta r||s (64 bytes).
	Sign(msg []byte) ([]byte, error)
}
