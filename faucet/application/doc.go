// Package application contém os casos de uso do faucet: admissão por cota
// (RateLimiter), posse exclusiva do token de ordenação da conta custodial
// (AccountOrderState) e o despacho serializado de transferências (Dispatcher).
//
// Ele depende apenas do pacote domain e não conhece net/http nem a
// tecnologia de armazenamento.
package application
