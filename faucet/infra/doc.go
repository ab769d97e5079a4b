// Package infra contém as implementações concretas (infraestrutura) para os
// contratos definidos no pacote domain.
//
// Exemplos:
//   - RedisQuotaStore / FileQuotaStore: persistência dos registros de cota
//   - BurstStore: token bucket por origem usando golang.org/x/time/rate
//   - LCDClient: cliente REST do nó da chain
//   - Wallet: derivação da conta custodial a partir da frase secreta
package infra
