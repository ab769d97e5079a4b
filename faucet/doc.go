// Package faucet fornece o adapter HTTP do serviço: handlers, extração da
// origem do chamador e o middleware de rajada.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (admissão por cota, despacho serializado) sem net/http
//   - infra: implementações concretas (stores, cliente da chain, wallet)
//   - faucet (este pacote): handlers HTTP + extração de chave + tradução para status/headers
//
// Fluxo de um crédito:
//
//  1. Extrai a origem do chamador (XFF confiável ou RemoteAddr)
//  2. Chama o Dispatcher, que valida, admite pela cota e despacha
//  3. Traduz o Outcome para status/corpo sem vazar detalhes internos da chain
package faucet
