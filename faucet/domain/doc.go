// Package domain define contratos e tipos de domínio do faucet.
//
// Este pacote não depende de net/http nem de implementações concretas
// (redis, disco, cliente da chain). A intenção é permitir testes de unidade
// puros e desacoplar as regras de negócio dos detalhes de infraestrutura.
package domain
