package domain

import (
	"context"
	"time"
)

// SubjectKind separa os dois espaços de cota: endereço destinatário e origem
// de rede do chamador. Os limites são configurados de forma independente.
type SubjectKind string

const (
	SubjectAddress SubjectKind = "addr"
	SubjectOrigin  SubjectKind = "origin"
)

// QuotaRecord é o registro durável de um sujeito: cada evento admitido dentro
// da janela vira um timestamp. A lista é mantida em ordem crescente.
type QuotaRecord struct {
	Kind   SubjectKind `json:"kind"`
	Events []time.Time `json:"events"`
}

// Prune descarta eventos mais antigos que a janela (janela deslizante, não
// balde de calendário). Mantém a ordem crescente dos que sobram.
func (r *QuotaRecord) Prune(window time.Duration, now time.Time) {
	cutoff := now.Add(-window)
	i := 0
	for i < len(r.Events) && !r.Events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.Events = append(r.Events[:0], r.Events[i:]...)
	}
}

// QuotaStore é a estratégia de persistência dos registros de cota.
//
// Implementações devem sobreviver a restart do processo. A atomicidade
// read-modify-write por chave é garantida externamente pelo mutex por chave
// do RateLimiter, então Load/Save podem ser operações simples.
type QuotaStore interface {
	Load(ctx context.Context, key string) (QuotaRecord, bool, error)
	Save(ctx context.Context, key string, rec QuotaRecord) error
}

// QuotaGate é o contrato de admissão consumido pelo dispatcher.
//
// CheckAndReserve testa E conta em uma única operação atômica por sujeito:
// checar e atualizar em passos separados admitiria demais sob concorrência.
// Commit é a confirmação terminal após o crédito (no desenho atômico é um
// ponto de contrato, não uma segunda escrita).
type QuotaGate interface {
	CheckAndReserve(ctx context.Context, subject string, kind SubjectKind) (bool, error)
	Commit(ctx context.Context, subject string, kind SubjectKind)
}
