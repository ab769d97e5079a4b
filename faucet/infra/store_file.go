package infra

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"token-faucet/faucet/domain"
)

// FileQuotaStore persiste um arquivo JSON por sujeito em um diretório de
// estado. Serve para instalações de nó único e para os testes de restart;
// sobrevive ao processo sem depender de serviço externo.
//
// A escrita é tmp + rename no mesmo diretório, então um crash no meio de um
// Save deixa o registro anterior intacto.
type FileQuotaStore struct {
	dir string
}

func NewFileQuotaStore(dir string) (*FileQuotaStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating quota state dir: %w", err)
	}
	return &FileQuotaStore{dir: dir}, nil
}

// fileName deriva o nome do arquivo do hash da chave: chaves de sujeito
// carregam ":" e endereços arbitrários, que não são nomes de arquivo seguros.
func (s *FileQuotaStore) fileName(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:16])+".json")
}

func (s *FileQuotaStore) Load(_ context.Context, key string) (domain.QuotaRecord, bool, error) {
	raw, err := os.ReadFile(s.fileName(key))
	if os.IsNotExist(err) {
		return domain.QuotaRecord{}, false, nil
	}
	if err != nil {
		return domain.QuotaRecord{}, false, err
	}

	var rec domain.QuotaRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.QuotaRecord{}, false, err
	}
	return rec, true, nil
}

func (s *FileQuotaStore) Save(_ context.Context, key string, rec domain.QuotaRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "quota-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.fileName(key))
}
