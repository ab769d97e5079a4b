package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Nó de chain falso para validação manual do faucetd, sem precisar de um nó
// de verdade: responde node_info, contas, saldos e aceita qualquer broadcast.
//
// Rode com `go run ./teste-validacao/chain-falsa` e aponte LCD_URL para
// http://localhost:1317 com CHAIN_ID=chain-falsa-1.
func main() {
	var mu sync.Mutex
	sequence := 0
	txCount := 0

	http.HandleFunc("/node_info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"node_info":{"network":"chain-falsa-1"}}`)
	})

	http.HandleFunc("/auth/accounts/", func(w http.ResponseWriter, r *http.Request) {
		address := strings.TrimPrefix(r.URL.Path, "/auth/accounts/")
		mu.Lock()
		seq := sequence
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"height":"1","result":{"type":"cosmos-sdk/Account","value":{"address":%q,"account_number":"7","sequence":"%d"}}}`, address, seq)
		fmt.Println("Log: consulta de conta", address)
	})

	http.HandleFunc("/bank/balances/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"height":"1","result":[{"denom":"ufalso","amount":"1000000000"}]}`)
	})

	http.HandleFunc("/txs", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "bad tx", http.StatusBadRequest)
			return
		}
		mu.Lock()
		sequence++
		txCount++
		n := txCount
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"height":"2","txhash":"FAKEHASH%08d","code":0,"raw_log":"[]"}`, n)
		fmt.Println("Log: broadcast aceito, tx", n)
	})

	fmt.Println("Chain falsa rodando em http://localhost:1317 (network chain-falsa-1)")
	if err := http.ListenAndServe(":1317", nil); err != nil {
		fmt.Printf("Erro ao subir o servidor: %s\n", err)
	}
}
