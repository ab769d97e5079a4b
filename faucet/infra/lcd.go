package infra

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"token-faucet/faucet/domain"
)

// LCDClient fala com o endpoint REST (LCD) do nó da chain.
// Implementa domain.ChainClient.
//
// As respostas são lidas com gjson em vez de structs espelhando o nó inteiro:
// o faucet só consome meia dúzia de campos.
type LCDClient struct {
	base    string
	chainID string
	signer  domain.Signer
	hc      *http.Client
}

type LCDOption func(*LCDClient)

func WithHTTPClient(hc *http.Client) LCDOption {
	return func(c *LCDClient) { c.hc = hc }
}

func NewLCDClient(baseURL, chainID string, signer domain.Signer, opts ...LCDOption) *LCDClient {
	c := &LCDClient{
		base:    strings.TrimRight(baseURL, "/"),
		chainID: chainID,
		signer:  signer,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LCDClient) get(ctx context.Context, path string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: GET %s: %v", domain.ErrNetworkFailure, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading %s: %v", domain.ErrNetworkFailure, path, err)
	}
	return resp.StatusCode, body, nil
}

func (c *LCDClient) ChainID(ctx context.Context) (string, error) {
	status, body, err := c.get(ctx, "/node_info")
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", fmt.Errorf("%w: GET /node_info: status %d", domain.ErrNetworkFailure, status)
	}

	network := gjson.GetBytes(body, "node_info.network")
	if !network.Exists() {
		network = gjson.GetBytes(body, "default_node_info.network")
	}
	if network.String() == "" {
		return "", fmt.Errorf("%w: node_info without network field", domain.ErrNetworkFailure)
	}
	return network.String(), nil
}

func (c *LCDClient) Account(ctx context.Context, address string) (domain.Account, error) {
	status, body, err := c.get(ctx, "/auth/accounts/"+address)
	if err != nil {
		return domain.Account{}, err
	}
	if status == http.StatusNotFound {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
	}
	if status != http.StatusOK {
		return domain.Account{}, fmt.Errorf("%w: GET /auth/accounts: status %d", domain.ErrNetworkFailure, status)
	}

	value := gjson.GetBytes(body, "result.value")
	// o nó responde 200 com value.address vazio para conta inexistente
	if value.Get("address").String() == "" {
		return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, address)
	}

	return domain.Account{
		Address:       value.Get("address").String(),
		AccountNumber: value.Get("account_number").Uint(),
		Sequence:      value.Get("sequence").Uint(),
	}, nil
}

func (c *LCDClient) AllBalances(ctx context.Context, address string) ([]domain.Coin, error) {
	status, body, err := c.get(ctx, "/bank/balances/"+address)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: GET /bank/balances: status %d", domain.ErrNetworkFailure, status)
	}

	var coins []domain.Coin
	for _, item := range gjson.GetBytes(body, "result").Array() {
		coins = append(coins, domain.Coin{
			Amount: item.Get("amount").String(),
			Denom:  item.Get("denom").String(),
		})
	}
	return coins, nil
}

// Forma amino-JSON legada das transações. A ordem de declaração dos campos
// do sign doc é alfabética de propósito: json.Marshal preserva a ordem de
// declaração e o nó verifica a assinatura sobre a forma canônica.
type stdFee struct {
	Amount []domain.Coin `json:"amount"`
	Gas    string        `json:"gas"`
}

type msgSendValue struct {
	Amount      []domain.Coin `json:"amount"`
	FromAddress string        `json:"from_address"`
	ToAddress   string        `json:"to_address"`
}

type stdMsg struct {
	Type  string       `json:"type"`
	Value msgSendValue `json:"value"`
}

type signDoc struct {
	AccountNumber string   `json:"account_number"`
	ChainID       string   `json:"chain_id"`
	Fee           stdFee   `json:"fee"`
	Memo          string   `json:"memo"`
	Msgs          []stdMsg `json:"msgs"`
	Sequence      string   `json:"sequence"`
}

type pubKeyEnvelope struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type stdSignature struct {
	PubKey    pubKeyEnvelope `json:"pub_key"`
	Signature string         `json:"signature"`
}

type stdTx struct {
	Msg        []stdMsg       `json:"msg"`
	Fee        stdFee         `json:"fee"`
	Signatures []stdSignature `json:"signatures"`
	Memo       string         `json:"memo"`
}

type broadcastReq struct {
	Tx   stdTx  `json:"tx"`
	Mode string `json:"mode"`
}

// SendTransfer constrói, assina e transmite uma transferência usando o token
// de ordenação recebido do dispatcher.
func (c *LCDClient) SendTransfer(ctx context.Context, tx domain.Transfer) (string, error) {
	msgs := []stdMsg{{
		Type: "cosmos-sdk/MsgSend",
		Value: msgSendValue{
			Amount:      []domain.Coin{tx.Amount},
			FromAddress: tx.From,
			ToAddress:   tx.To,
		},
	}}
	fee := stdFee{
		Amount: []domain.Coin{tx.Fee},
		Gas:    strconv.FormatUint(tx.GasLimit, 10),
	}

	signBytes, err := json.Marshal(signDoc{
		AccountNumber: strconv.FormatUint(tx.Token.AccountNumber, 10),
		ChainID:       c.chainID,
		Fee:           fee,
		Memo:          tx.Memo,
		Msgs:          msgs,
		Sequence:      strconv.FormatUint(tx.Token.Sequence, 10),
	})
	if err != nil {
		return "", err
	}

	sig, err := c.signer.Sign(signBytes)
	if err != nil {
		return "", fmt.Errorf("signing transfer: %w", err)
	}

	payload, err := json.Marshal(broadcastReq{
		Tx: stdTx{
			Msg: msgs,
			Fee: fee,
			Signatures: []stdSignature{{
				PubKey: pubKeyEnvelope{
					Type:  "tendermint/PubKeySecp256k1",
					Value: base64.StdEncoding.EncodeToString(c.signer.PubKey()),
				},
				Signature: base64.StdEncoding.EncodeToString(sig),
			}},
			Memo: tx.Memo,
		},
		Mode: "block",
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/txs", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: POST /txs: %v", domain.ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: reading /txs response: %v", domain.ErrNetworkFailure, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", domain.ErrBroadcastRejected, resp.StatusCode, truncate(body, 200))
	}

	if code := gjson.GetBytes(body, "code"); code.Exists() && code.Uint() != 0 {
		return "", fmt.Errorf("%w: code %d: %s", domain.ErrBroadcastRejected, code.Uint(), gjson.GetBytes(body, "raw_log").String())
	}

	txHash := gjson.GetBytes(body, "txhash").String()
	if txHash == "" {
		return "", fmt.Errorf("%w: broadcast response without txhash", domain.ErrBroadcastRejected)
	}
	return txHash, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
