package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"linkoftrust/crypto"
	"linkoftrust/native/trust"
)

type modifyProfileParams struct {
	Caller  string `json:"caller"`
	Payment string `json:"payment,omitempty"`
	Profile string `json:"profile"`
}

type trustParams struct {
	Caller  string   `json:"caller"`
	Payment string   `json:"payment,omitempty"`
	Target  string   `json:"target"`
	Level   *float64 `json:"level"`
}

type targetParams struct {
	Caller  string `json:"caller"`
	Payment string `json:"payment,omitempty"`
	Target  string `json:"target"`
}

type deleteUserParams struct {
	Caller  string `json:"caller"`
	Payment string `json:"payment,omitempty"`
}

type extractProfitParams struct {
	Caller string `json:"caller"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type userQueryParams struct {
	// User is the base58 record key; Account is an external identifier
	// hashed server-side. Exactly one must be set.
	User    string `json:"user,omitempty"`
	Account string `json:"account,omitempty"`
}

type balanceParams struct {
	Account string `json:"account"`
}

type trustEdgeResult struct {
	Target string  `json:"target"`
	Level  float32 `json:"level"`
}

type userDataResult struct {
	User          string            `json:"user"`
	PublicProfile string            `json:"publicProfile"`
	Trusts        []trustEdgeResult `json:"trusts"`
	Blocks        []string          `json:"blocks"`
	StorageBytes  uint64            `json:"storageBytes"`
}

type userDepositResult struct {
	User    string `json:"user"`
	Deposit string `json:"deposit"`
}

func decodeParams(req *RPCRequest, out interface{}) error {
	if len(req.Params) != 1 {
		return fmt.Errorf("exactly one parameter object expected")
	}
	return json.Unmarshal(req.Params[0], out)
}

func parsePayment(raw string) (*big.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return new(big.Int), nil
	}
	amount, ok := new(big.Int).SetString(raw, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid payment %q", raw)
	}
	return amount, nil
}

func parseAmount(raw string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// parseUserParam resolves a query subject: a base58 record key, or an
// external account identifier hashed the same way mutations hash callers.
func parseUserParam(params userQueryParams) (crypto.UserKey, error) {
	account := strings.TrimSpace(params.Account)
	user := strings.TrimSpace(params.User)
	switch {
	case account != "" && user != "":
		return crypto.UserKey{}, fmt.Errorf("set either user or account, not both")
	case account != "":
		return crypto.HashIdentity(account), nil
	case user != "":
		return crypto.ParseUserKey(user)
	default:
		return crypto.UserKey{}, fmt.Errorf("user or account required")
	}
}

func (s *Server) handleModifyProfile(w http.ResponseWriter, req *RPCRequest) {
	var params modifyProfileParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	payment, err := parsePayment(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	if err := s.node.ModifyPublicProfile(params.Caller, payment, params.Profile); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, crypto.HashIdentity(params.Caller).String())
}

func (s *Server) handleTrust(w http.ResponseWriter, req *RPCRequest) {
	var params trustParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if params.Level == nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "level is required", nil)
		return
	}
	target, err := crypto.ParseUserKey(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid target key", err.Error())
		return
	}
	payment, err := parsePayment(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	if err := s.node.Trust(params.Caller, payment, target, float32(*params.Level)); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleUntrust(w http.ResponseWriter, req *RPCRequest) {
	s.handleTargetOp(w, req, s.node.Untrust)
}

func (s *Server) handleBlockUser(w http.ResponseWriter, req *RPCRequest) {
	s.handleTargetOp(w, req, s.node.BlockUser)
}

func (s *Server) handleUnblockUser(w http.ResponseWriter, req *RPCRequest) {
	s.handleTargetOp(w, req, s.node.UnblockUser)
}

func (s *Server) handleTargetOp(w http.ResponseWriter, req *RPCRequest, op func(string, *big.Int, crypto.UserKey) error) {
	var params targetParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	target, err := crypto.ParseUserKey(params.Target)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid target key", err.Error())
		return
	}
	payment, err := parsePayment(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	if err := op(params.Caller, payment, target); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, req *RPCRequest) {
	var params deleteUserParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	payment, err := parsePayment(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid payment", err.Error())
		return
	}
	if err := s.node.DeleteUser(params.Caller, payment); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleExtractProfit(w http.ResponseWriter, req *RPCRequest) {
	var params extractProfitParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if strings.TrimSpace(params.To) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "destination account required", nil)
		return
	}
	amount, err := parseAmount(params.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid amount", err.Error())
		return
	}
	if err := s.node.ExtractProfit(params.Caller, params.To, amount); err != nil {
		writeNodeError(w, req.ID, err)
		return
	}
	writeResult(w, req.ID, true)
}

func (s *Server) handleGetTotalUsersDeposit(w http.ResponseWriter, req *RPCRequest) {
	total, err := s.node.TotalUsersDeposit()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load aggregate", err.Error())
		return
	}
	writeResult(w, req.ID, total.String())
}

func (s *Server) handleGetUserData(w http.ResponseWriter, req *RPCRequest) {
	var params userQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	key, err := parseUserParam(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user", err.Error())
		return
	}
	record, ok, err := s.node.UserData(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load record", err.Error())
		return
	}
	if !ok {
		writeResult(w, req.ID, nil)
		return
	}
	result := userDataResult{
		User:          record.Key.String(),
		PublicProfile: record.PublicProfile,
		Trusts:        make([]trustEdgeResult, 0, len(record.Trusts)),
		Blocks:        make([]string, 0, len(record.Blocks)),
		StorageBytes:  trust.Measure(record),
	}
	for _, edge := range record.Trusts {
		result.Trusts = append(result.Trusts, trustEdgeResult{Target: edge.Target.String(), Level: edge.Level})
	}
	for _, blocked := range record.Blocks {
		result.Blocks = append(result.Blocks, blocked.String())
	}
	writeResult(w, req.ID, result)
}

func (s *Server) handleGetUserDeposit(w http.ResponseWriter, req *RPCRequest) {
	var params userQueryParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	key, err := parseUserParam(params)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user", err.Error())
		return
	}
	deposit, err := s.node.UserDeposit(key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load deposit", err.Error())
		return
	}
	writeResult(w, req.ID, userDepositResult{User: key.String(), Deposit: deposit.String()})
}

func (s *Server) handleListUsers(w http.ResponseWriter, req *RPCRequest) {
	keys, err := s.node.ListUsers()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to list users", err.Error())
		return
	}
	users := make([]string, 0, len(keys))
	for _, key := range keys {
		users = append(users, key.String())
	}
	writeResult(w, req.ID, users)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, req *RPCRequest) {
	var params balanceParams
	if err := decodeParams(req, &params); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid parameter object", err.Error())
		return
	}
	if strings.TrimSpace(params.Account) == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "account required", nil)
		return
	}
	balance, err := s.node.AccountBalance(params.Account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load balance", err.Error())
		return
	}
	writeResult(w, req.ID, balance.String())
}
