package solana

import "encoding/json"

// Well-known program and mint addresses.
const (
	// TokenProgramID is the SPL Token program.
	TokenProgramID = "TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
	// Token2022ProgramID is the Token-2022 program.
	Token2022ProgramID = "TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb"
	// WrappedSOLMint is the wrapped native SOL mint, used as the quote asset.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
)

// LamportsPerSOL converts native lamport balances to SOL UI units.
const LamportsPerSOL = 1_000_000_000

// MintInfo describes a fungible-asset mint.
type MintInfo struct {
	Mint        string
	Decimals    int
	SupplyRaw   string // raw integer supply as returned by the node
	ProgramID   string // owning token program (TokenProgramID or Token2022ProgramID)
	DisplayName string // best-effort, empty when unavailable
}

// TokenHolder is one token account's balance for a mint. The same owner may
// appear several times (one entry per token account); callers sum per owner.
type TokenHolder struct {
	Owner     string
	AmountRaw string
	Decimals  int
}

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// AccountKey is one entry of a transaction's ordered account-key list. The
// node returns either a plain base58 string or an object with signer and
// writable metadata depending on encoding; both forms normalize here, at the
// boundary, so nothing downstream re-sniffs the representation.
type AccountKey struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// UnmarshalJSON accepts both the string and the object form.
func (k *AccountKey) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		k.Pubkey = s
		return nil
	}
	var obj struct {
		Pubkey   string `json:"pubkey"`
		Signer   bool   `json:"signer"`
		Writable bool   `json:"writable"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	k.Pubkey = obj.Pubkey
	k.Signer = obj.Signer
	k.Writable = obj.Writable
	return nil
}

// TokenAmount is the node's token quantity representation.
type TokenAmount struct {
	Amount   string `json:"amount"` // raw integer as string
	Decimals int    `json:"decimals"`
}

// TokenBalance is one pre/post token-balance record.
type TokenBalance struct {
	AccountIndex  int         `json:"accountIndex"`
	Mint          string      `json:"mint"`
	Owner         string      `json:"owner"`
	UITokenAmount TokenAmount `json:"uiTokenAmount"`
}

// InstructionInfo carries the parsed fields this service consumes. Transfer
// instructions use either Amount (plain transfer) or TokenAmount
// (transferChecked).
type InstructionInfo struct {
	Source      string       `json:"source"`
	Destination string       `json:"destination"`
	Authority   string       `json:"authority"`
	Mint        string       `json:"mint"`
	Amount      string       `json:"amount"`
	TokenAmount *TokenAmount `json:"tokenAmount"`
}

// InstructionDetail is the parsed body of an instruction.
type InstructionDetail struct {
	Type string          `json:"type"`
	Info InstructionInfo `json:"info"`
}

// ParsedInstruction is one top-level or inner instruction. Parsed is nil for
// instructions the node could not decode (the "parsed" field is then a raw
// base58 string, which this service ignores).
type ParsedInstruction struct {
	Program   string
	ProgramID string
	Parsed    *InstructionDetail
}

// UnmarshalJSON tolerates the undecoded form where "parsed" is not an object.
func (in *ParsedInstruction) UnmarshalJSON(data []byte) error {
	var raw struct {
		Program   string          `json:"program"`
		ProgramID string          `json:"programId"`
		Parsed    json.RawMessage `json:"parsed"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	in.Program = raw.Program
	in.ProgramID = raw.ProgramID
	if len(raw.Parsed) > 0 && raw.Parsed[0] == '{' {
		var detail InstructionDetail
		if err := json.Unmarshal(raw.Parsed, &detail); err != nil {
			return err
		}
		in.Parsed = &detail
	}
	return nil
}

// InnerInstructionGroup is the inner-instruction list attached to one
// top-level instruction index.
type InnerInstructionGroup struct {
	Index        int                 `json:"index"`
	Instructions []ParsedInstruction `json:"instructions"`
}

// TransactionMeta contains the balance snapshots and inner instructions.
type TransactionMeta struct {
	Err               interface{}             `json:"err"`
	PreBalances       []uint64                `json:"preBalances"`
	PostBalances      []uint64                `json:"postBalances"`
	PreTokenBalances  []TokenBalance          `json:"preTokenBalances"`
	PostTokenBalances []TokenBalance          `json:"postTokenBalances"`
	InnerInstructions []InnerInstructionGroup `json:"innerInstructions"`
}

// TransactionMessage contains the account keys and top-level instructions.
type TransactionMessage struct {
	AccountKeys  []AccountKey        `json:"accountKeys"`
	Instructions []ParsedInstruction `json:"instructions"`
}

// ParsedTransaction is a jsonParsed transaction body.
type ParsedTransaction struct {
	Signature string
	Slot      int64
	BlockTime int64 // Unix seconds, 0 when the node omitted it
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// AllInstructions returns top-level instructions followed by inner ones.
func (tx *ParsedTransaction) AllInstructions() []ParsedInstruction {
	var out []ParsedInstruction
	if tx.Message != nil {
		out = append(out, tx.Message.Instructions...)
	}
	if tx.Meta != nil {
		for _, group := range tx.Meta.InnerInstructions {
			out = append(out, group.Instructions...)
		}
	}
	return out
}
