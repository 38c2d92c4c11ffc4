package solana

import "context"

// RPCClient defines the Solana JSON-RPC HTTP interface used by the pipeline.
type RPCClient interface {
	// GetTransaction retrieves a transaction by signature, including inner
	// instructions and account keys. Returns ErrNotFound (wrapped) when the
	// node has not caught up to the signature.
	GetTransaction(ctx context.Context, signature string) (*Transaction, error)

	// GetAccountInfo retrieves account info by public key.
	// Returns nil if the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey string) (*AccountInfo, error)
}

// Transaction represents a fetched Solana transaction.
type Transaction struct {
	Slot      int64
	Signature string
	BlockTime int64 // Unix timestamp (seconds)
	Meta      *TransactionMeta
	Message   *TransactionMessage
}

// TransactionMeta contains transaction metadata.
type TransactionMeta struct {
	Err               interface{}
	LogMessages       []string
	InnerInstructions []InnerInstructionSet
}

// InnerInstructionSet groups the instructions invoked by the top-level
// instruction at Index.
type InnerInstructionSet struct {
	Index        int
	Instructions []CompiledInstruction
}

// TransactionMessage contains the parsed transaction message.
type TransactionMessage struct {
	AccountKeys  []string
	Instructions []CompiledInstruction
}

// CompiledInstruction references its program and accounts by index into the
// transaction-wide account key list. Data holds the raw instruction payload.
type CompiledInstruction struct {
	ProgramIDIndex int
	Accounts       []int
	Data           []byte
}

// ProgramID resolves the instruction's program id against the account keys.
// Returns "" when the index is out of range.
func (ix *CompiledInstruction) ProgramID(accountKeys []string) string {
	if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(accountKeys) {
		return ""
	}
	return accountKeys[ix.ProgramIDIndex]
}

// ResolveAccounts maps the instruction's account indices to addresses.
// Indices out of range resolve to "".
func (ix *CompiledInstruction) ResolveAccounts(accountKeys []string) []string {
	resolved := make([]string, len(ix.Accounts))
	for i, idx := range ix.Accounts {
		if idx >= 0 && idx < len(accountKeys) {
			resolved[i] = accountKeys[idx]
		}
	}
	return resolved
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      string
	Data       []byte // decoded from base64
	Executable bool
}
