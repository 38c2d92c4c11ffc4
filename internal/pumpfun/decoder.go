package pumpfun

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/near/borsh-go"
	"github.com/sirupsen/logrus"

	"github.com/DivineUX23/pump-fun-monitor/internal/solana"
)

// ErrAccountsTruncated is reported when the create instruction's account
// list is shorter than the program's layout requires.
var ErrAccountsTruncated = errors.New("create instruction account list truncated")

// DecodeError means an instruction claimed to be a create but its payload or
// account list is malformed.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode create instruction: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("decode create instruction: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// CreateInstruction is the decoded form of one create instruction: the Borsh
// argument strings plus the accounts extracted at fixed positions.
type CreateInstruction struct {
	Name         string
	Symbol       string
	URI          string
	Mint         string
	BondingCurve string
	Creator      string
}

// createArgs mirrors the Borsh argument block after the discriminator:
// three length-prefixed UTF-8 strings.
type createArgs struct {
	Name   string
	Symbol string
	URI    string
}

// Decoder turns raw instruction payloads into CreateInstruction records.
type Decoder struct {
	log *logrus.Entry
}

// NewDecoder creates a Decoder.
func NewDecoder(log *logrus.Entry) *Decoder {
	return &Decoder{log: log}
}

// DecodeCreate decodes one instruction. accounts is the instruction's
// account-index array already resolved against the transaction-wide key list.
//
// Returns (nil, false, nil) when the discriminator does not match the create
// variant, and (nil, true, err) when the instruction claims to be a create
// but is malformed.
func (d *Decoder) DecodeCreate(data []byte, accounts []string) (*CreateInstruction, bool, error) {
	if len(data) < len(createDiscriminator) || !bytes.Equal(data[:8], createDiscriminator[:]) {
		return nil, false, nil
	}

	var args createArgs
	if err := borsh.Deserialize(&args, data[8:]); err != nil {
		return nil, true, &DecodeError{Reason: "malformed argument block", Err: err}
	}

	for _, s := range []struct{ field, value string }{
		{"name", args.Name},
		{"symbol", args.Symbol},
		{"uri", args.URI},
	} {
		if !utf8.ValidString(s.value) {
			return nil, true, &DecodeError{Reason: s.field + " is not valid UTF-8"}
		}
	}

	// Upstream may append fields after uri; tolerate the tail.
	if tail := len(data) - consumedLen(args); tail > 0 && d.log != nil {
		d.log.WithField("bytes", tail).Debug("trailing bytes after create arguments")
	}

	if len(accounts) < minCreateAccounts {
		return nil, true, &DecodeError{Reason: fmt.Sprintf("%d accounts", len(accounts)), Err: ErrAccountsTruncated}
	}

	ins := &CreateInstruction{
		Name:         args.Name,
		Symbol:       args.Symbol,
		URI:          args.URI,
		Mint:         accounts[accountIndexMint],
		BondingCurve: accounts[accountIndexBondingCurve],
		Creator:      accounts[accountIndexCreator],
	}

	for _, k := range []struct{ field, value string }{
		{"mint", ins.Mint},
		{"bonding curve", ins.BondingCurve},
		{"creator", ins.Creator},
	} {
		if _, err := solana.DecodePubkey(k.value); err != nil {
			return nil, true, &DecodeError{Reason: "invalid " + k.field + " account", Err: err}
		}
	}

	return ins, true, nil
}

// consumedLen is the byte length of the discriminator plus the three
// length-prefixed strings.
func consumedLen(args createArgs) int {
	const u32 = 4
	return len(createDiscriminator) + 3*u32 + len(args.Name) + len(args.Symbol) + len(args.URI)
}

// BondingCurveAccount is the slice of bonding curve account data the monitor
// cares about.
type BondingCurveAccount struct {
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
}

// DecodeBondingCurve parses a bonding curve account's data. Used to
// cross-check the published initial reserves when account fetches are
// enabled.
func DecodeBondingCurve(data []byte) (*BondingCurveAccount, error) {
	if len(data) < len(bondingCurveDiscriminator) || !bytes.Equal(data[:8], bondingCurveDiscriminator[:]) {
		return nil, &DecodeError{Reason: "not a bonding curve account"}
	}
	rest := data[8:]
	if len(rest) < 16 {
		return nil, &DecodeError{Reason: "bonding curve data truncated"}
	}
	return &BondingCurveAccount{
		VirtualSolReserves:   binary.LittleEndian.Uint64(rest[0:8]),
		VirtualTokenReserves: binary.LittleEndian.Uint64(rest[8:16]),
	}, nil
}
