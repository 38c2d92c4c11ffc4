// Package pumpfun decodes pump.fun program instructions and account data.
package pumpfun

// ProgramID is the mainnet pump.fun program address.
const ProgramID = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"

// CreateLogMarker is the log line emitted by the program for its create
// instruction. The pipeline only fetches transactions whose logs contain it.
const CreateLogMarker = "Program log: Instruction: Create"

// createDiscriminator is the 8-byte prefix identifying the create
// instruction variant.
var createDiscriminator = [8]byte{0x61, 0x21, 0xdf, 0x27, 0x22, 0x30, 0x04, 0x2f}

// bondingCurveDiscriminator is the 8-byte prefix of bonding curve account data.
var bondingCurveDiscriminator = [8]byte{0x68, 0x93, 0x5a, 0x56, 0x57, 0x5a, 0x0d, 0x73}

// Launch parameters fixed by the program at token creation.
const (
	InitialSupply               uint64 = 1_000_000_000 * 1_000_000
	TokenDecimals               uint8  = 6
	InitialVirtualSolReserves   uint64 = 30_000_000_000
	InitialVirtualTokenReserves uint64 = 1_073_000_000_000_000
)

// Positions of the extracted accounts in the create instruction's account
// list. Fixed by the program's current layout.
const (
	accountIndexMint         = 0
	accountIndexBondingCurve = 2
	accountIndexCreator      = 7
	minCreateAccounts        = 8
)
