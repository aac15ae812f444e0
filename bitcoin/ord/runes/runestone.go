// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/aviate-labs/leb128"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/runelaunch/bitcoin/utils"
	"github.com/BoostyLabs/runelaunch/internal/numbers"
	"github.com/BoostyLabs/runelaunch/internal/sequencereader"
)

const (
	// MagicNumber follows OP_RETURN in every runestone script.
	MagicNumber = txscript.OP_13
	// MaxStandardOpReturnSize defines the largest null-data output script relayed by default policy.
	MaxStandardOpReturnSize = 83
)

var (
	// ErrNotRunestone defines script without runestone prefix.
	ErrNotRunestone = errors.New("not a runestone")
	// ErrCenotaph defines invalid runestone produced malformed payload.
	ErrCenotaph = errors.New("cenotaph")
	// ErrTruncated defines that payload is do not have required fields.
	ErrTruncated = errors.New("truncated payload")
)

// CenotaphError describes why a runestone is not valid for the transaction it is placed in.
type CenotaphError struct {
	Field   string
	Message string
}

// Error returns error description.
func (e *CenotaphError) Error() string {
	return fmt.Sprintf("cenotaph %s: %s", e.Field, e.Message)
}

// Is makes every CenotaphError match ErrCenotaph.
func (e *CenotaphError) Is(target error) bool {
	return target == ErrCenotaph
}

// Runestone abstractly defines runestone fields.
type Runestone struct {
	Edicts  []Edict
	Etching *Etching
	Mint    *RuneID
	Pointer *uint32
}

// ParseRunestone parses Runestone from output script.
func ParseRunestone(script []byte) (*Runestone, error) {
	payload, err := PreparePayload(script)
	if err != nil {
		return nil, err
	}

	sequence, err := PayloadIntoIntSequence(payload)
	if err != nil {
		return nil, err
	}

	message, err := ParseMessage(sequencereader.New(sequence))
	if err != nil {
		return nil, err
	}

	runestone := &Runestone{Edicts: message.Edicts}

	return runestone, runestone.fill(message)
}

// fill moves known fields of the message into the runestone, leftover even tags make it a cenotaph.
func (runestone *Runestone) fill(message *Message) error {
	flags, _, err := message.take(TagFlags)
	if err != nil {
		return err
	}
	if flags == nil {
		flags = new(big.Int)
	}

	var (
		etching = takeFlag(flags, FlagEtching)
		terms   = takeFlag(flags, FlagTerms)
		turbo   = takeFlag(flags, FlagTurbo)
	)
	if flags.Sign() != 0 {
		return ErrCenotaph
	}

	if etching {
		runestone.Etching = &Etching{Turbo: turbo}
		if err = runestone.fillEtching(message, terms); err != nil {
			return err
		}
	}

	if value, ok, err := message.take(TagPointer); err != nil {
		return err
	} else if ok {
		if !value.IsUint64() || value.Uint64() > uint64(^uint32(0)) {
			return ErrCenotaph
		}

		pointer := uint32(value.Uint64())
		runestone.Pointer = &pointer
	}

	if values, ok := message.Fields[TagMint]; ok {
		delete(message.Fields, TagMint)
		if len(values) != 2 || !values[0].IsUint64() || !values[1].IsUint64() || values[1].Uint64() > uint64(^uint32(0)) {
			return ErrCenotaph
		}

		mint := RuneID{Block: values[0].Uint64(), TxID: uint32(values[1].Uint64())}
		if !mint.IsValid() {
			return ErrCenotaph
		}

		runestone.Mint = &mint
	}

	for tag := range message.Fields {
		if !tag.isOdd() {
			return ErrCenotaph
		}
	}

	return nil
}

// fillEtching reads etching related fields.
func (runestone *Runestone) fillEtching(message *Message, terms bool) error {
	e := runestone.Etching

	if value, ok, err := message.take(TagRune); err != nil {
		return err
	} else if ok {
		if e.Rune, err = NewRuneFromNumber(value); err != nil {
			return ErrCenotaph
		}
	}

	if value, ok, err := message.take(TagPremine); err != nil {
		return err
	} else if ok {
		e.Premine = value
	}

	if value, ok, _ := message.take(TagDivisibility); ok && value.IsUint64() && value.Uint64() <= uint64(MaxDivisibility) {
		divisibility := byte(value.Uint64())
		e.Divisibility = &divisibility
	}

	if value, ok, _ := message.take(TagSpacers); ok && value.IsUint64() && value.Uint64() <= uint64(MaxSpacers) {
		spacers := uint32(value.Uint64())
		e.Spacers = &spacers
	}

	if value, ok, _ := message.take(TagSymbol); ok && value.IsUint64() && value.Uint64() <= 0x10FFFF {
		symbol := rune(value.Uint64())
		e.Symbol = &symbol
	}

	if !terms {
		return nil
	}

	e.Terms = new(Terms)
	if value, ok, err := message.take(TagAmount); err != nil {
		return err
	} else if ok {
		e.Terms.Amount = value
	}

	if value, ok, err := message.take(TagCap); err != nil {
		return err
	} else if ok {
		e.Terms.Cap = value
	}

	for tag, dst := range map[Tag]**uint64{
		TagHeightStart: &e.Terms.HeightStart,
		TagHeightEnd:   &e.Terms.HeightEnd,
		TagOffsetStart: &e.Terms.OffsetStart,
		TagOffsetEnd:   &e.Terms.OffsetEnd,
	} {
		value, ok, err := message.take(tag)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if !value.IsUint64() {
			return ErrCenotaph
		}

		height := value.Uint64()
		*dst = &height
	}

	return nil
}

// Serialize returns Runestone payload as LEB128 encoded integer sequence.
func (runestone *Runestone) Serialize() ([]byte, error) {
	message := Message{
		Edicts: runestone.Edicts,
		Fields: map[Tag][]*big.Int{},
	}

	set := func(tag Tag, value *big.Int) {
		message.Fields[tag] = []*big.Int{value}
	}

	if e := runestone.Etching; e != nil {
		flags := AddFlag(new(big.Int), FlagEtching)
		if e.Rune != nil {
			set(TagRune, e.Rune.Value())
		}
		if e.Divisibility != nil {
			set(TagDivisibility, big.NewInt(int64(*e.Divisibility)))
		}
		if e.Spacers != nil {
			set(TagSpacers, big.NewInt(int64(*e.Spacers)))
		}
		if e.Symbol != nil {
			set(TagSymbol, big.NewInt(int64(*e.Symbol)))
		}
		if e.Premine != nil {
			set(TagPremine, e.Premine)
		}

		if t := e.Terms; t != nil {
			AddFlag(flags, FlagTerms)
			if t.Amount != nil {
				set(TagAmount, t.Amount)
			}
			if t.Cap != nil {
				set(TagCap, t.Cap)
			}
			for tag, value := range map[Tag]*uint64{
				TagHeightStart: t.HeightStart,
				TagHeightEnd:   t.HeightEnd,
				TagOffsetStart: t.OffsetStart,
				TagOffsetEnd:   t.OffsetEnd,
			} {
				if value != nil {
					set(tag, new(big.Int).SetUint64(*value))
				}
			}
		}

		if e.Turbo {
			AddFlag(flags, FlagTurbo)
		}

		set(TagFlags, flags)
	}

	if runestone.Mint != nil {
		message.Fields[TagMint] = runestone.Mint.ToIntSeq()
	}

	if runestone.Pointer != nil {
		set(TagPointer, big.NewInt(int64(*runestone.Pointer)))
	}

	return IntSequenceIntoPayload(message.ToIntSeq())
}

// IntoScript returns Runestone as null-data output script:
// OP_RETURN OP_13 followed by the payload split into data pushes.
func (runestone *Runestone) IntoScript() ([]byte, error) {
	payload, err := runestone.Serialize()
	if err != nil {
		return nil, err
	}

	return utils.AppendChunkedDataPush([]byte{txscript.OP_RETURN, MagicNumber}, payload), nil
}

// Verify checks that output indexes referenced by the runestone exist in a transaction with outputsNumber outputs.
func (runestone *Runestone) Verify(outputsNumber int) error {
	if runestone.Pointer != nil && int(*runestone.Pointer) >= outputsNumber {
		return &CenotaphError{
			Field:   "pointer",
			Message: fmt.Sprintf("output %d is out of range [0;%d)", *runestone.Pointer, outputsNumber),
		}
	}

	for idx, edict := range runestone.Edicts {
		if int(edict.Output) > outputsNumber {
			return &CenotaphError{
				Field:   fmt.Sprintf("edict[%d]", idx),
				Message: fmt.Sprintf("output %d is out of range [0;%d]", edict.Output, outputsNumber),
			}
		}
	}

	return nil
}

// IsPossibleRunestone returns true if the script starts with rune protocol bytes sequence.
func IsPossibleRunestone(script []byte) bool {
	return len(script) >= 2 && script[0] == txscript.OP_RETURN && script[1] == MagicNumber
}

// PreparePayload validates runestone script and returns concatenated data pushes.
func PreparePayload(script []byte) ([]byte, error) {
	if !IsPossibleRunestone(script) {
		return nil, ErrNotRunestone
	}

	var (
		payload   []byte
		tokenizer = txscript.MakeScriptTokenizer(0, script[2:])
	)
	for tokenizer.Next() {
		if tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
			return nil, ErrCenotaph
		}

		payload = append(payload, tokenizer.Data()...)
	}

	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCenotaph, err)
	}

	return payload, nil
}

// PayloadIntoIntSequence decodes payload in LEB128 into integer sequence.
func PayloadIntoIntSequence(payload []byte) ([]*big.Int, error) {
	var (
		sequence = make([]*big.Int, 0, len(payload))
		data     = bytes.NewReader(payload)
	)
	for data.Len() > 0 {
		num, err := leb128.DecodeUnsigned(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCenotaph, err)
		}
		if !numbers.IsUint128(num) {
			return nil, ErrCenotaph
		}

		sequence = append(sequence, num)
	}

	return sequence, nil
}

// IntSequenceIntoPayload encodes integer sequence into payload in LEB128.
func IntSequenceIntoPayload(sequence []*big.Int) ([]byte, error) {
	payload := make([]byte, 0, len(sequence)*2)
	for _, num := range sequence {
		encoded, err := leb128.EncodeUnsigned(num)
		if err != nil {
			return nil, err
		}

		payload = append(payload, encoded...)
	}

	return payload, nil
}
