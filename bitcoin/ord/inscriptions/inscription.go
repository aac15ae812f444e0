// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package inscriptions

import (
	"bytes"
	"errors"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"

	"github.com/BoostyLabs/runelaunch/bitcoin/ord/runes"
	"github.com/BoostyLabs/runelaunch/bitcoin/utils"
	"github.com/BoostyLabs/runelaunch/internal/reverse"
)

// ErrMalformedInscription defines that inscription is malformed and failed to parse.
var ErrMalformedInscription = errors.New("inscription is malformed")

// ErrRepeatedFieldData defines that already filled field met while parsing.
var ErrRepeatedFieldData = errors.New("field already filled")

// inscriptionOrdTag defines ord tag for inscription to disambiguate inscriptions from other uses of envelopes.
var inscriptionOrdTag = []byte("ord")

// Inscription describes the envelope placed into a tapscript leaf, which inscribes
// arbitrary content on the first sat of the reveal transaction. For an etching it also
// carries the commitment to the rune name.
type Inscription struct {
	Body            []byte
	ContentEncoding string
	ContentType     string
	Metadata        []byte
	Metaprotocol    string
	Pointer         *big.Int
	Rune            *runes.Rune
}

// IntoScript returns Inscription as an envelope script:
// OP_FALSE OP_IF "ord" [<tag> <value>]... [OP_0 <body>...] OP_ENDIF.
func (i *Inscription) IntoScript() []byte {
	script := []byte{txscript.OP_FALSE, txscript.OP_IF}
	script = utils.AppendDataPush(script, inscriptionOrdTag)

	field := func(tag Tag, value []byte) {
		script = utils.AppendDataPush(script, tag.push())
		script = utils.AppendDataPush(script, value)
	}

	if i.ContentType != "" {
		field(TagContentType, []byte(i.ContentType))
	}
	if i.ContentEncoding != "" {
		field(TagContentEncoding, []byte(i.ContentEncoding))
	}
	if i.Metaprotocol != "" {
		field(TagMetaprotocol, []byte(i.Metaprotocol))
	}
	if i.Pointer != nil {
		field(TagPointer, reverse.Bytes(i.Pointer.Bytes()))
	}
	for start := 0; start < len(i.Metadata); start += txscript.MaxScriptElementSize {
		field(TagMetadata, i.Metadata[start:min(start+txscript.MaxScriptElementSize, len(i.Metadata))])
	}
	if i.Rune != nil {
		field(TagRune, i.Rune.Commitment())
	}

	if len(i.Body) != 0 {
		script = append(script, txscript.OP_0)
		script = utils.AppendChunkedDataPush(script, i.Body)
	}

	return append(script, txscript.OP_ENDIF)
}

// IntoScriptForWitness returns the tapscript leaf which requires a signature of
// publicKey and reveals the inscription envelope.
func (i *Inscription) IntoScriptForWitness(publicKey *btcec.PublicKey) []byte {
	return append(utils.NewCheckSigScript(publicKey), i.IntoScript()...)
}

// ParseInscriptionFromScript finds the first envelope in the tapscript and parses it.
func ParseInscriptionFromScript(script []byte) (*Inscription, error) {
	tokenizer := txscript.MakeScriptTokenizer(0, script)

	// look for OP_FALSE OP_IF "ord".
	var window [3]struct {
		op   byte
		data []byte
	}
	found := false
	for !found && tokenizer.Next() {
		window[0], window[1] = window[1], window[2]
		window[2].op, window[2].data = tokenizer.Opcode(), tokenizer.Data()
		found = window[0].op == txscript.OP_FALSE && window[1].op == txscript.OP_IF &&
			bytes.Equal(window[2].data, inscriptionOrdTag)
	}
	if !found {
		return nil, ErrMalformedInscription
	}

	inscription := new(Inscription)
	for tokenizer.Next() {
		switch {
		case tokenizer.Opcode() == txscript.OP_ENDIF:
			return inscription, nil
		case tokenizer.Opcode() == txscript.OP_0:
			for tokenizer.Next() && tokenizer.Opcode() != txscript.OP_ENDIF {
				inscription.Body = append(inscription.Body, tokenizer.Data()...)
			}
			if tokenizer.Opcode() != txscript.OP_ENDIF {
				return nil, ErrMalformedInscription
			}

			return inscription, nil
		case len(tokenizer.Data()) == 1:
			tag := Tag(tokenizer.Data()[0])
			if !tokenizer.Next() || tokenizer.Opcode() > txscript.OP_PUSHDATA4 {
				return nil, ErrMalformedInscription
			}

			if err := inscription.fillFieldByTag(tag, tokenizer.Data()); err != nil {
				return nil, err
			}
		default:
			return nil, ErrMalformedInscription
		}
	}

	return nil, ErrMalformedInscription
}

// fillFieldByTag fills Inscription fields by provided tag, unknown tags are skipped.
func (i *Inscription) fillFieldByTag(tag Tag, value []byte) (err error) {
	switch tag {
	case TagContentType:
		if i.ContentType != "" {
			return ErrRepeatedFieldData
		}

		i.ContentType = string(value)
	case TagContentEncoding:
		if i.ContentEncoding != "" {
			return ErrRepeatedFieldData
		}

		i.ContentEncoding = string(value)
	case TagMetaprotocol:
		if i.Metaprotocol != "" {
			return ErrRepeatedFieldData
		}

		i.Metaprotocol = string(value)
	case TagPointer:
		if i.Pointer != nil {
			return ErrRepeatedFieldData
		}

		i.Pointer = new(big.Int).SetBytes(reverse.Bytes(value))
	case TagMetadata:
		i.Metadata = append(i.Metadata, value...)
	case TagRune:
		if i.Rune != nil {
			return ErrRepeatedFieldData
		}

		i.Rune, err = runes.NewRuneFromNumber(new(big.Int).SetBytes(reverse.Bytes(value)))
	}

	return err
}
