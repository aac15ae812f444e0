// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

package runes

import (
	"math/big"
	"slices"

	"github.com/BoostyLabs/runelaunch/internal/sequencereader"
)

// Message defines the untyped form of a Runestone: tagged fields followed by edicts.
type Message struct {
	Edicts []Edict
	Fields map[Tag][]*big.Int
}

// ParseMessage parses Message from integer sequence.
func ParseMessage(sr *sequencereader.SequenceReader[*big.Int]) (*Message, error) {
	message := &Message{Fields: make(map[Tag][]*big.Int)}

	for sr.HasNext() {
		tagValue, _ := sr.Next()
		if !tagValue.IsUint64() {
			return nil, ErrCenotaph
		}

		tag := Tag(tagValue.Uint64())
		if tag == TagBody {
			edicts, err := parseEdicts(sr.Rest())
			if err != nil {
				return nil, err
			}

			message.Edicts = edicts

			break
		}

		value, err := sr.Next()
		if err != nil {
			return nil, ErrTruncated
		}

		message.Fields[tag] = append(message.Fields[tag], value)
	}

	return message, nil
}

// take removes the field and returns its single value, ok is false
// when the field is absent, err is set when it is repeated.
func (message *Message) take(tag Tag) (value *big.Int, ok bool, err error) {
	values, ok := message.Fields[tag]
	if !ok {
		return nil, false, nil
	}

	delete(message.Fields, tag)
	if len(values) != 1 {
		return nil, true, ErrCenotaph
	}

	return values[0], true, nil
}

// ToIntSeq returns Message as sequence on integers ordered by tag.
func (message *Message) ToIntSeq() []*big.Int {
	tags := make([]Tag, 0, len(message.Fields))
	for tag := range message.Fields {
		tags = append(tags, tag)
	}

	slices.Sort(tags)

	sequence := make([]*big.Int, 0, len(message.Fields)*2+len(message.Edicts)*4+1)
	for _, tag := range tags {
		for _, value := range message.Fields[tag] {
			sequence = append(sequence, tag.BigInt(), value)
		}
	}

	if len(message.Edicts) > 0 {
		sequence = append(sequence, TagBody.BigInt())
		sequence = append(sequence, EdictsToIntSeq(message.Edicts)...)
	}

	return sequence
}
