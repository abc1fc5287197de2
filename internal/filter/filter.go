// Package filter implements the per-frame admit/drop policy applied after
// framing (spec.md §4.3).
package filter

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind selects a filter implementation.
type Kind string

const (
	// None always admits.
	None Kind = "none"
	// SBP admits frames whose SBP message identifier appears in a
	// configured rule table.
	SBP Kind = "sbp"
)

// Filter decides whether a frame should be forwarded.
type Filter interface {
	// Admit reports whether frame should be forwarded.
	Admit(frame []byte) bool
}

// New constructs a Filter of the given kind, loading its rule table (if
// any) from configPath. Per spec.md §4.3's coupling invariant, configPath
// must be empty iff kind is None.
func New(kind Kind, configPath string) (Filter, error) {
	switch kind {
	case SBP:
		return newSBPFilter(configPath)
	default:
		return noneFilter{}, nil
	}
}

// noneFilter always admits.
type noneFilter struct{}

func (noneFilter) Admit([]byte) bool { return true }

// sbpFilter admits frames whose SBP message identifier is present in an
// allow-list loaded from a rule table file.
type sbpFilter struct {
	allowed map[uint16]struct{}
}

func newSBPFilter(configPath string) (*sbpFilter, error) {
	f, err := os.Open(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "open filter config")
	}
	defer f.Close()

	allowed := make(map[uint16]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		id, err := strconv.ParseUint(line, 10, 16)
		if err != nil {
			return nil, errors.Wrapf(err, "parse filter rule %q", line)
		}
		allowed[uint16(id)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read filter config")
	}

	return &sbpFilter{allowed: allowed}, nil
}

// sbpIdentifierOffset is the byte offset of the message type field within
// a well-formed SBP frame (immediately after the preamble byte).
const sbpIdentifierOffset = 1

// Admit inspects the SBP message identifier at the protocol-defined
// offset. A malformed or too-short frame is dropped.
func (f *sbpFilter) Admit(frame []byte) bool {
	if len(frame) < sbpIdentifierOffset+2 {
		return false
	}
	id := uint16(frame[sbpIdentifierOffset]) | uint16(frame[sbpIdentifierOffset+1])<<8
	_, ok := f.allowed[id]
	return ok
}
