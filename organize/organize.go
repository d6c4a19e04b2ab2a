// Package organize resolves a confirmed image duplicate pair into the
// output directory convention: one side hard-linked as the copy to
// keep, the other renamed as the copy to remove, sharing a random
// prefix so the pair stays visually grouped in a directory listing.
//
// The caller's dir IS the duplicates directory (Resolve does not nest
// another "duplicates" segment under it), matching
// original_source/examples/demo_similar_images.rs:77's single flat
// p.join("duplicates") convention — the scan root's own "duplicates"
// subdirectory, not a further-nested one.
package organize

import (
	"crypto/rand"
	"os"
	"path/filepath"

	"github.com/kestrelav/simdup/errs"
)

const prefixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
const prefixLength = 5

// Resolve creates dir if needed, hard-links keep into it as
// "<prefix>_KEEP<ext>" and renames remove to
// "<prefix>_REMOVE<ext>" in the same directory, both ext taken from
// the original file. Both output names share one random prefix. dir
// itself is the duplicates directory; Resolve does not append one.
func Resolve(dir, keep, remove string) error {
	out := dir
	if err := os.MkdirAll(out, 0o755); err != nil {
		return errs.New(errs.BadArgument, "organize.Resolve", err)
	}

	prefix, err := randomPrefix()
	if err != nil {
		return errs.New(errs.BadArgument, "organize.Resolve", err)
	}

	keepDest := filepath.Join(out, prefix+"_KEEP"+filepath.Ext(keep))
	if err := os.Link(keep, keepDest); err != nil {
		return errs.New(errs.BadArgument, "organize.Resolve", err)
	}

	removeDest := filepath.Join(out, prefix+"_REMOVE"+filepath.Ext(remove))
	if err := os.Rename(remove, removeDest); err != nil {
		return errs.New(errs.BadArgument, "organize.Resolve", err)
	}
	return nil
}

// randomPrefix draws prefixLength characters from prefixAlphabet using
// crypto/rand, since math/rand in this codebase is reserved for the
// quickselect pivot.
func randomPrefix() (string, error) {
	buf := make([]byte, prefixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, prefixLength)
	for i, b := range buf {
		out[i] = prefixAlphabet[int(b)%len(prefixAlphabet)]
	}
	return string(out), nil
}
