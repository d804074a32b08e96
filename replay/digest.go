package replay

import (
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// Digest is the BLAKE2b-256 of the canonical throw tape. Two ledgers with the
// same throws in the same order always share a digest.
func Digest(throws []ThrowRow) string {
	h, _ := blake2b.New256(nil) // only fails for keys longer than 64 bytes
	for _, t := range throws {
		fmt.Fprintf(h, "%d|%d|%d|%q|%d|%d|%d|%d|%d|%t|%t\n",
			t.TurnNumber, t.ThrowInTurn, t.PlayerOrder, t.PlayerName,
			t.BaseScore, t.Multiplier, t.ActualScore, t.ScoreBefore, t.ScoreAfter,
			t.IsBust, t.IsFinish)
	}
	return hex.EncodeToString(h.Sum(nil))
}
