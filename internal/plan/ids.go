package plan

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync/atomic"
)

// Item id prefixes. Ids are stable across re-extraction: once assigned,
// an item keeps its id so goal->intervention links and provenance stay
// valid.
const (
	PrefixConcern      = "concern"
	PrefixImpression   = "impression"
	PrefixDiagnosis    = "diag"
	PrefixGoal         = "goal"
	PrefixIntervention = "int"
	PrefixStrength     = "strength"
	PrefixRisk         = "risk"
	PrefixHomework     = "hw"
)

var idCounter atomic.Uint64

// NewItemID builds a type-prefixed id: prefix, process-wide monotonic
// counter, and a random suffix. The random suffix makes ids
// collision-resistant across processes and concurrent batches; the
// counter keeps them readable and ordered within one process.
func NewItemID(prefix string) string {
	n := idCounter.Add(1)
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is unrecoverable for id uniqueness
		// guarantees; counter alone still keeps in-process uniqueness.
		return fmt.Sprintf("%s-%d", prefix, n)
	}
	return fmt.Sprintf("%s-%d-%s", prefix, n, hex.EncodeToString(buf))
}
