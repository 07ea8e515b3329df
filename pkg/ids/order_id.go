package ids

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	orderIDPrefix = "ORD"
	suffixLen     = 9
	alphabet      = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Generator produces custom order ids of the form ORD_<epoch-ms>_<9 base36 chars>.
// The ids are independent of any storage-assigned key.
type Generator struct {
	mu     sync.Mutex
	now    func() time.Time
	random io.Reader
}

// NewGenerator returns a generator backed by the wall clock and crypto/rand.
func NewGenerator() *Generator {
	return &Generator{now: time.Now, random: rand.Reader}
}

var defaultGenerator = NewGenerator()

// NewOrderID returns a fresh custom order id from the package generator.
func NewOrderID() string {
	return defaultGenerator.NewOrderID()
}

func (g *Generator) NewOrderID() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ts := g.now().UnixMilli()
	return fmt.Sprintf("%s_%d_%s", orderIDPrefix, ts, g.suffix())
}

func (g *Generator) suffix() string {
	buf := make([]byte, suffixLen)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		// random source failed; a uuid still gives us 9 unpredictable chars
		return strings.ReplaceAll(uuid.NewString(), "-", "")[:suffixLen]
	}
	out := make([]byte, suffixLen)
	for i, b := range buf {
		out[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(out)
}

// IsOrderID reports whether value looks like an id produced by a Generator.
func IsOrderID(value string) bool {
	parts := strings.Split(value, "_")
	if len(parts) != 3 || parts[0] != orderIDPrefix {
		return false
	}
	if parts[1] == "" || strings.Trim(parts[1], "0123456789") != "" {
		return false
	}
	if len(parts[2]) != suffixLen {
		return false
	}
	return strings.Trim(parts[2], alphabet) == ""
}
