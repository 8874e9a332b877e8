package bench

import (
	"fmt"
	"strings"
	"time"

	"github.com/jaswdr/faker"
)

// messageGenerator builds writer payloads. It is not safe for concurrent
// use; each writer owns one.
type messageGenerator struct {
	prefix   string
	size     int
	padWords int
	faker    faker.Faker
}

func newMessageGenerator(prefix string, size, padWords int) *messageGenerator {
	return &messageGenerator{
		prefix:   prefix,
		size:     size,
		padWords: padWords,
		faker:    faker.New(),
	}
}

// Message returns "<prefix>[wNN] iter=<i> time=<unix>", optionally padded
// with lorem words, cut to the configured size.
func (g *messageGenerator) Message(worker, iter int, now time.Time) []byte {
	msg := fmt.Sprintf("%s[w%02d] iter=%d time=%d", g.prefix, worker, iter, now.Unix())
	if g.padWords > 0 {
		msg += " " + strings.Join(g.faker.Lorem().Words(g.padWords), " ")
	}

	if len(msg) > g.size {
		msg = msg[:g.size]
	}
	return []byte(msg)
}
