package words

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
)

var ErrEmptyCatalog = errors.New("word catalog is empty")
var ErrInvalidEntry = errors.New("invalid catalog entry")

// Entry is one guessable word with its hints in reveal order.
type Entry struct {
	Word  string   `mapstructure:"word" json:"word"`
	Hints []string `mapstructure:"hints" json:"hints"`
}

// Catalog is the built-in word list.
var Catalog = []Entry{
	{Word: "ELEPHANT", Hints: []string{"Mammal", "Trunk", "Africa", "Memory"}},
	{Word: "PIZZA", Hints: []string{"Italian", "Round", "Cheese", "Delivery"}},
	{Word: "RAINBOW", Hints: []string{"Colors", "Sky", "Rain", "Arc"}},
	{Word: "BUTTERFLY", Hints: []string{"Insect", "Wings", "Metamorphosis", "Flowers"}},
	{Word: "GUITAR", Hints: []string{"Music", "Strings", "Acoustic", "Rock"}},
	{Word: "CHOCOLATE", Hints: []string{"Sweet", "Cocoa", "Brown", "Gift"}},
	{Word: "LIGHTHOUSE", Hints: []string{"Tower", "Ships", "Light", "Coast"}},
	{Word: "PENGUIN", Hints: []string{"Bird", "Antarctic", "Waddle", "Tuxedo"}},
	{Word: "TELESCOPE", Hints: []string{"Astronomy", "Stars", "Lens", "Observatory"}},
	{Word: "VOLCANO", Hints: []string{"Mountain", "Lava", "Eruption", "Magma"}},
	{Word: "KANGAROO", Hints: []string{"Marsupial", "Hopping", "Australia", "Pouch"}},
	{Word: "LIBRARY", Hints: []string{"Books", "Quiet", "Reading", "Librarian"}},
}

// Bank draws entries uniformly at random. Safe for concurrent use, since
// every lobby in the process shares one bank.
type Bank struct {
	mu      sync.Mutex
	entries []Entry
	rng     *rand.Rand
}

func NewBank(entries []Entry, src rand.Source) (*Bank, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	cp := make([]Entry, 0, len(entries))
	for i, e := range entries {
		word := strings.ToUpper(strings.TrimSpace(e.Word))
		if word == "" || len(e.Hints) == 0 {
			return nil, fmt.Errorf("entry %d: %w", i, ErrInvalidEntry)
		}
		cp = append(cp, Entry{Word: word, Hints: append([]string(nil), e.Hints...)})
	}
	return &Bank{entries: cp, rng: rand.New(src)}, nil
}

func clockSeed() rand.Source {
	now := uint64(time.Now().UnixNano())
	return rand.NewPCG(now, now>>32)
}

// NewDefaultBank returns a bank over Catalog seeded from the wall clock.
func NewDefaultBank() *Bank {
	b, err := NewBank(Catalog, clockSeed())
	if err != nil {
		// Catalog is static and non-empty.
		panic(err)
	}
	return b
}

func (b *Bank) Draw() Entry {
	b.mu.Lock()
	e := b.entries[b.rng.IntN(len(b.entries))]
	b.mu.Unlock()

	return Entry{Word: e.Word, Hints: append([]string(nil), e.Hints...)}
}

func (b *Bank) Len() int { return len(b.entries) }

// LoadBank builds a clock-seeded bank from a catalog file.
func LoadBank(path string) (*Bank, error) {
	entries, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}
	return NewBank(entries, clockSeed())
}

// LoadCatalog reads entries from the "words" key of a json, yaml or toml file.
func LoadCatalog(path string) ([]Entry, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var entries []Entry
	if err := v.UnmarshalKey("words", &entries); err != nil {
		return nil, fmt.Errorf("decode catalog %s: %w", path, err)
	}
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}
	return entries, nil
}
