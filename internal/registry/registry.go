package registry

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// ChangeBufferSize is the capacity of the Change channel.
const ChangeBufferSize = 64

// ValidationError describes user input that cannot become an instrument.
type ValidationError struct {
	Field  string // "symbol", "entry_price" or "quantity"
	Value  string // Offending input as entered
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// Change is a list-changed notification.
type Change struct {
	Instrument model.Instrument // The record that was appended
	Index      int              // Its position in the list
	Len        int              // List length after the append
}

// Registry holds the ordered list of instruments for the session.
type Registry struct {
	mu          sync.RWMutex
	instruments []model.Instrument

	changes chan Change
	logger  *slog.Logger
}

// New creates an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		changes: make(chan Change, ChangeBufferSize),
		logger:  logger,
	}
}

// Add validates a record and appends it. On error the registry is unchanged.
func (r *Registry) Add(inst model.Instrument) (model.Instrument, error) {
	inst.Symbol = strings.TrimSpace(inst.Symbol)
	if err := Validate(inst); err != nil {
		return model.Instrument{}, err
	}

	r.mu.Lock()
	r.instruments = append(r.instruments, inst)
	change := Change{
		Instrument: inst,
		Index:      len(r.instruments) - 1,
		Len:        len(r.instruments),
	}
	r.mu.Unlock()

	r.notifyChange(change)

	r.logger.Debug("instrument added",
		"symbol", inst.Symbol,
		"entry_price", inst.EntryPrice,
		"quantity", inst.Quantity,
	)

	return inst, nil
}

// List returns a copy of all records in insertion order.
func (r *Registry) List() []model.Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]model.Instrument, len(r.instruments))
	copy(result, r.instruments)
	return result
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instruments)
}

// Symbols returns the selectable symbols: one per distinct symbol,
// in order of first appearance.
func (r *Registry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{}, len(r.instruments))
	result := make([]string, 0, len(r.instruments))
	for _, inst := range r.instruments {
		if _, ok := seen[inst.Symbol]; ok {
			continue
		}
		seen[inst.Symbol] = struct{}{}
		result = append(result, inst.Symbol)
	}
	return result
}

// Contains reports whether any record has the given symbol.
func (r *Registry) Contains(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, inst := range r.instruments {
		if inst.Symbol == symbol {
			return true
		}
	}
	return false
}

// Changes returns the channel of list-changed notifications.
func (r *Registry) Changes() <-chan Change {
	return r.changes
}

// notifyChange sends a change to the changes channel (non-blocking).
func (r *Registry) notifyChange(change Change) {
	select {
	case r.changes <- change:
	default:
		// Channel full, drop oldest by consuming one and retrying.
		select {
		case <-r.changes:
		default:
		}
		select {
		case r.changes <- change:
		default:
			r.logger.Warn("dropped registry change notification", "symbol", change.Instrument.Symbol)
		}
	}
}

// Validate checks an instrument's fields. The symbol must already be trimmed.
func Validate(inst model.Instrument) error {
	if inst.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}
	if math.IsNaN(inst.EntryPrice) || math.IsInf(inst.EntryPrice, 0) {
		return &ValidationError{
			Field:  "entry_price",
			Value:  strconv.FormatFloat(inst.EntryPrice, 'g', -1, 64),
			Reason: "must be a finite number",
		}
	}
	if inst.EntryPrice <= 0 {
		return &ValidationError{
			Field:  "entry_price",
			Value:  strconv.FormatFloat(inst.EntryPrice, 'g', -1, 64),
			Reason: "must be positive",
		}
	}
	if inst.Quantity <= 0 {
		return &ValidationError{
			Field:  "quantity",
			Value:  strconv.Itoa(inst.Quantity),
			Reason: "must be a positive integer",
		}
	}
	return nil
}

// Parse converts raw user input into a validated instrument.
func Parse(symbol, entryPrice, quantity string) (model.Instrument, error) {
	inst := model.Instrument{Symbol: strings.TrimSpace(symbol)}
	if inst.Symbol == "" {
		return model.Instrument{}, &ValidationError{Field: "symbol", Reason: "must not be empty"}
	}

	priceText := strings.TrimSpace(entryPrice)
	price, err := decimal.NewFromString(priceText)
	if err != nil {
		return model.Instrument{}, &ValidationError{Field: "entry_price", Value: entryPrice, Reason: "must be a number"}
	}
	if !price.IsPositive() {
		return model.Instrument{}, &ValidationError{Field: "entry_price", Value: entryPrice, Reason: "must be positive"}
	}
	inst.EntryPrice = price.InexactFloat64()

	qtyText := strings.TrimSpace(quantity)
	qty, err := strconv.Atoi(qtyText)
	if err != nil {
		return model.Instrument{}, &ValidationError{Field: "quantity", Value: quantity, Reason: "must be a positive integer"}
	}
	inst.Quantity = qty

	if err := Validate(inst); err != nil {
		return model.Instrument{}, err
	}
	return inst, nil
}
