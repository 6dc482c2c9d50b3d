package services

import (
	"fmt"
	"strconv"
	"time"

	"optionscope/interfaces"
)

// BuildOptionSymbol constructs an OCC option ticker, e.g. AAPL251219C00150000.
func BuildOptionSymbol(underlying string, expiration time.Time, kind interfaces.OptionKind, strike float64) (string, error) {
	side := ""
	switch kind {
	case interfaces.KindCall:
		side = "C"
	case interfaces.KindPut:
		side = "P"
	default:
		return "", &InvalidKindError{Kind: string(kind)}
	}

	year := expiration.Year() % 100
	month := int(expiration.Month())
	day := expiration.Day()

	// Strike price formatted to 8 digits, thousandths of a dollar.
	strikePart := fmt.Sprintf("%08d", int(strike*1000))

	return fmt.Sprintf("%s%02d%02d%02d%s%s", underlying, year, month, day, side, strikePart), nil
}

// OptionSymbolComponents holds the parsed parts of an OCC option ticker.
type OptionSymbolComponents struct {
	Underlying string
	Expiration time.Time
	Kind       interfaces.OptionKind
	Strike     float64
}

// ParseOptionSymbol decomposes an OCC option ticker. The strike occupies the
// last 8 digits, the side the character before it, and the expiration the six
// digits before that; everything remaining is the underlying.
func ParseOptionSymbol(symbol string) (*OptionSymbolComponents, error) {
	if len(symbol) < 16 {
		return nil, fmt.Errorf("option symbol too short: %q", symbol)
	}

	strikePart := symbol[len(symbol)-8:]
	sidePart := symbol[len(symbol)-9 : len(symbol)-8]
	datePart := symbol[len(symbol)-15 : len(symbol)-9]
	underlying := symbol[:len(symbol)-15]

	strikeThousandths, err := strconv.ParseInt(strikePart, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid strike in option symbol %q: %w", symbol, err)
	}

	expiration, err := time.Parse("060102", datePart)
	if err != nil {
		return nil, fmt.Errorf("invalid expiration in option symbol %q: %w", symbol, err)
	}

	var kind interfaces.OptionKind
	switch sidePart {
	case "C":
		kind = interfaces.KindCall
	case "P":
		kind = interfaces.KindPut
	default:
		return nil, fmt.Errorf("invalid option side %q in symbol %q", sidePart, symbol)
	}

	return &OptionSymbolComponents{
		Underlying: underlying,
		Expiration: expiration,
		Kind:       kind,
		Strike:     float64(strikeThousandths) / 1000,
	}, nil
}
