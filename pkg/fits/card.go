package fits

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	cardSize        = 80
	blockSize       = 2880
	cardsPerBlock   = blockSize / cardSize
	maxHeaderBlocks = 1000

	// A single card holds 68 characters of escaped string between the quotes.
	// Chunks followed by a CONTINUE card are shorter so that the '&' marker fits.
	maxStringPayload   = cardSize - 12
	maxContinuePayload = 67
	minStringPayload   = 8
)

// keyword is one logical header entry. CONTINUE cards are already folded into the
// value of the string they extend.
type keyword struct {
	key      string
	value    string
	isString bool
	hasValue bool
}

// headerBuilder accumulates formatted 80-byte cards.
type headerBuilder struct {
	cards []string
}

func padCard(s string) string {
	if len(s) >= cardSize {
		return s[:cardSize]
	}
	return s + strings.Repeat(" ", cardSize-len(s))
}

// addValue writes a fixed-format card: the value is right-justified to column 30.
func (h *headerBuilder) addValue(key, value string) {
	h.cards = append(h.cards, padCard(fmt.Sprintf("%-8s= %20s", key, value)))
}

func (h *headerBuilder) addLogical(key string, v bool) {
	if v {
		h.addValue(key, "T")
		return
	}
	h.addValue(key, "F")
}

func (h *headerBuilder) addInt(key string, v int) {
	h.addValue(key, strconv.Itoa(v))
}

func (h *headerBuilder) addReal(key string, v float64) {
	h.addValue(key, formatReal(v))
}

func (h *headerBuilder) addString(key, value string) {
	h.cards = append(h.cards, formatStringCards(key, value)...)
}

func (h *headerBuilder) end() {
	h.cards = append(h.cards, padCard("END"))
}

// writeTo emits the cards padded with blank cards to a whole number of blocks.
func (h *headerBuilder) writeTo(w io.Writer) error {
	n := len(h.cards)
	if rem := n % cardsPerBlock; rem != 0 {
		n += cardsPerBlock - rem
	}
	var sb strings.Builder
	sb.Grow(n * cardSize)
	for _, c := range h.cards {
		sb.WriteString(c)
	}
	sb.WriteString(strings.Repeat(" ", (n-len(h.cards))*cardSize))
	_, err := io.WriteString(w, sb.String())
	return err
}

// formatReal renders v so that FITS readers see a real number: it always carries a
// decimal point or an exponent.
func formatReal(v float64) string {
	s := strconv.FormatFloat(v, 'G', -1, 64)
	if strings.Contains(s, ".") {
		return s
	}
	if i := strings.IndexByte(s, 'E'); i >= 0 {
		return s[:i] + ".0" + s[i:]
	}
	return s + ".0"
}

// escapeUnits splits the quote-escaped form of s into units that must not be
// separated when a value is split across cards.
func escapeUnits(s string) []string {
	units := make([]string, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			units = append(units, "''")
			continue
		}
		units = append(units, s[i:i+1])
	}
	return units
}

// formatStringCards renders a string keyword, spilling onto CONTINUE cards when the
// escaped value does not fit a single card. Every chunk but the last ends with '&'.
func formatStringCards(key, value string) []string {
	units := escapeUnits(value)
	escaped := strings.Join(units, "")
	if len(escaped) <= maxStringPayload {
		if len(escaped) < minStringPayload {
			escaped += strings.Repeat(" ", minStringPayload-len(escaped))
		}
		return []string{padCard(fmt.Sprintf("%-8s= '%s'", key, escaped))}
	}

	var chunks []string
	var cur strings.Builder
	for _, u := range units {
		if cur.Len()+len(u) > maxContinuePayload {
			chunks = append(chunks, cur.String())
			cur.Reset()
		}
		cur.WriteString(u)
	}
	chunks = append(chunks, cur.String())

	cards := make([]string, len(chunks))
	for i, c := range chunks {
		if i < len(chunks)-1 {
			c += "&"
		}
		if i == 0 {
			cards[i] = padCard(fmt.Sprintf("%-8s= '%s'", key, c))
		} else {
			cards[i] = padCard(fmt.Sprintf("CONTINUE  '%s'", c))
		}
	}
	return cards
}

func isKeyChar(b byte) bool {
	return (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9') || b == '_' || b == '-'
}

// parseCard splits one 80-byte card into its keyword and value.
func parseCard(raw string) (keyword, error) {
	n := 0
	for n < len(raw) && n < 8 && isKeyChar(raw[n]) {
		n++
	}
	kw := keyword{key: raw[:n]}
	if n == 0 {
		return kw, nil
	}

	var rest string
	switch {
	case kw.key == "CONTINUE":
		rest = raw[n:]
	case len(raw) >= 10 && raw[8] == '=' && raw[9] == ' ':
		rest = raw[10:]
	default:
		return kw, nil
	}

	rest = strings.TrimLeft(rest, " ")
	if strings.HasPrefix(rest, "'") {
		s, err := parseQuoted(rest)
		if err != nil {
			return kw, fmt.Errorf("card %q: %w", strings.TrimRight(raw, " "), err)
		}
		kw.value, kw.isString, kw.hasValue = s, true, true
		return kw, nil
	}
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[:i]
	}
	kw.value = strings.TrimSpace(rest)
	kw.hasValue = kw.value != ""
	return kw, nil
}

// parseQuoted reads a quoted string starting at s[0] and undoes quote doubling.
// Anything after the closing quote is an inline comment.
func parseQuoted(s string) (string, error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		if s[i] != '\'' {
			sb.WriteByte(s[i])
			continue
		}
		if i+1 < len(s) && s[i+1] == '\'' {
			sb.WriteByte('\'')
			i++
			continue
		}
		return strings.TrimRight(sb.String(), " "), nil
	}
	return "", fmt.Errorf("unterminated string: %w", ErrFormat)
}

// foldContinuations merges CONTINUE cards into the string keyword they follow.
func foldContinuations(cards []keyword) ([]keyword, error) {
	out := make([]keyword, 0, len(cards))
	for _, c := range cards {
		if c.key != "CONTINUE" {
			out = append(out, c)
			continue
		}
		if len(out) == 0 || !out[len(out)-1].isString {
			return nil, fmt.Errorf("CONTINUE card without a preceding string: %w", ErrFormat)
		}
		prev := &out[len(out)-1]
		prev.value = strings.TrimSuffix(prev.value, "&") + c.value
	}
	return out, nil
}

// readHeader consumes whole blocks up to and including the one holding END.
func readHeader(r io.Reader) ([]keyword, error) {
	block := make([]byte, blockSize)
	var cards []keyword
	for b := 0; b < maxHeaderBlocks; b++ {
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, fmt.Errorf("reading header block %d: %w: %w", b, ErrFormat, err)
		}
		for i := 0; i < cardsPerBlock; i++ {
			kw, err := parseCard(string(block[i*cardSize : (i+1)*cardSize]))
			if err != nil {
				return nil, err
			}
			if kw.key == "END" {
				return foldContinuations(cards)
			}
			if kw.key == "" && !kw.hasValue {
				continue
			}
			cards = append(cards, kw)
		}
	}
	return nil, fmt.Errorf("no END card within %d header blocks: %w", maxHeaderBlocks, ErrFormat)
}
