package kapsteuer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// DecodeEvents decodes financial events from a stream of JSONL data. Each
// line carries an "event" discriminator naming the variant. This is the
// collaborator contract only: the engine itself never reads files.
func DecodeEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		lineBytes := scanner.Bytes()
		if len(lineBytes) == 0 {
			continue
		}

		var identifier struct {
			Event EventKind `json:"event"`
		}
		if err := json.Unmarshal(lineBytes, &identifier); err != nil {
			return nil, fmt.Errorf("line %d: could not identify event: %w", line, err)
		}

		ev, err := decodeEvent(identifier.Event, lineBytes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func unmarshalEvent[E Event](data []byte) (Event, error) {
	var e E
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return e, nil
}

func decodeEvent(kind EventKind, data []byte) (Event, error) {
	switch kind {
	case KindAcquisition:
		return unmarshalEvent[Acquisition](data)
	case KindDisposal:
		return unmarshalEvent[Disposal](data)
	case KindForwardSplit:
		return unmarshalEvent[ForwardSplit](data)
	case KindCashMerger:
		return unmarshalEvent[CashMerger](data)
	case KindStockMerger:
		return unmarshalEvent[StockMerger](data)
	case KindStockDividend:
		return unmarshalEvent[StockDividend](data)
	case KindDistribution:
		return unmarshalEvent[Distribution](data)
	case KindWithholdingTax:
		return unmarshalEvent[WithholdingTax](data)
	case KindInterestReceived:
		return unmarshalEvent[InterestReceived](data)
	case KindAccruedInterestPaid:
		return unmarshalEvent[AccruedInterestPaid](data)
	case KindCapitalRepayment:
		return unmarshalEvent[CapitalRepayment](data)
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
}

// EncodeEvents writes events as JSONL, one event per line.
func EncodeEvents(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	for _, ev := range events {
		if err := enc.Encode(ev); err != nil {
			return err
		}
	}
	return nil
}
