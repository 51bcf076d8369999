package dhan

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dgnsrekt/oi-scalper/internal/oi"
)

type envelope struct {
	Status  string          `json:"status"`
	Remarks json.RawMessage `json:"remarks,omitempty"`
	Data    json.RawMessage `json:"data"`
}

type chainData struct {
	LastPrice float64                    `json:"last_price"`
	OC        map[string]json.RawMessage `json:"oc"`
	Data      json.RawMessage            `json:"data"`
}

type strikeRecord struct {
	CE *sideRecord `json:"ce"`
	PE *sideRecord `json:"pe"`
}

type sideRecord struct {
	OI         float64 `json:"oi"`
	PreviousOI float64 `json:"previous_oi"`
	Greeks     struct {
		Delta float64 `json:"delta"`
	} `json:"greeks"`
}

func (s *sideRecord) side() *oi.Side {
	if s == nil {
		return nil
	}
	return &oi.Side{OI: int64(s.OI), PreviousOI: int64(s.PreviousOI), Delta: s.Greeks.Delta}
}

// NormalizeChain turns an option chain response into a Snapshot. The chain
// may sit under data or data.data. Strike entries that are not objects or
// whose key is not numeric are skipped.
func NormalizeChain(body []byte, expiry string) (*oi.Snapshot, error) {
	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var cd chainData
	if err := json.Unmarshal(data, &cd); err != nil {
		return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("decoding chain: %w", err)}
	}

	if len(cd.OC) == 0 && isObject(cd.Data) {
		var inner chainData
		if err := json.Unmarshal(cd.Data, &inner); err != nil {
			return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("decoding nested chain: %w", err)}
		}
		cd = inner
	}

	if cd.LastPrice <= 0 || len(cd.OC) == 0 {
		return nil, &FetchError{Kind: KindEmpty, Err: ErrEmptyData}
	}

	strikes := make([]oi.Strike, 0, len(cd.OC))
	for key, raw := range cd.OC {
		price, err := strconv.ParseFloat(strings.TrimSpace(key), 64)
		if err != nil {
			continue
		}
		var rec strikeRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			continue
		}
		strikes = append(strikes, oi.Strike{Price: price, Call: rec.CE.side(), Put: rec.PE.side()})
	}

	if len(strikes) == 0 {
		return nil, &FetchError{Kind: KindEmpty, Err: ErrEmptyData}
	}

	return oi.NewSnapshot(expiry, cd.LastPrice, strikes), nil
}

// unwrap checks the status field and returns the data payload.
func unwrap(body []byte) (json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &FetchError{Kind: KindDecode, Err: fmt.Errorf("decoding envelope: %w", err)}
	}
	if env.Status != "" && !strings.EqualFold(env.Status, "success") {
		return nil, &FetchError{Kind: KindStatus, Err: fmt.Errorf("api status %q: %s", env.Status, string(env.Remarks))}
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, &FetchError{Kind: KindEmpty, Err: ErrEmptyData}
	}
	return env.Data, nil
}

func isObject(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return strings.HasPrefix(s, "{")
}

// parseExpiryList accepts data as a list of dates, or as an object whose
// list values (or, failing that, keys) are the dates.
func parseExpiryList(body []byte) ([]string, error) {
	data, err := unwrap(body)
	if err != nil {
		return nil, err
	}

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, &FetchError{Kind: KindDecode, Err: errors.New("expiry list is neither a list nor an object")}
	}

	var dates, keys []string
	for k, v := range obj {
		keys = append(keys, k)
		var vals []string
		if err := json.Unmarshal(v, &vals); err == nil {
			dates = append(dates, vals...)
		}
	}
	if len(dates) == 0 {
		dates = keys
	}
	if len(dates) == 0 {
		return nil, &FetchError{Kind: KindEmpty, Err: ErrEmptyData}
	}
	return dates, nil
}
