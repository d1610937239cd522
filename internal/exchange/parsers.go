package exchange

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/suwandre/depthwatch/internal/models"
)

// flexFloat accepts both JSON numbers and numeric strings. Exchanges disagree
// on which one they send for prices, sizes and timestamps.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int64

func (i *flexInt) UnmarshalJSON(data []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

// errMalformedBody marks a response that is not the JSON shape the exchange
// documents, as opposed to one that reports a failure.
var errMalformedBody = errors.New("malformed response body")

func missing(field string) error {
	return fmt.Errorf("%w: no %s", errMalformedBody, field)
}

// Each entry: [price, quantity, ...]. Extra columns (Coinbase order count) are ignored.
type rawLevel []flexFloat

type rawBook struct {
	Bids      []rawLevel
	Asks      []rawLevel
	Timestamp int64 // 0 when the exchange does not send one
}

func (b rawBook) levels(depth int) (bids, asks []models.OrderBookLevel, err error) {
	if bids, err = convertLevels(b.Bids, depth); err != nil {
		return nil, nil, fmt.Errorf("bids: %w", err)
	}
	if asks, err = convertLevels(b.Asks, depth); err != nil {
		return nil, nil, fmt.Errorf("asks: %w", err)
	}
	return bids, asks, nil
}

// A missing or null side is an error; an empty array is a valid empty side.
func bookFrom(bids, asks []rawLevel, ts int64) (rawBook, error) {
	if bids == nil {
		return rawBook{}, missing("bids")
	}
	if asks == nil {
		return rawBook{}, missing("asks")
	}
	return rawBook{Bids: bids, Asks: asks, Timestamp: ts}, nil
}

func convertLevels(raw []rawLevel, depth int) ([]models.OrderBookLevel, error) {
	if depth > 0 && len(raw) > depth {
		raw = raw[:depth]
	}
	levels := make([]models.OrderBookLevel, 0, len(raw))
	for i, lvl := range raw {
		if len(lvl) < 2 {
			return nil, fmt.Errorf("level %d has %d fields", i, len(lvl))
		}
		levels = append(levels, models.OrderBookLevel{
			Price:    float64(lvl[0]),
			Quantity: float64(lvl[1]),
		})
	}
	return levels, nil
}

func parseBingXPairs(body []byte) ([]models.TradingPair, error) {
	var raw struct {
		Data struct {
			Symbols []struct {
				Symbol string `json:"symbol"`
				Status int    `json:"status"`
			} `json:"symbols"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw.Data.Symbols == nil {
		return nil, missing("data.symbols")
	}

	pairs := make([]models.TradingPair, 0, len(raw.Data.Symbols))
	for _, s := range raw.Data.Symbols {
		if s.Status == 1 {
			pairs = append(pairs, models.TradingPair{Symbol: s.Symbol})
		}
	}
	return pairs, nil
}

func parseBingXBook(body []byte) (rawBook, error) {
	var raw struct {
		Data struct {
			Bids []rawLevel `json:"bids"`
			Asks []rawLevel `json:"asks"`
			Ts   flexInt    `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawBook{}, err
	}
	return bookFrom(raw.Data.Bids, raw.Data.Asks, int64(raw.Data.Ts))
}

// statusPair covers the listing shape shared by Bitget, Coinbase, BitMart and Gate:
// an identifier plus a string status compared case-insensitively.
type statusPair struct {
	ID     string
	Status string
}

func filterActive(list []statusPair, sentinel string) []models.TradingPair {
	pairs := make([]models.TradingPair, 0, len(list))
	for _, p := range list {
		if strings.EqualFold(p.Status, sentinel) {
			pairs = append(pairs, models.TradingPair{Symbol: p.ID})
		}
	}
	return pairs
}

func parseBitgetPairs(body []byte) ([]models.TradingPair, error) {
	var raw struct {
		Data []struct {
			Symbol string `json:"symbol"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw.Data == nil {
		return nil, missing("data")
	}

	list := make([]statusPair, len(raw.Data))
	for i, s := range raw.Data {
		list[i] = statusPair{ID: s.Symbol, Status: s.Status}
	}
	return filterActive(list, "online"), nil
}

func parseBitgetBook(body []byte) (rawBook, error) {
	var raw struct {
		Data struct {
			Bids []rawLevel `json:"bids"`
			Asks []rawLevel `json:"asks"`
			Ts   flexInt    `json:"ts"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawBook{}, err
	}
	return bookFrom(raw.Data.Bids, raw.Data.Asks, int64(raw.Data.Ts))
}

func checkBybitBody(body []byte) error {
	var raw struct {
		RetCode *int   `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if raw.RetCode == nil || *raw.RetCode != 0 {
		if raw.RetMsg == "" {
			return errors.New("unknown error")
		}
		return errors.New(raw.RetMsg)
	}
	return nil
}

// codeCheck builds a CheckBody for exchanges that answer 200 with
// {"code": ..., "msg": ...} and signal failure through the code. success is
// compared against the code's text, so 0, "0" and "00000" all work.
func codeCheck(success string) func(body []byte) error {
	return func(body []byte) error {
		var raw struct {
			Code    json.RawMessage `json:"code"`
			Msg     string          `json:"msg"`
			Message string          `json:"message"` // BitMart
		}
		if err := json.Unmarshal(body, &raw); err != nil {
			return fmt.Errorf("%w: %v", errMalformedBody, err)
		}

		code := strings.Trim(string(raw.Code), `"`)
		if code == success {
			return nil
		}

		msg := cmp.Or(raw.Msg, raw.Message, "unknown error")
		if code == "" || code == "null" {
			return errors.New(msg)
		}
		return fmt.Errorf("%s (code %s)", msg, code)
	}
}

func parseBybitPairs(body []byte) ([]models.TradingPair, error) {
	var raw struct {
		Result struct {
			List []struct {
				Symbol string `json:"symbol"`
				Status string `json:"status"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw.Result.List == nil {
		return nil, missing("result.list")
	}

	list := make([]statusPair, len(raw.Result.List))
	for i, s := range raw.Result.List {
		list[i] = statusPair{ID: s.Symbol, Status: s.Status}
	}
	return filterActive(list, "trading"), nil
}

func parseBybitBook(body []byte) (rawBook, error) {
	var raw struct {
		Result struct {
			B  []rawLevel `json:"b"`
			A  []rawLevel `json:"a"`
			Ts flexInt    `json:"ts"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawBook{}, err
	}
	return bookFrom(raw.Result.B, raw.Result.A, int64(raw.Result.Ts))
}

func parseCoinbasePairs(body []byte) ([]models.TradingPair, error) {
	var raw []struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, missing("product list")
	}

	list := make([]statusPair, len(raw))
	for i, p := range raw {
		list[i] = statusPair{ID: p.ID, Status: p.Status}
	}
	return filterActive(list, "online"), nil
}

// Coinbase books carry no server timestamp.
func parseCoinbaseBook(body []byte) (rawBook, error) {
	var raw struct {
		Bids []rawLevel `json:"bids"`
		Asks []rawLevel `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawBook{}, err
	}
	return bookFrom(raw.Bids, raw.Asks, 0)
}

func parseBitMartPairs(body []byte) ([]models.TradingPair, error) {
	var raw struct {
		Data struct {
			Symbols []struct {
				Symbol      string `json:"symbol"`
				TradeStatus string `json:"trade_status"`
			} `json:"symbols"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw.Data.Symbols == nil {
		return nil, missing("data.symbols")
	}

	list := make([]statusPair, len(raw.Data.Symbols))
	for i, s := range raw.Data.Symbols {
		list[i] = statusPair{ID: s.Symbol, Status: s.TradeStatus}
	}
	return filterActive(list, "trading"), nil
}

func parseBitMartBook(body []byte) (rawBook, error) {
	var raw struct {
		Data struct {
			Ts   flexInt    `json:"ts"`
			Bids []rawLevel `json:"bids"`
			Asks []rawLevel `json:"asks"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawBook{}, err
	}
	return bookFrom(raw.Data.Bids, raw.Data.Asks, int64(raw.Data.Ts))
}

func parseGatePairs(body []byte) ([]models.TradingPair, error) {
	var raw []struct {
		ID          string `json:"id"`
		TradeStatus string `json:"trade_status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	if raw == nil {
		return nil, missing("currency pair list")
	}

	list := make([]statusPair, len(raw))
	for i, p := range raw {
		list[i] = statusPair{ID: p.ID, Status: p.TradeStatus}
	}
	return filterActive(list, "tradable"), nil
}

func parseGateBook(body []byte) (rawBook, error) {
	var raw struct {
		Current flexInt    `json:"current"`
		Bids    []rawLevel `json:"bids"`
		Asks    []rawLevel `json:"asks"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawBook{}, err
	}
	return bookFrom(raw.Bids, raw.Asks, int64(raw.Current))
}
