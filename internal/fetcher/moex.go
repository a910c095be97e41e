package fetcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const issPageSize = 100

var (
	valueColumns = []string{"CURRENTVALUE", "LAST", "LASTVALUE", "LASTPRICE", "VALUE"}
	timeColumns  = []string{"SYSTIME", "TIME", "UPDATETIME", "DATETIME", "LASTCHANGE"}
	openColumns  = []string{"OPEN", "OPENVALUE", "OPENVALUE_RUR", "FIRST"}
	highColumns  = []string{"HIGH", "HIGHVALUE", "HIGHPRICE"}
	lowColumns   = []string{"LOW", "LOWVALUE", "LOWPRICE"}
)

// MoexOptions parameterise the MOEX ISS fetcher.
type MoexOptions struct {
	BaseURL        string
	Board          string
	Security       string
	CandleInterval int
	Timeout        time.Duration
	UserAgent      string
	Location       *time.Location
}

// Moex fetches index data from the MOEX ISS HTTP API.
type Moex struct {
	opts    MoexOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	loc     *time.Location
}

// NewMoex constructs a MOEX ISS fetcher.
func NewMoex(opts MoexOptions, logger zerolog.Logger) *Moex {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://iss.moex.com/iss"
	}

	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	if opts.CandleInterval <= 0 {
		opts.CandleInterval = 1
	}

	return &Moex{
		opts:    opts,
		logger:  logger.With().Str("component", "moex_fetcher").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		loc:     loc,
	}
}

type issTable struct {
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

type marketdataResponse struct {
	MarketData issTable `json:"marketdata"`
}

type candlesResponse struct {
	Candles issTable `json:"candles"`
}

// FetchLastValue retrieves the current index value and its source timestamp.
func (m *Moex) FetchLastValue(ctx context.Context) (time.Time, float64, error) {
	row, columns, err := m.fetchSecurityRow(ctx)
	if err != nil {
		return time.Time{}, 0, err
	}

	valueIdx, valueColumn, ok := findColumn(columns, valueColumns)
	if !ok {
		return time.Time{}, 0, fmt.Errorf("iss response missing value column (%s)", strings.Join(valueColumns, ", "))
	}

	value, ok := asFloat(row[valueIdx])
	if !ok {
		return time.Time{}, 0, fmt.Errorf("%s value is missing in iss response", valueColumn)
	}

	timestamp := time.Now().In(m.loc)
	if timeIdx, _, ok := findColumn(columns, timeColumns); ok {
		if raw, isStr := row[timeIdx].(string); isStr && strings.TrimSpace(raw) != "" {
			if parsed, err := m.parseIssTime(raw); err == nil {
				timestamp = parsed
			}
		}
	}

	return timestamp, value, nil
}

// FetchDaySummary retrieves open/high/low/close for the current day.
// Missing open/high/low columns fall back to the current value.
func (m *Moex) FetchDaySummary(ctx context.Context) (DaySummary, error) {
	row, columns, err := m.fetchSecurityRow(ctx)
	if err != nil {
		return DaySummary{}, err
	}

	valueIdx, valueColumn, ok := findColumn(columns, valueColumns)
	if !ok {
		return DaySummary{}, fmt.Errorf("iss response missing value column (%s)", strings.Join(valueColumns, ", "))
	}
	last, ok := asFloat(row[valueIdx])
	if !ok {
		return DaySummary{}, fmt.Errorf("%s value is missing in iss response", valueColumn)
	}

	pick := func(candidates []string) float64 {
		idx, _, ok := findColumn(columns, candidates)
		if !ok {
			return last
		}
		value, ok := asFloat(row[idx])
		if !ok {
			return last
		}
		return value
	}

	return DaySummary{
		Open:  pick(openColumns),
		High:  pick(highColumns),
		Low:   pick(lowColumns),
		Close: last,
	}, nil
}

// FetchCandles retrieves candles for [start, end], merging ISS pages and
// clipping to the window plus one trailing interval.
func (m *Moex) FetchCandles(ctx context.Context, start, end time.Time) ([]Candle, error) {
	endpoint := fmt.Sprintf("%s/engines/stock/markets/index/securities/%s/candles.json",
		m.baseURL, url.PathEscape(m.opts.Security))

	interval := m.opts.CandleInterval
	candles := make([]Candle, 0, issPageSize)
	offset := 0

	for {
		params := url.Values{}
		params.Set("from", start.In(m.loc).Format("2006-01-02 15:04:05"))
		params.Set("till", end.In(m.loc).Format("2006-01-02 15:04:05"))
		params.Set("interval", strconv.Itoa(interval))
		params.Set("iss.meta", "off")
		params.Set("start", strconv.Itoa(offset))

		var payload candlesResponse
		if err := m.getJSON(ctx, endpoint, params, &payload); err != nil {
			return nil, err
		}

		rows := payload.Candles.Data
		if len(rows) == 0 {
			break
		}

		beginIdx, _, okBegin := findColumn(payload.Candles.Columns, []string{"begin"})
		closeIdx, _, okClose := findColumn(payload.Candles.Columns, []string{"close"})
		if !okBegin || !okClose {
			return nil, errors.New("iss candle response missing begin/close columns")
		}

		for _, row := range rows {
			raw, isStr := row[beginIdx].(string)
			if !isStr {
				return nil, errors.New("iss candle timestamp is not a string")
			}
			ts, err := m.parseIssTime(raw)
			if err != nil {
				return nil, fmt.Errorf("parse candle timestamp: %w", err)
			}
			value, ok := asFloat(row[closeIdx])
			if !ok {
				return nil, errors.New("iss candle close is not a number")
			}
			candles = append(candles, Candle{Timestamp: ts, Close: value})
		}

		if len(rows) < issPageSize {
			break
		}
		offset += len(rows)
	}

	sort.Slice(candles, func(i, j int) bool {
		return candles[i].Timestamp.Before(candles[j].Timestamp)
	})

	tolerance := time.Duration(interval) * time.Minute
	clipped := candles[:0]
	for _, c := range candles {
		if c.Timestamp.Before(start) || c.Timestamp.After(end.Add(tolerance)) {
			continue
		}
		clipped = append(clipped, c)
	}
	return clipped, nil
}

func (m *Moex) fetchSecurityRow(ctx context.Context) ([]any, []string, error) {
	endpoint := fmt.Sprintf("%s/engines/stock/markets/index/boards/%s/securities.json",
		m.baseURL, url.PathEscape(m.opts.Board))

	params := url.Values{}
	params.Set("securities", m.opts.Security)
	params.Set("iss.meta", "off")

	var payload marketdataResponse
	if err := m.getJSON(ctx, endpoint, params, &payload); err != nil {
		return nil, nil, err
	}

	columns := payload.MarketData.Columns
	rows := payload.MarketData.Data
	if len(rows) == 0 {
		return nil, nil, errors.New("no market data received from moex iss")
	}

	secidIdx, _, ok := findColumn(columns, []string{"SECID"})
	if !ok {
		return nil, nil, errors.New("iss response missing SECID column")
	}

	for _, row := range rows {
		if secidIdx < len(row) && row[secidIdx] == m.opts.Security {
			return row, columns, nil
		}
	}
	return nil, nil, fmt.Errorf("security %s not found in iss response", m.opts.Security)
}

func (m *Moex) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(m.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("moex iss error (%d)", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode iss response: %w", err)
	}
	return nil
}

// parseIssTime handles the "2006-01-02 15:04:05" and ISO shapes ISS uses.
// Offset-less timestamps are interpreted in the exchange timezone.
func (m *Moex) parseIssTime(raw string) (time.Time, error) {
	cleaned := strings.TrimSpace(strings.ReplaceAll(raw, "T", " "))
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02 15:04", "2006-01-02"} {
		if ts, err := time.ParseInLocation(layout, cleaned, m.loc); err == nil {
			return ts, nil
		}
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.In(m.loc), nil
	}
	return time.Time{}, fmt.Errorf("unexpected iss timestamp %q", raw)
}

func findColumn(columns []string, candidates []string) (int, string, bool) {
	for _, name := range candidates {
		for idx, column := range columns {
			if column == name {
				return idx, name, true
			}
		}
	}
	return 0, "", false
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(t, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

var (
	_ QuoteFetcher  = (*Moex)(nil)
	_ CandleFetcher = (*Moex)(nil)
)
