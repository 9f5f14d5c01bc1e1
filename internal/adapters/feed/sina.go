package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flashfeed/internal/adapters/config"
	"flashfeed/internal/domain/flash"
	"flashfeed/pkg/errors"
	"flashfeed/pkg/logger"
)

// createTimeLayout is the upstream local-time format, e.g. "2025-05-14 16:33:56"
const createTimeLayout = "2006-01-02 15:04:05"

// SinaClient fetches live flashes from the Sina zhibo feed. It is
// stateless besides the cursor passed into Fetch.
type SinaClient struct {
	baseURL    string
	chanID     int
	feedType   int
	pageSize   int
	httpClient *http.Client
	loc        *time.Location
	log        *logger.Logger

	// now is swappable for tests; crawl timestamps come from it
	now func() time.Time
}

// NewSinaClient creates a new feed client
func NewSinaClient(cfg config.FeedConfig) *SinaClient {
	// The feed publishes China Standard Time. Fall back to a fixed
	// offset when the tzdata lookup fails.
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		loc = time.FixedZone("CST", 8*60*60)
	}

	return &SinaClient{
		baseURL:  cfg.URL,
		chanID:   cfg.ChanID,
		feedType: cfg.Type,
		pageSize: cfg.PageSize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		loc: loc,
		log: logger.Get().With("component", "sina_feed"),
		now: time.Now,
	}
}

// Upstream response shapes. The ext field is itself a JSON-encoded
// string inside the item.
type feedResponse struct {
	Result struct {
		Status struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		} `json:"status"`
		Data struct {
			Feed struct {
				List []json.RawMessage `json:"list"`
			} `json:"feed"`
		} `json:"data"`
	} `json:"result"`
}

type feedItem struct {
	ID         int64     `json:"id"`
	RichText   string    `json:"rich_text"`
	CreateTime string    `json:"create_time"`
	Tag        []feedTag `json:"tag"`
	DocURL     string    `json:"docurl"`
	Ext        string    `json:"ext"`
}

type feedTag struct {
	Name string `json:"name"`
}

type extPayload struct {
	Stocks []extStock `json:"stocks"`
	DocURL string     `json:"docurl"`
}

type extStock struct {
	Market string `json:"market"`
	Symbol string `json:"symbol"`
	Key    string `json:"key"`
}

// Fetch retrieves the most recent feed page and normalizes every item
// newer than lastProcessedID (0 means no cursor yet). Records come back
// oldest first. batchLatestID is the newest upstream id in the page
// regardless of per-item failures; it is 0 when the page is empty or
// the upstream call failed, and the error distinguishes the two: a
// healthy-but-empty page returns (nil, 0, nil), an unreachable or
// errored source returns (nil, 0, err) wrapping ErrSourceUnavailable.
func (c *SinaClient) Fetch(ctx context.Context, lastProcessedID int64) ([]*flash.Flash, int64, error) {
	params := url.Values{}
	params.Set("page", "1")
	params.Set("page_size", strconv.Itoa(c.pageSize))
	params.Set("zhibo_id", strconv.Itoa(c.chanID))
	params.Set("type", strconv.Itoa(c.feedType))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, 0, errors.Wrapf(errors.ErrSourceUnavailable, "failed to build feed request: %v", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(errors.ErrSourceUnavailable, "feed request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, 0, errors.Wrapf(errors.ErrSourceUnavailable, "feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var payload feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, 0, errors.Wrapf(errors.ErrSourceUnavailable, "failed to decode feed response: %v", err)
	}

	if payload.Result.Status.Code != 0 {
		return nil, 0, errors.Wrapf(errors.ErrSourceUnavailable, "feed returned error status code=%d msg=%q",
			payload.Result.Status.Code, payload.Result.Status.Msg)
	}

	list := payload.Result.Data.Feed.List
	if len(list) == 0 {
		return nil, 0, nil
	}

	// The list arrives newest first; the first parseable item carries
	// the batch's latest id.
	var batchLatestID int64
	var flashes []*flash.Flash

	// Iterate in reverse so records accumulate oldest first
	for i := len(list) - 1; i >= 0; i-- {
		var item feedItem
		if err := json.Unmarshal(list[i], &item); err != nil {
			c.log.Warnf("Skipping unparseable feed item: %v", err)
			continue
		}

		if item.ID > batchLatestID {
			batchLatestID = item.ID
		}

		if lastProcessedID > 0 && item.ID <= lastProcessedID {
			continue
		}

		f, err := c.normalize(item, list[i])
		if err != nil {
			// Per-item isolation: a bad item is logged and permanently
			// skipped; the cursor still advances past it via batchLatestID.
			c.log.Warnf("Skipping feed item %d: %v", item.ID, err)
			continue
		}

		flashes = append(flashes, f)
	}

	if batchLatestID == 0 {
		return nil, 0, nil
	}

	return flashes, batchLatestID, nil
}

// normalize converts one upstream item into a canonical Flash
func (c *SinaClient) normalize(item feedItem, raw json.RawMessage) (*flash.Flash, error) {
	if item.ID <= 0 {
		return nil, fmt.Errorf("item has no usable id")
	}

	f := &flash.Flash{
		ID:         flash.FlashID(item.ID),
		UpstreamID: item.ID,
		Content:    item.RichText,
		CrawledAt:  c.now().UTC().Truncate(time.Second),
		Source:     flash.SourceName,
		Tags:       []string{},
		Symbols:    []flash.Symbol{},
		DetailURL:  item.DocURL,
		RawSource:  raw,
	}

	// A malformed create_time degrades the record instead of dropping
	// it: the flash is stored but never enters the time indexes.
	if item.CreateTime != "" {
		local, err := time.ParseInLocation(createTimeLayout, item.CreateTime, c.loc)
		if err != nil {
			c.log.Warnf("Flash %s has malformed create_time %q: %v", f.ID, item.CreateTime, err)
		} else {
			utc := local.UTC()
			f.PublishedAt = &utc
		}
	}

	for _, tag := range item.Tag {
		if tag.Name != "" {
			f.Tags = append(f.Tags, tag.Name)
		}
	}

	if item.Ext != "" {
		var ext extPayload
		if err := json.Unmarshal([]byte(item.Ext), &ext); err != nil {
			// ext parse failures keep the item; symbols stay empty and
			// the top-level docurl stands.
			c.log.Warnf("Flash %s has malformed ext payload: %v", f.ID, err)
		} else {
			for _, stock := range ext.Stocks {
				if stock.Market == "" || stock.Symbol == "" {
					continue
				}
				f.Symbols = append(f.Symbols, flash.Symbol{
					Market: stock.Market,
					Symbol: flash.CanonicalSymbol(stock.Symbol),
					Name:   stock.Key,
				})
			}
			if ext.DocURL != "" {
				f.DetailURL = ext.DocURL
			}
		}
	}

	return f, nil
}
