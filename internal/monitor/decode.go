package monitor

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/genricoloni/onair/internal/domain"
)

// row is one publication, either standalone or inside the connect batch
type row struct {
	Channel string `json:"channel"`
	Pub     struct {
		Data json.RawMessage `json:"data"`
	} `json:"pub"`
}

type frame struct {
	Connect *struct {
		Data []row `json:"data"`
	} `json:"connect"`
	Channel *string `json:"channel"`
}

type stationPayload struct {
	NP *domain.NowPlaying `json:"np"`
}

type clockPayload struct {
	Time int64 `json:"time"`
}

// DecodeFrame turns one SSE data payload into routed updates. The initial
// connect frame yields one update per row; a frame without connect or
// channel yields none.
func DecodeFrame(data []byte) ([]domain.Update, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch {
	case f.Connect != nil:
		updates := make([]domain.Update, 0, len(f.Connect.Data))
		for _, r := range f.Connect.Data {
			updates = append(updates, decodeRow(r))
		}
		return updates, nil
	case f.Channel != nil:
		var r row
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("malformed row: %w", err)
		}
		return []domain.Update{decodeRow(r)}, nil
	default:
		return nil, nil
	}
}

func decodeRow(r row) domain.Update {
	if r.Channel == domain.ClockChannel {
		var p clockPayload
		if err := json.Unmarshal(r.Pub.Data, &p); err != nil {
			return domain.Unrecognized{Channel: r.Channel}
		}
		return domain.ClockUpdate{Time: p.Time}
	}

	// The key comes from the payload, not the channel name
	var p stationPayload
	if len(r.Pub.Data) == 0 || json.Unmarshal(r.Pub.Data, &p) != nil || p.NP == nil || p.NP.Station.Shortcode == "" {
		return domain.Unrecognized{Channel: r.Channel}
	}
	return domain.StationUpdate{
		Key:        domain.StationKey(p.NP.Station.Shortcode),
		NowPlaying: *p.NP,
	}
}

type connectOptions struct {
	Subs map[string]map[string]string `json:"subs"`
}

// StreamURL builds the SSE endpoint with the subscriptions encoded in the
// cf_connect query parameter
func StreamURL(baseURI string, subs []domain.Subscription) (string, error) {
	opts := connectOptions{Subs: make(map[string]map[string]string, len(subs))}
	for _, s := range subs {
		o := map[string]string{}
		if s.Timezone != "" {
			o["timezone"] = s.Timezone
		}
		opts.Subs[s.Key] = o
	}

	raw, err := json.Marshal(opts)
	if err != nil {
		return "", fmt.Errorf("failed to encode subscriptions: %w", err)
	}

	u, err := url.Parse(baseURI + "/api/live/nowplaying/sse")
	if err != nil {
		return "", fmt.Errorf("invalid base URI: %w", err)
	}
	q := u.Query()
	q.Set("cf_connect", string(raw))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
