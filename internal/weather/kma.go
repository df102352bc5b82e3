package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"club-events/internal/util"
)

// KMA village forecast API (data.go.kr, VilageFcstInfoService_2.0).
// Endpoint used: /getVilageFcst?serviceKey=..&dataType=JSON&base_date=..&base_time=..&nx=..&ny=..
// Categories read: TMP, SKY, PTY, REH, WSD, POP.

const defaultKMABaseURL = "https://apis.data.go.kr/1360000/VilageFcstInfoService_2.0"

// KST is the zone forecast dates and hours are published in.
var KST = time.FixedZone("KST", 9*60*60)

// issue times of the village forecast, HHMM
var kmaBaseTimes = []int{200, 500, 800, 1100, 1400, 1700, 2000, 2300}

// kmaPublishDelay is how long after an issue time its data becomes available.
const kmaPublishDelay = 10 * time.Minute

type KMASource struct {
	baseURL    string
	serviceKey string
	nx, ny     int
	client     *http.Client
	attempts   int
	now        Clock
}

type KMAOptions struct {
	BaseURL    string
	ServiceKey string
	NX, NY     int
	Timeout    time.Duration
	Attempts   int
	Now        Clock
}

func NewKMASource(o KMAOptions) *KMASource {
	if o.BaseURL == "" {
		o.BaseURL = defaultKMABaseURL
	}
	if o.Timeout == 0 {
		o.Timeout = 5 * time.Second
	}
	if o.Attempts == 0 {
		o.Attempts = 3
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return &KMASource{
		baseURL:    strings.TrimRight(o.BaseURL, "/"),
		serviceKey: strings.TrimSpace(o.ServiceKey),
		nx:         o.NX,
		ny:         o.NY,
		client:     util.NewHTTPClient(o.Timeout),
		attempts:   o.Attempts,
		now:        o.Now,
	}
}

func (k *KMASource) Name() string { return "kma" }

type kmaResponse struct {
	Response struct {
		Header struct {
			ResultCode string `json:"resultCode"`
			ResultMsg  string `json:"resultMsg"`
		} `json:"header"`
		Body struct {
			Items struct {
				Item []kmaItem `json:"item"`
			} `json:"items"`
		} `json:"body"`
	} `json:"response"`
}

type kmaItem struct {
	Category  string `json:"category"`
	FcstDate  string `json:"fcstDate"`
	FcstTime  string `json:"fcstTime"`
	FcstValue string `json:"fcstValue"`
}

// Fetch returns the forecast slot closest to target. A target at midnight
// in its own zone is read as "that day" and resolved to noon KST.
func (k *KMASource) Fetch(ctx context.Context, target time.Time) (Observation, error) {
	if k.serviceKey == "" {
		return Observation{}, ErrNotConfigured
	}
	baseDate, baseTime := kmaBase(k.now())

	q := url.Values{}
	q.Set("serviceKey", k.serviceKey)
	q.Set("pageNo", "1")
	q.Set("numOfRows", "1000")
	q.Set("dataType", "JSON")
	q.Set("base_date", baseDate)
	q.Set("base_time", baseTime)
	q.Set("nx", strconv.Itoa(k.nx))
	q.Set("ny", strconv.Itoa(k.ny))
	u := fmt.Sprintf("%s/getVilageFcst?%s", k.baseURL, q.Encode())

	var data kmaResponse
	err := util.Retry(ctx, k.attempts, 300*time.Millisecond, 2*time.Second, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		resp, err := k.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode/100 != 2 {
			return fmt.Errorf("kma: http %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&data)
	})
	if err != nil {
		return Observation{}, err
	}
	if code := data.Response.Header.ResultCode; code != "00" {
		return Observation{}, fmt.Errorf("kma: result %s %s", code, data.Response.Header.ResultMsg)
	}
	return pickSlot(data.Response.Body.Items.Item, forecastTarget(target))
}

// kmaBase returns the latest issue (date, HHMM) already published at now.
func kmaBase(now time.Time) (string, string) {
	t := now.In(KST).Add(-kmaPublishDelay)
	hhmm := t.Hour()*100 + t.Minute()
	base := -1
	for _, b := range kmaBaseTimes {
		if b <= hhmm {
			base = b
		}
	}
	if base < 0 {
		t = t.AddDate(0, 0, -1)
		base = kmaBaseTimes[len(kmaBaseTimes)-1]
	}
	return t.Format("20060102"), fmt.Sprintf("%04d", base)
}

// forecastTarget moves target into KST. A date-only target keeps its
// calendar day and becomes noon.
func forecastTarget(target time.Time) time.Time {
	if target.Hour() == 0 && target.Minute() == 0 && target.Second() == 0 {
		y, m, d := target.Date()
		return time.Date(y, m, d, 12, 0, 0, 0, KST)
	}
	return target.In(KST)
}

// pickSlot gathers the categories of the forecast hour nearest to target.
func pickSlot(items []kmaItem, target time.Time) (Observation, error) {
	wantDate := target.Format("20060102")
	wantHour := target.Hour()

	slot := ""
	best := math.MaxInt
	for _, it := range items {
		if it.FcstDate != wantDate || len(it.FcstTime) < 2 {
			continue
		}
		h, err := strconv.Atoi(it.FcstTime[:2])
		if err != nil {
			continue
		}
		d := h - wantHour
		if d < 0 {
			d = -d
		}
		if d < best {
			best, slot = d, it.FcstTime
		}
	}
	if slot == "" {
		return Observation{}, fmt.Errorf("kma: no forecast for %s", wantDate)
	}

	var obs Observation
	seen := map[string]bool{}
	for _, it := range items {
		if it.FcstDate != wantDate || it.FcstTime != slot {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(it.FcstValue), 64)
		if err != nil {
			continue
		}
		seen[it.Category] = true
		switch it.Category {
		case "TMP", "T1H":
			obs.Temperature = v
		case "SKY":
			obs.Sky = int(v)
		case "PTY":
			obs.PrecipitationType = int(v)
		case "REH":
			obs.Humidity = int(v)
		case "WSD":
			obs.WindSpeed = v
		case "POP":
			obs.PrecipitationProbability = int(v)
		}
	}
	if !seen["TMP"] && !seen["T1H"] {
		return Observation{}, fmt.Errorf("kma: temperature missing for %s %s", wantDate, slot)
	}
	return obs, nil
}
