package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"cosplayradar/internal/constants"
	"cosplayradar/internal/domain"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const jikanBaseURL = "https://api.jikan.moe/v4"

// JikanClient is the secondary catalog. Broader coverage than the primary,
// but its character records carry no gender data, so normalized gender is
// always Unknown.
type JikanClient struct {
	baseURL string
	client  *fasthttp.Client
	limiter *rate.Limiter
}

func NewJikanClient() *JikanClient {
	return &JikanClient{
		baseURL: jikanBaseURL,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Limit(constants.JikanRequestsPerSecond), 1),
	}
}

func (c *JikanClient) Name() domain.Source { return domain.SourceJikan }

// FetchCharacters runs a character page search. A gender filter other than
// Unknown cannot be satisfied here and returns an empty page, letting the
// aggregator fall through to the next source.
func (c *JikanClient) FetchCharacters(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	query = query.Normalize()

	if query.Gender != "" && query.Gender != domain.GenderUnknown {
		return nil, nil
	}

	params := url.Values{}
	params.Set("page", strconv.Itoa(query.Page))
	params.Set("limit", strconv.Itoa(query.PerPage))
	params.Set("order_by", "favorites")
	params.Set("sort", "desc")
	if query.Category != "" {
		params.Set("q", query.Category)
	}

	resp, err := jikanGet[jikanCharacterPage](ctx, c, "/characters?"+params.Encode())
	if err != nil {
		return nil, err
	}

	now := time.Now()
	characters := make([]domain.Character, 0, len(resp.Data))
	for _, raw := range resp.Data {
		characters = append(characters, domain.Character{
			ID:         fmt.Sprintf("jikan:%d", raw.MalID),
			Name:       raw.Name,
			Gender:     domain.GenderUnknown,
			Favourites: raw.Favorites,
			Role:       domain.RoleSupporting,
			Source:     domain.SourceJikan,
			FetchedAt:  now,
		})
	}
	return characters, nil
}

// FetchSeries looks up one anime by its numeric catalog id.
func (c *JikanClient) FetchSeries(ctx context.Context, id string) (*domain.Series, error) {
	numeric, err := strconv.Atoi(strings.TrimPrefix(id, "jikan:"))
	if err != nil {
		return nil, &domain.ValidationError{Field: "series_id", Reason: "not a jikan id"}
	}

	resp, err := jikanGet[jikanAnimeResponse](ctx, c, fmt.Sprintf("/anime/%d", numeric))
	if err != nil {
		return nil, err
	}

	a := resp.Data
	series := &domain.Series{
		ID:         fmt.Sprintf("jikan:%d", a.MalID),
		Title:      a.Title,
		Status:     normalizeJikanStatus(a.Status),
		Format:     normalizeJikanType(a.Type),
		SeasonYear: a.Year,
		Popularity: a.Members,
		Favourites: a.Favorites,
	}
	if a.Aired.From != "" {
		if t, err := time.Parse(time.RFC3339, a.Aired.From); err == nil {
			series.StartDate = t
			if series.SeasonYear == 0 {
				series.SeasonYear = t.Year()
			}
		}
	}
	return series, nil
}

func jikanGet[T any](ctx context.Context, c *JikanClient, path string) (*T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(fasthttp.MethodGet)

	return doJSON[T](ctx, c.client, req)
}

type jikanCharacterPage struct {
	Data []struct {
		MalID     int    `json:"mal_id"`
		Name      string `json:"name"`
		Favorites int    `json:"favorites"`
	} `json:"data"`
}

type jikanAnimeResponse struct {
	Data struct {
		MalID     int    `json:"mal_id"`
		Title     string `json:"title"`
		Type      string `json:"type"`
		Status    string `json:"status"`
		Year      int    `json:"year"`
		Members   int    `json:"members"`
		Favorites int    `json:"favorites"`
		Aired     struct {
			From string `json:"from"`
		} `json:"aired"`
	} `json:"data"`
}

func normalizeJikanStatus(raw string) domain.ReleaseStatus {
	switch strings.ToLower(raw) {
	case "currently airing":
		return domain.StatusReleasing
	case "not yet aired":
		return domain.StatusNotYetReleased
	case "finished airing":
		return domain.StatusFinished
	default:
		return domain.StatusFinished
	}
}

func normalizeJikanType(raw string) domain.Format {
	switch strings.ToLower(raw) {
	case "tv":
		return domain.FormatTV
	case "movie":
		return domain.FormatMovie
	case "ova":
		return domain.FormatOVA
	case "ona":
		return domain.FormatONA
	default:
		return domain.FormatSpecial
	}
}
