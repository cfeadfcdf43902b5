package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"cosplayradar/internal/constants"
	"cosplayradar/internal/domain"

	"github.com/goccy/go-json"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const anilistEndpoint = "https://graphql.anilist.co"

// AniListClient is the primary catalog. It carries gender and role data the
// secondary catalog lacks.
type AniListClient struct {
	endpoint string
	client   *fasthttp.Client
	limiter  *rate.Limiter

	rateLimitMu sync.RWMutex
	rateLimit   RateLimitInfo
}

// RateLimitInfo mirrors the upstream rate-limit headers from the last
// response.
type RateLimitInfo struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewAniListClient() *AniListClient {
	return &AniListClient{
		endpoint: anilistEndpoint,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         10 * time.Second,
			WriteTimeout:        10 * time.Second,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(rate.Limit(constants.AniListRequestsPerSecond), 1),
		rateLimit: RateLimitInfo{
			Limit:     90,
			Remaining: 90,
			UpdatedAt: time.Now(),
		},
	}
}

func (c *AniListClient) Name() domain.Source { return domain.SourceAniList }

func (c *AniListClient) GetRateLimitInfo() RateLimitInfo {
	c.rateLimitMu.RLock()
	defer c.rateLimitMu.RUnlock()
	return c.rateLimit
}

func (c *AniListClient) updateRateLimit(resp *fasthttp.Response) {
	c.rateLimitMu.Lock()
	defer c.rateLimitMu.Unlock()

	if limit := string(resp.Header.Peek("X-Ratelimit-Limit")); limit != "" {
		if val, err := strconv.Atoi(limit); err == nil {
			c.rateLimit.Limit = val
		}
	}
	if remaining := string(resp.Header.Peek("X-Ratelimit-Remaining")); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			c.rateLimit.Remaining = val
		}
	}
	c.rateLimit.UpdatedAt = time.Now()
}

const characterPageQuery = `query ($page: Int, $perPage: Int, $search: String) {
  Page(page: $page, perPage: $perPage) {
    characters(search: $search, sort: FAVOURITES_DESC) {
      id
      name { full }
      gender
      favourites
      media(perPage: 1, sort: POPULARITY_DESC) {
        edges { characterRole }
        nodes { id title { romaji } }
      }
    }
  }
}`

const mediaQuery = `query ($id: Int) {
  Media(id: $id) {
    id
    title { romaji }
    status
    format
    seasonYear
    startDate { year month day }
    popularity
    favourites
    trending
    characters { pageInfo { total } }
  }
}`

// FetchCharacters runs a character page query. The category filter is passed
// through as the search term; gender filtering happens client-side since the
// API has no gender argument.
func (c *AniListClient) FetchCharacters(ctx context.Context, query domain.CharacterQuery) ([]domain.Character, error) {
	query = query.Normalize()

	variables := map[string]any{
		"page":    query.Page,
		"perPage": query.PerPage,
	}
	if query.Category != "" {
		variables["search"] = query.Category
	}

	page, err := graphql[characterPageResponse](ctx, c, characterPageQuery, variables)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	characters := make([]domain.Character, 0, len(page.Data.Page.Characters))
	for _, raw := range page.Data.Page.Characters {
		ch := domain.Character{
			ID:         fmt.Sprintf("anilist:%d", raw.ID),
			Name:       raw.Name.Full,
			Gender:     normalizeGender(raw.Gender),
			Favourites: raw.Favourites,
			Role:       domain.RoleSupporting,
			Source:     domain.SourceAniList,
			FetchedAt:  now,
		}
		if len(raw.Media.Nodes) > 0 {
			ch.SeriesID = fmt.Sprintf("anilist:%d", raw.Media.Nodes[0].ID)
			ch.SeriesTitle = raw.Media.Nodes[0].Title.Romaji
		}
		if len(raw.Media.Edges) > 0 {
			ch.Role = normalizeRole(raw.Media.Edges[0].CharacterRole)
		}
		if query.Gender != "" && ch.Gender != query.Gender {
			continue
		}
		characters = append(characters, ch)
	}
	return characters, nil
}

// FetchSeries looks up one series by its numeric catalog id.
func (c *AniListClient) FetchSeries(ctx context.Context, id string) (*domain.Series, error) {
	numeric, err := strconv.Atoi(strings.TrimPrefix(id, "anilist:"))
	if err != nil {
		return nil, &domain.ValidationError{Field: "series_id", Reason: "not an anilist id"}
	}

	resp, err := graphql[mediaResponse](ctx, c, mediaQuery, map[string]any{"id": numeric})
	if err != nil {
		return nil, err
	}

	m := resp.Data.Media
	if m.ID == 0 {
		return nil, domain.ErrNotFound
	}

	series := &domain.Series{
		ID:             fmt.Sprintf("anilist:%d", m.ID),
		Title:          m.Title.Romaji,
		Status:         normalizeStatus(m.Status),
		Format:         normalizeFormat(m.Format),
		SeasonYear:     m.SeasonYear,
		Popularity:     m.Popularity,
		Favourites:     m.Favourites,
		Trending:       float64(m.Trending),
		CharacterCount: m.Characters.PageInfo.Total,
	}
	if m.StartDate.Year > 0 {
		month := m.StartDate.Month
		if month == 0 {
			month = 1
		}
		day := m.StartDate.Day
		if day == 0 {
			day = 1
		}
		series.StartDate = time.Date(m.StartDate.Year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	}
	return series, nil
}

func graphql[T any](ctx context.Context, c *AniListClient, query string, variables map[string]any) (*T, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return nil, err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)

	req.SetRequestURI(c.endpoint)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	if deadline, ok := ctx.Deadline(); ok {
		err = c.client.DoDeadline(req, resp, deadline)
	} else {
		err = c.client.Do(req, resp)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	c.updateRateLimit(resp)

	switch code := resp.StatusCode(); {
	case code == fasthttp.StatusOK:
	case code == fasthttp.StatusTooManyRequests:
		return nil, domain.ErrRateLimited
	case code == fasthttp.StatusNotFound:
		return nil, domain.ErrNotFound
	default:
		return nil, fmt.Errorf("%w: status %d", domain.ErrUpstreamUnavailable, code)
	}

	var result T
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", domain.ErrUpstreamUnavailable, err)
	}
	return &result, nil
}

type characterPageResponse struct {
	Data struct {
		Page struct {
			Characters []struct {
				ID   int `json:"id"`
				Name struct {
					Full string `json:"full"`
				} `json:"name"`
				Gender     string `json:"gender"`
				Favourites int    `json:"favourites"`
				Media      struct {
					Edges []struct {
						CharacterRole string `json:"characterRole"`
					} `json:"edges"`
					Nodes []struct {
						ID    int `json:"id"`
						Title struct {
							Romaji string `json:"romaji"`
						} `json:"title"`
					} `json:"nodes"`
				} `json:"media"`
			} `json:"characters"`
		} `json:"Page"`
	} `json:"data"`
}

type mediaResponse struct {
	Data struct {
		Media struct {
			ID    int `json:"id"`
			Title struct {
				Romaji string `json:"romaji"`
			} `json:"title"`
			Status     string `json:"status"`
			Format     string `json:"format"`
			SeasonYear int    `json:"seasonYear"`
			StartDate  struct {
				Year  int `json:"year"`
				Month int `json:"month"`
				Day   int `json:"day"`
			} `json:"startDate"`
			Popularity int `json:"popularity"`
			Favourites int `json:"favourites"`
			Trending   int `json:"trending"`
			Characters struct {
				PageInfo struct {
					Total int `json:"total"`
				} `json:"pageInfo"`
			} `json:"characters"`
		} `json:"Media"`
	} `json:"data"`
}

func normalizeGender(raw string) domain.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "female":
		return domain.GenderFemale
	case "male":
		return domain.GenderMale
	case "non-binary", "nonbinary", "non binary":
		return domain.GenderNonBinary
	default:
		return domain.GenderUnknown
	}
}

func normalizeRole(raw string) domain.Role {
	switch strings.ToUpper(raw) {
	case "MAIN":
		return domain.RoleMain
	case "SUPPORTING":
		return domain.RoleSupporting
	default:
		return domain.RoleBackground
	}
}

func normalizeStatus(raw string) domain.ReleaseStatus {
	switch strings.ToUpper(raw) {
	case "RELEASING":
		return domain.StatusReleasing
	case "FINISHED":
		return domain.StatusFinished
	case "NOT_YET_RELEASED":
		return domain.StatusNotYetReleased
	case "CANCELLED":
		return domain.StatusCancelled
	case "HIATUS":
		return domain.StatusHiatus
	default:
		return domain.StatusFinished
	}
}

func normalizeFormat(raw string) domain.Format {
	switch strings.ToUpper(raw) {
	case "TV":
		return domain.FormatTV
	case "MOVIE":
		return domain.FormatMovie
	case "OVA":
		return domain.FormatOVA
	case "ONA":
		return domain.FormatONA
	case "TV_SHORT":
		return domain.FormatTVShort
	default:
		return domain.FormatSpecial
	}
}
