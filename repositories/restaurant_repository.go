package repositories

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/lunch-roulette/metrics"
	"github.com/Dosada05/lunch-roulette/models"
)

var (
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrUpstreamStatus     = errors.New("unexpected upstream status")
)

const maxResponseSize = 8 << 20

// NearbyQuery describes one candidate fetch around an origin.
type NearbyQuery struct {
	X        float64
	Y        float64
	Distance int
	Excluded []string
}

type RestaurantRepository interface {
	Nearby(ctx context.Context, q NearbyQuery) ([]models.Candidate, error)
	Search(ctx context.Context, keyword string) ([]models.Candidate, error)
	Autocomplete(ctx context.Context, keyword string) ([]models.Suggestion, error)
	GetDetail(ctx context.Context, rid string) (*models.Detail, error)
	SubmitQuestion(ctx context.Context, q models.Question, file *models.Attachment) error
}

type httpRestaurantRepository struct {
	baseURL *url.URL
	client  *http.Client
	metrics *metrics.Metrics
}

func NewHTTPRestaurantRepository(baseURL string, timeout time.Duration, m *metrics.Metrics) (RestaurantRepository, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid restaurant API base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid restaurant API base url %q: scheme and host are required", baseURL)
	}
	return &httpRestaurantRepository{
		baseURL: u,
		client:  &http.Client{Timeout: timeout},
		metrics: m,
	}, nil
}

// restaurantDTO is the API's camelCase shape of a restaurant.
type restaurantDTO struct {
	ID               int      `json:"id"`
	RID              string   `json:"rid"`
	Name             string   `json:"name"`
	X                float64  `json:"x"`
	Y                float64  `json:"y"`
	Category         string   `json:"category"`
	Address          string   `json:"address"`
	RoadAddress      string   `json:"roadAddress"`
	RecommendedPrice string   `json:"recommendedPrice"`
	Images           []string `json:"images"`
	Menus            string   `json:"menus"`
	BizHour          string   `json:"bizHour"`
}

func (d restaurantDTO) toCandidate() models.Candidate {
	images := d.Images
	if images == nil {
		images = []string{}
	}
	return models.Candidate{
		ID:               d.ID,
		Ref:              d.RID,
		Name:             d.Name,
		Category:         d.Category,
		Lon:              d.X,
		Lat:              d.Y,
		Address:          d.Address,
		RoadAddress:      d.RoadAddress,
		RecommendedPrice: d.RecommendedPrice,
		Images:           images,
		Menus:            d.Menus,
		BizHour:          d.BizHour,
		Survived:         true,
	}
}

// restaurantList accepts both a bare array and the wrapped
// {"restaurantNearbyResponses": [...]} form.
type restaurantList []restaurantDTO

func (l *restaurantList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []restaurantDTO
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var wrapped struct {
		Items []restaurantDTO `json:"restaurantNearbyResponses"`
	}
	if err := json.Unmarshal(trimmed, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Items
	return nil
}

func toCandidates(list restaurantList) []models.Candidate {
	out := make([]models.Candidate, 0, len(list))
	for _, d := range list {
		out = append(out, d.toCandidate())
	}
	return out
}

type detailDTO struct {
	Menus []struct {
		ID            int    `json:"id"`
		Name          string `json:"name"`
		Price         string `json:"price"`
		IsRecommended bool   `json:"isRecommended"`
		Description   string `json:"description"`
		MenuIdx       int    `json:"menuIdx"`
		MenuImages    []struct {
			ID  int    `json:"id"`
			URL string `json:"url"`
		} `json:"menuImages"`
	} `json:"menus"`
	Reviews []struct {
		ID           int     `json:"id"`
		Title        string  `json:"title"`
		URL          string  `json:"url"`
		AuthorName   string  `json:"authorName"`
		ProfileImage *string `json:"profileImage"`
		Content      string  `json:"content"`
		CreatedAt    string  `json:"createdAt"`
	} `json:"reviews"`
}

func (d detailDTO) toDetail() *models.Detail {
	detail := &models.Detail{
		Menus:   make([]models.Menu, 0, len(d.Menus)),
		Reviews: make([]models.Review, 0, len(d.Reviews)),
	}
	for _, m := range d.Menus {
		menu := models.Menu{
			ID:            m.ID,
			Name:          m.Name,
			Price:         m.Price,
			IsRecommended: m.IsRecommended,
			Description:   m.Description,
			MenuIdx:       m.MenuIdx,
			Images:        make([]models.MenuImage, 0, len(m.MenuImages)),
		}
		for _, img := range m.MenuImages {
			menu.Images = append(menu.Images, models.MenuImage{ID: img.ID, URL: img.URL})
		}
		detail.Menus = append(detail.Menus, menu)
	}
	for _, r := range d.Reviews {
		detail.Reviews = append(detail.Reviews, models.Review{
			ID:           r.ID,
			Title:        r.Title,
			URL:          r.URL,
			AuthorName:   r.AuthorName,
			ProfileImage: r.ProfileImage,
			Content:      r.Content,
			CreatedAt:    r.CreatedAt,
		})
	}
	return detail
}

func (r *httpRestaurantRepository) Nearby(ctx context.Context, q NearbyQuery) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("x", strconv.FormatFloat(q.X, 'f', -1, 64))
	params.Set("y", strconv.FormatFloat(q.Y, 'f', -1, 64))
	params.Set("d", strconv.Itoa(q.Distance))
	// ?ex=rid1&ex=rid2
	for _, rid := range q.Excluded {
		params.Add("ex", rid)
	}

	var list restaurantList
	if err := r.getJSON(ctx, "nearby", "/restaurants/nearby", params, &list); err != nil {
		return nil, err
	}
	return toCandidates(list), nil
}

func (r *httpRestaurantRepository) Search(ctx context.Context, keyword string) ([]models.Candidate, error) {
	var list restaurantList
	if err := r.getJSON(ctx, "search", "/search/restaurants", url.Values{"keyword": {keyword}}, &list); err != nil {
		return nil, err
	}
	return toCandidates(list), nil
}

func (r *httpRestaurantRepository) Autocomplete(ctx context.Context, keyword string) ([]models.Suggestion, error) {
	var items []models.Suggestion
	if err := r.getJSON(ctx, "autocomplete", "/search/autocomplete", url.Values{"keyword": {keyword}}, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []models.Suggestion{}
	}
	return items, nil
}

func (r *httpRestaurantRepository) GetDetail(ctx context.Context, rid string) (*models.Detail, error) {
	// "." и ".." PathEscape не экранирует, а сервер бы их схлопнул.
	if rid == "" || rid == "." || rid == ".." {
		return nil, ErrRestaurantNotFound
	}
	var dto detailDTO
	if err := r.getJSON(ctx, "detail", "/restaurants/"+url.PathEscape(rid), nil, &dto); err != nil {
		return nil, err
	}
	return dto.toDetail(), nil
}

// SubmitQuestion posts a multipart form: a "data" part with the question as
// JSON and, when file is set, a "file" part.
func (r *httpRestaurantRepository) SubmitQuestion(ctx context.Context, q models.Question, file *models.Attachment) (err error) {
	started := time.Now()
	defer func() { r.metrics.ObserveUpstream("questions", started, err) }()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("failed to marshal question: %w", err)
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="data"; filename="blob"`)
	header.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create data part: %w", err)
	}
	if _, err = part.Write(payload); err != nil {
		return fmt.Errorf("failed to write data part: %w", err)
	}

	if file != nil {
		fileHeader := make(textproto.MIMEHeader)
		fileHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Filename))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		fileHeader.Set("Content-Type", contentType)
		fp, err := mw.CreatePart(fileHeader)
		if err != nil {
			return fmt.Errorf("failed to create file part: %w", err)
		}
		if _, err = fp.Write(file.Data); err != nil {
			return fmt.Errorf("failed to write file part: %w", err)
		}
	}
	if err = mw.Close(); err != nil {
		return fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint("/questions", nil), &body)
	if err != nil {
		return fmt.Errorf("failed to build question request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send question: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: POST /questions returned %d", ErrUpstreamStatus, resp.StatusCode)
	}
	return nil
}

// endpoint joins the base URL with an already escaped path.
func (r *httpRestaurantRepository) endpoint(escapedPath string, params url.Values) string {
	u := *r.baseURL
	u.RawPath = strings.TrimRight(u.EscapedPath(), "/") + escapedPath
	if p, err := url.PathUnescape(u.RawPath); err == nil {
		u.Path = p
	}
	u.RawQuery = params.Encode()
	return u.String()
}

func (r *httpRestaurantRepository) getJSON(ctx context.Context, name, path string, params url.Values, dst interface{}) (err error) {
	started := time.Now()
	defer func() { r.metrics.ObserveUpstream(name, started, err) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint(path, params), nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", name, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrRestaurantNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: GET %s returned %d", ErrUpstreamStatus, path, resp.StatusCode)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", name, err)
	}
	return nil
}
