package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"quiz-saga-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Client looks up question metadata from the question catalog service for
// event enrichment. Lookups are best-effort: callers bound them with a
// context timeout and degrade to a partially-populated event on failure.
// Results are cached with a jittered TTL; singleflight collapses concurrent
// misses for the same question.
type Client struct {
	baseURL string
	http    *http.Client
	ttl     time.Duration
	clock   func() time.Time
	sf      singleflight.Group
	rnd     *rand.Rand

	mu    sync.RWMutex
	cache map[int64]cachedQuestion
}

type cachedQuestion struct {
	info      domain.QuestionInfo
	expiresAt time.Time
}

func NewClient(baseURL string, ttl time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
		ttl:     ttl,
		clock:   time.Now,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:   make(map[int64]cachedQuestion),
	}
}

func (c *Client) Question(ctx context.Context, questionID int64) (domain.QuestionInfo, error) {
	now := c.clock()

	c.mu.RLock()
	if entry, ok := c.cache[questionID]; ok && entry.expiresAt.After(now) {
		c.mu.RUnlock()
		return entry.info, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do(strconv.FormatInt(questionID, 10), func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if entry, ok := c.cache[questionID]; ok && entry.expiresAt.After(now) {
			c.mu.RUnlock()
			return entry.info, nil
		}
		c.mu.RUnlock()

		info, err := c.fetch(ctx, questionID)
		if err != nil {
			return domain.QuestionInfo{}, err
		}

		c.mu.Lock()
		c.cache[questionID] = cachedQuestion{
			info:      info,
			expiresAt: now.Add(c.ttlWithJitter()),
		}
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return domain.QuestionInfo{}, err
	}
	return result.(domain.QuestionInfo), nil
}

func (c *Client) fetch(ctx context.Context, questionID int64) (domain.QuestionInfo, error) {
	url := fmt.Sprintf("%s/questions/%d", c.baseURL, questionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.QuestionInfo{}, fmt.Errorf("build catalog request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.QuestionInfo{}, fmt.Errorf("catalog lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.QuestionInfo{}, domain.ErrQuestionNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return domain.QuestionInfo{}, fmt.Errorf("catalog lookup: unexpected status %d", resp.StatusCode)
	}

	var info domain.QuestionInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return domain.QuestionInfo{}, fmt.Errorf("decode catalog response: %w", err)
	}
	return info, nil
}

func (c *Client) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
